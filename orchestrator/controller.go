package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"honestlens/fusion"
	"honestlens/signals"
	"honestlens/types"
)

// Gatherer collects the signals for one input.
type Gatherer interface {
	Collect(ctx context.Context, in signals.Input) ([]types.Signal, error)
}

// Controller runs collection and fusion, retrying once with the basic collector when
// collection fails outright or yields nothing.
type Controller struct {
	gatherer Gatherer
	basic    signals.Collector
	engine   *fusion.Engine
	logger   *zap.Logger
}

// NewController wires a controller. A nil basic collector uses signals.NewBasic.
func NewController(g Gatherer, basic signals.Collector, engine *fusion.Engine, logger *zap.Logger) *Controller {
	if basic == nil {
		basic = signals.NewBasic()
	}
	if engine == nil {
		engine = fusion.NewEngine()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{gatherer: g, basic: basic, engine: engine, logger: logger}
}

// Run produces the result for req. Every error wraps types.ErrVerificationFailed, together
// with types.ErrDegradedFailure when the basic path also fails or the context error when
// the caller gave up.
func (c *Controller) Run(ctx context.Context, req *types.VerificationRequest, in signals.Input) (*types.VerificationResult, error) {
	sigs, err := c.gather(ctx, in)
	if err == nil && len(sigs) > 0 {
		return c.engine.Fuse(req, sigs, types.MethodNormal), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrVerificationFailed, ctxErr)
	}

	if err != nil {
		c.logger.Warn("signal collection failed, using basic heuristic",
			zap.String("request_id", req.ID), zap.Error(err))
	} else {
		c.logger.Warn("no collector produced a signal, using basic heuristic",
			zap.String("request_id", req.ID))
	}

	sig, err := c.basicSignal(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", types.ErrVerificationFailed, types.ErrDegradedFailure, err)
	}
	return c.engine.Fuse(req, []types.Signal{sig}, types.MethodDegraded), nil
}

func (c *Controller) gather(ctx context.Context, in signals.Input) (sigs []types.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			sigs, err = nil, fmt.Errorf("%w: panic: %v", types.ErrOrchestratorFailure, r)
		}
	}()
	return c.gatherer.Collect(ctx, in)
}

func (c *Controller) basicSignal(ctx context.Context, in signals.Input) (sig types.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("basic collector panic: %v", r)
		}
	}()
	sig, err = c.basic.Collect(ctx, in)
	if err == nil {
		sig.Kind = c.basic.Kind()
	}
	return sig, err
}
