// Package orchestrator runs the signal collectors for a request and falls back to the
// basic heuristic when collection itself breaks down.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"honestlens/config"
	"honestlens/signals"
	"honestlens/types"
)

// Applicable lists the collectors that run for each request kind.
var Applicable = map[types.Kind][]types.SignalKind{
	types.KindText:  {types.SignalContent, types.SignalCorroboration},
	types.KindURL:   {types.SignalContent, types.SignalSource, types.SignalCorroboration},
	types.KindImage: {types.SignalImageForensics},
}

// Orchestrator fans a request out to its collectors in parallel. A collector that times
// out, errors, or panics contributes nothing and never affects its siblings.
type Orchestrator struct {
	collectors map[types.SignalKind]signals.Collector
	timeout    time.Duration
	logger     *zap.Logger
}

// New returns an orchestrator over collectors. A non-positive timeout uses
// config.CollectorTimeout.
func New(timeout time.Duration, logger *zap.Logger, collectors ...signals.Collector) *Orchestrator {
	if timeout <= 0 {
		timeout = config.CollectorTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byKind := make(map[types.SignalKind]signals.Collector, len(collectors))
	for _, c := range collectors {
		byKind[c.Kind()] = c
	}
	return &Orchestrator{collectors: byKind, timeout: timeout, logger: logger}
}

type outcome struct {
	signal types.Signal
	err    error
}

// Collect returns the successful signals in collector priority order, with nested signals
// flattened. An empty slice is a valid result. Cancelling ctx aborts every collector and
// returns an error so that nothing partial is kept.
func (o *Orchestrator) Collect(ctx context.Context, in signals.Input) ([]types.Signal, error) {
	kinds, ok := Applicable[in.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported request kind %q", types.ErrOrchestratorFailure, in.Kind)
	}

	var selected []signals.Collector
	for _, k := range kinds {
		if c, ok := o.collectors[k]; ok {
			selected = append(selected, c)
		}
	}

	outcomes := make([]outcome, len(selected))
	var g errgroup.Group
	for i, c := range selected {
		g.Go(func() error {
			sig, err := o.runOne(ctx, c, in)
			outcomes[i] = outcome{signal: sig, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrOrchestratorFailure, err)
	}

	var out []types.Signal
	for i, res := range outcomes {
		kind := selected[i].Kind()
		switch {
		case res.err == nil:
			nested := res.signal.Nested
			res.signal.Nested = nil
			out = append(out, res.signal)
			out = append(out, nested...)
		case errors.Is(res.err, types.ErrNoSignal):
			o.logger.Debug("collector abstained", zap.String("collector", string(kind)))
		default:
			o.logger.Warn("collector contributed no signal", zap.String("collector", string(kind)), zap.Error(res.err))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kind.Rank() < out[j].Kind.Rank()
	})
	return out, nil
}

// runOne bounds a collector by its own timeout. A collector that ignores its context is
// abandoned once the deadline passes.
func (o *Orchestrator) runOne(ctx context.Context, c signals.Collector, in signals.Input) (types.Signal, error) {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: panic: %v", types.ErrCollectorFailure, r)}
			}
		}()
		sig, err := c.Collect(cctx, in)
		done <- outcome{signal: sig, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && !errors.Is(res.err, types.ErrNoSignal) && !errors.Is(res.err, types.ErrCollectorFailure) {
			if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return types.Signal{}, fmt.Errorf("%w: %s", types.ErrCollectorTimeout, c.Kind())
			}
			return types.Signal{}, fmt.Errorf("%w: %w", types.ErrCollectorFailure, res.err)
		}
		if res.err == nil {
			res.signal.Kind = c.Kind()
		}
		return res.signal, res.err
	case <-cctx.Done():
		if ctx.Err() != nil {
			return types.Signal{}, ctx.Err()
		}
		return types.Signal{}, fmt.Errorf("%w: %s after %s", types.ErrCollectorTimeout, c.Kind(), o.timeout)
	}
}
