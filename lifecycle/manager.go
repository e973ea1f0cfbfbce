// Package lifecycle owns verification requests from submission to a terminal state.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"honestlens/config"
	"honestlens/deduplication"
	"honestlens/events"
	"honestlens/extraction"
	"honestlens/signals"
	"honestlens/storage"
	"honestlens/types"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("lifecycle manager closed")

// persistTimeout bounds the writes that record a terminal state after the manager's
// context is gone.
const persistTimeout = 5 * time.Second

// Verifier turns a request and its materialized input into a result.
type Verifier interface {
	Run(ctx context.Context, req *types.VerificationRequest, in signals.Input) (*types.VerificationResult, error)
}

// Store is the subset of persistence the manager needs.
type Store interface {
	SaveRequest(ctx context.Context, req *types.VerificationRequest) error
	UpdateRequestState(ctx context.Context, id string, state types.State, at time.Time) error
	Complete(ctx context.Context, res *types.VerificationResult, at time.Time) error
	FindCompletedByDedupKey(ctx context.Context, key string) (*types.VerificationRequest, error)
	GetRequest(ctx context.Context, id string) (*types.VerificationRequest, error)
	GetResult(ctx context.Context, requestID string) (*types.VerificationResult, error)
}

// Deps are the manager's collaborators. Store and Verifier are required.
type Deps struct {
	Store     Store
	Verifier  Verifier
	Extractor extraction.Extractor
	Images    storage.ImageStore
	Cache     deduplication.Cache
	Publisher events.Publisher
	Logger    *zap.Logger
}

// Stats counts what the manager has done since it started.
type Stats struct {
	Submitted    int64 `json:"submitted"`
	Deduplicated int64 `json:"deduplicated"`
	Completed    int64 `json:"completed"`
	Degraded     int64 `json:"degraded"`
	Failed       int64 `json:"failed"`
	Running      int   `json:"running"`
}

// Manager validates submissions, deduplicates URLs, runs the pipeline in the background
// and records every state transition.
type Manager struct {
	store     Store
	verifier  Verifier
	extractor extraction.Extractor
	images    storage.ImageStore
	cache     deduplication.Cache
	inflight  *deduplication.Inflight
	publisher events.Publisher
	logger    *zap.Logger

	now   func() time.Time
	newID func() string

	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]chan struct{}

	submitted, deduplicated, completed, degraded, failed atomic.Int64
}

// NewManager returns a manager ready to accept submissions. A nil cache uses an
// in-memory cache; a nil publisher drops events.
func NewManager(deps Deps) *Manager {
	if deps.Cache == nil {
		deps.Cache = deduplication.NewMemoryCache(config.DedupCapacity)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:     deps.Store,
		verifier:  deps.Verifier,
		extractor: deps.Extractor,
		images:    deps.Images,
		cache:     deps.Cache,
		inflight:  deduplication.NewInflight(),
		publisher: deps.Publisher,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		ctx:       ctx,
		cancel:    cancel,
		running:   make(map[string]chan struct{}),
	}
}

// Submit validates and accepts a request, returning its id without waiting for the
// verdict. A URL that was already verified, or is being verified, returns the existing id.
func (m *Manager) Submit(ctx context.Context, kind types.Kind, payload string, priority types.Priority) (string, error) {
	if m.ctx.Err() != nil {
		return "", ErrClosed
	}
	req, err := m.validate(kind, payload, priority)
	if err != nil {
		return "", err
	}
	m.submitted.Add(1)

	if req.DedupKey == "" {
		if err := m.start(ctx, req); err != nil {
			return "", err
		}
		return req.ID, nil
	}

	v, err, _ := m.group.Do(req.DedupKey, func() (any, error) {
		if id, ok := m.existing(ctx, req.DedupKey); ok {
			return id, nil
		}
		if holder, claimed := m.inflight.Claim(req.DedupKey, req.ID); !claimed {
			return holder, nil
		}
		if err := m.start(ctx, req); err != nil {
			m.inflight.Release(req.DedupKey, req.ID)
			return "", err
		}
		return req.ID, nil
	})
	if err != nil {
		return "", err
	}
	id := v.(string)
	if id != req.ID {
		m.deduplicated.Add(1)
		m.logger.Debug("joined existing verification", zap.String("request_id", id), zap.String("dedup_key", req.DedupKey))
	}
	return id, nil
}

// SubmitAndWait submits and blocks until the request reaches a terminal state.
func (m *Manager) SubmitAndWait(ctx context.Context, kind types.Kind, payload string, priority types.Priority) (*types.VerificationRequest, *types.VerificationResult, error) {
	id, err := m.Submit(ctx, kind, payload, priority)
	if err != nil {
		return nil, nil, err
	}
	return m.Wait(ctx, id)
}

// Wait blocks until id is no longer running, then returns it like GetResult.
func (m *Manager) Wait(ctx context.Context, id string) (*types.VerificationRequest, *types.VerificationResult, error) {
	m.mu.Lock()
	done, ok := m.running[id]
	m.mu.Unlock()
	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	return m.GetResult(ctx, id)
}

// GetResult returns the request and, once it has completed, its result. Unknown ids
// return types.ErrNotFound.
func (m *Manager) GetResult(ctx context.Context, id string) (*types.VerificationRequest, *types.VerificationResult, error) {
	req, err := m.store.GetRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if req.State != types.StateCompleted {
		return req, nil, nil
	}
	res, err := m.store.GetResult(ctx, id)
	if err != nil {
		return req, nil, fmt.Errorf("result for %s: %w", id, err)
	}
	return req, res, nil
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	running := len(m.running)
	m.mu.Unlock()
	return Stats{
		Submitted:    m.submitted.Load(),
		Deduplicated: m.deduplicated.Load(),
		Completed:    m.completed.Load(),
		Degraded:     m.degraded.Load(),
		Failed:       m.failed.Load(),
		Running:      running,
	}
}

// Close cancels in-flight verifications and waits for them to be marked failed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) validate(kind types.Kind, payload string, priority types.Priority) (*types.VerificationRequest, error) {
	k, err := types.ParseKind(string(kind))
	if err != nil {
		return nil, err
	}
	p, err := types.ParsePriority(string(priority))
	if err != nil {
		return nil, err
	}

	payload = strings.TrimSpace(payload)
	var dedupKey string
	switch k {
	case types.KindText:
		n := utf8.RuneCountInString(payload)
		if n < config.MinTextLength || n > config.MaxTextLength {
			return nil, fmt.Errorf("%w: text must be between %d and %d characters",
				types.ErrInvalidInput, config.MinTextLength, config.MaxTextLength)
		}
	case types.KindURL:
		if _, _, err := signals.ParseHost(payload); err != nil {
			return nil, fmt.Errorf("%w: invalid URL: %v", types.ErrInvalidInput, err)
		}
		dedupKey = deduplication.CanonicalURL(payload)
	case types.KindImage:
		if _, err := storage.ParseRef(payload); err != nil {
			return nil, err
		}
	}

	now := m.now()
	return &types.VerificationRequest{
		ID:        m.newID(),
		Kind:      k,
		Payload:   payload,
		Priority:  p,
		DedupKey:  dedupKey,
		State:     types.StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// existing looks for a completed request for key, first in the cache and then in the
// store. Cache errors are logged and treated as a miss.
func (m *Manager) existing(ctx context.Context, key string) (string, bool) {
	id, ok, err := m.cache.Lookup(ctx, key)
	if err != nil {
		m.logger.Warn("dedup cache lookup failed", zap.String("dedup_key", key), zap.Error(err))
	}
	if ok {
		if _, err := m.store.GetRequest(ctx, id); err == nil {
			return id, true
		}
		m.logger.Debug("dedup cache entry has no stored request", zap.String("request_id", id))
	}

	req, err := m.store.FindCompletedByDedupKey(ctx, key)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			m.logger.Warn("dedup store lookup failed", zap.String("dedup_key", key), zap.Error(err))
		}
		return "", false
	}
	if err := m.cache.Remember(ctx, key, req.ID); err != nil {
		m.logger.Warn("dedup cache write failed", zap.String("dedup_key", key), zap.Error(err))
	}
	return req.ID, true
}

// start persists req as pending, moves it to processing and launches the pipeline.
func (m *Manager) start(ctx context.Context, req *types.VerificationRequest) error {
	if err := m.store.SaveRequest(ctx, req); err != nil {
		return fmt.Errorf("save request: %w", err)
	}
	now := m.now()
	if err := m.store.UpdateRequestState(ctx, req.ID, types.StateProcessing, now); err != nil {
		return fmt.Errorf("start request %s: %w", req.ID, err)
	}
	req.State = types.StateProcessing
	req.UpdatedAt = now

	done := make(chan struct{})
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		m.fail(req, ErrClosed)
		return ErrClosed
	}
	m.running[req.ID] = done
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("verification started",
		zap.String("request_id", req.ID),
		zap.String("type", string(req.Kind)),
		zap.String("priority", string(req.Priority)))

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.running, req.ID)
			m.mu.Unlock()
			close(done)
		}()
		if req.DedupKey != "" {
			defer m.inflight.Release(req.DedupKey, req.ID)
		}
		m.process(req)
	}()
	return nil
}

func (m *Manager) process(req *types.VerificationRequest) {
	ctx := m.ctx

	in, err := m.materialize(ctx, req)
	if err != nil {
		m.fail(req, err)
		return
	}

	res, err := m.verifier.Run(ctx, req, in)
	if err != nil {
		m.fail(req, err)
		return
	}
	if ctx.Err() != nil {
		m.fail(req, ctx.Err())
		return
	}

	// Result and completed state are written together, even during shutdown.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := m.store.Complete(persistCtx, res, m.now()); err != nil {
		m.fail(req, fmt.Errorf("complete request: %w", err))
		return
	}

	m.completed.Add(1)
	if res.Method == types.MethodDegraded {
		m.degraded.Add(1)
	}
	m.logger.Info("verification completed",
		zap.String("request_id", req.ID),
		zap.Int("truth_score", res.TruthScore),
		zap.String("credibility_level", string(res.CredibilityLevel)),
		zap.String("method", string(res.Method)))

	if req.DedupKey != "" {
		if err := m.cache.Remember(persistCtx, req.DedupKey, req.ID); err != nil {
			m.logger.Warn("dedup cache write failed", zap.String("dedup_key", req.DedupKey), zap.Error(err))
		}
	}
	if err := m.publisher.PublishResult(persistCtx, req, res); err != nil {
		m.logger.Warn("failed to publish result", zap.String("request_id", req.ID), zap.Error(err))
	}
}

// materialize turns the stored payload into collector input. URL extraction failures
// degrade to scoring the URL alone.
func (m *Manager) materialize(ctx context.Context, req *types.VerificationRequest) (signals.Input, error) {
	in := signals.Input{Kind: req.Kind}
	switch req.Kind {
	case types.KindText:
		in.Text = req.Payload
	case types.KindURL:
		in.URL = req.Payload
		in.Text = "URL: " + req.Payload
		if m.extractor == nil {
			break
		}
		article, err := m.extractor.Fetch(ctx, req.Payload)
		if err != nil {
			m.logger.Warn("content extraction failed, continuing with URL only",
				zap.String("request_id", req.ID), zap.String("url", req.Payload), zap.Error(err))
			break
		}
		if body := strings.TrimSpace(article.Body()); body != "" {
			in.Text = body
		}
	case types.KindImage:
		if m.images == nil {
			return in, fmt.Errorf("no image storage configured")
		}
		data, err := m.images.Get(ctx, req.Payload)
		if err != nil {
			return in, fmt.Errorf("load image: %w", err)
		}
		in.Image = data
	}
	req.Content = in.Text
	return in, nil
}

// fail records the failed state. The cause is logged only.
func (m *Manager) fail(req *types.VerificationRequest, cause error) {
	m.failed.Add(1)
	m.logger.Error("verification failed",
		zap.String("request_id", req.ID),
		zap.String("type", string(req.Kind)),
		zap.Error(cause))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), persistTimeout)
	defer cancel()
	if err := m.store.UpdateRequestState(ctx, req.ID, types.StateFailed, m.now()); err != nil {
		m.logger.Error("failed to mark request failed", zap.String("request_id", req.ID), zap.Error(err))
	}
}
