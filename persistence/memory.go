package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"honestlens/types"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*types.VerificationRequest
	results  map[string]*types.VerificationResult
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]*types.VerificationRequest),
		results:  make(map[string]*types.VerificationResult),
	}
}

func (m *MemoryStore) SaveRequest(_ context.Context, req *types.VerificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; ok {
		return fmt.Errorf("request %s already exists", req.ID)
	}
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *MemoryStore) UpdateRequestState(_ context.Context, id string, state types.State, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, types.ErrNotFound)
	}
	if !types.CanTransition(req.State, state) {
		return fmt.Errorf("%s -> %s: %w", req.State, state, types.ErrInvalidTransition)
	}
	req.State = state
	req.UpdatedAt = at
	return nil
}

func (m *MemoryStore) SaveResult(_ context.Context, res *types.VerificationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[res.RequestID]; !ok {
		return fmt.Errorf("request %s: %w", res.RequestID, types.ErrNotFound)
	}
	if _, ok := m.results[res.RequestID]; ok {
		return ErrResultExists
	}
	cp := *res
	m.results[res.RequestID] = &cp
	return nil
}

func (m *MemoryStore) Complete(_ context.Context, res *types.VerificationResult, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[res.RequestID]
	if !ok {
		return fmt.Errorf("request %s: %w", res.RequestID, types.ErrNotFound)
	}
	if !types.CanTransition(req.State, types.StateCompleted) {
		return fmt.Errorf("%s -> %s: %w", req.State, types.StateCompleted, types.ErrInvalidTransition)
	}
	if _, ok := m.results[res.RequestID]; ok {
		return ErrResultExists
	}
	cp := *res
	m.results[res.RequestID] = &cp
	req.State = types.StateCompleted
	req.UpdatedAt = at
	return nil
}

func (m *MemoryStore) FindCompletedByDedupKey(_ context.Context, key string) (*types.VerificationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *types.VerificationRequest
	for _, req := range m.requests {
		if req.DedupKey != key || req.State != types.StateCompleted {
			continue
		}
		if found == nil || req.UpdatedAt.After(found.UpdatedAt) {
			found = req
		}
	}
	if found == nil || key == "" {
		return nil, types.ErrNotFound
	}
	return found.Clone(), nil
}

func (m *MemoryStore) GetRequest(_ context.Context, id string) (*types.VerificationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return req.Clone(), nil
}

func (m *MemoryStore) GetResult(_ context.Context, requestID string) (*types.VerificationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[requestID]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *res
	return &cp, nil
}
