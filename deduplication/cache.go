package deduplication

import (
	"context"
	"sync"
)

// Cache maps a canonical URL to the id of the request that completed it.
type Cache interface {
	Lookup(ctx context.Context, key string) (requestID string, ok bool, err error)
	Remember(ctx context.Context, key, requestID string) error
}

// MemoryCache is a bounded in-process Cache. When full, the oldest key is evicted first.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]string
	order    []string
}

// NewMemoryCache returns a cache holding at most capacity keys.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryCache{
		capacity: capacity,
		entries:  make(map[string]string, capacity),
	}
}

func (m *MemoryCache) Lookup(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.entries[key]
	return id, ok, nil
}

func (m *MemoryCache) Remember(_ context.Context, key, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		m.entries[key] = requestID
		return nil
	}
	for len(m.order) >= m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	m.entries[key] = requestID
	m.order = append(m.order, key)
	return nil
}

// Len reports the number of cached keys.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Inflight tracks URLs whose verification is still running.
type Inflight struct {
	mu      sync.Mutex
	running map[string]string
}

// NewInflight returns an empty tracker.
func NewInflight() *Inflight {
	return &Inflight{running: make(map[string]string)}
}

// Get returns the request currently verifying key.
func (f *Inflight) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.running[key]
	return id, ok
}

// Claim registers requestID for key unless another request holds it, in which case the
// holder is returned with claimed=false.
func (f *Inflight) Claim(key, requestID string) (holder string, claimed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.running[key]; ok {
		return id, false
	}
	f.running[key] = requestID
	return requestID, true
}

// Release drops key if requestID still holds it.
func (f *Inflight) Release(key, requestID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running[key] == requestID {
		delete(f.running, key)
	}
}
