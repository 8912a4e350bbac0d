package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-memory TTL store. State does not survive a
// restart, so it is meant for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemory creates an in-memory store. A background loop evicts expired
// entries until ctx is cancelled.
func NewMemory(ctx context.Context) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	go m.evictLoop(ctx)
	return m
}

// Get retrieves a live value or ErrMiss.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, exists := m.entries[key]
	if !exists || !m.now().Before(e.expiresAt) {
		return nil, ErrMiss
	}
	return e.data, nil
}

// Set stores a value with a TTL. A non-positive TTL deletes the key.
func (m *MemoryStore) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl <= 0 {
		delete(m.entries, key)
		return nil
	}
	m.entries[key] = entry{
		data:      append([]byte(nil), data...),
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

// Delete removes a key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Stats returns store statistics.
func (m *MemoryStore) Stats(_ context.Context) map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := 0
	now := m.now()
	for _, e := range m.entries {
		if now.Before(e.expiresAt) {
			active++
		}
	}
	return map[string]interface{}{
		"backend":      "memory",
		"total_keys":   len(m.entries),
		"active_keys":  active,
		"expired_keys": len(m.entries) - active,
	}
}

// evictLoop periodically removes expired entries.
func (m *MemoryStore) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.evict()
		case <-ctx.Done():
			return
		}
	}
}

func (m *MemoryStore) evict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}
