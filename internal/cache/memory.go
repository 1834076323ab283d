package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore is an in-memory Store used by tests and for single-run
// batches where persistence across invocations is not wanted.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	hits    atomic.Int64
	misses  atomic.Int64
}

type memEntry struct {
	version   string
	value     json.RawMessage
	createdAt time.Time
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key, version string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		m.misses.Add(1)
		return nil, false, nil
	}
	if e.version != version {
		m.misses.Add(1)
		return nil, false, nil
	}

	m.hits.Add(1)
	return e.value, true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key, version string, value json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive (got %v)", ttl)
	}
	now := time.Now()
	m.mu.Lock()
	m.entries[key] = memEntry{
		version:   version,
		value:     append(json.RawMessage(nil), value...),
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	m.mu.Unlock()
	return nil
}

// ClearExpired implements Store.
func (m *MemoryStore) ClearExpired(_ context.Context) (int, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// ClearAll implements Store.
func (m *MemoryStore) ClearAll(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memEntry)
	m.mu.Unlock()
	return nil
}

// Stats implements Store.
func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var bytes int64
	for _, e := range m.entries {
		bytes += int64(len(e.value))
	}
	return Stats{
		Entries: len(m.entries),
		Bytes:   bytes,
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
	}, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
