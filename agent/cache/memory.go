package cache

import (
	"context"
	"sync"
	"time"
)

type MemoryBackend[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
}

func NewMemoryBackend[V any]() *MemoryBackend[V] {
	return &MemoryBackend[V]{entries: make(map[string]Entry[V])}
}

func (m *MemoryBackend[V]) Get(_ context.Context, key string) (Entry[V], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *MemoryBackend[V]) Set(_ context.Context, key string, entry Entry[V]) error {
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend[V]) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, e := range m.entries {
		if e.InsertedAt.Before(cutoff) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend[V]) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}
