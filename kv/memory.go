package kv

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store implementation.
// It is the default storage area and the backend used in tests.
// Thread-safe for concurrent reads and writes; Set is atomic.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
	hub   hub
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string][]byte),
	}
}

// Get returns copies of the stored values.
func (m *MemoryStore) Get(ctx context.Context, keys ...string) (Items, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(Items, len(keys))
	for _, k := range keys {
		if v, ok := m.items[k]; ok {
			// Return a copy to prevent external mutation
			out[k] = slices.Clone(v)
		}
	}
	return out, nil
}

// Set writes all items atomically.
func (m *MemoryStore) Set(ctx context.Context, items Items) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	changes := make([]Change, 0, len(items))
	for k, v := range items {
		m.items[k] = slices.Clone(v)
		changes = append(changes, Change{Key: k, Op: OpSet})
	}
	m.mu.Unlock()

	m.hub.publish(changes...)
	return nil
}

// Remove deletes the keys.
func (m *MemoryStore) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	var changes []Change
	for _, k := range keys {
		if _, ok := m.items[k]; ok {
			delete(m.items, k)
			changes = append(changes, Change{Key: k, Op: OpRemove})
		}
	}
	m.mu.Unlock()

	m.hub.publish(changes...)
	return nil
}

// Keys returns all keys matching the prefix.
func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Watch subscribes to changes made through this store.
func (m *MemoryStore) Watch(ctx context.Context) (<-chan Change, error) {
	return m.hub.subscribe(ctx), nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
