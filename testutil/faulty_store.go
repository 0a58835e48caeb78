package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/recordkv/kv"
)

// Calls counts the calls a FaultyStore received, failed ones included.
type Calls struct {
	Get    int
	Set    int
	Remove int
}

// FaultyStore wraps a kv.Store and fails selected operations on demand.
type FaultyStore struct {
	inner kv.Store

	mu        sync.Mutex
	getErr    error
	setErr    error
	removeErr error
	calls     Calls
	sets      []kv.Items
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner kv.Store) *FaultyStore {
	return &FaultyStore{inner: inner}
}

// FailGet makes every Get return err. Pass nil to heal.
func (s *FaultyStore) FailGet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

// FailSet makes every Set return err. Pass nil to heal.
func (s *FaultyStore) FailSet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}

// FailRemove makes every Remove return err. Pass nil to heal.
func (s *FaultyStore) FailRemove(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeErr = err
}

// Calls returns the call counters.
func (s *FaultyStore) Calls() Calls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Sets returns copies of the batches passed to Set, in call order.
func (s *FaultyStore) Sets() []kv.Items {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]kv.Items, len(s.sets))
	for i, items := range s.sets {
		out[i] = items.Clone()
	}
	return out
}

// Get implements kv.Store.
func (s *FaultyStore) Get(ctx context.Context, keys ...string) (kv.Items, error) {
	s.mu.Lock()
	s.calls.Get++
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.inner.Get(ctx, keys...)
}

// Set implements kv.Store.
func (s *FaultyStore) Set(ctx context.Context, items kv.Items) error {
	s.mu.Lock()
	s.calls.Set++
	s.sets = append(s.sets, items.Clone())
	err := s.setErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, items)
}

// Remove implements kv.Store.
func (s *FaultyStore) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	s.calls.Remove++
	err := s.removeErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Remove(ctx, keys...)
}
