package kv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of values a CachingStore keeps when no size is given.
const DefaultCacheSize = 1024

// Uncacher is implemented by stores that cache reads. Keys passed to Uncache
// are always read from the backing store.
type Uncacher interface {
	Uncache(keys ...string)
}

// CachingStore wraps a Store and adds an LRU read cache.
//
// Writes go through to the inner store and update the cache on success.
// Concurrent Gets for the same missing keys are coalesced into one backend call.
// Missing keys are not cached.
//
// The cache only sees writes made through it. Changes made by other writers
// evict cached values while a Watch subscription is open; keys that must
// always be current should be excluded with Uncache.
type CachingStore struct {
	inner Store
	cache *lru.Cache[string, []byte]
	group singleflight.Group
	gen   atomic.Uint64

	uncachedMu sync.RWMutex
	uncached   map[string]struct{}

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachingStore creates a new CachingStore.
// size defaults to DefaultCacheSize if <= 0.
func NewCachingStore(inner Store, size int) (*CachingStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("kv: create cache: %w", err)
	}
	return &CachingStore{inner: inner, cache: c, uncached: make(map[string]struct{})}, nil
}

// Uncache excludes keys from caching and evicts their cached values.
func (s *CachingStore) Uncache(keys ...string) {
	s.uncachedMu.Lock()
	for _, k := range keys {
		s.uncached[k] = struct{}{}
	}
	s.uncachedMu.Unlock()

	s.gen.Add(1)
	for _, k := range keys {
		s.cache.Remove(k)
	}
}

func (s *CachingStore) isUncached(key string) bool {
	s.uncachedMu.RLock()
	defer s.uncachedMu.RUnlock()
	_, ok := s.uncached[key]
	return ok
}

// Get serves cached keys from memory and fetches the rest.
func (s *CachingStore) Get(ctx context.Context, keys ...string) (Items, error) {
	out := make(Items, len(keys))
	var missing []string
	direct := false
	for _, k := range keys {
		if s.isUncached(k) {
			direct = true
			missing = append(missing, k)
			continue
		}
		if v, ok := s.cache.Get(k); ok {
			out[k] = slices.Clone(v)
			s.hits.Add(1)
			continue
		}
		missing = append(missing, k)
	}
	if len(missing) == 0 {
		return out, nil
	}
	s.misses.Add(int64(len(missing)))

	gen := s.gen.Load()
	fetched, err := s.fetch(ctx, missing, direct)
	if err != nil {
		return nil, err
	}

	// A write raced with the fetch; the values may be stale, so do not cache them.
	populate := s.gen.Load() == gen
	for _, k := range missing {
		val, ok := fetched[k]
		if !ok {
			continue
		}
		if populate && !s.isUncached(k) {
			s.cache.Add(k, slices.Clone(val))
		}
		out[k] = slices.Clone(val)
	}
	return out, nil
}

// fetch reads keys from the inner store. Reads without uncached keys are
// shared between concurrent callers; the shared call is not canceled when
// one of them gives up.
func (s *CachingStore) fetch(ctx context.Context, keys []string, direct bool) (Items, error) {
	if direct {
		return s.inner.Get(ctx, keys...)
	}

	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(strings.Join(sorted, "\x00"), func() (any, error) {
		return s.inner.Get(shared, sorted...)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Items), nil
	}
}

// Set writes through and refreshes the cached values.
func (s *CachingStore) Set(ctx context.Context, items Items) error {
	s.gen.Add(1)
	if err := s.inner.Set(ctx, items); err != nil {
		for k := range items {
			s.cache.Remove(k)
		}
		return err
	}
	for k, v := range items {
		if s.isUncached(k) {
			continue
		}
		s.cache.Add(k, slices.Clone(v))
	}
	return nil
}

// Remove deletes through and evicts the keys.
func (s *CachingStore) Remove(ctx context.Context, keys ...string) error {
	s.gen.Add(1)
	for _, k := range keys {
		s.cache.Remove(k)
	}
	return s.inner.Remove(ctx, keys...)
}

// Keys delegates to the inner store if it is a Lister.
func (s *CachingStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	l, ok := s.inner.(Lister)
	if !ok {
		return nil, fmt.Errorf("kv: %T cannot list keys: %w", s.inner, errors.ErrUnsupported)
	}
	return l.Keys(ctx, prefix)
}

// Watch relays the changes of the inner store and evicts the changed keys
// before reporting them. It fails with errors.ErrUnsupported unless the inner
// store is a Watcher.
func (s *CachingStore) Watch(ctx context.Context) (<-chan Change, error) {
	w, ok := s.inner.(Watcher)
	if !ok {
		return nil, fmt.Errorf("kv: %T cannot watch: %w", s.inner, errors.ErrUnsupported)
	}
	in, err := w.Watch(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Change, watchBuffer)
	go func() {
		defer close(out)
		for c := range in {
			s.gen.Add(1)
			s.cache.Remove(c.Key)
			select {
			case out <- c:
			default:
			}
		}
	}()
	return out, nil
}

// Purge drops every cached value.
func (s *CachingStore) Purge() {
	s.gen.Add(1)
	s.cache.Purge()
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   int64
	Misses int64
	Len    int
}

// Stats returns a snapshot of the cache counters.
func (s *CachingStore) Stats() CacheStats {
	return CacheStats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Len:    s.cache.Len(),
	}
}
