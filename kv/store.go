package kv

import (
	"context"
	"errors"
	"maps"
	"os"
	"slices"
)

var (
	// ErrNotFound is returned when a key does not exist.
	//
	// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
	// The default maps to `os.ErrNotExist`.
	ErrNotFound = os.ErrNotExist

	// ErrClosed is returned by calls on a closed store or loop.
	ErrClosed = errors.New("kv: closed")
)

// Items maps keys to encoded values.
type Items map[string][]byte

// Keys returns the keys of the items in sorted order.
func (it Items) Keys() []string {
	return slices.Sorted(maps.Keys(it))
}

// Clone returns a deep copy of the items.
func (it Items) Clone() Items {
	out := make(Items, len(it))
	for k, v := range it {
		out[k] = slices.Clone(v)
	}
	return out
}

// Store is an abstraction over a key-value storage area.
type Store interface {
	// Get returns the values of the given keys. Missing keys are omitted from
	// the result rather than reported as errors.
	Get(ctx context.Context, keys ...string) (Items, error)
	// Set creates or overwrites every item. Whether the batch is applied
	// atomically depends on the implementation.
	Set(ctx context.Context, items Items) error
	// Remove deletes the given keys. Missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error
}

// Lister is an optional interface for stores that can enumerate their keys.
type Lister interface {
	// Keys returns all keys with the given prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
