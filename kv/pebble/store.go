// Package pebble provides a kv.Store on CockroachDB Pebble.
//
// Every Set and Remove is applied as one atomic, synced batch, so an upsert
// of the record index together with its record bodies is all-or-nothing.
package pebble

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/hupe1980/recordkv/kv"
)

// Store implements kv.Store and kv.Lister on a Pebble database.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble database in dir.
func Open(dir string, opts *pebble.Options) (*Store, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// New wraps an already opened database. Close closes db.
func New(db *pebble.DB) *Store {
	return &Store{db: db}
}

// Get returns the values of the keys present in the database.
func (s *Store) Get(ctx context.Context, keys ...string) (kv.Items, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := make(kv.Items, len(keys))
	for _, k := range keys {
		val, closer, err := s.db.Get([]byte(k))
		if errors.Is(err, pebble.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("pebble: get %q: %w", k, err)
		}
		items[k] = append([]byte(nil), val...)
		_ = closer.Close()
	}
	return items, nil
}

// Set writes all items in one synced batch.
func (s *Store) Set(ctx context.Context, items kv.Items) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	for k, v := range items {
		if err := b.Set([]byte(k), v, nil); err != nil {
			return fmt.Errorf("pebble: set %q: %w", k, err)
		}
	}
	return b.Commit(pebble.Sync)
}

// Remove deletes all keys in one synced batch.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, k := range keys {
		if err := b.Delete([]byte(k), nil); err != nil {
			return fmt.Errorf("pebble: delete %q: %w", k, err)
		}
	}
	return b.Commit(pebble.Sync)
}

// Keys lists keys starting with prefix in byte order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	opts := &pebble.IterOptions{}
	if prefix != "" {
		opts.LowerBound = []byte(prefix)
		opts.UpperBound = upperBound([]byte(prefix))
	}
	iter, err := s.db.NewIter(opts)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var keys []string
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys = append(keys, string(iter.Key()))
	}
	return keys, iter.Error()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// upperBound returns the smallest key greater than every key with the given
// prefix, or nil if there is none.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
