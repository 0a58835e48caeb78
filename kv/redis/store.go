// Package redis provides a kv.Store on Redis.
//
// Set uses MSET, so a multi-key write is atomic on a single Redis node.
package redis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/recordkv/kv"
)

// Client is the subset of go-redis client methods used by Store.
type Client interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	MSet(ctx context.Context, values ...any) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Close() error
}

// Config holds connection settings for Dial.
type Config struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Store implements kv.Store and kv.Lister. Every key is stored as prefix+key.
type Store struct {
	client Client
	prefix string
}

// New creates a store on an existing client.
func New(client Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: ping failed: %w", cfg.Address, err)
	}
	return New(client, cfg.Prefix), nil
}

// Get fetches all keys with one MGET.
func (s *Store) Get(ctx context.Context, keys ...string) (kv.Items, error) {
	items := make(kv.Items, len(keys))
	if len(keys) == 0 {
		return items, nil
	}
	vals, err := s.client.MGet(ctx, s.prefixed(keys)...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget: %w", err)
	}
	for i, v := range vals {
		switch v := v.(type) {
		case nil:
		case string:
			items[keys[i]] = []byte(v)
		default:
			return nil, fmt.Errorf("redis: unexpected value type %T for %q", v, keys[i])
		}
	}
	return items, nil
}

// Set writes all items with one MSET.
func (s *Store) Set(ctx context.Context, items kv.Items) error {
	if len(items) == 0 {
		return nil
	}
	args := make([]any, 0, 2*len(items))
	for k, v := range items {
		args = append(args, s.prefix+k, v)
	}
	if err := s.client.MSet(ctx, args...).Err(); err != nil {
		return fmt.Errorf("redis: mset: %w", err)
	}
	return nil
}

// Remove deletes all keys with one DEL.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, s.prefixed(keys)...).Err(); err != nil {
		return fmt.Errorf("redis: del: %w", err)
	}
	return nil
}

// Keys scans for keys starting with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(s.prefix+prefix) + "*"
	var (
		keys   []string
		cursor uint64
	)
	for {
		page, next, err := s.client.Scan(ctx, cursor, match, 256).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: scan: %w", err)
		}
		for _, k := range page {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) prefixed(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.prefix + k
	}
	return out
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
