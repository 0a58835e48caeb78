// Package minio provides a kv.Store on MinIO and other S3-compatible object
// storage, one object per key.
//
// Object stores have no multi-object transactions: Set writes its items one
// object at a time, so a failed Set may leave some items written.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/recordkv/kv"
)

// DefaultConcurrency bounds the parallel object requests of one call.
const DefaultConcurrency = 16

// Config holds connection settings for Dial.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

// Store implements kv.Store and kv.Lister.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore creates a store in bucket. rootPrefix is prepended to every key
// (e.g. "records/").
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

// Dial creates a client from cfg and makes sure the bucket exists.
func Dial(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio: make bucket %s: %w", cfg.Bucket, err)
		}
	}
	return NewStore(client, cfg.Bucket, cfg.Prefix), nil
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Get fetches the objects concurrently. Missing objects are omitted.
func (s *Store) Get(ctx context.Context, keys ...string) (kv.Items, error) {
	vals := make([][]byte, len(keys))
	found := make([]bool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultConcurrency)
	for i, k := range keys {
		g.Go(func() error {
			val, ok, err := s.get(gctx, k)
			if err != nil {
				return fmt.Errorf("minio: get %q: %w", k, err)
			}
			vals[i], found[i] = val, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make(kv.Items, len(keys))
	for i, k := range keys {
		if found[i] {
			items[k] = vals[i]
		}
	}
	return items, nil
}

func (s *Store) get(ctx context.Context, name string) ([]byte, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set writes one object per item.
func (s *Store) Set(ctx context.Context, items kv.Items) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultConcurrency)
	for k, v := range items {
		g.Go(func() error {
			_, err := s.client.PutObject(gctx, s.bucket, s.key(k), bytes.NewReader(v), int64(len(v)), minio.PutObjectOptions{
				ContentType: "application/octet-stream",
			})
			if err != nil {
				return fmt.Errorf("minio: put %q: %w", k, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Remove deletes the objects in one multi-object delete request.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: s.key(k)}
	}
	close(objects)

	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil && !isNotFound(rerr.Err) {
			return fmt.Errorf("minio: remove %q: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return nil
}

// Keys lists keys starting with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		names = append(names, strings.TrimPrefix(obj.Key, s.prefix))
	}
	sort.Strings(names)
	return names, nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
