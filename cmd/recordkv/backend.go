package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hupe1980/recordkv/kv"
	"github.com/hupe1980/recordkv/kv/minio"
	"github.com/hupe1980/recordkv/kv/pebble"
	"github.com/hupe1980/recordkv/kv/redis"
	"github.com/hupe1980/recordkv/kv/s3"
)

var backends = []string{"memory", "local", "pebble", "redis", "minio", "s3", "dynamodb"}

// openStore creates the configured backend, optionally behind a read cache.
// The returned closer releases the backend.
func openStore(ctx context.Context, cfg Config) (kv.Store, io.Closer, error) {
	store, closer, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.CacheSize > 0 {
		cached, err := kv.NewCachingStore(store, cfg.CacheSize)
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		store = cached
	}
	return store, closer, nil
}

func openBackend(ctx context.Context, cfg Config) (kv.Store, io.Closer, error) {
	switch cfg.Backend {
	case "memory", "":
		return kv.NewMemoryStore(), nopCloser{}, nil
	case "local":
		s, err := kv.NewLocalStore(filepath.Join(cfg.Dir, "local"))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "pebble":
		s, err := pebble.Open(filepath.Join(cfg.Dir, "pebble"), nil)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "redis":
		s, err := redis.Dial(ctx, cfg.RedisConfig)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "minio":
		s, err := minio.Dial(ctx, cfg.MinIO)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3.NewStore(awss3.NewFromConfig(awsCfg), cfg.S3.Bucket, cfg.S3.Prefix), nopCloser{}, nil
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDB.Table), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q, want one of %v", cfg.Backend, backends)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
