package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/recordkv/kv"
)

const (
	// DefaultConcurrency bounds the parallel object requests of one call.
	DefaultConcurrency = 16

	maxDeleteObjects = 1000
)

// Client is the subset of the S3 API used by Store.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store implements kv.Store and kv.Lister on an S3 bucket.
type Store struct {
	client Client
	bucket string
	prefix string
}

// NewStore creates a store in bucket. rootPrefix is prepended to every key
// (e.g. "records/").
func NewStore(client Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
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
				return fmt.Errorf("s3: get %q: %w", k, err)
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
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set writes one object per item. A failed Set may leave some items written.
func (s *Store) Set(ctx context.Context, items kv.Items) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultConcurrency)
	for k, v := range items {
		g.Go(func() error {
			_, err := s.client.PutObject(gctx, &s3.PutObjectInput{
				Bucket:        aws.String(s.bucket),
				Key:           aws.String(s.key(k)),
				Body:          bytes.NewReader(v),
				ContentLength: aws.Int64(int64(len(v))),
			})
			if err != nil {
				return fmt.Errorf("s3: put %q: %w", k, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Remove deletes the objects with DeleteObjects, 1000 keys per request.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	for start := 0; start < len(keys); start += maxDeleteObjects {
		end := min(start+maxDeleteObjects, len(keys))

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(s.key(k))})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("s3: delete objects: %w", err)
		}
		for _, e := range out.Errors {
			if aws.ToString(e.Code) == "NoSuchKey" {
				continue
			}
			return fmt.Errorf("s3: delete %q: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return nil
}

// Keys lists keys starting with prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3: list: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), s.prefix))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
