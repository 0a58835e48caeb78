package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recordkv/kv"
)

// TestStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestStore_Integration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	const bucket = "test-recordkv"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, t.Name()+"/")
	t.Cleanup(func() {
		keys, _ := store.Keys(ctx, "")
		_ = store.Remove(ctx, keys...)
	})

	require.NoError(t, store.Set(ctx, kv.Items{"todos": []byte(`["a"]`), "a": []byte(`{"id":"a"}`)}))

	got, err := store.Get(ctx, "todos", "a", "missing")
	require.NoError(t, err)
	assert.Equal(t, kv.Items{"todos": []byte(`["a"]`), "a": []byte(`{"id":"a"}`)}, got)

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "todos"}, keys)

	require.NoError(t, store.Remove(ctx, "a", "missing"))
	got, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
}

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "b", "records/")
	assert.Equal(t, "records/todos", s.key("todos"))
}
