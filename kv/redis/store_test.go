package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recordkv/kv"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := New(client, "test:")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	require.NoError(t, s.Set(ctx, kv.Items{"todos": []byte(`["1"]`), "1": []byte(`{"id":"1"}`)}))

	raw, err := mr.Get("test:todos")
	require.NoError(t, err)
	assert.Equal(t, `["1"]`, raw)

	got, err := s.Get(ctx, "todos", "1", "missing")
	require.NoError(t, err)
	assert.Equal(t, kv.Items{"todos": []byte(`["1"]`), "1": []byte(`{"id":"1"}`)}, got)

	require.NoError(t, s.Remove(ctx, "1", "missing"))
	assert.False(t, mr.Exists("test:1"))
	assert.True(t, mr.Exists("test:todos"))
}

func TestStore_EmptyCalls(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, s.Set(ctx, kv.Items{}))
	require.NoError(t, s.Remove(ctx))
}

func TestStore_Keys(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set("other:todos", "x"))
	require.NoError(t, s.Set(ctx, kv.Items{"todos": nil, "todos-2": nil, "notes": nil}))

	keys, err := s.Keys(ctx, "todos")
	require.NoError(t, err)
	assert.Equal(t, []string{"todos", "todos-2"}, keys)

	all, err := s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes", "todos", "todos-2"}, all)
}

func TestStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	mr.Close()

	_, err := s.Get(ctx, "k")
	require.Error(t, err)
	require.Error(t, s.Set(ctx, kv.Items{"k": nil}))
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := Dial(context.Background(), Config{Address: mr.Addr(), Prefix: "p:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), kv.Items{"k": []byte("v")}))
	assert.True(t, mr.Exists("p:k"))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?\[c\]\\`, escapeGlob(`a*b?[c]\`))
}
