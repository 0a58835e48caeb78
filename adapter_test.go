package recordkv_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recordkv"
	"github.com/hupe1980/recordkv/kv"
	"github.com/hupe1980/recordkv/testutil"
)

var errBoom = errors.New("boom")

func newAdapter(t *testing.T, store kv.Store, opts ...recordkv.Option) *recordkv.Adapter {
	t.Helper()
	base := []recordkv.Option{
		recordkv.WithStore(recordkv.AreaLocal, store),
		recordkv.WithIDGenerator(testutil.SequentialIDs("id-")),
	}
	a, err := recordkv.New("ns", recordkv.AreaLocal, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func stored(t *testing.T, store kv.Store, key string) (map[string]any, bool) {
	t.Helper()
	items, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	data, ok := items[key]
	if !ok {
		return nil, false
	}
	var v map[string]any
	require.NoError(t, json.Unmarshal(data, &v))
	return v, true
}

func storedIndex(t *testing.T, store kv.Store) []string {
	t.Helper()
	items, err := store.Get(context.Background(), "ns")
	require.NoError(t, err)
	data, ok := items["ns"]
	if !ok {
		return nil
	}
	var ids []string
	require.NoError(t, json.Unmarshal(data, &ids))
	return ids
}

// syncAndWait runs Sync and waits for its callback.
func syncAndWait(t *testing.T, a *recordkv.Adapter, method recordkv.Method, target recordkv.Target) (recordkv.Response, error) {
	t.Helper()
	type result struct {
		resp recordkv.Response
		err  error
	}
	ch := make(chan result, 1)
	require.NoError(t, a.Sync(context.Background(), method, target, recordkv.SyncOptions{
		Success: func(resp recordkv.Response) { ch <- result{resp: resp} },
		Error:   func(_ recordkv.Target, err error) { ch <- result{err: err} },
	}))
	select {
	case r := <-ch:
		return r.resp, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("no callback")
		return recordkv.Response{}, nil
	}
}

func TestNew(t *testing.T) {
	t.Run("InvalidNamespace", func(t *testing.T) {
		_, err := recordkv.New("", recordkv.AreaLocal)
		assert.ErrorIs(t, err, recordkv.ErrInvalidNamespace)
	})

	t.Run("InvalidArea", func(t *testing.T) {
		_, err := recordkv.New("ns", recordkv.Area("managed"))
		assert.ErrorIs(t, err, recordkv.ErrInvalidArea)
	})

	t.Run("DefaultArea", func(t *testing.T) {
		a, err := recordkv.New("ns", recordkv.AreaDefault)
		require.NoError(t, err)
		defer a.Close()
		assert.Equal(t, recordkv.AreaLocal, a.Area())
		assert.IsType(t, &kv.MemoryStore{}, a.Store())
	})

	t.Run("SyncAreaHasQuota", func(t *testing.T) {
		a, err := recordkv.New("ns", recordkv.AreaSync)
		require.NoError(t, err)
		defer a.Close()
		qs, ok := a.Store().(*kv.QuotaStore)
		require.True(t, ok)
		assert.Equal(t, kv.SyncQuota, qs.Quota())
	})

	t.Run("SyncAreaWithoutQuota", func(t *testing.T) {
		a, err := recordkv.New("ns", recordkv.AreaSync, recordkv.WithSyncQuota(nil))
		require.NoError(t, err)
		defer a.Close()
		assert.IsType(t, &kv.MemoryStore{}, a.Store())
	})
}

func TestSync_ProgrammingErrors(t *testing.T) {
	a := newAdapter(t, kv.NewMemoryStore())
	ctx := context.Background()

	err := a.Sync(ctx, recordkv.Method("patch"), recordkv.NewRecord(nil), recordkv.SyncOptions{})
	assert.ErrorIs(t, err, recordkv.ErrInvalidMethod)

	err = a.Sync(ctx, recordkv.MethodRead, nil, recordkv.SyncOptions{})
	assert.ErrorIs(t, err, recordkv.ErrInvalidTarget)

	var nilRecord *recordkv.Record
	err = a.Sync(ctx, recordkv.MethodRead, nilRecord, recordkv.SyncOptions{})
	assert.ErrorIs(t, err, recordkv.ErrInvalidTarget)

	require.NoError(t, a.Close())
	err = a.Sync(ctx, recordkv.MethodRead, recordkv.NewRecord(nil), recordkv.SyncOptions{})
	assert.ErrorIs(t, err, recordkv.ErrClosed)
}

func TestParseMethod(t *testing.T) {
	m, err := recordkv.ParseMethod("delete")
	require.NoError(t, err)
	assert.Equal(t, recordkv.MethodDelete, m)

	_, err = recordkv.ParseMethod("patch")
	assert.ErrorIs(t, err, recordkv.ErrInvalidMethod)
}

func TestSave_GeneratesID(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)

	r := recordkv.NewRecord(recordkv.Attributes{"test": "a"})
	require.NoError(t, a.Save(context.Background(), r))

	assert.Equal(t, "id-1", r.ID)
	assert.Equal(t, "id-1", r.Get("id"))

	body, ok := stored(t, store, "id-1")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"test": "a", "id": "id-1"}, body)
	assert.Equal(t, []string{"id-1"}, storedIndex(t, store))
	assert.Equal(t, []string{"id-1"}, a.Index())
}

func TestSave_UUIDByDefault(t *testing.T) {
	a, err := recordkv.New("ns", recordkv.AreaLocal)
	require.NoError(t, err)
	defer a.Close()

	r := recordkv.NewRecord(recordkv.Attributes{"test": "a"})
	require.NoError(t, a.Save(context.Background(), r))
	assert.Len(t, r.ID, 36)
	assert.Equal(t, 4, strings.Count(r.ID, "-"))
}

func TestSave_ExistingIDDoesNotDuplicateIndex(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)
	ctx := context.Background()

	r := recordkv.NewRecord(recordkv.Attributes{"test": "a"})
	require.NoError(t, a.Save(ctx, r))
	r.Set("test", "b")
	require.NoError(t, a.Save(ctx, r))

	body, _ := stored(t, store, r.ID)
	assert.Equal(t, "b", body["test"])
	assert.Equal(t, []string{r.ID}, storedIndex(t, store))
}

func TestSave_RepeatedRecordGetsOneID(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)

	r := recordkv.NewRecord(recordkv.Attributes{"test": "a"})
	require.NoError(t, a.Save(ctx, recordkv.NewCollection(r, r)))

	assert.Equal(t, "id-1", r.ID)
	assert.Equal(t, []string{"id-1"}, storedIndex(t, store))
	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1", "ns"}, keys)
}

func TestSave_IDAttribute(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store, recordkv.WithIDAttribute("_id"))

	r := recordkv.NewRecord(recordkv.Attributes{"_id": "fixed", "test": "a"})
	require.NoError(t, a.Save(context.Background(), r))

	assert.Equal(t, "fixed", r.ID)
	body, ok := stored(t, store, "fixed")
	require.True(t, ok)
	assert.Equal(t, "fixed", body["_id"])
}

func TestSave_CollectionIsOneSet(t *testing.T) {
	store := testutil.NewFaultyStore(kv.NewMemoryStore())
	a := newAdapter(t, store)

	c := recordkv.NewCollection(
		recordkv.NewRecord(recordkv.Attributes{"n": "1"}),
		&recordkv.Record{ID: "known", Attributes: recordkv.Attributes{"n": "2"}},
		recordkv.NewRecord(recordkv.Attributes{"n": "3"}),
	)
	require.NoError(t, a.Save(context.Background(), c))

	assert.Equal(t, 1, store.Calls().Set)
	sets := store.Sets()
	require.Len(t, sets, 1)
	assert.ElementsMatch(t, []string{"ns", "id-1", "known", "id-2"}, sets[0].Keys())
	assert.Equal(t, []string{"id-1", "known", "id-2"}, storedIndex(t, store))
}

func TestSave_EmptyCollectionIsSynchronousNoop(t *testing.T) {
	store := testutil.NewFaultyStore(kv.NewMemoryStore())
	a := newAdapter(t, store)

	called := false
	err := a.Sync(context.Background(), recordkv.MethodCreate, recordkv.NewCollection(), recordkv.SyncOptions{
		Success: func(recordkv.Response) { called = true },
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, testutil.Calls{}, store.Calls())
}

func TestSave_BackendFailure(t *testing.T) {
	store := testutil.NewFaultyStore(kv.NewMemoryStore())
	a := newAdapter(t, store)
	store.FailSet(errBoom)

	r := recordkv.NewRecord(recordkv.Attributes{"test": "a"})
	err := a.Save(context.Background(), r)
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, r.ID)

	store.FailSet(nil)
	assert.Empty(t, storedIndex(t, store))

	// The next operation reloads the persisted index.
	require.NoError(t, a.Save(context.Background(), recordkv.NewRecord(nil)))
	assert.Equal(t, []string{"id-2"}, a.Index())
}

func TestSave_ReservedID(t *testing.T) {
	a := newAdapter(t, kv.NewMemoryStore())
	err := a.Save(context.Background(), &recordkv.Record{ID: "ns"})
	assert.ErrorIs(t, err, recordkv.ErrReservedID)
}

func TestSave_SyncQuota(t *testing.T) {
	a, err := recordkv.New("ns", recordkv.AreaSync, recordkv.WithSyncQuota(&kv.Quota{BytesPerItem: 64}))
	require.NoError(t, err)
	defer a.Close()

	err = a.Save(context.Background(), recordkv.NewRecord(recordkv.Attributes{"text": strings.Repeat("x", 100)}))
	assert.ErrorIs(t, err, kv.ErrQuotaExceeded)
}

func TestDestroy(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)
	ctx := context.Background()

	r1 := recordkv.NewRecord(recordkv.Attributes{"n": "1"})
	r2 := recordkv.NewRecord(recordkv.Attributes{"n": "2"})
	require.NoError(t, a.Save(ctx, recordkv.NewCollection(r1, r2)))

	require.NoError(t, a.Destroy(ctx, r1))
	_, ok := stored(t, store, r1.ID)
	assert.False(t, ok)
	assert.Equal(t, []string{r2.ID}, storedIndex(t, store))

	err := a.Destroy(ctx, r1)
	assert.ErrorIs(t, err, recordkv.ErrNotFound)
	assert.Equal(t, []string{r2.ID}, storedIndex(t, store))
	_, ok = stored(t, store, r2.ID)
	assert.True(t, ok)
}

func TestDestroy_MissingIDIsSynchronous(t *testing.T) {
	store := testutil.NewFaultyStore(kv.NewMemoryStore())
	a := newAdapter(t, store)

	var got error
	err := a.Sync(context.Background(), recordkv.MethodDelete, recordkv.NewRecord(recordkv.Attributes{"n": "1"}), recordkv.SyncOptions{
		Error: func(_ recordkv.Target, err error) { got = err },
	})
	require.NoError(t, err)
	assert.ErrorIs(t, got, recordkv.ErrMissingID)
	assert.Equal(t, testutil.Calls{}, store.Calls())
}

func TestDestroy_SkipsRecordsWithoutID(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)
	ctx := context.Background()

	r := recordkv.NewRecord(nil)
	require.NoError(t, a.Save(ctx, r))
	require.NoError(t, a.Destroy(ctx, recordkv.NewCollection(r, recordkv.NewRecord(nil))))
	assert.Empty(t, storedIndex(t, store))
}

func TestDestroy_AggregatesErrors(t *testing.T) {
	store := testutil.NewFaultyStore(kv.NewMemoryStore())
	a := newAdapter(t, store)
	ctx := context.Background()

	r := recordkv.NewRecord(nil)
	require.NoError(t, a.Save(ctx, r))

	errRemove := errors.New("remove failed")
	store.FailSet(errBoom)
	store.FailRemove(errRemove)

	err := a.Destroy(ctx, r)
	var batch *recordkv.BatchError
	require.ErrorAs(t, err, &batch)
	assert.Len(t, batch.Errs, 2)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, errRemove)
}

func TestDestroy_SingleFailure(t *testing.T) {
	store := testutil.NewFaultyStore(kv.NewMemoryStore())
	a := newAdapter(t, store)
	ctx := context.Background()

	r := recordkv.NewRecord(nil)
	require.NoError(t, a.Save(ctx, r))
	store.FailRemove(errBoom)

	err := a.Destroy(ctx, r)
	var batch *recordkv.BatchError
	require.ErrorAs(t, err, &batch)
	assert.Len(t, batch.Errs, 1)

	// The index was updated, the body is orphaned.
	store.FailRemove(nil)
	assert.Empty(t, storedIndex(t, store))
	_, ok := stored(t, store, r.ID)
	assert.True(t, ok)
}

func TestDestroy_Ordered(t *testing.T) {
	store := testutil.NewFaultyStore(kv.NewMemoryStore())
	a := newAdapter(t, store, recordkv.WithOrderedDelete(true))
	ctx := context.Background()

	r := recordkv.NewRecord(nil)
	require.NoError(t, a.Save(ctx, r))

	store.FailSet(errBoom)
	require.ErrorIs(t, a.Destroy(ctx, r), errBoom)
	assert.Equal(t, 0, store.Calls().Remove)

	store.FailSet(nil)
	require.NoError(t, a.Destroy(ctx, r))
	assert.Equal(t, 1, store.Calls().Remove)
	_, ok := stored(t, store, r.ID)
	assert.False(t, ok)
}

func TestFetch_Record(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)
	ctx := context.Background()

	r := recordkv.NewRecord(recordkv.Attributes{"title": "a", "done": "no"})
	require.NoError(t, a.Save(ctx, r))

	other := &recordkv.Record{ID: r.ID, Attributes: recordkv.Attributes{"local": "keep", "title": "stale"}}
	resp, err := a.Fetch(ctx, other)
	require.NoError(t, err)

	assert.Equal(t, recordkv.Attributes{"local": "keep", "title": "a", "done": "no", "id": r.ID}, other.Attributes)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, recordkv.Attributes{"title": "a", "done": "no", "id": r.ID}, resp.Records[0])
	assert.Same(t, other, resp.Target)
}

func TestFetch_RecordNotFound(t *testing.T) {
	a := newAdapter(t, kv.NewMemoryStore())

	r := &recordkv.Record{ID: "nope", Attributes: recordkv.Attributes{"keep": "me"}}
	_, err := a.Fetch(context.Background(), r)
	require.ErrorIs(t, err, recordkv.ErrNotFound)
	assert.Equal(t, recordkv.Attributes{"keep": "me"}, r.Attributes)
}

func TestFetch_RecordMissingIDIsSynchronous(t *testing.T) {
	store := testutil.NewFaultyStore(kv.NewMemoryStore())
	a := newAdapter(t, store)

	var got error
	require.NoError(t, a.Sync(context.Background(), recordkv.MethodRead, recordkv.NewRecord(nil), recordkv.SyncOptions{
		Error: func(_ recordkv.Target, err error) { got = err },
	}))
	assert.ErrorIs(t, got, recordkv.ErrMissingID)
	assert.Equal(t, 0, store.Calls().Get)
}

func TestFetch_Collection(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)
	ctx := context.Background()
	rng := testutil.NewRNG(7)

	var saved []*recordkv.Record
	for range 5 {
		r := recordkv.NewRecord(recordkv.Attributes(rng.Attributes(3)))
		require.NoError(t, a.Save(ctx, r))
		saved = append(saved, r)
	}

	c := recordkv.NewCollection()
	resp, err := a.Fetch(ctx, c)
	require.NoError(t, err)
	require.Len(t, resp.Records, 5)
	require.Equal(t, 5, c.Len())
	for i, r := range saved {
		assert.Equal(t, r.ID, c.Records[i].ID)
		assert.Equal(t, r.Attributes, c.Records[i].Attributes)
		assert.Equal(t, r.Attributes, resp.Records[i])
	}
}

func TestFetch_CollectionSkipsDanglingIDs(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)
	ctx := context.Background()

	r1, r2 := recordkv.NewRecord(nil), recordkv.NewRecord(nil)
	require.NoError(t, a.Save(ctx, recordkv.NewCollection(r1, r2)))
	require.NoError(t, store.Remove(ctx, r1.ID))

	c := recordkv.NewCollection()
	resp, err := a.Fetch(ctx, c)
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, r2.ID, c.Records[0].ID)
}

func TestFetch_CollectionWithoutIndex(t *testing.T) {
	store := testutil.NewFaultyStore(kv.NewMemoryStore())
	a := newAdapter(t, store)

	c := recordkv.NewCollection(recordkv.NewRecord(nil))
	resp, err := a.Fetch(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, resp.Records)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, store.Calls().Get)
}

func TestFetch_CollectionReadsPersistedIndex(t *testing.T) {
	store := kv.NewMemoryStore()
	writer := newAdapter(t, store)
	reader := newAdapter(t, store)
	ctx := context.Background()

	require.NoError(t, writer.Save(ctx, &recordkv.Record{ID: "w1"}))
	assert.Empty(t, reader.Index())

	c := recordkv.NewCollection()
	_, err := reader.Fetch(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"w1"}, reader.Index())
}

func TestFetch_BackendFailure(t *testing.T) {
	store := testutil.NewFaultyStore(kv.NewMemoryStore())
	a := newAdapter(t, store)
	store.FailGet(errBoom)

	_, err := a.Fetch(context.Background(), recordkv.NewCollection())
	assert.ErrorIs(t, err, errBoom)
	_, err = a.Fetch(context.Background(), &recordkv.Record{ID: "x"})
	assert.ErrorIs(t, err, errBoom)
}

func TestSync_RequestHook(t *testing.T) {
	a := newAdapter(t, kv.NewMemoryStore())

	var keys []string
	done := make(chan struct{})
	r := recordkv.NewRecord(nil)
	require.NoError(t, a.Sync(context.Background(), recordkv.MethodCreate, r, recordkv.SyncOptions{
		Request: func(_ recordkv.Target, k []string) { keys = k },
		Success: func(recordkv.Response) { close(done) },
	}))
	<-done
	assert.Equal(t, []string{"ns", "id-1"}, keys)
}

func TestSync_CallbackCanChainOperations(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)
	ctx := context.Background()

	r := recordkv.NewRecord(recordkv.Attributes{"n": "1"})
	done := make(chan error, 1)
	require.NoError(t, a.Sync(ctx, recordkv.MethodCreate, r, recordkv.SyncOptions{
		Success: func(recordkv.Response) {
			err := a.Sync(ctx, recordkv.MethodDelete, r, recordkv.SyncOptions{
				Success: func(recordkv.Response) { done <- nil },
				Error:   func(_ recordkv.Target, err error) { done <- err },
			})
			if err != nil {
				done <- err
			}
		},
		Error: func(_ recordkv.Target, err error) { done <- err },
	}))
	require.NoError(t, <-done)
	assert.Empty(t, storedIndex(t, store))
}

func TestClose_WaitsForInflight(t *testing.T) {
	a, err := recordkv.New("ns", recordkv.AreaLocal)
	require.NoError(t, err)

	var mu sync.Mutex
	called := 0
	for range 10 {
		require.NoError(t, a.Sync(context.Background(), recordkv.MethodCreate, recordkv.NewRecord(nil), recordkv.SyncOptions{
			Success: func(recordkv.Response) {
				mu.Lock()
				called++
				mu.Unlock()
			},
		}))
	}
	require.NoError(t, a.Close())
	assert.Equal(t, 10, called)
	assert.Len(t, a.Index(), 10)
	require.NoError(t, a.Close())
}

func TestCheckAndPrune(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)
	ctx := context.Background()

	ids, err := a.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	r1, r2, r3 := recordkv.NewRecord(nil), recordkv.NewRecord(nil), recordkv.NewRecord(nil)
	require.NoError(t, a.Save(ctx, recordkv.NewCollection(r1, r2, r3)))
	require.NoError(t, store.Remove(ctx, r1.ID, r3.ID))

	ids, err = a.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{r1.ID, r3.ID}, ids)
	assert.Len(t, storedIndex(t, store), 3)

	ids, err = a.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{r1.ID, r3.ID}, ids)
	assert.Equal(t, []string{r2.ID}, storedIndex(t, store))

	ids, err = a.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWatch(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan kv.Change, 16)
	require.NoError(t, a.Watch(ctx, func(c kv.Change) { changes <- c }))

	require.NoError(t, store.Set(context.Background(), kv.Items{"unrelated": nil}))
	require.NoError(t, a.Save(context.Background(), recordkv.NewRecord(nil)))

	got := map[string]kv.Op{}
	for len(got) < 2 {
		select {
		case c := <-changes:
			got[c.Key] = c.Op
		case <-time.After(5 * time.Second):
			t.Fatalf("missing changes, got %v", got)
		}
	}
	assert.Equal(t, map[string]kv.Op{"ns": kv.OpSet, "id-1": kv.OpSet}, got)
}

func TestWatch_Unsupported(t *testing.T) {
	a := newAdapter(t, testutil.NewFaultyStore(kv.NewMemoryStore()))
	err := a.Watch(context.Background(), func(kv.Change) {})
	assert.ErrorIs(t, err, recordkv.ErrWatchUnsupported)
}

func TestMetrics(t *testing.T) {
	metrics := &recordkv.BasicMetricsCollector{}
	a := newAdapter(t, kv.NewMemoryStore(), recordkv.WithMetricsCollector(metrics))
	ctx := context.Background()

	r := recordkv.NewRecord(nil)
	require.NoError(t, a.Save(ctx, recordkv.NewCollection(r, recordkv.NewRecord(nil))))
	_, err := a.Fetch(ctx, recordkv.NewCollection())
	require.NoError(t, err)
	require.NoError(t, a.Destroy(ctx, r))
	require.Error(t, a.Destroy(ctx, r))

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.SaveCount)
	assert.Equal(t, int64(2), stats.SaveRecords)
	assert.Equal(t, int64(1), stats.FetchCount)
	assert.Equal(t, int64(2), stats.FetchRecords)
	assert.Equal(t, int64(2), stats.DestroyCount)
	assert.Equal(t, int64(1), stats.DestroyErrors)
}

func TestEndToEnd(t *testing.T) {
	store := kv.NewMemoryStore()
	a := newAdapter(t, store)

	r := recordkv.NewRecord(recordkv.Attributes{"test": "a"})
	_, err := syncAndWait(t, a, recordkv.MethodCreate, r)
	require.NoError(t, err)
	require.NotEmpty(t, r.ID)

	body, _ := stored(t, store, r.ID)
	assert.Equal(t, map[string]any{"test": "a", "id": r.ID}, body)

	updated := &recordkv.Record{ID: r.ID, Attributes: recordkv.Attributes{"test": "b"}}
	_, err = syncAndWait(t, a, recordkv.MethodUpdate, updated)
	require.NoError(t, err)
	body, _ = stored(t, store, r.ID)
	assert.Equal(t, "b", body["test"])

	fetched := &recordkv.Record{ID: r.ID}
	resp, err := syncAndWait(t, a, recordkv.MethodRead, fetched)
	require.NoError(t, err)
	assert.Equal(t, "b", resp.Records[0]["test"])
	assert.Equal(t, "b", fetched.Get("test"))

	_, err = syncAndWait(t, a, recordkv.MethodDelete, fetched)
	require.NoError(t, err)

	_, err = syncAndWait(t, a, recordkv.MethodRead, &recordkv.Record{ID: r.ID})
	assert.ErrorIs(t, err, recordkv.ErrNotFound)
	assert.NotContains(t, storedIndex(t, store), r.ID)
}

func TestSave_CachedStoresShareIndex(t *testing.T) {
	ctx := context.Background()
	shared := kv.NewMemoryStore()

	cachedAdapter := func(prefix string) *recordkv.Adapter {
		cache, err := kv.NewCachingStore(shared, 0)
		require.NoError(t, err)
		a, err := recordkv.New("ns", recordkv.AreaLocal,
			recordkv.WithStore(recordkv.AreaLocal, cache),
			recordkv.WithIDGenerator(testutil.SequentialIDs(prefix)),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Close() })
		return a
	}
	a1 := cachedAdapter("a-")
	a2 := cachedAdapter("b-")

	require.NoError(t, a1.Save(ctx, recordkv.NewRecord(recordkv.Attributes{"n": 1})))
	_, err := a2.Fetch(ctx, recordkv.NewCollection())
	require.NoError(t, err)
	require.NoError(t, a2.Save(ctx, recordkv.NewRecord(recordkv.Attributes{"n": 2})))
	require.NoError(t, a1.Save(ctx, recordkv.NewRecord(recordkv.Attributes{"n": 3})))

	assert.Equal(t, []string{"a-1", "b-1", "a-2"}, storedIndex(t, shared))

	c := recordkv.NewCollection()
	_, err = a2.Fetch(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
}

func TestWatch_ThroughCachingStore(t *testing.T) {
	store := kv.NewMemoryStore()
	cache, err := kv.NewCachingStore(store, 0)
	require.NoError(t, err)
	a := newAdapter(t, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan kv.Change, 16)
	require.NoError(t, a.Watch(ctx, func(c kv.Change) { changes <- c }))

	require.NoError(t, store.Set(context.Background(), kv.Items{"ns": []byte(`[]`)}))

	select {
	case c := <-changes:
		assert.Equal(t, kv.Change{Key: "ns", Op: kv.OpSet}, c)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
