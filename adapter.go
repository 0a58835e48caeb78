package recordkv

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/recordkv/kv"
)

// Adapter persists records of one namespace in a storage area and keeps the
// namespace's record index in step with them.
//
// All operations run on a private event loop: index mutations, backend
// completions and callbacks are serialized, so the cached index needs no
// locking. The persisted index is read before every operation that touches
// it; the cached copy is only a write-through cache. Adapters sharing a
// namespace in the same store race on the index with last-writer-wins.
type Adapter struct {
	namespace string
	area      Area
	base      kv.Store
	store     kv.Store
	async     *kv.Async
	opts      options
	logger    *Logger

	// index, busy and waiting are only accessed on the loop.
	index    *RecordIndex
	busy     bool
	waiting  []func()
	snapshot atomic.Pointer[[]string]

	seenMu sync.RWMutex
	seen   map[string]struct{}

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// New creates an adapter for namespace in the given storage area.
//
// The namespace is also the key of the record index, so no record may use it
// as id. Operations that touch the index run one at a time per adapter.
func New(namespace string, area Area, optFns ...Option) (*Adapter, error) {
	if namespace == "" {
		return nil, ErrInvalidNamespace
	}
	resolved, err := area.resolve()
	if err != nil {
		return nil, err
	}

	o := applyOptions(optFns)

	base, ok := o.stores[resolved]
	if !ok || base == nil {
		base = kv.NewMemoryStore()
	}
	// The index is read before every change to it and must never come from
	// a read cache.
	if u, ok := base.(kv.Uncacher); ok {
		u.Uncache(namespace)
	}
	store := base
	if resolved == AreaSync && o.syncQuota != nil {
		store = kv.NewQuotaStore(base, *o.syncQuota)
	}

	a := &Adapter{
		namespace: namespace,
		area:      resolved,
		base:      base,
		store:     store,
		async:     kv.NewAsync(store, kv.NewLoop()),
		opts:      o,
		logger:    o.logger.WithNamespace(namespace),
		index:     NewRecordIndex(),
		seen:      make(map[string]struct{}),
	}
	a.publishIndex()

	a.logger.Debug("adapter created", "area", string(resolved))
	return a, nil
}

// Namespace returns the namespace.
func (a *Adapter) Namespace() string { return a.namespace }

// Area returns the resolved storage area.
func (a *Adapter) Area() Area { return a.area }

// Store returns the backend the adapter writes to, including the quota
// wrapper of the sync area.
func (a *Adapter) Store() kv.Store { return a.store }

// Index returns the ids of the cached record index. The cache reflects the
// persisted index as of the last operation.
func (a *Adapter) Index() []string {
	return append([]string(nil), (*a.snapshot.Load())...)
}

// Sync runs method on target.
//
// Sync returns an error only for programming errors: an invalid method, a nil
// target or a closed adapter. Everything else is reported through opts.
// Precondition failures (no record with an id) and no-ops (saving an empty
// collection) are reported before Sync returns; all other outcomes arrive
// later on the adapter's event loop. ctx is handed to the backend calls.
func (a *Adapter) Sync(ctx context.Context, method Method, target Target, opts SyncOptions) error {
	if !method.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, string(method))
	}
	if isNilTarget(target) {
		return ErrInvalidTarget
	}
	if a.isClosed() {
		return ErrClosed
	}

	switch method {
	case MethodCreate, MethodUpdate:
		return a.upsert(ctx, target, opts)
	case MethodRead:
		return a.read(ctx, target, opts)
	default:
		return a.destroy(ctx, target, opts)
	}
}

// Close waits for in-flight operations and stops the event loop.
// Stores passed with WithStore are not closed. Close must not be called from
// a callback.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.inflight.Wait()
	a.async.Loop().Close()
	return nil
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// dispatch runs fn on the loop as one in-flight operation. fn must call done
// exactly once, after the operation's callbacks have run.
func (a *Adapter) dispatch(fn func(done func())) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.inflight.Add(1)
	a.mu.Unlock()

	if err := a.async.Loop().Post(func() { fn(a.inflight.Done) }); err != nil {
		a.inflight.Done()
		return ErrClosed
	}
	return nil
}

// dispatchExclusive is dispatch for operations that read and write the
// record index. They run one at a time, so each one starts from the index the
// previous one persisted.
func (a *Adapter) dispatchExclusive(fn func(done func())) error {
	return a.dispatch(func(done func()) {
		a.runExclusive(fn, done)
	})
}

func (a *Adapter) runExclusive(fn func(done func()), done func()) {
	if a.busy {
		a.waiting = append(a.waiting, func() { a.runExclusive(fn, done) })
		return
	}
	a.busy = true
	fn(func() {
		a.busy = false
		if len(a.waiting) > 0 {
			next := a.waiting[0]
			a.waiting = a.waiting[1:]
			// next is in flight, so the loop is still open.
			_ = a.async.Loop().Post(next)
		}
		done()
	})
}

// loadIndex reads the persisted index and makes it the cached one. An
// absent index yields an empty one with found == false.
func (a *Adapter) loadIndex(ctx context.Context, cb func(idx *RecordIndex, found bool, err error)) {
	a.async.Get(ctx, []string{a.namespace}, func(res kv.Result) {
		if res.Err != nil {
			cb(nil, false, fmt.Errorf("recordkv: get record index: %w", res.Err))
			return
		}
		data, ok := res.Items[a.namespace]
		if !ok {
			a.index = NewRecordIndex()
			a.publishIndex()
			cb(a.index, false, nil)
			return
		}
		idx, err := decodeIndex(a.opts.codec, data)
		if err != nil {
			cb(nil, false, err)
			return
		}
		a.index = idx
		a.publishIndex()
		cb(idx, true, nil)
	})
}

// publishIndex makes the cached index visible to Index and Watch.
func (a *Adapter) publishIndex() {
	ids := a.index.IDs()
	a.snapshot.Store(&ids)

	a.seenMu.Lock()
	for _, id := range ids {
		a.seen[id] = struct{}{}
	}
	a.seenMu.Unlock()
}

func (a *Adapter) encodeIndex() ([]byte, error) {
	data, err := a.index.encode(a.opts.codec)
	if err != nil {
		return nil, fmt.Errorf("recordkv: encode record index: %w", err)
	}
	return data, nil
}

func (a *Adapter) encodeRecord(r *Record, id string) ([]byte, error) {
	body := r.Attributes.Clone()
	body[a.opts.idAttribute] = id
	data, err := a.opts.codec.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("recordkv: encode record %q: %w", id, err)
	}
	return data, nil
}

func (a *Adapter) decodeRecord(id string, data []byte) (Attributes, error) {
	var attrs Attributes
	if err := a.opts.codec.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("recordkv: decode record %q: %w", id, err)
	}
	if attrs == nil {
		attrs = Attributes{}
	}
	return attrs, nil
}

func isNilTarget(t Target) bool {
	switch t := t.(type) {
	case nil:
		return true
	case *Record:
		return t == nil
	case *Collection:
		return t == nil
	default:
		return false
	}
}
