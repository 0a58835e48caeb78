package kv

import (
	"context"
	"sync"
)

// Result is the outcome of one asynchronous backend call.
// Items is only populated for Get. A nil Err means the call succeeded.
type Result struct {
	Items Items
	Err   error
}

// Callback receives the Result of an asynchronous call on the Loop goroutine.
type Callback func(Result)

// Loop is a single-goroutine event loop. Posted functions run one at a time
// in posting order, so state touched only from the loop needs no locking.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

// NewLoop starts a new event loop.
func NewLoop() *Loop {
	l := &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post schedules fn on the loop. The queue is unbounded, so Post never
// blocks, including when called from the loop itself.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

// Close rejects further posts, runs what is already queued and waits for
// the loop goroutine to exit. It must not be called from the loop.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.stopped
		return
	}
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.stopped
}

// Async wraps a Store with a callback API whose results are delivered on a Loop.
// Backend calls cannot be canceled once issued; ctx is handed to the Store.
type Async struct {
	store Store
	loop  *Loop
}

// NewAsync creates an Async bound to the given store and loop.
func NewAsync(store Store, loop *Loop) *Async {
	return &Async{store: store, loop: loop}
}

// Store returns the wrapped store.
func (a *Async) Store() Store {
	return a.store
}

// Loop returns the loop results are delivered on.
func (a *Async) Loop() *Loop {
	return a.loop
}

// Get fetches keys and reports the found items.
func (a *Async) Get(ctx context.Context, keys []string, cb Callback) {
	a.call(cb, func() Result {
		items, err := a.store.Get(ctx, keys...)
		return Result{Items: items, Err: err}
	})
}

// Set writes the items.
func (a *Async) Set(ctx context.Context, items Items, cb Callback) {
	a.call(cb, func() Result {
		return Result{Err: a.store.Set(ctx, items)}
	})
}

// Remove deletes the keys.
func (a *Async) Remove(ctx context.Context, keys []string, cb Callback) {
	a.call(cb, func() Result {
		return Result{Err: a.store.Remove(ctx, keys...)}
	})
}

// call runs fn off the loop and posts its result back. If the loop has been
// closed meanwhile, the result is dropped.
func (a *Async) call(cb Callback, fn func() Result) {
	go func() {
		res := fn()
		_ = a.loop.Post(func() { cb(res) })
	}()
}
