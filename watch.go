package recordkv

import (
	"context"
	"errors"

	"github.com/hupe1980/recordkv/kv"
)

// Watch calls fn for every change of the namespace key and of the record keys
// this adapter has seen in its index, until ctx is done. fn runs on a
// dedicated goroutine, one change at a time.
//
// Watch fails with ErrWatchUnsupported unless the area's store implements
// kv.Watcher and can deliver changes.
func (a *Adapter) Watch(ctx context.Context, fn func(kv.Change)) error {
	w, ok := a.base.(kv.Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	if a.isClosed() {
		return ErrClosed
	}
	ch, err := w.Watch(ctx)
	if errors.Is(err, errors.ErrUnsupported) {
		return ErrWatchUnsupported
	}
	if err != nil {
		return err
	}

	go func() {
		for c := range ch {
			if a.relevant(c.Key) {
				fn(c)
			}
		}
	}()
	return nil
}

func (a *Adapter) relevant(key string) bool {
	if key == a.namespace {
		return true
	}
	a.seenMu.RLock()
	defer a.seenMu.RUnlock()
	_, ok := a.seen[key]
	return ok
}
