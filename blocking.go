package recordkv

import "context"

// Save creates or updates target and waits for the outcome.
// Like every blocking helper it must not be called from a callback.
func (a *Adapter) Save(ctx context.Context, target Target) error {
	_, err := a.wait(ctx, MethodUpdate, target)
	return err
}

// Fetch reads target and waits for the outcome.
func (a *Adapter) Fetch(ctx context.Context, target Target) (Response, error) {
	return a.wait(ctx, MethodRead, target)
}

// Destroy deletes target and waits for the outcome.
func (a *Adapter) Destroy(ctx context.Context, target Target) error {
	_, err := a.wait(ctx, MethodDelete, target)
	return err
}

type outcome[T any] struct {
	val T
	err error
}

// wait runs Sync and blocks until a callback fired or ctx is done. An
// operation abandoned through ctx still runs to completion.
func (a *Adapter) wait(ctx context.Context, method Method, target Target) (Response, error) {
	ch := make(chan outcome[Response], 1)
	err := a.Sync(ctx, method, target, SyncOptions{
		Success: func(resp Response) { ch <- outcome[Response]{val: resp} },
		Error:   func(_ Target, err error) { ch <- outcome[Response]{err: err} },
	})
	if err != nil {
		return Response{}, err
	}
	return await(ctx, ch)
}

func await[T any](ctx context.Context, ch chan outcome[T]) (T, error) {
	select {
	case o := <-ch:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
