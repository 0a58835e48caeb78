package recordkv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/recordkv/kv"
)

// destroy removes the records of target that have an id. It shrinks the
// record index and removes the bodies with two backend calls; by default both
// are in flight at once and their errors are collected into a *BatchError.
func (a *Adapter) destroy(ctx context.Context, target Target, opts SyncOptions) error {
	var ids []string
	seen := make(map[string]struct{})
	for _, r := range target.records() {
		id := r.resolveID(a.opts.idAttribute)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		opts.error(target, ErrMissingID)
		return nil
	}

	start := time.Now()
	return a.dispatchExclusive(func(done func()) {
		finish := func(err error) {
			a.opts.metricsCollector.RecordDestroy(len(ids), time.Since(start), err)
			a.logger.LogDestroy(ctx, ids, err)
			if err != nil {
				opts.error(target, err)
			} else {
				opts.success(Response{Target: target})
			}
			done()
		}

		opts.request(target, append([]string{a.namespace}, ids...))

		a.loadIndex(ctx, func(idx *RecordIndex, _ bool, err error) {
			if err != nil {
				finish(err)
				return
			}
			if idx.Remove(ids...) == 0 {
				finish(fmt.Errorf("%w: %s", ErrNotFound, strings.Join(ids, ", ")))
				return
			}
			a.publishIndex()

			data, err := a.encodeIndex()
			if err != nil {
				finish(err)
				return
			}
			indexItems := kv.Items{a.namespace: data}

			if a.opts.orderedDelete {
				a.async.Set(ctx, indexItems, func(res kv.Result) {
					if res.Err != nil {
						finish(joinErrors([]error{fmt.Errorf("update record index: %w", res.Err)}))
						return
					}
					a.async.Remove(ctx, ids, func(res kv.Result) {
						if res.Err != nil {
							finish(joinErrors([]error{fmt.Errorf("remove records: %w", res.Err)}))
							return
						}
						finish(nil)
					})
				})
				return
			}

			var errs []error
			pending := 2
			collect := func(err error) {
				if err != nil {
					errs = append(errs, err)
				}
				pending--
				if pending == 0 {
					finish(joinErrors(errs))
				}
			}
			a.async.Set(ctx, indexItems, func(res kv.Result) {
				if res.Err != nil {
					collect(fmt.Errorf("update record index: %w", res.Err))
					return
				}
				collect(nil)
			})
			a.async.Remove(ctx, ids, func(res kv.Result) {
				if res.Err != nil {
					collect(fmt.Errorf("remove records: %w", res.Err))
					return
				}
				collect(nil)
			})
		})
	})
}
