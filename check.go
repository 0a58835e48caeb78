package recordkv

import (
	"context"
	"fmt"

	"github.com/hupe1980/recordkv/kv"
)

// Check returns the ids of the persisted record index that have no stored
// record. Such entries are left behind by failed or interleaved writes.
func (a *Adapter) Check(ctx context.Context) ([]string, error) {
	return a.scanIndex(ctx, false)
}

// Prune removes the ids reported by Check from the persisted record index
// with a single Set and returns them.
func (a *Adapter) Prune(ctx context.Context) ([]string, error) {
	return a.scanIndex(ctx, true)
}

func (a *Adapter) scanIndex(ctx context.Context, prune bool) ([]string, error) {
	ch := make(chan outcome[[]string], 1)
	err := a.dispatchExclusive(func(done func()) {
		finish := func(ids []string, err error) {
			ch <- outcome[[]string]{val: ids, err: err}
			done()
		}

		a.loadIndex(ctx, func(idx *RecordIndex, _ bool, err error) {
			if err != nil {
				finish(nil, err)
				return
			}
			ids := idx.IDs()
			if len(ids) == 0 {
				finish(nil, nil)
				return
			}

			a.async.Get(ctx, ids, func(res kv.Result) {
				if res.Err != nil {
					finish(nil, fmt.Errorf("recordkv: fetch records: %w", res.Err))
					return
				}
				var dangling []string
				for _, id := range ids {
					if _, ok := res.Items[id]; !ok {
						dangling = append(dangling, id)
					}
				}
				if !prune || len(dangling) == 0 {
					finish(dangling, nil)
					return
				}

				idx.Remove(dangling...)
				a.publishIndex()
				data, err := a.encodeIndex()
				if err != nil {
					finish(nil, err)
					return
				}
				a.async.Set(ctx, kv.Items{a.namespace: data}, func(res kv.Result) {
					if res.Err != nil {
						finish(nil, fmt.Errorf("recordkv: prune record index: %w", res.Err))
						return
					}
					a.logger.Info("pruned record index", "ids", dangling)
					finish(dangling, nil)
				})
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return await(ctx, ch)
}
