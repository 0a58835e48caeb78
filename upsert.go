package recordkv

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/recordkv/kv"
)

// upsert writes the record index and every record body of target with a
// single Set. Records without an id get a generated one, which is assigned
// back only after the write succeeded.
func (a *Adapter) upsert(ctx context.Context, target Target, opts SyncOptions) error {
	records := uniqueRecords(target.records())
	if len(records) == 0 {
		opts.success(Response{Target: target})
		return nil
	}

	start := time.Now()
	return a.dispatchExclusive(func(done func()) {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.resolveID(a.opts.idAttribute)
			if ids[i] == "" {
				ids[i] = a.opts.newID()
			}
		}

		finish := func(err error) {
			a.opts.metricsCollector.RecordSave(len(records), time.Since(start), err)
			a.logger.LogSave(ctx, ids, err)
			if err != nil {
				opts.error(target, err)
			} else {
				opts.success(Response{Target: target})
			}
			done()
		}

		for _, id := range ids {
			if id == a.namespace {
				finish(fmt.Errorf("%w: %q", ErrReservedID, id))
				return
			}
		}

		opts.request(target, append([]string{a.namespace}, ids...))

		a.loadIndex(ctx, func(idx *RecordIndex, _ bool, err error) {
			if err != nil {
				finish(err)
				return
			}

			items := make(kv.Items, len(records)+1)
			for i, r := range records {
				idx.Add(ids[i])
				body, err := a.encodeRecord(r, ids[i])
				if err != nil {
					finish(err)
					return
				}
				items[ids[i]] = body
			}
			a.publishIndex()

			data, err := a.encodeIndex()
			if err != nil {
				finish(err)
				return
			}
			items[a.namespace] = data

			a.async.Set(ctx, items, func(res kv.Result) {
				if res.Err != nil {
					finish(fmt.Errorf("recordkv: save: %w", res.Err))
					return
				}
				for i, r := range records {
					r.ID = ids[i]
					r.Set(a.opts.idAttribute, ids[i])
				}
				finish(nil)
			})
		})
	})
}

// uniqueRecords drops repeated occurrences of the same record so each one is
// written, and given an id, once.
func uniqueRecords(records []*Record) []*Record {
	seen := make(map[*Record]struct{}, len(records))
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
