package recordkv

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/recordkv/kv"
)

func (a *Adapter) read(ctx context.Context, target Target, opts SyncOptions) error {
	switch t := target.(type) {
	case *Record:
		return a.readRecord(ctx, t, opts)
	case *Collection:
		return a.readCollection(ctx, t, opts)
	default:
		return ErrInvalidTarget
	}
}

// readRecord merges the stored attributes into r. Attributes missing from
// the stored body are left as they are.
func (a *Adapter) readRecord(ctx context.Context, r *Record, opts SyncOptions) error {
	id := r.resolveID(a.opts.idAttribute)
	if id == "" {
		opts.error(r, ErrMissingID)
		return nil
	}

	start := time.Now()
	return a.dispatch(func(done func()) {
		finish := func(attrs Attributes, err error) {
			n := 0
			if attrs != nil {
				n = 1
			}
			a.opts.metricsCollector.RecordFetch(n, time.Since(start), err)
			a.logger.LogFetch(ctx, n, err)
			if err != nil {
				opts.error(r, err)
			} else {
				opts.success(Response{Target: r, Records: []Attributes{attrs}})
			}
			done()
		}

		opts.request(r, []string{id})

		a.async.Get(ctx, []string{id}, func(res kv.Result) {
			if res.Err != nil {
				finish(nil, fmt.Errorf("recordkv: fetch %q: %w", id, res.Err))
				return
			}
			data, ok := res.Items[id]
			if !ok {
				finish(nil, fmt.Errorf("%w: %s", ErrNotFound, id))
				return
			}
			attrs, err := a.decodeRecord(id, data)
			if err != nil {
				finish(nil, err)
				return
			}

			r.ID = id
			for k, v := range attrs {
				r.Set(k, v)
			}
			finish(attrs, nil)
		})
	})
}

// readCollection replaces the records of c with the records listed in the
// persisted index, in index order. Index entries without a stored body are
// skipped.
func (a *Adapter) readCollection(ctx context.Context, c *Collection, opts SyncOptions) error {
	start := time.Now()
	return a.dispatchExclusive(func(done func()) {
		finish := func(records []Attributes, err error) {
			a.opts.metricsCollector.RecordFetch(len(records), time.Since(start), err)
			a.logger.LogFetch(ctx, len(records), err)
			if err != nil {
				opts.error(c, err)
			} else {
				opts.success(Response{Target: c, Records: records})
			}
			done()
		}

		opts.request(c, []string{a.namespace})

		a.loadIndex(ctx, func(idx *RecordIndex, _ bool, err error) {
			if err != nil {
				finish(nil, err)
				return
			}
			ids := idx.IDs()
			if len(ids) == 0 {
				c.Records = nil
				finish(nil, nil)
				return
			}

			a.async.Get(ctx, ids, func(res kv.Result) {
				if res.Err != nil {
					finish(nil, fmt.Errorf("recordkv: fetch records: %w", res.Err))
					return
				}

				var (
					records  = make([]*Record, 0, len(ids))
					attrSets = make([]Attributes, 0, len(ids))
					dangling []string
				)
				for _, id := range ids {
					data, ok := res.Items[id]
					if !ok {
						dangling = append(dangling, id)
						continue
					}
					attrs, err := a.decodeRecord(id, data)
					if err != nil {
						finish(nil, err)
						return
					}
					records = append(records, &Record{ID: id, Attributes: attrs.Clone()})
					attrSets = append(attrSets, attrs)
				}
				a.logger.LogDangling(ctx, dangling)

				c.Records = records
				finish(attrSets, nil)
			})
		})
	})
}
