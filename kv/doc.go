// Package kv provides the key-value storage abstraction behind recordkv.
//
// Store is the interface every backend implements. It only offers single-level
// get/set/remove: there are no prefix queries and no cross-call transactions.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, used as the default storage area
//   - LocalStore: one file per key inside a directory, with change watching
//   - pebble.Store: CockroachDB Pebble, atomic batches
//   - redis.Store: Redis, atomic MSET
//   - minio.Store / s3.Store: one object per key
//   - s3.DynamoStore: DynamoDB table, transactional batches
//
// # Wrappers
//
//   - CachingStore: LRU read cache in front of a slow backend
//   - QuotaStore: enforces the per-item, per-batch and write-rate limits of a
//     synced storage area
//
// # Asynchronous Access
//
// Async turns a Store into a callback API. Every call runs on its own
// goroutine and its Result is delivered on a Loop, a single goroutine that
// processes one callback at a time:
//
//	loop := kv.NewLoop()
//	defer loop.Close()
//	a := kv.NewAsync(kv.NewMemoryStore(), loop)
//	a.Get(ctx, []string{"k"}, func(res kv.Result) {
//	    if res.Err != nil {
//	        // handle
//	    }
//	})
//
// # Custom Implementations
//
//	type Store interface {
//	    Get(ctx, keys...) (Items, error)   // missing keys are omitted
//	    Set(ctx, items) error              // creates or overwrites
//	    Remove(ctx, keys...) error         // missing keys are ignored
//	}
//
// Optionally implement Lister to enumerate keys and Watcher to publish changes.
package kv
