// Package recordkv persists records and collections of records in a plain
// key-value store that offers nothing but get, set and remove.
//
// Each Adapter owns one namespace. Next to the record bodies it maintains a
// record index, the ordered list of record ids of the namespace, stored under
// the namespace key itself. Collection reads enumerate records through it.
//
// # Quick Start
//
//	a, _ := recordkv.New("todos", recordkv.AreaLocal)
//	defer a.Close()
//
//	todo := recordkv.NewRecord(recordkv.Attributes{"title": "buy milk"})
//	_ = a.Save(ctx, todo)             // todo.ID is generated
//
//	todos := recordkv.NewCollection()
//	_, _ = a.Fetch(ctx, todos)        // records in index order
//	_ = a.Destroy(ctx, todo)
//
// # Callback API
//
// Sync is the asynchronous entry point. Results are delivered to
// SyncOptions callbacks on the adapter's event loop:
//
//	err := a.Sync(ctx, recordkv.MethodCreate, todo, recordkv.SyncOptions{
//	    Success: func(resp recordkv.Response) { ... },
//	    Error:   func(t recordkv.Target, err error) { ... },
//	})
//
// The returned error reports programming errors only (invalid method, nil
// target, closed adapter).
//
// # Consistency
//
// The store has no transactions, so the index and the bodies can disagree:
//
//   - Create and update write the index and all bodies with one Set, which
//     is atomic on stores that batch (Pebble, Redis, DynamoDB).
//   - Delete writes the shrunk index and removes the bodies with two calls.
//     Failures of both are collected into a *BatchError. WithOrderedDelete
//     writes the index first, so a failure leaves orphaned bodies rather
//     than index entries without a body.
//   - Failed writes are not rolled back and nothing is retried.
//
// The persisted index is read before every operation that uses it. Check
// and Prune find and drop index entries without a body.
//
// # Storage Areas
//
// An adapter writes to the "local" or the "sync" area. Both default to an
// in-memory store; use WithStore to plug in any kv.Store, e.g. from
// kv/pebble, kv/redis, kv/minio or kv/s3. Writes to the sync area are
// checked against kv.SyncQuota.
package recordkv
