// Package testutil provides testing utilities for recordkv.
//
// This package is intended for use in tests and benchmarks only.
//
// # Failure Injection
//
//	store := testutil.NewFaultyStore(kv.NewMemoryStore())
//	store.FailSet(errors.New("disk full"))
//	a, _ := recordkv.New("todos", recordkv.AreaLocal, recordkv.WithStore(recordkv.AreaLocal, store))
//
// # Deterministic Data
//
//	ids := testutil.SequentialIDs("rec-")   // rec-1, rec-2, ...
//	rng := testutil.NewRNG(seed)
//	attrs := rng.Attributes(5)
package testutil
