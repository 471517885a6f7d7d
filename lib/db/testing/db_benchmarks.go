package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/kvmap/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations.
// Write benchmarks run sequentially since engines expect the caller to serialize
// writable transactions. Read benchmarks run in parallel.
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Put", func(b *testing.B) {
		benchmarkPut(b, factory(b))
	})

	b.Run("PutExisting", func(b *testing.B) {
		benchmarkPutExisting(b, factory(b))
	})

	b.Run("PutLargeValue", func(b *testing.B) {
		benchmarkPutLargeValue(b, factory(b))
	})

	b.Run("PutBatch", func(b *testing.B) {
		benchmarkPutBatch(b, factory(b))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory(b))
	})

	b.Run("Get(not)", func(b *testing.B) {
		benchmarkGetNot(b, factory(b))
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory(b))
	})

	b.Run("Keys", func(b *testing.B) {
		benchmarkKeys(b, factory(b))
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory(b))
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// put writes a single entry in its own transaction
func put(b *testing.B, database db.KVDB, collection, key string, value []byte) {
	txn, err := database.Begin(true)
	if err != nil {
		b.Fatalf("Begin failed: %v", err)
	}
	if err := txn.Put(collection, key, db.Entry{Object: value}); err != nil {
		b.Fatalf("Put failed: %v", err)
	}
	if err := txn.Commit(); err != nil {
		b.Fatalf("Commit failed: %v", err)
	}
}

// prefill writes n entries in a single transaction
func prefill(b *testing.B, database db.KVDB, collection string, n int) {
	txn, err := database.Begin(true)
	if err != nil {
		b.Fatalf("Begin failed: %v", err)
	}
	for i := 0; i < n; i++ {
		if err := txn.Put(collection, fmt.Sprintf("test-key-%d", i), db.Entry{Object: []byte(fmt.Sprintf("test-value-%d", i))}); err != nil {
			b.Fatalf("Put failed: %v", err)
		}
	}
	if err := txn.Commit(); err != nil {
		b.Fatalf("Commit failed: %v", err)
	}
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Put operation
func benchmarkPut(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		put(b, database, "bench", fmt.Sprintf("test-key-%d", i), []byte(fmt.Sprintf("test-value-%d", i)))
	}
}

// Benchmark for Put operation with existing keys
func benchmarkPutExisting(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	numKeys := 1000
	prefill(b, database, "bench", numKeys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		put(b, database, "bench", fmt.Sprintf("test-key-%d", i%numKeys), []byte(fmt.Sprintf("test-value-%d", i)))
	}
}

// Benchmark for Put operation with large values
func benchmarkPutLargeValue(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	largeValue := bytes.Repeat([]byte("x"), 64*1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		put(b, database, "bench", fmt.Sprintf("large-key-%d", i%100), largeValue)
	}
}

// Benchmark for many Put operations sharing one transaction
func benchmarkPutBatch(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	const batchSize = 100

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		txn, err := database.Begin(true)
		if err != nil {
			b.Fatalf("Begin failed: %v", err)
		}
		for j := 0; j < batchSize; j++ {
			_ = txn.Put("bench", fmt.Sprintf("batch-%d-%d", i, j), db.Entry{Object: []byte("value")})
		}
		if err := txn.Commit(); err != nil {
			b.Fatalf("Commit failed: %v", err)
		}
	}
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet|db.FeaturePut)

	numKeys := 10000
	prefill(b, database, "bench", numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			txn, err := database.Begin(false)
			if err != nil {
				b.Errorf("Begin failed: %v", err)
				return
			}
			_, _, _ = txn.Get("bench", fmt.Sprintf("test-key-%d", r.Intn(numKeys)))
			_ = txn.Rollback()
		}
	})
}

// Benchmark for Get operation on missing keys
func benchmarkGetNot(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			txn, err := database.Begin(false)
			if err != nil {
				b.Errorf("Begin failed: %v", err)
				return
			}
			_, _, _ = txn.Get("bench", fmt.Sprintf("missing-key-%d", counter))
			_ = txn.Rollback()
			counter++
		}
	})
}

// Benchmark for Delete operation
func benchmarkDelete(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureDelete|db.FeaturePut)

	prefill(b, database, "bench", b.N)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		txn, err := database.Begin(true)
		if err != nil {
			b.Fatalf("Begin failed: %v", err)
		}
		_ = txn.Delete("bench", fmt.Sprintf("test-key-%d", i))
		if err := txn.Commit(); err != nil {
			b.Fatalf("Commit failed: %v", err)
		}
	}
}

// Benchmark for listing the keys of a collection
func benchmarkKeys(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureKeys|db.FeaturePut)

	prefill(b, database, "bench", 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		txn, err := database.Begin(false)
		if err != nil {
			b.Fatalf("Begin failed: %v", err)
		}
		_, _ = txn.Keys("bench")
		_ = txn.Rollback()
	}
}

// Benchmark for mixed operations (80% reads, 20% writes)
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet|db.FeaturePut|db.FeatureDelete)

	numKeys := 1000
	prefill(b, database, "bench", numKeys)
	r := rand.New(rand.NewSource(42))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", r.Intn(numKeys))
		op := r.Intn(10)

		writable := op >= 8
		txn, err := database.Begin(writable)
		if err != nil {
			b.Fatalf("Begin failed: %v", err)
		}
		switch {
		case op < 8:
			_, _, _ = txn.Get("bench", key)
			_ = txn.Rollback()
			continue
		case op == 8:
			_ = txn.Put("bench", key, db.Entry{Object: []byte("updated")})
		default:
			_ = txn.Delete("bench", key)
		}
		if err := txn.Commit(); err != nil {
			b.Fatalf("Commit failed: %v", err)
		}
	}
}
