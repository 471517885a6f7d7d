// Package testing provides standardised tests and benchmarks for
// database engines that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A conformance suite for the KVDB and Txn contract (read-your-writes,
//     rollback, ordered keys, collection isolation, snapshot reads, closed transactions)
//   - benchmark: Performance tests for measuring throughput of common transaction patterns
//
// Tests that need a feature the engine does not advertise are skipped.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(t testing.TB) db.KVDB {
//		return NewMyDatabase(t.TempDir())
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
