// Package db provides a standardized interface for transactional key-value database engines.
// It defines the KVDB and Txn interfaces that allow for consistent interaction
// with various storage backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified, collection-partitioned transaction interface
//   - Feature discovery through capability flags
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all engines must satisfy. It starts
//     transactions (Begin), reports capabilities (SupportsFeature), returns
//     information about the database (GetInfo), and releases resources (Close).
//
//   - Txn Interface: A transaction over the engine. It reads entries (Get, Keys,
//     Collections), stages writes (Put, Delete) and finishes with Commit or Rollback.
//     Writable transactions observe their own pending writes.
//
//   - Entry: The stored unit. Every (collection, key) slot holds an object payload and
//     an optional metadata payload. The engine never interprets either payload.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for the available engines ("maple", "leveldb", "sqlite").
//
// Note on Concurrency:
//   - Engines must allow any number of concurrent read-only transactions.
//   - Engines do not serialize writable transactions themselves. The store layer
//     (github.com/ValentinKolb/kvmap/lib/store) holds a database wide write lock,
//     so at most one writable transaction is open at any time.
//   - Engines that advertise FeatureSnapshotReads let readers run while a writer
//     commits. Others block readers for the duration of a commit.
//
// Related Packages:
//
//   - engines/maple: in-memory engine built on xsync maps
//   - engines/level: on-disk engine built on goleveldb snapshots and batches
//   - engines/sqlite: on-disk engine built on the pure Go SQLite driver
//   - testing: RunKVDBTests and RunKVDBBenchmarks, shared by all engines
//   - util: write sets, entry size statistics and shard hashing shared by the engines
package db
