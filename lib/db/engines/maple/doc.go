// Package maple implements an in-memory transactional key-value database (KVDB).
// It provides a complete implementation of the db.KVDB interface with a focus on
// thread safety and low latency, and is the default engine for tests and
// short-lived databases.
//
// The package focuses on:
//   - Concurrent access through sharding and lock-free maps
//   - Buffered writes that become visible atomically on commit
//   - Statistics for monitoring via GetInfo
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It owns the
//     shards and applies committed write sets.
//
//   - Shard: A partition of the database that owns a subset of the collections.
//     Collections are distributed across shards by hashing their name with a
//     util.Hasher seeded per database, then right-shifting the hash by 7 bits
//     to use higher-quality bits for distribution.
//
//   - Collection: An xsync.MapOf from key to db.Entry.
//
//   - txn: A transaction. Writable transactions stage their writes in a
//     util.WriteSet and read through it, so they observe their own writes.
//     Commit applies the write set while holding the commit lock exclusively.
//
// Consistency:
//
//   - Every single read takes the commit lock shared, so a read never observes
//     half of a commit.
//   - Read-only transactions do not hold a snapshot. Two reads in the same
//     transaction can observe different commits, so the engine does not advertise
//     db.FeatureSnapshotReads.
//   - Data is lost on Close; the engine does not advertise db.FeatureDurable.
package maple
