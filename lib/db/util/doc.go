// Package util provides utility components shared by the db.KVDB engines.
//
// The package contains:
//   - writeset: WriteSet, the buffer of pending writes engines use for read-your-writes transactions
//   - statistics: entry size samples and shard balance statistics for db.DatabaseInfo metadata
//   - hash: seeded string hashing for shard selection
package util
