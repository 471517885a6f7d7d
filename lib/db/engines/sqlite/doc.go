// Package sqlite implements the db.KVDB interface on top of SQLite, using the
// pure Go driver modernc.org/sqlite through database/sql.
//
// All entries live in a single table:
//
//	database2(rowid INTEGER PRIMARY KEY, collection TEXT, key TEXT, data BLOB, metadata BLOB)
//	UNIQUE INDEX true_primary_key (collection, key)
//
// A NULL metadata column means the entry has no metadata.
//
// File databases are opened in WAL mode. A read transaction takes its snapshot at the
// first query, and a concurrent commit does not change what it sees, so the engine
// advertises db.FeatureSnapshotReads. The in-memory mode (MemoryPath) is limited to
// a single connection, so its transactions run one at a time and it advertises neither
// snapshot reads nor durability.
package sqlite
