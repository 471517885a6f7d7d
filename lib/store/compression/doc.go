// Package compression provides the payload envelope of the store. Every
// object and metadata payload is written as
//
//	[1 byte algorithm id][compressed body]
//
// with the ids 0 (none), 1 (snappy), 2 (zstd) and 3 (lz4). Reads pick the
// algorithm from the id, so a database written with one setting stays readable
// after the setting changes.
package compression
