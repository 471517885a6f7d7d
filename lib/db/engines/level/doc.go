// Package level implements the db.KVDB interface on top of goleveldb
// (github.com/syndtr/goleveldb), an embedded log-structured merge tree.
//
// Key Layout:
//
//	<collection> 0x00 <key>  ->  [flags:1][object length:uvarint][object][metadata]
//
// Collection names must not contain 0x00; keys may contain any byte. All keys of a
// collection share the prefix "<collection> 0x00", so Keys is a prefix scan and
// Collections seeks from one collection to the next.
//
// Transactions:
//
//   - Every transaction reads from a leveldb snapshot taken at Begin, so the
//     engine advertises db.FeatureSnapshotReads.
//   - Writable transactions stage writes in a util.WriteSet and read through it.
//     Commit writes the staged changes as one leveldb.Batch, which leveldb
//     applies atomically.
//
// Opening a corrupted database triggers leveldb.RecoverFile, the recovery is
// logged as a warning.
package level
