// Package store provides the database handle, connections and transactions
// the persistence router runs on. It sits on top of a db.KVDB engine and adds
// the payload encoding, the transaction lifecycle and unified error handling.
//
// Key Components:
//
//   - Database: Owns the engine, the native object codec and the compression
//     setting. It hands out connections and admits a single read-write
//     transaction at a time across all of them. Read-only transactions run
//     concurrently, also with the writer when the engine has snapshot reads.
//
//   - Connection: Submits transactions synchronously (Read, ReadWrite) or
//     asynchronously with a completion on a caller chosen queue (AsyncRead,
//     AsyncReadWrite). All transactions of one connection run on its serial
//     queue and therefore commit in submission order.
//
//   - ReadTransaction / ReadWriteTransaction: The view a block gets of the
//     database. Every transaction is begin, block, then commit if the block
//     returned nil or rollback otherwise.
//
//   - Error System: A structured error type with return codes. errors.Is
//     matches store errors by code, so callers can test for ErrDecoding,
//     ErrTransaction, ErrCancelled or ErrClosed.
//
//   - DBFactory: A function type that abstracts the creation of the engine.
//     Open builds the factory, codec and compression from a common.Config.
//
// Payloads:
//
//	Every object and metadata payload is stored as [compression id][body], see
//	package compression. Metadata is optional per entry and a missing metadata
//	payload is distinct from an empty one.
package store
