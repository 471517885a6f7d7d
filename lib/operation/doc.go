// Package operation provides cancellable units of work and a bounded queue
// to run them on, the operation idiom of the persistence router.
//
// Key Components:
//
//   - Operation: Start, Cancel and a Done channel. Cancelling an operation
//     before it started finishes it with a store.RetCCancelled error without
//     running its block. Cancelling later cancels the block's context, whether
//     the work stops is up to the block.
//
//   - Task: an Operation producing a typed value. Its block starts the work and
//     calls finish once, which makes it suitable for wrapping callback based
//     asynchronous calls.
//
//   - Queue: runs operations on a sourcegraph/conc pool with a maximum number
//     of goroutines.
package operation
