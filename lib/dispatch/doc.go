// Package dispatch provides the queues that transactions and completions run on.
//
// Key Components:
//
//   - Queue: anything that accepts a block of work with Async.
//
//   - SerialQueue: runs blocks one at a time in submission order on a dedicated
//     goroutine. Every store connection owns one, which gives the per-connection
//     first-in-first-committed guarantee.
//
//   - Main: the process wide serial queue used as the default completion queue.
//     Callers pick another queue by passing it explicitly.
//
//   - Global and Immediate: unordered background execution and inline execution.
//
// A block that panics is logged and does not stop the queue.
package dispatch
