// Package future provides a minimal promise/future pair for the future idiom
// of the persistence router.
//
// A Promise is completed exactly once with a value or an error, the first
// completion wins. Its Future can be awaited (Await with a context, or
// Receive), polled (Done, IsCompleted) or observed with callbacks that run on
// a dispatch.Queue of the caller's choice. Map, FlatMap and Sequence compose
// futures.
//
//	p := future.NewPromise[int]()
//	go func() { p.Success(42) }()
//	v, err := p.Future().Await(ctx)
package future
