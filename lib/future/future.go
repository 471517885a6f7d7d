package future

import (
	"context"
	"sync"

	"github.com/ValentinKolb/kvmap/lib/dispatch"
)

// Future is a read-only handle to a result that becomes available later.
// A future completes exactly once, either with a value or with an error.
type Future[T any] struct {
	done chan struct{}

	mu        sync.Mutex
	completed bool
	value     T
	err       error
	callbacks []func()
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// complete stores the result and runs the registered callbacks.
// Only the first call has an effect.
func (f *Future[T]) complete(value T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return true
}

// Done returns a channel that is closed when the future completes
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsCompleted reports whether the future has a result
func (f *Future[T]) IsCompleted() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future completes or ctx is done
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Receive waits for the result promised by the future
func (f *Future[T]) Receive() (T, error) {
	<-f.done
	return f.value, f.err
}

// OnComplete calls fn with the result on queue once the future completes.
// A nil queue runs fn on the completing goroutine, or inline if the future
// already completed.
func (f *Future[T]) OnComplete(queue dispatch.Queue, fn func(value T, err error)) {
	if queue == nil {
		queue = dispatch.Immediate
	}
	cb := func() {
		value, err := f.value, f.err
		queue.Async(func() { fn(value, err) })
	}

	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	cb()
}

// OnSuccess calls fn on queue if the future completes with a value
func (f *Future[T]) OnSuccess(queue dispatch.Queue, fn func(value T)) {
	f.OnComplete(queue, func(value T, err error) {
		if err == nil {
			fn(value)
		}
	})
}

// OnFailure calls fn on queue if the future completes with an error
func (f *Future[T]) OnFailure(queue dispatch.Queue, fn func(err error)) {
	f.OnComplete(queue, func(_ T, err error) {
		if err != nil {
			fn(err)
		}
	})
}

// --------------------------------------------------------------------------
// Promise
// --------------------------------------------------------------------------

// Promise is the write side of a Future
type Promise[T any] struct {
	future *Future[T]
}

// NewPromise creates a promise with an uncompleted future
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{future: newFuture[T]()}
}

// Future returns the future completed by the promise
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// Success completes the future with value. It returns false if the future
// was already completed.
func (p *Promise[T]) Success(value T) bool {
	return p.future.complete(value, nil)
}

// Failure completes the future with err. It returns false if the future
// was already completed.
func (p *Promise[T]) Failure(err error) bool {
	var zero T
	return p.future.complete(zero, err)
}

// Complete completes the future with a failure if err is not nil and with
// value otherwise
func (p *Promise[T]) Complete(value T, err error) bool {
	if err != nil {
		return p.Failure(err)
	}
	return p.Success(value)
}
