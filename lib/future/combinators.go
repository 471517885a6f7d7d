package future

import "sync/atomic"

// Resolved returns a future that already completed with value
func Resolved[T any](value T) *Future[T] {
	p := NewPromise[T]()
	p.Success(value)
	return p.Future()
}

// Failed returns a future that already completed with err
func Failed[T any](err error) *Future[T] {
	p := NewPromise[T]()
	p.Failure(err)
	return p.Future()
}

// Map returns a future completed with fn applied to the value of f.
// A failure of f or fn fails the returned future.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	p := NewPromise[U]()
	f.OnComplete(nil, func(value T, err error) {
		if err != nil {
			p.Failure(err)
			return
		}
		p.Complete(fn(value))
	})
	return p.Future()
}

// FlatMap returns a future completed with the result of the future fn
// returns for the value of f
func FlatMap[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	p := NewPromise[U]()
	f.OnComplete(nil, func(value T, err error) {
		if err != nil {
			p.Failure(err)
			return
		}
		fn(value).OnComplete(nil, func(u U, err error) {
			p.Complete(u, err)
		})
	})
	return p.Future()
}

// Sequence returns a future of all values in the order of fs. It fails with
// the first failure in completion order.
func Sequence[T any](fs []*Future[T]) *Future[[]T] {
	p := NewPromise[[]T]()
	if len(fs) == 0 {
		p.Success([]T{})
		return p.Future()
	}

	values := make([]T, len(fs))
	var completed atomic.Int64
	for i, f := range fs {
		f.OnComplete(nil, func(value T, err error) {
			if err != nil {
				p.Failure(err)
				return
			}
			values[i] = value
			if completed.Add(1) == int64(len(fs)) {
				p.Success(values)
			}
		})
	}
	return p.Future()
}
