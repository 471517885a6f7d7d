package persist

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/kvmap/lib/future"
	"github.com/ValentinKolb/kvmap/lib/operation"
	"github.com/ValentinKolb/kvmap/lib/store"
)

// The adapters below turn one transaction body into the four idioms. The
// async runners are the single primitive: the future adapter completes a
// promise from their completion and the operation adapter runs them inside a
// task.

type writeBody[R any] func(txn store.ReadWriteTransaction) (R, error)

type readBody[R any] func(txn store.ReadTransaction) (R, error)

// checkCancelled aborts a transaction body whose operation was cancelled
// before the body started
func checkCancelled(ctx context.Context, op string) error {
	if ctx.Err() != nil {
		return store.WrapError(store.RetCCancelled, fmt.Sprintf("%s cancelled before the transaction started", op), ctx.Err())
	}
	return nil
}

// --------------------------------------------------------------------------
// Read-write transactions
// --------------------------------------------------------------------------

func runWriteSync[T, R any](r *Repository[T], op string, body writeBody[R]) (R, error) {
	conn, release := r.acquire()
	defer release()

	var result R
	err := conn.ReadWrite(func(txn store.ReadWriteTransaction) error {
		var err error
		result, err = body(txn)
		return err
	})
	observe(op, idiomSync, err)
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

func runWriteAsync[T, R any](r *Repository[T], ctx context.Context, op, idiom string, body writeBody[R], completion func(R, error)) {
	conn, release := r.acquire()

	var result R
	conn.AsyncReadWrite(func(txn store.ReadWriteTransaction) error {
		if err := checkCancelled(ctx, op); err != nil {
			return err
		}
		var err error
		result, err = body(txn)
		return err
	}, r.queue, func(err error) {
		go release()
		deliver(op, idiom, result, err, completion)
	})
}

func runWriteFuture[T, R any](r *Repository[T], op string, body writeBody[R]) *future.Future[R] {
	p := future.NewPromise[R]()
	runWriteAsync(r, context.Background(), op, idiomFuture, body, func(v R, err error) {
		p.Complete(v, err)
	})
	return p.Future()
}

func runWriteOperation[T, R any](r *Repository[T], op string, body writeBody[R]) *operation.Task[R] {
	return operation.NewTask(r.taskName(op), func(ctx context.Context, finish func(R, error)) {
		runWriteAsync(r, ctx, op, idiomOperation, body, finish)
	})
}

// --------------------------------------------------------------------------
// Read-only transactions
// --------------------------------------------------------------------------

func runReadSync[T, R any](r *Repository[T], op string, body readBody[R]) (R, error) {
	conn, release := r.acquire()
	defer release()

	var result R
	err := conn.Read(func(txn store.ReadTransaction) error {
		var err error
		result, err = body(txn)
		return err
	})
	observe(op, idiomSync, err)
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

func runReadAsync[T, R any](r *Repository[T], ctx context.Context, op, idiom string, body readBody[R], completion func(R, error)) {
	conn, release := r.acquire()

	var result R
	conn.AsyncRead(func(txn store.ReadTransaction) error {
		if err := checkCancelled(ctx, op); err != nil {
			return err
		}
		var err error
		result, err = body(txn)
		return err
	}, r.queue, func(err error) {
		go release()
		deliver(op, idiom, result, err, completion)
	})
}

func runReadFuture[T, R any](r *Repository[T], op string, body readBody[R]) *future.Future[R] {
	p := future.NewPromise[R]()
	runReadAsync(r, context.Background(), op, idiomFuture, body, func(v R, err error) {
		p.Complete(v, err)
	})
	return p.Future()
}

func runReadOperation[T, R any](r *Repository[T], op string, body readBody[R]) *operation.Task[R] {
	return operation.NewTask(r.taskName(op), func(ctx context.Context, finish func(R, error)) {
		runReadAsync(r, ctx, op, idiomOperation, body, finish)
	})
}

// deliver records the outcome and hands it to completion. A failed call
// never exposes a partial result.
func deliver[R any](op, idiom string, result R, err error, completion func(R, error)) {
	observe(op, idiom, err)
	if completion == nil {
		return
	}
	if err != nil {
		var zero R
		completion(zero, err)
		return
	}
	completion(result, nil)
}
