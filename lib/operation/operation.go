package operation

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/kvmap/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("operation")

// State is the lifecycle state of an operation
type State int32

const (
	StatePending   State = iota // created, not started
	StateExecuting              // started, not finished
	StateFinished               // finished with a result or an error
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExecuting:
		return "executing"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Operation is a cancellable unit of work. It signals completion by closing
// Done, after which Err reports the outcome.
type Operation interface {
	// Name returns a human-readable name for logging
	Name() string
	// Start begins the work. Starting twice or after a cancellation is a no-op.
	Start()
	// Cancel requests cancellation. An operation cancelled before Start
	// finishes immediately with a store.RetCCancelled error without doing any work.
	Cancel()
	// IsCancelled reports whether Cancel was called
	IsCancelled() bool
	// State returns the current lifecycle state
	State() State
	// Done returns a channel that is closed when the operation finished
	Done() <-chan struct{}
	// Err returns the error the operation finished with. Only valid after Done is closed.
	Err() error
}

// --------------------------------------------------------------------------
// Task
// --------------------------------------------------------------------------

// Task is an Operation producing a value of type T. Its block starts the work
// and calls finish exactly once, possibly later from another goroutine.
type Task[T any] struct {
	name  string
	block func(ctx context.Context, finish func(value T, err error))

	ctx    context.Context
	cancel context.CancelFunc

	state     atomic.Int32
	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}

	value T
	err   error
}

// NewTask creates a task that runs block when started. block receives a
// context that is cancelled by Cancel.
func NewTask[T any](name string, block func(ctx context.Context, finish func(value T, err error))) *Task[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task[T]{
		name:   name,
		block:  block,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// NewBlockOperation creates a task around a synchronous function
func NewBlockOperation(name string, fn func(ctx context.Context) error) *Task[struct{}] {
	return NewTask(name, func(ctx context.Context, finish func(struct{}, error)) {
		finish(struct{}{}, fn(ctx))
	})
}

func (t *Task[T]) Name() string {
	return t.name
}

func (t *Task[T]) Start() {
	if !t.state.CompareAndSwap(int32(StatePending), int32(StateExecuting)) {
		return
	}
	log.Debugf("starting %s", t.name)
	t.block(t.ctx, t.finish)
}

func (t *Task[T]) Cancel() {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	t.cancel()
	if t.state.CompareAndSwap(int32(StatePending), int32(StateExecuting)) {
		var zero T
		t.finish(zero, cancelledError(t.name))
	}
}

func (t *Task[T]) IsCancelled() bool {
	return t.cancelled.Load()
}

func (t *Task[T]) State() State {
	return State(t.state.Load())
}

func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

func (t *Task[T]) Err() error {
	<-t.done
	return t.err
}

// Result returns the value and error of a finished task. It blocks until the task finished.
func (t *Task[T]) Result() (T, error) {
	<-t.done
	return t.value, t.err
}

// Wait blocks until the task finished or ctx is done
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// finish records the result. Calls after the first are ignored.
func (t *Task[T]) finish(value T, err error) {
	t.once.Do(func() {
		t.value = value
		t.err = err
		t.state.Store(int32(StateFinished))
		t.cancel()
		close(t.done)
		if err != nil {
			log.Debugf("%s finished with error: %v", t.name, err)
		}
	})
}

// cancelledError is the error of an operation cancelled before it did any work
func cancelledError(name string) error {
	return store.NewError(store.RetCCancelled, name+" was cancelled")
}
