package operation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/kvmap/lib/store"
)

func TestTaskLifecycle(t *testing.T) {
	task := NewTask("answer", func(ctx context.Context, finish func(int, error)) {
		go finish(42, nil)
	})
	if task.State() != StatePending {
		t.Fatalf("new task state = %s", task.State())
	}

	task.Start()
	v, err := task.Wait(context.Background())
	if err != nil || v != 42 {
		t.Fatalf("Wait = %d, %v", v, err)
	}
	if task.State() != StateFinished {
		t.Errorf("finished task state = %s", task.State())
	}
	if task.Err() != nil {
		t.Errorf("Err = %v", task.Err())
	}

	// starting again does not run the block
	task.Start()
	if v, _ := task.Result(); v != 42 {
		t.Errorf("result changed after second Start: %d", v)
	}
}

func TestTaskFailure(t *testing.T) {
	errBoom := errors.New("boom")
	task := NewBlockOperation("failing", func(ctx context.Context) error { return errBoom })
	task.Start()
	if err := task.Err(); !errors.Is(err, errBoom) {
		t.Errorf("Err = %v, want errBoom", err)
	}
}

func TestCancelBeforeStart(t *testing.T) {
	var ran atomic.Bool
	task := NewTask("never", func(ctx context.Context, finish func(string, error)) {
		ran.Store(true)
		finish("ran", nil)
	})

	task.Cancel()
	if !task.IsCancelled() {
		t.Errorf("IsCancelled should be true")
	}
	select {
	case <-task.Done():
	default:
		t.Fatal("a task cancelled before start must finish immediately")
	}

	task.Start()
	if ran.Load() {
		t.Errorf("block must not run after cancellation")
	}
	if _, err := task.Result(); !errors.Is(err, store.ErrCancelled) {
		t.Errorf("expected a cancelled error, got %v", err)
	}
}

func TestCancelAfterStartCancelsContext(t *testing.T) {
	task := NewTask("long", func(ctx context.Context, finish func(int, error)) {
		go func() {
			<-ctx.Done()
			finish(0, ctx.Err())
		}()
	})
	task.Start()
	task.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := task.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected the block to observe cancellation, got %v", err)
	}
}

func TestFinishOnlyOnce(t *testing.T) {
	task := NewTask("twice", func(ctx context.Context, finish func(int, error)) {
		finish(1, nil)
		finish(2, errors.New("late"))
	})
	task.Start()
	if v, err := task.Result(); v != 1 || err != nil {
		t.Errorf("Result = %d, %v; want 1, nil", v, err)
	}
}

func TestQueueBoundsConcurrency(t *testing.T) {
	q := NewQueue("test", 2)

	var running, maxRunning atomic.Int32
	var mu sync.Mutex
	tasks := make([]*Task[struct{}], 10)
	for i := range tasks {
		tasks[i] = NewBlockOperation("sleep", func(ctx context.Context) error {
			cur := running.Add(1)
			mu.Lock()
			if cur > maxRunning.Load() {
				maxRunning.Store(cur)
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})
		if err := q.Add(tasks[i]); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	q.Wait()

	for i, task := range tasks {
		if task.State() != StateFinished {
			t.Errorf("task %d not finished", i)
		}
	}
	if maxRunning.Load() > 2 {
		t.Errorf("at most 2 operations may run at once, saw %d", maxRunning.Load())
	}
	if q.Running() != 0 {
		t.Errorf("Running = %d after Wait", q.Running())
	}
	if err := q.Add(NewBlockOperation("late", func(context.Context) error { return nil })); !errors.Is(err, ErrQueueStopped) {
		t.Errorf("Add after Wait: expected ErrQueueStopped, got %v", err)
	}
}

func TestQueueSkipsCancelledOperations(t *testing.T) {
	q := NewQueue("test", 1)

	var ran atomic.Bool
	task := NewBlockOperation("cancelled", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	task.Cancel()
	if err := q.Add(task); err != nil {
		t.Fatal(err)
	}
	q.Wait()

	if ran.Load() {
		t.Errorf("a cancelled operation must not run")
	}
	if !errors.Is(task.Err(), store.ErrCancelled) {
		t.Errorf("expected a cancelled error, got %v", task.Err())
	}
}
