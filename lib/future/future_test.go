package future

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/kvmap/lib/dispatch"
)

var errTest = errors.New("test failure")

func TestPromiseFirstCompletionWins(t *testing.T) {
	p := NewPromise[int]()
	if p.Future().IsCompleted() {
		t.Fatal("new future must not be completed")
	}
	if !p.Success(1) {
		t.Fatal("first completion must succeed")
	}
	if p.Success(2) || p.Failure(errTest) {
		t.Fatal("second completion must be rejected")
	}

	v, err := p.Future().Await(context.Background())
	if err != nil || v != 1 {
		t.Errorf("Await = %d, %v; want 1, nil", v, err)
	}
	if !p.Future().IsCompleted() {
		t.Errorf("IsCompleted should be true")
	}
}

func TestFailure(t *testing.T) {
	p := NewPromise[string]()
	p.Complete("ignored", errTest)

	v, err := p.Future().Receive()
	if !errors.Is(err, errTest) || v != "" {
		t.Errorf("Receive = %q, %v; want zero value and errTest", v, err)
	}
}

func TestAwaitContext(t *testing.T) {
	p := NewPromise[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := p.Future().Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestCallbacks(t *testing.T) {
	p := NewPromise[int]()
	f := p.Future()

	var wg sync.WaitGroup
	wg.Add(3)
	var got atomic.Int64
	f.OnComplete(nil, func(v int, err error) {
		got.Add(int64(v))
		wg.Done()
	})
	f.OnSuccess(dispatch.Global, func(v int) {
		got.Add(int64(v))
		wg.Done()
	})
	f.OnFailure(nil, func(err error) {
		t.Errorf("OnFailure must not run on success")
	})

	go p.Success(5)

	// registered after completion still runs
	<-f.Done()
	f.OnComplete(nil, func(v int, err error) {
		got.Add(int64(v))
		wg.Done()
	})

	wg.Wait()
	if got.Load() != 15 {
		t.Errorf("expected all three callbacks to see 5, sum %d", got.Load())
	}
}

func TestCallbackQueue(t *testing.T) {
	q := dispatch.NewSerialQueue("callbacks")
	defer q.Close()

	done := make(chan bool, 1)
	var onQueue atomic.Bool
	Failed[int](errTest).OnFailure(dispatch.QueueFunc(func(fn func()) {
		q.Async(func() {
			onQueue.Store(true)
			fn()
		})
	}), func(err error) {
		done <- onQueue.Load()
	})

	if !<-done {
		t.Errorf("callback must run on the given queue")
	}
}

func TestMapAndFlatMap(t *testing.T) {
	doubled := Map(Resolved(21), func(v int) (int, error) { return v * 2, nil })
	if v, err := doubled.Receive(); err != nil || v != 42 {
		t.Errorf("Map = %d, %v", v, err)
	}

	failing := Map(Resolved(1), func(int) (string, error) { return "", errTest })
	if _, err := failing.Receive(); !errors.Is(err, errTest) {
		t.Errorf("Map must propagate fn errors, got %v", err)
	}

	skipped := Map(Failed[int](errTest), func(int) (int, error) {
		t.Errorf("fn must not run for a failed future")
		return 0, nil
	})
	if _, err := skipped.Receive(); !errors.Is(err, errTest) {
		t.Errorf("Map must propagate failures, got %v", err)
	}

	chained := FlatMap(Resolved("a"), func(s string) *Future[string] {
		p := NewPromise[string]()
		go p.Success(s + "b")
		return p.Future()
	})
	if v, err := chained.Receive(); err != nil || v != "ab" {
		t.Errorf("FlatMap = %q, %v", v, err)
	}
}

func TestSequence(t *testing.T) {
	promises := make([]*Promise[int], 5)
	futures := make([]*Future[int], 5)
	for i := range promises {
		promises[i] = NewPromise[int]()
		futures[i] = promises[i].Future()
	}

	all := Sequence(futures)
	// complete in reverse order, result keeps input order
	for i := len(promises) - 1; i >= 0; i-- {
		promises[i].Success(i * 10)
	}

	values, err := all.Receive()
	if err != nil {
		t.Fatalf("Sequence failed: %v", err)
	}
	for i, v := range values {
		if v != i*10 {
			t.Errorf("values[%d] = %d, want %d", i, v, i*10)
		}
	}

	failed := Sequence([]*Future[int]{Resolved(1), Failed[int](errTest)})
	if _, err := failed.Receive(); !errors.Is(err, errTest) {
		t.Errorf("Sequence must fail with the first failure, got %v", err)
	}

	empty, err := Sequence[int](nil).Receive()
	if err != nil || len(empty) != 0 {
		t.Errorf("Sequence(nil) = %v, %v", empty, err)
	}
}

func TestConcurrentCompletion(t *testing.T) {
	p := NewPromise[int]()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.Success(i) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("exactly one completion must win, got %d", wins.Load())
	}
}
