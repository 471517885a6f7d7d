package operation

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// ErrQueueStopped is returned by Add after Wait was called
var ErrQueueStopped = errors.New("operation queue is stopped")

// Queue runs operations on a bounded number of goroutines. An operation
// occupies a goroutine from Start until it finished.
type Queue struct {
	name string
	pool *pool.Pool

	mu      sync.RWMutex
	stopped bool
	running atomic.Int64
}

// NewQueue creates a queue running at most maxConcurrent operations at once
func NewQueue(name string, maxConcurrent int) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Queue{
		name: name,
		pool: pool.New().WithMaxGoroutines(maxConcurrent),
	}
}

// Add schedules op. It blocks while all goroutines of the queue are busy.
// Operations cancelled before they are picked up finish without running.
func (q *Queue) Add(op Operation) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrQueueStopped
	}

	q.running.Add(1)
	q.pool.Go(func() {
		defer q.running.Add(-1)
		op.Start()
		<-op.Done()
	})
	return nil
}

// Running returns the number of operations added and not yet finished
func (q *Queue) Running() int {
	return int(q.running.Load())
}

// Wait stops the queue and blocks until every added operation finished.
// The queue can not be used afterward.
func (q *Queue) Wait() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	q.pool.Wait()
	log.Debugf("operation queue %s drained", q.name)
}
