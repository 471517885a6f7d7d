package dispatch

import (
	"runtime/debug"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("dispatch")

// Queue is a place where blocks of work are executed. Implementations decide
// on which goroutine and in which order the blocks run.
type Queue interface {
	// Async schedules fn and returns without waiting for it
	Async(fn func())
}

// QueueFunc adapts a plain function to the Queue interface
type QueueFunc func(fn func())

func (f QueueFunc) Async(fn func()) { f(fn) }

// Immediate runs every block inline on the calling goroutine
var Immediate Queue = QueueFunc(func(fn func()) { fn() })

// Global runs every block on its own goroutine without any ordering
var Global Queue = QueueFunc(func(fn func()) { go run("global", fn) })

// Main returns the process wide serial queue. It is the default completion
// queue of the store and the router and is never closed.
var Main = sync.OnceValue(func() *SerialQueue {
	return NewSerialQueue("main")
})

// Or returns q, or Main() if q is nil
func Or(q Queue) Queue {
	if q == nil {
		return Main()
	}
	return q
}

// --------------------------------------------------------------------------
// Serial Queue
// --------------------------------------------------------------------------

// SerialQueue executes blocks one after another on a single goroutine in the
// order they were submitted. Blocks pushed from one goroutine run in push
// order. Submitting never blocks.
type SerialQueue struct {
	name   string
	blocks *blockList
	done   chan struct{}

	// closeMu orders pushes against Close, so no block is accepted after the worker exits
	closeMu sync.RWMutex
}

// NewSerialQueue creates a serial queue and starts its worker
func NewSerialQueue(name string) *SerialQueue {
	s := &SerialQueue{
		name:   name,
		blocks: newBlockList(),
		done:   make(chan struct{}),
	}
	go s.work()
	return s
}

func (s *SerialQueue) work() {
	defer close(s.done)
	for {
		fn, ok := s.blocks.next()
		if !ok {
			break
		}
		run(s.name, fn)
	}
	log.Debugf("queue %s drained", s.name)
}

// Name returns the name the queue was created with
func (s *SerialQueue) Name() string {
	return s.name
}

// TryAsync schedules fn and reports whether the queue accepted it
func (s *SerialQueue) TryAsync(fn func()) bool {
	if fn == nil {
		return false
	}
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	return s.blocks.push(fn)
}

// Async schedules fn. Blocks submitted after Close are dropped.
func (s *SerialQueue) Async(fn func()) {
	if !s.TryAsync(fn) {
		log.Warningf("queue %s is closed, dropping block", s.name)
	}
}

// Sync schedules fn and waits until it has run. It returns false without
// running fn if the queue is closed. Calling Sync from a block running on the
// same queue deadlocks.
func (s *SerialQueue) Sync(fn func()) bool {
	finished := make(chan struct{})
	ok := s.TryAsync(func() {
		defer close(finished)
		fn()
	})
	if !ok {
		return false
	}
	<-finished
	return true
}

// Close stops accepting new blocks and waits until every accepted block has run
func (s *SerialQueue) Close() {
	s.closeMu.Lock()
	s.blocks.close()
	s.closeMu.Unlock()
	<-s.done
}

// IsClosed reports whether Close was called
func (s *SerialQueue) IsClosed() bool {
	return s.blocks.isClosed()
}

// Pending returns the number of blocks waiting to run
func (s *SerialQueue) Pending() int {
	return s.blocks.size()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// run executes fn and keeps a panicking block from taking the worker down
func run(queue string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("block on queue %s panicked: %v\n%s", queue, r, debug.Stack())
		}
	}()
	fn()
}
