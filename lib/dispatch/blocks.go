package dispatch

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// blockList is the backlog of a SerialQueue: an unbounded linked list of
// blocks that any number of goroutines append to without locking and that
// exactly one worker drains.
//
// Blocks appended by one goroutine are drained in append order. Between
// goroutines the order is the order in which their appends succeeded.
type blockList struct {
	head    atomic.Pointer[blockNode] // sentinel, only moved by the worker
	tail    atomic.Pointer[blockNode]
	pending atomic.Int64
	closed  atomic.Bool

	// mu and cond park the worker while the list is empty
	mu   sync.Mutex
	cond *sync.Cond
}

type blockNode struct {
	fn   func()
	next atomic.Pointer[blockNode]
}

func newBlockList() *blockList {
	l := &blockList{}
	l.cond = sync.NewCond(&l.mu)
	sentinel := &blockNode{}
	l.head.Store(sentinel)
	l.tail.Store(sentinel)
	return l
}

// push appends fn. It returns false if the list is closed.
func (l *blockList) push(fn func()) bool {
	if l.closed.Load() {
		return false
	}

	n := &blockNode{fn: fn}
	l.pending.Add(1)

	var backoff uint8
	for {
		tail := l.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// another producer may already have moved the tail past n
				l.tail.CompareAndSwap(tail, n)
				l.wake()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			l.tail.CompareAndSwap(tail, next)
		}

		// spin first, then yield with growing pauses
		if backoff < 8 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// pop removes the oldest block. Only the worker may call it.
func (l *blockList) pop() (func(), bool) {
	head := l.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil, false
	}
	fn := next.fn
	next.fn = nil
	l.head.Store(next)
	l.pending.Add(-1)
	return fn, true
}

// next returns the oldest block and waits for one while the list is empty.
// ok is false once the list is closed and drained. Only the worker may call it.
func (l *blockList) next() (fn func(), ok bool) {
	for {
		if fn, ok := l.pop(); ok {
			return fn, true
		}

		l.mu.Lock()
		for l.head.Load().next.Load() == nil && !l.closed.Load() {
			l.cond.Wait()
		}
		drained := l.head.Load().next.Load() == nil
		l.mu.Unlock()

		if drained {
			return nil, false
		}
	}
}

// close rejects further pushes. Blocks already appended are still drained.
func (l *blockList) close() {
	l.closed.Store(true)
	l.wake()
}

// wake signals the worker under mu. The worker checks for blocks and parks
// under the same lock, so an append between the check and the wait is not missed.
func (l *blockList) wake() {
	l.mu.Lock()
	l.cond.Signal()
	l.mu.Unlock()
}

func (l *blockList) isClosed() bool {
	return l.closed.Load()
}

// size returns the number of blocks appended and not yet popped
func (l *blockList) size() int {
	return int(max(l.pending.Load(), 0))
}
