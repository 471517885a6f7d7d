package store

import (
	"fmt"

	"github.com/ValentinKolb/kvmap/lib/dispatch"
)

// Connection submits transactions to the database. Every transaction of a
// connection runs on the connection's serial queue, so transactions submitted
// to one connection run and commit in submission order. A connection may be
// shared between goroutines.
//
// Read and ReadWrite must not be called from inside a block running on the
// same connection, this deadlocks.
type Connection struct {
	db    *Database
	id    uint64
	queue *dispatch.SerialQueue
}

func newConnection(d *Database, id uint64) *Connection {
	return &Connection{
		db:    d,
		id:    id,
		queue: dispatch.NewSerialQueue(fmt.Sprintf("connection-%d", id)),
	}
}

// ID returns the id of the connection, unique per database
func (c *Connection) ID() uint64 {
	return c.id
}

// Database returns the database the connection belongs to
func (c *Connection) Database() *Database {
	return c.db
}

// --------------------------------------------------------------------------
// Synchronous Transactions
// --------------------------------------------------------------------------

// Read runs fn in a read-only transaction and waits for it. The error of fn
// is returned unchanged.
func (c *Connection) Read(fn func(txn ReadTransaction) error) error {
	return c.sync(func() error {
		return c.db.perform(false, func(t *transaction) error { return fn(t) })
	})
}

// ReadWrite runs fn in a read-write transaction and waits for it. The
// transaction commits if fn returns nil and rolls back otherwise. The error
// of fn is returned unchanged, a failed commit is a RetCTransactionError.
func (c *Connection) ReadWrite(fn func(txn ReadWriteTransaction) error) error {
	return c.sync(func() error {
		return c.db.perform(true, func(t *transaction) error { return fn(t) })
	})
}

// --------------------------------------------------------------------------
// Asynchronous Transactions
// --------------------------------------------------------------------------

// AsyncRead schedules fn in a read-only transaction and returns immediately.
// completion receives the result on queue, a nil queue means dispatch.Main().
// completion may be nil.
func (c *Connection) AsyncRead(fn func(txn ReadTransaction) error, queue dispatch.Queue, completion func(err error)) {
	c.async(func() error {
		return c.db.perform(false, func(t *transaction) error { return fn(t) })
	}, queue, completion)
}

// AsyncReadWrite schedules fn in a read-write transaction and returns immediately.
// completion receives the result on queue, a nil queue means dispatch.Main().
// completion may be nil.
func (c *Connection) AsyncReadWrite(fn func(txn ReadWriteTransaction) error, queue dispatch.Queue, completion func(err error)) {
	c.async(func() error {
		return c.db.perform(true, func(t *transaction) error { return fn(t) })
	}, queue, completion)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Close waits for all queued transactions and rejects new ones with RetCClosed
func (c *Connection) Close() {
	if c.queue.IsClosed() {
		return
	}
	c.queue.Close()
	c.db.forget(c)
	log.Debugf("closed connection %d", c.id)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (c *Connection) closedError() error {
	return NewError(RetCClosed, fmt.Sprintf("connection %d is closed", c.id))
}

func (c *Connection) sync(work func() error) error {
	var err error
	if !c.queue.Sync(func() { err = work() }) {
		return c.closedError()
	}
	return err
}

func (c *Connection) async(work func() error, queue dispatch.Queue, completion func(err error)) {
	q := dispatch.Or(queue)
	accepted := c.queue.TryAsync(func() {
		err := work()
		if completion != nil {
			q.Async(func() { completion(err) })
		}
	})
	if !accepted && completion != nil {
		err := c.closedError()
		q.Async(func() { completion(err) })
	}
}
