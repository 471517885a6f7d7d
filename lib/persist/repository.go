package persist

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/kvmap/lib/dispatch"
	"github.com/ValentinKolb/kvmap/lib/future"
	"github.com/ValentinKolb/kvmap/lib/operation"
	"github.com/ValentinKolb/kvmap/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("persist")

// Lookup is the result of a single key read in the future and operation idioms
type Lookup[T any] struct {
	Value T
	Found bool
}

// Option configures a Repository
type Option func(*repositoryOptions)

type repositoryOptions struct {
	queue dispatch.Queue
}

// WithQueue sets the queue completions are delivered on. The default is dispatch.Main().
func WithQueue(queue dispatch.Queue) Option {
	return func(o *repositoryOptions) {
		o.queue = queue
	}
}

// Repository binds a Mapping to a connection (New) or to a database
// (NewForDatabase). It exposes every operation in four idioms:
//
//   - sync:      Write(v) (T, error)
//   - async:     AsyncWrite(v, completion) with completion on the repository's queue
//   - future:    FutureWrite(v) *future.Future[T]
//   - operation: WriteOperation(v) *operation.Task[T], cancellable until it starts
//
// All idioms run the same transaction body and produce the same stored state.
type Repository[T any] struct {
	conn    *store.Connection
	db      *store.Database
	mapping Mapping[T]
	queue   dispatch.Queue
}

// New returns a repository running its transactions on conn
func New[T any](conn *store.Connection, m Mapping[T], opts ...Option) *Repository[T] {
	return newRepository(conn, nil, m, opts)
}

// NewForDatabase returns a repository that opens a fresh connection for every call
func NewForDatabase[T any](db *store.Database, m Mapping[T], opts ...Option) *Repository[T] {
	return newRepository(nil, db, m, opts)
}

func newRepository[T any](conn *store.Connection, db *store.Database, m Mapping[T], opts []Option) *Repository[T] {
	o := repositoryOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T]{
		conn:    conn,
		db:      db,
		mapping: m,
		queue:   dispatch.Or(o.queue),
	}
}

// On returns a copy of the repository delivering completions on queue.
// A nil queue selects dispatch.Main().
func (r *Repository[T]) On(queue dispatch.Queue) *Repository[T] {
	c := *r
	c.queue = dispatch.Or(queue)
	return &c
}

// Mapping returns the mapping of the repository
func (r *Repository[T]) Mapping() Mapping[T] {
	return r.mapping
}

// --------------------------------------------------------------------------
// Write
// --------------------------------------------------------------------------

func (r *Repository[T]) writeBody(v T) writeBody[T] {
	return func(txn store.ReadWriteTransaction) (T, error) {
		return Write(txn, r.mapping, v)
	}
}

// Write stores v and returns it unchanged
func (r *Repository[T]) Write(v T) (T, error) {
	return runWriteSync(r, opWrite, r.writeBody(v))
}

// AsyncWrite stores v and passes it to completion
func (r *Repository[T]) AsyncWrite(v T, completion func(T, error)) {
	runWriteAsync(r, context.Background(), opWrite, idiomAsync, r.writeBody(v), completion)
}

// FutureWrite stores v and resolves the future with it
func (r *Repository[T]) FutureWrite(v T) *future.Future[T] {
	return runWriteFuture(r, opWrite, r.writeBody(v))
}

// WriteOperation returns a task storing v when started
func (r *Repository[T]) WriteOperation(v T) *operation.Task[T] {
	return runWriteOperation(r, opWrite, r.writeBody(v))
}

// --------------------------------------------------------------------------
// WriteAll
// --------------------------------------------------------------------------

func (r *Repository[T]) writeAllBody(vs []T) writeBody[[]T] {
	return func(txn store.ReadWriteTransaction) ([]T, error) {
		return WriteAll(txn, r.mapping, vs)
	}
}

// WriteAll stores every value of vs in one transaction
func (r *Repository[T]) WriteAll(vs []T) ([]T, error) {
	return runWriteSync(r, opWriteAll, r.writeAllBody(vs))
}

// AsyncWriteAll stores every value of vs in one transaction and passes them to completion
func (r *Repository[T]) AsyncWriteAll(vs []T, completion func([]T, error)) {
	runWriteAsync(r, context.Background(), opWriteAll, idiomAsync, r.writeAllBody(vs), completion)
}

// FutureWriteAll stores every value of vs in one transaction
func (r *Repository[T]) FutureWriteAll(vs []T) *future.Future[[]T] {
	return runWriteFuture(r, opWriteAll, r.writeAllBody(vs))
}

// WriteAllOperation returns a task storing every value of vs when started
func (r *Repository[T]) WriteAllOperation(vs []T) *operation.Task[[]T] {
	return runWriteOperation(r, opWriteAll, r.writeAllBody(vs))
}

// --------------------------------------------------------------------------
// Read
// --------------------------------------------------------------------------

func (r *Repository[T]) readBody(key string) readBody[Lookup[T]] {
	return func(txn store.ReadTransaction) (Lookup[T], error) {
		v, found, err := Read(txn, r.mapping, key)
		return Lookup[T]{Value: v, Found: found}, err
	}
}

// Read returns the value stored under key
func (r *Repository[T]) Read(key string) (T, bool, error) {
	l, err := runReadSync(r, opRead, r.readBody(key))
	return l.Value, l.Found, err
}

// AsyncRead reads the value stored under key and passes it to completion
func (r *Repository[T]) AsyncRead(key string, completion func(value T, found bool, err error)) {
	runReadAsync(r, context.Background(), opRead, idiomAsync, r.readBody(key), func(l Lookup[T], err error) {
		if completion != nil {
			completion(l.Value, l.Found, err)
		}
	})
}

// FutureRead reads the value stored under key
func (r *Repository[T]) FutureRead(key string) *future.Future[Lookup[T]] {
	return runReadFuture(r, opRead, r.readBody(key))
}

// ReadOperation returns a task reading the value stored under key when started
func (r *Repository[T]) ReadOperation(key string) *operation.Task[Lookup[T]] {
	return runReadOperation(r, opRead, r.readBody(key))
}

// --------------------------------------------------------------------------
// ReadAll
// --------------------------------------------------------------------------

func (r *Repository[T]) readAllBody(keys []string) readBody[[]T] {
	return func(txn store.ReadTransaction) ([]T, error) {
		return ReadAll(txn, r.mapping, keys)
	}
}

// ReadAll returns the values stored under keys, silently omitting missing keys
func (r *Repository[T]) ReadAll(keys []string) ([]T, error) {
	return runReadSync(r, opReadAll, r.readAllBody(keys))
}

// AsyncReadAll reads the values stored under keys, silently omitting missing keys
func (r *Repository[T]) AsyncReadAll(keys []string, completion func([]T, error)) {
	runReadAsync(r, context.Background(), opReadAll, idiomAsync, r.readAllBody(keys), completion)
}

// FutureReadAll reads the values stored under keys, silently omitting missing keys
func (r *Repository[T]) FutureReadAll(keys []string) *future.Future[[]T] {
	return runReadFuture(r, opReadAll, r.readAllBody(keys))
}

// ReadAllOperation returns a task reading the values stored under keys,
// silently omitting missing keys
func (r *Repository[T]) ReadAllOperation(keys []string) *operation.Task[[]T] {
	return runReadOperation(r, opReadAll, r.readAllBody(keys))
}

// ReadCollection returns every value of the repository's collection ordered by key
func (r *Repository[T]) ReadCollection() ([]T, error) {
	return runReadSync[T, []T](r, opReadCollection, func(txn store.ReadTransaction) ([]T, error) {
		return ReadCollection(txn, r.mapping)
	})
}

// Keys returns the keys of the repository's collection in ascending order
func (r *Repository[T]) Keys() ([]string, error) {
	return runReadSync[T, []string](r, opKeys, func(txn store.ReadTransaction) ([]string, error) {
		return txn.Keys(r.mapping.Collection())
	})
}

// --------------------------------------------------------------------------
// Remove
// --------------------------------------------------------------------------

func (r *Repository[T]) removeBody(v T) writeBody[struct{}] {
	return func(txn store.ReadWriteTransaction) (struct{}, error) {
		return struct{}{}, Remove(txn, r.mapping, v)
	}
}

// Remove deletes v. Removing an absent value is not an error.
func (r *Repository[T]) Remove(v T) error {
	_, err := runWriteSync(r, opRemove, r.removeBody(v))
	return err
}

// AsyncRemove deletes v and calls completion
func (r *Repository[T]) AsyncRemove(v T, completion func(error)) {
	runWriteAsync(r, context.Background(), opRemove, idiomAsync, r.removeBody(v), func(_ struct{}, err error) {
		if completion != nil {
			completion(err)
		}
	})
}

// FutureRemove deletes v
func (r *Repository[T]) FutureRemove(v T) *future.Future[struct{}] {
	return runWriteFuture(r, opRemove, r.removeBody(v))
}

// RemoveOperation returns a task deleting v when started
func (r *Repository[T]) RemoveOperation(v T) *operation.Task[struct{}] {
	return runWriteOperation(r, opRemove, r.removeBody(v))
}

// --------------------------------------------------------------------------
// RemoveAll
// --------------------------------------------------------------------------

func (r *Repository[T]) removeAllBody(vs []T) writeBody[struct{}] {
	return func(txn store.ReadWriteTransaction) (struct{}, error) {
		return struct{}{}, RemoveAll(txn, r.mapping, vs)
	}
}

// RemoveAll deletes every value of vs in one transaction
func (r *Repository[T]) RemoveAll(vs []T) error {
	_, err := runWriteSync(r, opRemoveAll, r.removeAllBody(vs))
	return err
}

// AsyncRemoveAll deletes every value of vs in one transaction and calls completion
func (r *Repository[T]) AsyncRemoveAll(vs []T, completion func(error)) {
	runWriteAsync(r, context.Background(), opRemoveAll, idiomAsync, r.removeAllBody(vs), func(_ struct{}, err error) {
		if completion != nil {
			completion(err)
		}
	})
}

// FutureRemoveAll deletes every value of vs in one transaction
func (r *Repository[T]) FutureRemoveAll(vs []T) *future.Future[struct{}] {
	return runWriteFuture(r, opRemoveAll, r.removeAllBody(vs))
}

// RemoveAllOperation returns a task deleting every value of vs when started
func (r *Repository[T]) RemoveAllOperation(vs []T) *operation.Task[struct{}] {
	return runWriteOperation(r, opRemoveAll, r.removeAllBody(vs))
}

// RemoveKeys deletes the values stored under keys
func (r *Repository[T]) RemoveKeys(keys []string) error {
	_, err := runWriteSync[T, struct{}](r, opRemoveKeys, func(txn store.ReadWriteTransaction) (struct{}, error) {
		return struct{}{}, RemoveKeys(txn, r.mapping, keys)
	})
	return err
}

// --------------------------------------------------------------------------
// Connections
// --------------------------------------------------------------------------

// acquire returns the connection for one call and the function releasing it
func (r *Repository[T]) acquire() (*store.Connection, func()) {
	if r.conn != nil {
		return r.conn, func() {}
	}
	conn := r.db.NewConnection()
	return conn, conn.Close
}

func (r *Repository[T]) taskName(op string) string {
	return fmt.Sprintf("%s %s", op, r.mapping.Collection())
}
