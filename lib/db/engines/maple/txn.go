package maple

import (
	"sort"

	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/ValentinKolb/kvmap/lib/db/util"
)

// txn implements db.Txn on top of mapleImpl.
// Writes are buffered in a write set and applied on Commit.
type txn struct {
	maple    *mapleImpl
	writable bool
	closed   bool
	writes   *util.WriteSet
}

func newTxn(maple *mapleImpl, writable bool) *txn {
	t := &txn{maple: maple, writable: writable}
	if writable {
		t.writes = util.NewWriteSet()
	}
	return t
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (t *txn) Get(collection, key string) (db.Entry, bool, error) {
	if t.closed {
		return db.Entry{}, false, db.ErrTxnClosed
	}
	if t.writable {
		if entry, found, decided := t.writes.Lookup(collection, key); decided {
			return cloneEntry(entry), found, nil
		}
	}
	entry, ok := t.maple.load(collection, key)
	if !ok {
		return db.Entry{}, false, nil
	}
	return cloneEntry(entry), true, nil
}

func (t *txn) Keys(collection string) ([]string, error) {
	if t.closed {
		return nil, db.ErrTxnClosed
	}
	committed := t.maple.keys(collection)
	if t.writable {
		return t.writes.MergeKeys(collection, committed), nil
	}
	sort.Strings(committed)
	return committed, nil
}

func (t *txn) Collections() ([]string, error) {
	if t.closed {
		return nil, db.ErrTxnClosed
	}
	committed := t.maple.collections()
	if !t.writable {
		return committed, nil
	}
	return t.writes.MergeCollections(committed, func(collection string) ([]string, error) {
		return t.maple.keys(collection), nil
	})
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (t *txn) Put(collection, key string, entry db.Entry) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	t.writes.Put(collection, key, entry)
	return nil
}

func (t *txn) Delete(collection, key string) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	t.writes.Delete(collection, key)
	return nil
}

func (t *txn) checkWritable() error {
	if t.closed {
		return db.ErrTxnClosed
	}
	if !t.writable {
		return db.ErrTxnReadOnly
	}
	return nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (t *txn) Writable() bool {
	return t.writable
}

func (t *txn) Commit() error {
	if t.closed {
		return db.ErrTxnClosed
	}
	t.closed = true
	if !t.writable || t.writes.Len() == 0 {
		return nil
	}
	if t.maple.closed.Load() {
		return db.ErrClosed
	}
	t.maple.apply(t.writes.Changes())
	return nil
}

func (t *txn) Rollback() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.writes != nil {
		t.writes.Reset()
	}
	return nil
}

func cloneEntry(e db.Entry) db.Entry {
	return db.Entry{Object: util.CloneBytes(e.Object), Metadata: util.CloneBytes(e.Metadata)}
}
