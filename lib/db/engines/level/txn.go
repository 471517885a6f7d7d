package level

import (
	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/ValentinKolb/kvmap/lib/db/util"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lutil "github.com/syndtr/goleveldb/leveldb/util"
)

// txn is a leveldb snapshot plus a write set. Reads go to the write set first and
// then to the snapshot. Commit turns the write set into a single leveldb.Batch.
type txn struct {
	level    *levelImpl
	snapshot *leveldb.Snapshot
	writable bool
	writes   *util.WriteSet

	isClosed bool
}

func newTxn(level *levelImpl, snapshot *leveldb.Snapshot, writable bool) *txn {
	t := &txn{
		level:    level,
		snapshot: snapshot,
		writable: writable,
	}
	if writable {
		t.writes = util.NewWriteSet()
	}
	return t
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (t *txn) Get(collection, key string) (db.Entry, bool, error) {
	if t.isClosed {
		return db.Entry{}, false, db.ErrTxnClosed
	}
	if t.writable {
		if entry, found, decided := t.writes.Lookup(collection, key); decided {
			return db.Entry{Object: util.CloneBytes(entry.Object), Metadata: util.CloneBytes(entry.Metadata)}, found, nil
		}
	}

	raw, err := t.snapshot.Get(dataKey(collection, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return db.Entry{}, false, nil
	}
	if err != nil {
		return db.Entry{}, false, errors.Wrapf(err, "leveldb: get %s/%s", collection, key)
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		return db.Entry{}, false, errors.Wrapf(err, "leveldb: decode %s/%s", collection, key)
	}
	return entry, true, nil
}

func (t *txn) Keys(collection string) ([]string, error) {
	if t.isClosed {
		return nil, db.ErrTxnClosed
	}
	committed, err := t.snapshotKeys(collection)
	if err != nil {
		return nil, err
	}
	if t.writable {
		return t.writes.MergeKeys(collection, committed), nil
	}
	return committed, nil
}

// snapshotKeys returns the committed keys of a collection in ascending order
func (t *txn) snapshotKeys(collection string) ([]string, error) {
	iter := t.snapshot.NewIterator(lutil.BytesPrefix(collectionPrefix(collection)), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		_, key, ok := splitKey(iter.Key())
		if !ok {
			continue
		}
		keys = append(keys, key)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrapf(err, "leveldb: iterate %s", collection)
	}
	return keys, nil
}

func (t *txn) Collections() ([]string, error) {
	if t.isClosed {
		return nil, db.ErrTxnClosed
	}

	iter := t.snapshot.NewIterator(nil, nil)
	var names []string
	for ok := iter.First(); ok; {
		collection, _, valid := splitKey(iter.Key())
		if !valid {
			ok = iter.Next()
			continue
		}
		names = append(names, collection)
		// skip the remaining keys of this collection
		ok = iter.Seek(append([]byte(collection), separator+1))
	}
	err := iter.Error()
	iter.Release()
	if err != nil {
		return nil, errors.Wrap(err, "leveldb: iterate collections")
	}

	if !t.writable {
		return names, nil
	}
	return t.writes.MergeCollections(names, t.snapshotKeys)
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
	if t.isClosed {
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
	if t.isClosed {
		return db.ErrTxnClosed
	}
	t.isClosed = true
	t.snapshot.Release()

	if !t.writable || t.writes.Len() == 0 {
		return nil
	}
	if t.level.closed.Load() {
		return db.ErrClosed
	}

	batch := new(leveldb.Batch)
	for collection, changes := range t.writes.Changes() {
		for key, entry := range changes {
			if entry == nil {
				batch.Delete(dataKey(collection, key))
			} else {
				batch.Put(dataKey(collection, key), encodeEntry(*entry))
			}
		}
	}
	t.writes.Reset()

	if err := t.level.ldb.Write(batch, t.level.wo); err != nil {
		return errors.Wrap(err, "leveldb: write batch")
	}
	return nil
}

func (t *txn) Rollback() error {
	if t.isClosed {
		return nil
	}
	t.isClosed = true
	t.snapshot.Release()
	if t.writes != nil {
		t.writes.Reset()
	}
	return nil
}
