package sqlite

import (
	"database/sql"

	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/pkg/errors"
)

const (
	queryGet         = `SELECT data, metadata, metadata IS NOT NULL FROM database2 WHERE collection = ? AND key = ?`
	queryKeys        = `SELECT key FROM database2 WHERE collection = ? ORDER BY key`
	queryCollections = `SELECT DISTINCT collection FROM database2 ORDER BY collection`
	stmtPut          = `INSERT INTO database2 (collection, key, data, metadata) VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, key) DO UPDATE SET data = excluded.data, metadata = excluded.metadata`
	stmtDelete = `DELETE FROM database2 WHERE collection = ? AND key = ?`
)

// txn wraps a database/sql transaction. SQLite provides read-your-writes natively,
// so no write set is needed.
type txn struct {
	sqlite   *sqliteImpl
	tx       *sql.Tx
	writable bool
	closed   bool
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (t *txn) Get(collection, key string) (db.Entry, bool, error) {
	if t.closed {
		return db.Entry{}, false, db.ErrTxnClosed
	}

	var (
		entry   db.Entry
		hasMeta bool
	)
	err := t.tx.QueryRow(queryGet, collection, key).Scan(&entry.Object, &entry.Metadata, &hasMeta)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Entry{}, false, nil
	}
	if err != nil {
		return db.Entry{}, false, errors.Wrapf(err, "sqlite: get %s/%s", collection, key)
	}

	// zero-length blobs may be scanned as nil
	if entry.Object == nil {
		entry.Object = []byte{}
	}
	if hasMeta && entry.Metadata == nil {
		entry.Metadata = []byte{}
	}
	if !hasMeta {
		entry.Metadata = nil
	}
	return entry, true, nil
}

func (t *txn) Keys(collection string) ([]string, error) {
	if t.closed {
		return nil, db.ErrTxnClosed
	}
	return t.queryStrings(queryKeys, collection)
}

func (t *txn) Collections() ([]string, error) {
	if t.closed {
		return nil, db.ErrTxnClosed
	}
	return t.queryStrings(queryCollections)
}

func (t *txn) queryStrings(query string, args ...any) ([]string, error) {
	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: query")
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan")
		}
		result = append(result, s)
	}
	return result, errors.Wrap(rows.Err(), "sqlite: rows")
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (t *txn) Put(collection, key string, entry db.Entry) error {
	if err := t.checkWritable(); err != nil {
		return err
	}

	// database/sql binds a nil []byte as NULL, which marks "no metadata"
	object := entry.Object
	if object == nil {
		object = []byte{}
	}
	var metadata any
	if entry.Metadata != nil {
		metadata = entry.Metadata
	}
	if _, err := t.tx.Exec(stmtPut, collection, key, object, metadata); err != nil {
		return errors.Wrapf(err, "sqlite: put %s/%s", collection, key)
	}
	return nil
}

func (t *txn) Delete(collection, key string) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if _, err := t.tx.Exec(stmtDelete, collection, key); err != nil {
		return errors.Wrapf(err, "sqlite: delete %s/%s", collection, key)
	}
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
	if !t.writable {
		return errors.Wrap(t.tx.Rollback(), "sqlite: end read transaction")
	}
	if t.sqlite.closed.Load() {
		_ = t.tx.Rollback()
		return db.ErrClosed
	}
	return errors.Wrap(t.tx.Commit(), "sqlite: commit")
}

func (t *txn) Rollback() error {
	if t.closed {
		return nil
	}
	t.closed = true
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return errors.Wrap(err, "sqlite: rollback")
}
