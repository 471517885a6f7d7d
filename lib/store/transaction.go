package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/ValentinKolb/kvmap/lib/store/codec"
	"github.com/ValentinKolb/kvmap/lib/store/compression"
)

// perform runs fn inside a single engine transaction: begin, fn, then commit
// or rollback. Errors of fn are returned unchanged.
func (d *Database) perform(writable bool, fn func(t *transaction) error) (err error) {
	mode := modeName(writable)
	start := time.Now()
	defer func() {
		observeTxn(mode, start, err)
	}()

	if writable {
		d.txnMu.Lock()
		defer d.txnMu.Unlock()
	} else if !d.snapshot {
		d.txnMu.RLock()
		defer d.txnMu.RUnlock()
	}

	if d.kvClosed.Load() {
		return NewError(RetCClosed, "database is closed")
	}

	txn, err := d.kv.Begin(writable)
	if err != nil {
		if errors.Is(err, db.ErrClosed) {
			return WrapError(RetCClosed, "database is closed", err)
		}
		return WrapError(RetCTransactionError, "failed to begin transaction", err)
	}

	t := &transaction{db: d, txn: txn}
	defer func() {
		if r := recover(); r != nil {
			_ = txn.Rollback()
			err = NewError(RetCInternalError, fmt.Sprintf("transaction block panicked: %v", r))
			log.Errorf("%s transaction panicked: %v", mode, r)
		}
	}()

	if err = fn(t); err != nil {
		if rbErr := txn.Rollback(); rbErr != nil {
			log.Warningf("rollback after failed %s transaction: %v", mode, rbErr)
		}
		log.Debugf("%s transaction rolled back: %v", mode, err)
		return err
	}

	if !writable {
		if rbErr := txn.Rollback(); rbErr != nil {
			return engineError("rollback", rbErr)
		}
		return nil
	}

	if cErr := txn.Commit(); cErr != nil {
		_ = txn.Rollback()
		log.Errorf("commit failed: %v", cErr)
		return WrapError(RetCTransactionError, "commit failed", cErr)
	}
	return nil
}

func modeName(writable bool) string {
	if writable {
		return "read_write"
	}
	return "read"
}

// --------------------------------------------------------------------------
// Transaction (implements ReadTransaction and ReadWriteTransaction)
// --------------------------------------------------------------------------

type transaction struct {
	db  *Database
	txn db.Txn
}

func (t *transaction) require(feature db.Feature) error {
	if !t.db.kv.SupportsFeature(feature) {
		return errUnsupportedFeature(feature)
	}
	return nil
}

func (t *transaction) requireWritable() error {
	if !t.txn.Writable() {
		return NewError(RetCInvalidOperation, "transaction is read-only")
	}
	return nil
}

// --------------------------------------------------------------------------
// Read Methods (docu see store.ReadTransaction)
// --------------------------------------------------------------------------

func (t *transaction) Codec() codec.ICodec {
	return t.db.codec
}

func (t *transaction) Get(addr Address) ([]byte, []byte, bool, error) {
	entry, found, err := t.raw(addr)
	if err != nil || !found {
		return nil, nil, false, err
	}

	object, err := decodePayload(entry.Object)
	if err != nil {
		return nil, nil, false, decodingError(addr, "object", err)
	}

	var metadata []byte
	if entry.Metadata != nil {
		if metadata, err = decodePayload(entry.Metadata); err != nil {
			return nil, nil, false, decodingError(addr, "metadata", err)
		}
	}
	return object, metadata, true, nil
}

func (t *transaction) Object(addr Address, out any) (bool, error) {
	object, _, found, err := t.Get(addr)
	if err != nil || !found {
		return false, err
	}
	if err := t.db.codec.Unmarshal(object, out); err != nil {
		return false, decodingError(addr, "object", err)
	}
	return true, nil
}

func (t *transaction) MetadataObject(addr Address, out any) (bool, error) {
	_, metadata, found, err := t.Get(addr)
	if err != nil || !found || metadata == nil {
		return false, err
	}
	if err := t.db.codec.Unmarshal(metadata, out); err != nil {
		return false, decodingError(addr, "metadata", err)
	}
	return true, nil
}

func (t *transaction) Has(addr Address) (bool, error) {
	_, found, err := t.raw(addr)
	return found, err
}

func (t *transaction) Keys(collection string) ([]string, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := t.require(db.FeatureKeys); err != nil {
		return nil, err
	}
	keys, err := t.txn.Keys(collection)
	if err != nil {
		return nil, engineError("keys", err)
	}
	return keys, nil
}

func (t *transaction) Collections() ([]string, error) {
	if err := t.require(db.FeatureCollections); err != nil {
		return nil, err
	}
	collections, err := t.txn.Collections()
	if err != nil {
		return nil, engineError("collections", err)
	}
	return collections, nil
}

// --------------------------------------------------------------------------
// Write Methods (docu see store.ReadWriteTransaction)
// --------------------------------------------------------------------------

func (t *transaction) Set(addr Address, object, metadata []byte) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	if err := t.requireWritable(); err != nil {
		return err
	}
	if err := t.require(db.FeaturePut); err != nil {
		return err
	}

	entry, err := t.encodeEntry(object, metadata)
	if err != nil {
		return err
	}
	if err := t.txn.Put(addr.Collection, addr.Key, entry); err != nil {
		return engineError("put", err)
	}
	return nil
}

func (t *transaction) SetObject(addr Address, object, metadata any) error {
	objectBytes, err := t.db.codec.Marshal(object)
	if err != nil {
		return WrapError(RetCInvalidOperation, fmt.Sprintf("failed to encode object for %s", addr), err)
	}

	var metadataBytes []byte
	if metadata != nil {
		if metadataBytes, err = t.db.codec.Marshal(metadata); err != nil {
			return WrapError(RetCInvalidOperation, fmt.Sprintf("failed to encode metadata for %s", addr), err)
		}
	}
	return t.Set(addr, objectBytes, metadataBytes)
}

func (t *transaction) ReplaceMetadata(addr Address, metadata []byte) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	if err := t.require(db.FeaturePut); err != nil {
		return err
	}
	entry, found, err := t.raw(addr)
	if err != nil || !found {
		return err
	}

	entry.Metadata = nil
	if metadata != nil {
		if entry.Metadata, err = compression.Encode(t.db.compressor, metadata); err != nil {
			return WrapError(RetCInternalError, "failed to compress metadata", err)
		}
	}
	if err := t.txn.Put(addr.Collection, addr.Key, entry); err != nil {
		return engineError("put", err)
	}
	return nil
}

func (t *transaction) Remove(addr Address) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	if err := t.requireWritable(); err != nil {
		return err
	}
	if err := t.require(db.FeatureDelete); err != nil {
		return err
	}
	if err := t.txn.Delete(addr.Collection, addr.Key); err != nil {
		return engineError("delete", err)
	}
	return nil
}

func (t *transaction) RemoveKeys(collection string, keys []string) error {
	for _, key := range keys {
		if err := t.Remove(Address{Collection: collection, Key: key}); err != nil {
			return err
		}
	}
	return nil
}

func (t *transaction) RemoveCollection(collection string) error {
	keys, err := t.Keys(collection)
	if err != nil {
		return err
	}
	return t.RemoveKeys(collection, keys)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// raw returns the stored entry of addr without decompressing it
func (t *transaction) raw(addr Address) (db.Entry, bool, error) {
	if err := addr.Validate(); err != nil {
		return db.Entry{}, false, err
	}
	if err := t.require(db.FeatureGet); err != nil {
		return db.Entry{}, false, err
	}
	entry, found, err := t.txn.Get(addr.Collection, addr.Key)
	if err != nil {
		return db.Entry{}, false, engineError("get", err)
	}
	return entry, found, nil
}

func (t *transaction) encodeEntry(object, metadata []byte) (db.Entry, error) {
	var entry db.Entry
	var err error
	if entry.Object, err = compression.Encode(t.db.compressor, object); err != nil {
		return db.Entry{}, WrapError(RetCInternalError, "failed to compress object", err)
	}
	if metadata != nil {
		if entry.Metadata, err = compression.Encode(t.db.compressor, metadata); err != nil {
			return db.Entry{}, WrapError(RetCInternalError, "failed to compress metadata", err)
		}
	}
	return entry, nil
}

func decodePayload(payload []byte) ([]byte, error) {
	return compression.Decode(payload)
}

func decodingError(addr Address, what string, err error) *Error {
	return WrapError(RetCDecodingError, fmt.Sprintf("failed to decode %s at %s", what, addr), err)
}

func validateCollection(collection string) error {
	return Address{Collection: collection, Key: "-"}.Validate()
}

// engineError maps an engine error to a store error
func engineError(op string, err error) *Error {
	switch {
	case errors.Is(err, db.ErrTxnReadOnly):
		return WrapError(RetCInvalidOperation, op+" on a read-only transaction", err)
	case errors.Is(err, db.ErrTxnClosed):
		return WrapError(RetCInvalidOperation, op+" on a finished transaction", err)
	case errors.Is(err, db.ErrClosed):
		return WrapError(RetCClosed, op+" on a closed database", err)
	default:
		return WrapError(RetCInternalError, op+" failed", err)
	}
}
