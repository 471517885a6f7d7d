package persist

import (
	"fmt"

	"github.com/ValentinKolb/kvmap/lib/store"
)

// The functions in this file run inside a transaction the caller already
// holds. They are the single core every Repository idiom is built on.

// Write stores v (and its metadata) at its address, replacing any existing
// value, and returns v unchanged
func Write[T any](txn store.ReadWriteTransaction, m Mapping[T], v T) (T, error) {
	addr := m.AddressOf(v)
	object, metadata, err := m.encode(txn.Codec(), v)
	if err != nil {
		var zero T
		return zero, archiveError(addr, err)
	}
	if err := txn.Set(addr, object, metadata); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// WriteAll writes every value of vs and returns vs unchanged. The first
// failure aborts the remaining writes.
func WriteAll[T any](txn store.ReadWriteTransaction, m Mapping[T], vs []T) ([]T, error) {
	for _, v := range vs {
		if _, err := Write(txn, m, v); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

// Read returns the value stored under key. A missing value is reported with
// found == false and no error. A payload that does not decode is a
// store.RetCDecodingError.
func Read[T any](txn store.ReadTransaction, m Mapping[T], key string) (value T, found bool, err error) {
	addr := m.AddressFor(key)
	object, metadata, found, err := txn.Get(addr)
	if err != nil || !found {
		return value, false, err
	}
	if value, err = m.decode(txn.Codec(), object, metadata); err != nil {
		var zero T
		return zero, false, decodeError(addr, err)
	}
	return value, true, nil
}

// ReadAll returns the values stored under keys in the order of keys.
// Missing keys are silently omitted, so the result may be shorter than keys
// and a caller can not tell from the result alone which keys were missing.
// Decoding failures are returned as errors.
func ReadAll[T any](txn store.ReadTransaction, m Mapping[T], keys []string) ([]T, error) {
	values := make([]T, 0, len(keys))
	for _, key := range keys {
		v, found, err := Read(txn, m, key)
		if err != nil {
			return nil, err
		}
		if found {
			values = append(values, v)
		}
	}
	return values, nil
}

// ReadCollection returns every value of the mapping's collection ordered by key
func ReadCollection[T any](txn store.ReadTransaction, m Mapping[T]) ([]T, error) {
	keys, err := txn.Keys(m.Collection())
	if err != nil {
		return nil, err
	}
	return ReadAll(txn, m, keys)
}

// ReadMetadata decodes only the metadata stored under key. found is false if
// there is no value or the value has no metadata.
func ReadMetadata[T, M any](txn store.ReadTransaction, m Mapping[T], key string) (metadata M, found bool, err error) {
	if !m.HasMetadata() {
		return metadata, false, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("mapping %s has no metadata", m))
	}

	addr := m.AddressFor(key)
	_, raw, found, err := txn.Get(addr)
	if err != nil || !found || raw == nil {
		return metadata, false, err
	}

	decoded, err := m.metadata.decode(txn.Codec(), raw)
	if err != nil {
		return metadata, false, decodeError(addr, err)
	}
	metadata, ok := decoded.(M)
	if !ok {
		return metadata, false, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("metadata of mapping %s is %T, not %T", m, decoded, metadata))
	}
	return metadata, true, nil
}

// Remove deletes v and its metadata. Removing an absent value is not an error.
func Remove[T any](txn store.ReadWriteTransaction, m Mapping[T], v T) error {
	return txn.Remove(m.AddressOf(v))
}

// RemoveAll deletes every value of vs
func RemoveAll[T any](txn store.ReadWriteTransaction, m Mapping[T], vs []T) error {
	for _, v := range vs {
		if err := Remove(txn, m, v); err != nil {
			return err
		}
	}
	return nil
}

// RemoveKeys deletes the values stored under keys
func RemoveKeys[T any](txn store.ReadWriteTransaction, m Mapping[T], keys []string) error {
	return txn.RemoveKeys(m.Collection(), keys)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func archiveError(addr Address, err error) error {
	return store.WrapError(store.RetCInvalidOperation, fmt.Sprintf("failed to archive %s", addr), err)
}

// decodeError marks err as a decoding failure
func decodeError(addr Address, err error) error {
	if store.CodeOf(err) == store.RetCDecodingError {
		return err
	}
	return store.WrapError(store.RetCDecodingError, fmt.Sprintf("failed to unarchive %s", addr), err)
}
