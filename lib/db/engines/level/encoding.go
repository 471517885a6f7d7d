package level

import (
	"bytes"
	"encoding/binary"

	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/pkg/errors"
)

// --------------------------------------------------------------------------
// Key Layout
// --------------------------------------------------------------------------

// separator ends the collection part of a leveldb key. Collection names must not contain it.
const separator byte = 0x00

// dataKey returns the leveldb key for (collection, key)
func dataKey(collection, key string) []byte {
	k := make([]byte, 0, len(collection)+1+len(key))
	k = append(k, collection...)
	k = append(k, separator)
	return append(k, key...)
}

// collectionPrefix returns the prefix shared by all keys of a collection
func collectionPrefix(collection string) []byte {
	p := make([]byte, 0, len(collection)+1)
	p = append(p, collection...)
	return append(p, separator)
}

// splitKey splits a leveldb key into its collection and key part
func splitKey(k []byte) (collection, key string, ok bool) {
	idx := bytes.IndexByte(k, separator)
	if idx < 0 {
		return "", "", false
	}
	return string(k[:idx]), string(k[idx+1:]), true
}

// --------------------------------------------------------------------------
// Value Layout
// --------------------------------------------------------------------------

// Flags for the serialized entry header
const (
	flagHasMetadata byte = 1 << iota
)

// encodeEntry serializes an entry as
// [flags:1][object length:uvarint][object][metadata]
func encodeEntry(entry db.Entry) []byte {
	var flags byte
	if entry.Metadata != nil {
		flags |= flagHasMetadata
	}

	buf := make([]byte, 1+binary.MaxVarintLen64+len(entry.Object)+len(entry.Metadata))
	buf[0] = flags
	n := 1 + binary.PutUvarint(buf[1:], uint64(len(entry.Object)))
	n += copy(buf[n:], entry.Object)
	n += copy(buf[n:], entry.Metadata)
	return buf[:n]
}

// decodeEntry reverses encodeEntry. The returned slices do not alias b.
func decodeEntry(b []byte) (db.Entry, error) {
	if len(b) < 2 {
		return db.Entry{}, errors.Errorf("entry too short: %d bytes", len(b))
	}
	flags := b[0]
	objLen, n := binary.Uvarint(b[1:])
	if n <= 0 {
		return db.Entry{}, errors.New("invalid object length")
	}
	rest := b[1+n:]
	if uint64(len(rest)) < objLen {
		return db.Entry{}, errors.Errorf("object length %d exceeds entry size %d", objLen, len(rest))
	}

	entry := db.Entry{Object: make([]byte, objLen)}
	copy(entry.Object, rest[:objLen])
	if flags&flagHasMetadata != 0 {
		entry.Metadata = make([]byte, len(rest)-int(objLen))
		copy(entry.Metadata, rest[objLen:])
	}
	return entry, nil
}
