package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/ValentinKolb/kvmap/lib/store/codec"
)

// --------------------------------------------------------------------------
// Addresses
// --------------------------------------------------------------------------

// Address identifies a single storage slot of the database
type Address struct {
	Collection string
	Key        string
}

func (a Address) String() string {
	return a.Collection + "/" + a.Key
}

// Validate checks that the address can be stored by every engine.
// The key must not be empty and the collection must not contain a NUL byte.
func (a Address) Validate() error {
	if a.Key == "" {
		return NewError(RetCInvalidOperation, "key must not be empty")
	}
	if strings.IndexByte(a.Collection, 0) >= 0 {
		return NewError(RetCInvalidOperation, fmt.Sprintf("collection %q contains a NUL byte", a.Collection))
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() (db.KVDB, error)

// ReadTransaction is the view a read block gets of the database. It is only
// valid inside the block it was passed to.
// Payloads returned by the transaction are already decompressed.
type ReadTransaction interface {
	// Get returns the object and metadata payloads stored at addr.
	// metadata is nil if the entry has none.
	Get(addr Address) (object, metadata []byte, found bool, err error)
	// Object decodes the object stored at addr into out using the database codec
	Object(addr Address, out any) (found bool, err error)
	// MetadataObject decodes the metadata stored at addr into out using the database codec.
	// found is false if there is no entry or the entry has no metadata.
	MetadataObject(addr Address, out any) (found bool, err error)
	// Has reports whether an entry exists at addr
	Has(addr Address) (found bool, err error)
	// Keys returns the keys of a collection in ascending order
	Keys(collection string) (keys []string, err error)
	// Collections returns all non-empty collections in ascending order
	Collections() (collections []string, err error)
	// Codec returns the native object codec of the database
	Codec() codec.ICodec
}

// ReadWriteTransaction extends ReadTransaction with write operations. All
// writes become visible to other transactions when the block returns nil.
type ReadWriteTransaction interface {
	ReadTransaction

	// Set stores object and metadata at addr, replacing any existing entry.
	// A nil metadata stores an entry without metadata.
	Set(addr Address, object, metadata []byte) (err error)
	// SetObject encodes object and metadata with the database codec and stores them at addr.
	// A nil metadata stores an entry without metadata.
	SetObject(addr Address, object, metadata any) (err error)
	// ReplaceMetadata replaces only the metadata of an existing entry.
	// It does nothing if there is no entry at addr.
	ReplaceMetadata(addr Address, metadata []byte) (err error)
	// Remove deletes the entry at addr. Removing an absent entry is not an error.
	Remove(addr Address) (err error)
	// RemoveKeys deletes the given keys of a collection
	RemoveKeys(collection string, keys []string) (err error)
	// RemoveCollection deletes every entry of a collection
	RemoveCollection(collection string) (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and an optional cause.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store error (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("store error (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same code, so
// errors.Is(err, store.ErrDecoding) matches every decoding error
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new store error with the given code and message around err.
func WrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// CodeOf returns the code of the first store error in err's chain.
// It returns RetCSuccess for nil and RetCInternalError for foreign errors.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// Sentinels for errors.Is. They only carry a code.
var (
	ErrInternal         = NewError(RetCInternalError, "internal error")
	ErrUnsupported      = NewError(RetCUnsupportedOperation, "unsupported operation")
	ErrInvalidOperation = NewError(RetCInvalidOperation, "invalid operation")
	ErrDecoding         = NewError(RetCDecodingError, "decoding failed")
	ErrTransaction      = NewError(RetCTransactionError, "transaction failed")
	ErrCancelled        = NewError(RetCCancelled, "cancelled")
	ErrClosed           = NewError(RetCClosed, "closed")
)

func errUnsupportedFeature(f db.Feature) *Error {
	return NewError(RetCUnsupportedOperation, f.String()+" is not supported by the engine")
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCDecodingError                       // 4: A stored payload could not be decoded.
	RetCTransactionError                    // 5: The engine failed to begin or commit a transaction.
	RetCCancelled                           // 6: The operation was cancelled before it started.
	RetCClosed                              // 7: The connection or database is closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCDecodingError:
		return "DecodingError"
	case RetCTransactionError:
		return "TransactionError"
	case RetCCancelled:
		return "Cancelled"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
