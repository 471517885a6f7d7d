package db

import "errors"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple  Implementation = "maple"
	ImplLevel  Implementation = "leveldb"
	ImplSQLite Implementation = "sqlite"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureGet           Feature = 1 << iota // Support for Get operations
	FeaturePut                               // Support for Put operations
	FeatureDelete                            // Support for Delete operations
	FeatureKeys                              // Support for enumerating the keys of a collection
	FeatureCollections                       // Support for enumerating all collections
	FeatureSnapshotReads                     // Read transactions see a stable snapshot while a writer commits
	FeatureDurable                           // Committed data survives a restart
)

// AllFeatures lists every known feature in declaration order
var AllFeatures = []Feature{
	FeatureGet, FeaturePut, FeatureDelete, FeatureKeys,
	FeatureCollections, FeatureSnapshotReads, FeatureDurable,
}

func (f Feature) String() string {
	switch f {
	case FeatureGet:
		return "Get"
	case FeaturePut:
		return "Put"
	case FeatureDelete:
		return "Delete"
	case FeatureKeys:
		return "Keys"
	case FeatureCollections:
		return "Collections"
	case FeatureSnapshotReads:
		return "SnapshotReads"
	case FeatureDurable:
		return "Durable"
	default:
		return "Unknown"
	}
}

// SupportedFeatures expands a feature mask into the list of single features it contains
func SupportedFeatures(mask Feature) []Feature {
	features := make([]Feature, 0, len(AllFeatures))
	for _, f := range AllFeatures {
		if mask&f == f {
			features = append(features, f)
		}
	}
	return features
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes" yaml:"size_bytes"`
	DbType            Implementation `json:"db_type" yaml:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features" yaml:"supported_features"`
	Metadata          interface{}    `json:"metadata" yaml:"metadata"`
}

// Entry is the unit an engine stores per (collection, key).
// A nil Metadata means the entry carries no metadata.
type Entry struct {
	Object   []byte
	Metadata []byte
}

// Size returns the number of payload bytes held by the entry
func (e Entry) Size() int {
	return len(e.Object) + len(e.Metadata)
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrClosed is returned when a transaction is started on a closed database
	ErrClosed = errors.New("database is closed")
	// ErrTxnClosed is returned by every call on a committed or rolled back transaction
	ErrTxnClosed = errors.New("transaction is closed")
	// ErrTxnReadOnly is returned by Put and Delete on a read-only transaction
	ErrTxnReadOnly = errors.New("transaction is read-only")
)

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for transactional key-value database implementations.
// Keys are grouped into collections. Every read and write happens inside a transaction
// obtained with Begin. Implementations can vary in their feature support, which can be
// queried with SupportsFeature.
type KVDB interface {

	// Begin starts a new transaction. A writable transaction may call Put and Delete.
	// Callers are responsible for serializing writable transactions; implementations
	// only guarantee that concurrent read-only transactions are safe.
	Begin(writable bool) (txn Txn, err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}

// Txn is a single database transaction.
type Txn interface {

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the entry stored at (collection, key).
	// The boolean return value indicates whether an entry was found.
	// A writable transaction observes its own pending writes.
	Get(collection, key string) (entry Entry, found bool, err error)

	// Keys returns all keys of a collection in ascending order.
	Keys(collection string) (keys []string, err error)

	// Collections returns the names of all non-empty collections in ascending order.
	Collections() (collections []string, err error)

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put stores the entry at (collection, key), replacing any existing entry including its metadata.
	Put(collection, key string, entry Entry) (err error)

	// Delete removes the entry at (collection, key). Deleting an absent key is a no-op.
	Delete(collection, key string) (err error)

	// --------------------------------------------------------------------------
	// Lifecycle
	// --------------------------------------------------------------------------

	// Writable reports whether the transaction was started as a writable transaction.
	Writable() bool

	// Commit applies all pending writes atomically and closes the transaction.
	Commit() (err error)

	// Rollback discards all pending writes and closes the transaction.
	// Calling Rollback on a closed transaction is a no-op.
	Rollback() (err error)
}
