package level

import (
	"sync/atomic"

	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lutil "github.com/syndtr/goleveldb/leveldb/util"
)

var log = logger.GetLogger("engine")

// --------------------------------------------------------------------------
// Core LevelDB database structure
// --------------------------------------------------------------------------

// levelImpl implements db.KVDB on top of a goleveldb database
type levelImpl struct {
	ldb    *leveldb.DB
	path   string
	wo     *opt.WriteOptions
	closed atomic.Bool
}

// DBOptions configures the levelImpl behavior during initialization
type DBOptions struct {
	Path string // Directory of the database (created if missing)
	Sync bool   // fsync every commit
}

// NewLevelDB opens (or creates) a leveldb database at opts.Path.
// A corrupted database is recovered with leveldb.RecoverFile.
func NewLevelDB(opts DBOptions) (db.KVDB, error) {
	if opts.Path == "" {
		return nil, errors.New("leveldb: path must not be empty")
	}

	// Open leveldb. If it doesn't exist, create it.
	ldb, err := leveldb.OpenFile(opts.Path, nil)

	// If the database is corrupted, attempt to recover.
	if lerrors.IsCorrupted(err) {
		log.Warningf("leveldb: corruption detected for path %s: %v", opts.Path, err)
		ldb, err = leveldb.RecoverFile(opts.Path, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "leveldb: recover %s", opts.Path)
		}
		log.Warningf("leveldb: recovered from corruption for path %s", opts.Path)
	}

	// If the database cannot be opened for any other
	// reason, return the error wrapped.
	if err != nil {
		return nil, errors.Wrapf(err, "leveldb: open %s", opts.Path)
	}

	log.Debugf("leveldb: opened database at %s", opts.Path)

	return &levelImpl{
		ldb:  ldb,
		path: opts.Path,
		wo:   &opt.WriteOptions{Sync: opts.Sync},
	}, nil
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods
// --------------------------------------------------------------------------

// Begin starts a new transaction on a fresh snapshot
func (l *levelImpl) Begin(writable bool) (db.Txn, error) {
	if l.closed.Load() {
		return nil, db.ErrClosed
	}
	snapshot, err := l.ldb.GetSnapshot()
	if err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return nil, db.ErrClosed
		}
		return nil, errors.Wrap(err, "leveldb: get snapshot")
	}
	return newTxn(l, snapshot, writable), nil
}

// --------------------------------------------------------------------------
// Feature Support and Info
// --------------------------------------------------------------------------

const supportedFeatures = db.FeatureGet |
	db.FeaturePut |
	db.FeatureDelete |
	db.FeatureKeys |
	db.FeatureCollections |
	db.FeatureSnapshotReads |
	db.FeatureDurable

// SupportsFeature checks if the database supports the given feature(s)
func (l *levelImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// GetInfo returns statistics about the database
func (l *levelImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplLevel,
		SupportedFeatures: db.SupportedFeatures(supportedFeatures),
	}
	if l.closed.Load() {
		return info
	}

	// all keys start with the collection name, so this range covers every key
	// except those of collections starting with 0xff bytes
	sizes, err := l.ldb.SizeOf([]lutil.Range{{Start: nil, Limit: []byte{0xff, 0xff, 0xff, 0xff}}})
	if err == nil {
		info.SizeBytes = int(sizes.Sum())
	}

	stats, _ := l.ldb.GetProperty("leveldb.stats")
	info.Metadata = &struct {
		Path  string `json:"path" yaml:"path"`
		Sync  bool   `json:"sync" yaml:"sync"`
		Stats string `json:"stats" yaml:"stats"`
		Info  string `json:"info" yaml:"info"`
	}{
		Path:  l.path,
		Sync:  l.wo.Sync,
		Stats: stats,
		Info:  "SizeBytes is the approximate on-disk size reported by leveldb.",
	}
	return info
}

// Close closes the underlying leveldb database
func (l *levelImpl) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	log.Debugf("leveldb: closing database at %s", l.path)
	return errors.Wrap(l.ldb.Close(), "leveldb: close")
}
