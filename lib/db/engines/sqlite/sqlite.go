package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var log = logger.GetLogger("engine")

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS database2 (
		rowid INTEGER PRIMARY KEY,
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		data BLOB,
		metadata BLOB
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS true_primary_key ON database2 (collection, key)`,
}

// --------------------------------------------------------------------------
// Core SQLite database structure
// --------------------------------------------------------------------------

// sqliteImpl implements db.KVDB on top of a single SQLite table.
// Each row holds one (collection, key) slot with its object and metadata blobs.
type sqliteImpl struct {
	sqlDB    *sql.DB
	path     string
	inMemory bool
	closed   atomic.Bool
}

// DBOptions configures the sqliteImpl behavior during initialization
type DBOptions struct {
	Path string // Database file, or MemoryPath
}

// NewSQLiteDB opens (or creates) a SQLite database and ensures the schema exists.
// File databases run in WAL mode so readers never block the writer.
func NewSQLiteDB(opts DBOptions) (db.KVDB, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	inMemory := path == MemoryPath
	dsn := path
	if !inMemory {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	if inMemory {
		// every connection of the pool would get its own empty database otherwise
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "sqlite: ping")
	}
	for _, stmt := range schema {
		if _, err := sqlDB.Exec(stmt); err != nil {
			_ = sqlDB.Close()
			return nil, errors.Wrap(err, "sqlite: create schema")
		}
	}

	log.Debugf("sqlite: opened database at %s", path)

	return &sqliteImpl{
		sqlDB:    sqlDB,
		path:     path,
		inMemory: inMemory,
	}, nil
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods
// --------------------------------------------------------------------------

// Begin starts a new SQL transaction
func (s *sqliteImpl) Begin(writable bool) (db.Txn, error) {
	if s.closed.Load() {
		return nil, db.ErrClosed
	}
	tx, err := s.sqlDB.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: begin")
	}
	return &txn{sqlite: s, tx: tx, writable: writable}, nil
}

// --------------------------------------------------------------------------
// Feature Support and Info
// --------------------------------------------------------------------------

func (s *sqliteImpl) features() db.Feature {
	features := db.FeatureGet |
		db.FeaturePut |
		db.FeatureDelete |
		db.FeatureKeys |
		db.FeatureCollections
	if !s.inMemory {
		features |= db.FeatureSnapshotReads | db.FeatureDurable
	}
	return features
}

// SupportsFeature checks if the database supports the given feature(s)
func (s *sqliteImpl) SupportsFeature(feature db.Feature) bool {
	return s.features()&feature == feature
}

// GetInfo returns statistics about the database
func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplSQLite,
		SupportedFeatures: db.SupportedFeatures(s.features()),
	}
	if s.closed.Load() {
		return info
	}

	var pageCount, pageSize, rows, collections int
	_ = s.sqlDB.QueryRow("PRAGMA page_count").Scan(&pageCount)
	_ = s.sqlDB.QueryRow("PRAGMA page_size").Scan(&pageSize)
	_ = s.sqlDB.QueryRow("SELECT COUNT(*), COUNT(DISTINCT collection) FROM database2").Scan(&rows, &collections)

	var journalMode string
	_ = s.sqlDB.QueryRow("PRAGMA journal_mode").Scan(&journalMode)

	info.SizeBytes = pageCount * pageSize
	info.Metadata = &struct {
		Path        string `json:"path" yaml:"path"`
		JournalMode string `json:"journal_mode" yaml:"journal_mode"`
		Rows        int    `json:"rows" yaml:"rows"`
		Collections int    `json:"collections" yaml:"collections"`
		PageCount   int    `json:"page_count" yaml:"page_count"`
		PageSize    int    `json:"page_size" yaml:"page_size"`
	}{
		Path:        s.path,
		JournalMode: journalMode,
		Rows:        rows,
		Collections: collections,
		PageCount:   pageCount,
		PageSize:    pageSize,
	}
	return info
}

// Close closes the SQLite handle
func (s *sqliteImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	log.Debugf("sqlite: closing database at %s", s.path)
	return errors.Wrap(s.sqlDB.Close(), "sqlite: close")
}
