package store

import (
	"fmt"

	"github.com/ValentinKolb/kvmap/lib/common"
	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/ValentinKolb/kvmap/lib/db/engines/level"
	"github.com/ValentinKolb/kvmap/lib/db/engines/maple"
	"github.com/ValentinKolb/kvmap/lib/db/engines/sqlite"
	"github.com/ValentinKolb/kvmap/lib/store/codec"
	"github.com/ValentinKolb/kvmap/lib/store/compression"
)

// FactoryFor returns the DBFactory of the engine selected by cfg
func FactoryFor(cfg common.Config) (DBFactory, error) {
	switch db.Implementation(cfg.Engine) {
	case db.ImplMaple:
		return func() (db.KVDB, error) {
			return maple.NewMapleDB(nil), nil
		}, nil
	case db.ImplLevel:
		return func() (db.KVDB, error) {
			return level.NewLevelDB(level.DBOptions{Path: cfg.Path, Sync: cfg.Sync})
		}, nil
	case db.ImplSQLite:
		return func() (db.KVDB, error) {
			return sqlite.NewSQLiteDB(sqlite.DBOptions{Path: cfg.Path})
		}, nil
	default:
		return nil, NewError(RetCInvalidOperation, fmt.Sprintf("unknown engine: %s", cfg.Engine))
	}
}

// Open validates cfg and opens the database it describes
func Open(cfg common.Config) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, WrapError(RetCInvalidOperation, "invalid configuration", err)
	}

	factory, err := FactoryFor(cfg)
	if err != nil {
		return nil, err
	}
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, WrapError(RetCInvalidOperation, "invalid codec", err)
	}
	comp, err := compression.ByName(cfg.Compression)
	if err != nil {
		return nil, WrapError(RetCInvalidOperation, "invalid compression", err)
	}

	return NewDatabase(factory, &Options{Codec: c, Compression: comp})
}
