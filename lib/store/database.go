package store

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/ValentinKolb/kvmap/lib/store/codec"
	"github.com/ValentinKolb/kvmap/lib/store/compression"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// Options configure how a Database encodes the payloads it stores
type Options struct {
	// Codec encodes object-style values. Defaults to json.
	Codec codec.ICodec
	// Compression is applied to every payload written. Defaults to none.
	Compression compression.ICompressor
}

// Database is the handle of an opened engine. It hands out connections and
// serializes read-write transactions across all of them.
type Database struct {
	kv         db.KVDB
	codec      codec.ICodec
	compressor compression.ICompressor

	// txnMu admits a single read-write transaction at a time. Read-only
	// transactions take the read side when the engine has no snapshot reads.
	txnMu    sync.RWMutex
	snapshot bool
	closed   atomic.Bool
	kvClosed atomic.Bool

	connMu sync.Mutex
	conns  map[*Connection]struct{}
	connID atomic.Uint64
}

// NewDatabase opens the engine created by factory. opts may be nil.
func NewDatabase(factory DBFactory, opts *Options) (*Database, error) {
	kv, err := factory()
	if err != nil {
		return nil, WrapError(RetCInternalError, "failed to open engine", err)
	}

	d := &Database{
		kv:         kv,
		codec:      codec.NewJSONCodec(),
		compressor: mustNoCompression(),
		conns:      make(map[*Connection]struct{}),
		snapshot:   kv.SupportsFeature(db.FeatureSnapshotReads),
	}
	if opts != nil {
		if opts.Codec != nil {
			d.codec = opts.Codec
		}
		if opts.Compression != nil {
			d.compressor = opts.Compression
		}
	}

	info := kv.GetInfo()
	log.Infof("opened %s database (codec %s, compression %s)", info.DbType, d.codec.Name(), d.compressor.Name())
	return d, nil
}

// NewConnection creates a new connection with its own serial queue.
// Connections of a closed database are closed already.
func (d *Database) NewConnection() *Connection {
	c := newConnection(d, d.connID.Add(1))

	d.connMu.Lock()
	if d.closed.Load() {
		d.connMu.Unlock()
		c.queue.Close()
		return c
	}
	d.conns[c] = struct{}{}
	d.connMu.Unlock()

	log.Debugf("opened connection %d", c.id)
	return c
}

// Codec returns the native object codec of the database
func (d *Database) Codec() codec.ICodec {
	return d.codec
}

// Compression returns the algorithm new payloads are compressed with
func (d *Database) Compression() compression.ICompressor {
	return d.compressor
}

// SupportsFeature reports whether the engine supports feature
func (d *Database) SupportsFeature(feature db.Feature) bool {
	return d.kv.SupportsFeature(feature)
}

// Info returns information about the engine
func (d *Database) Info() db.DatabaseInfo {
	return d.kv.GetInfo()
}

// Close closes every open connection, waiting for their queued transactions,
// and then closes the engine. Closing twice is a no-op.
func (d *Database) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	d.connMu.Lock()
	conns := make([]*Connection, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.connMu.Unlock()

	for _, c := range conns {
		c.Close()
	}

	d.txnMu.Lock()
	defer d.txnMu.Unlock()
	d.kvClosed.Store(true)
	if err := d.kv.Close(); err != nil {
		return WrapError(RetCInternalError, "failed to close engine", err)
	}
	log.Infof("database closed")
	return nil
}

// IsClosed reports whether Close was called
func (d *Database) IsClosed() bool {
	return d.closed.Load()
}

func (d *Database) forget(c *Connection) {
	d.connMu.Lock()
	delete(d.conns, c)
	d.connMu.Unlock()
}

func mustNoCompression() compression.ICompressor {
	c, err := compression.ByName("none")
	if err != nil {
		panic(err)
	}
	return c
}
