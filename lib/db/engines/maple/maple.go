package maple

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/ValentinKolb/kvmap/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/kvmap/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("engine")

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an in-memory transactional database with sharded collections
type mapleImpl struct {
	numShards int               // Number of shards
	hasher    util.Hasher       // Seeded hash for shard selection
	shards    []*internal.Shard // Array of shards

	// commitMu is held exclusively while a commit is applied and shared by every read,
	// so a single read never observes half of a commit
	commitMu sync.RWMutex
	closed   atomic.Bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	// Create shards
	shards := make([]*internal.Shard, opts.NumShards)
	for i := 0; i < opts.NumShards; i++ {
		shards[i] = internal.NewShard()
	}

	log.Debugf("maple: created in-memory database with %d shards", opts.NumShards)

	return &mapleImpl{
		numShards: opts.NumShards,
		hasher:    util.NewHasher(),
		shards:    shards,
	}
}

// shardFor returns the shard that owns the given collection
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) shardFor(collection string) *internal.Shard {
	return internal.GetShard(maple.hasher.Sum(collection), maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods
// --------------------------------------------------------------------------

// Begin starts a new transaction
func (maple *mapleImpl) Begin(writable bool) (db.Txn, error) {
	if maple.closed.Load() {
		return nil, db.ErrClosed
	}
	return newTxn(maple, writable), nil
}

// --------------------------------------------------------------------------
// Committed State Access (used by transactions)
// --------------------------------------------------------------------------

func (maple *mapleImpl) load(collection, key string) (db.Entry, bool) {
	maple.commitMu.RLock()
	defer maple.commitMu.RUnlock()

	c, ok := maple.shardFor(collection).Collection(collection)
	if !ok {
		return db.Entry{}, false
	}
	return c.Data.Load(key)
}

func (maple *mapleImpl) keys(collection string) []string {
	maple.commitMu.RLock()
	defer maple.commitMu.RUnlock()

	c, ok := maple.shardFor(collection).Collection(collection)
	if !ok {
		return nil
	}
	keys := make([]string, 0, c.Data.Size())
	c.Data.Range(func(key string, _ db.Entry) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

func (maple *mapleImpl) collections() []string {
	maple.commitMu.RLock()
	defer maple.commitMu.RUnlock()

	var names []string
	for _, shard := range maple.shards {
		shard.Collections.Range(func(name string, c *internal.Collection) bool {
			if c.Data.Size() > 0 {
				names = append(names, name)
			}
			return true
		})
	}
	sort.Strings(names)
	return names
}

// apply writes all pending changes of a transaction as one atomic step
func (maple *mapleImpl) apply(pending map[string]map[string]*db.Entry) {
	maple.commitMu.Lock()
	defer maple.commitMu.Unlock()

	for collection, changes := range pending {
		shard := maple.shardFor(collection)
		c := shard.CollectionOrCreate(collection)
		for key, entry := range changes {
			if entry == nil {
				c.Data.Delete(key)
			} else {
				c.Data.Store(key, *entry)
			}
		}
		shard.DropIfEmpty(collection)
	}
}

// --------------------------------------------------------------------------
// Feature Support and Info
// --------------------------------------------------------------------------

const supportedFeatures = db.FeatureGet |
	db.FeaturePut |
	db.FeatureDelete |
	db.FeatureKeys |
	db.FeatureCollections

// SupportsFeature checks if the database supports the given feature(s)
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.commitMu.RLock()
	defer maple.commitMu.RUnlock()

	sizes := util.NewSizeSample()
	shardSizes := make([]int64, len(maple.shards))
	entries := 0
	collections := 0

	for i, shard := range maple.shards {
		shard.Collections.Range(func(_ string, c *internal.Collection) bool {
			collections++
			c.Data.Range(func(key string, entry db.Entry) bool {
				sizes.Add(len(key) + entry.Size())
				shardSizes[i]++
				entries++
				return true
			})
			return true
		})
	}

	// entry overhead: map bucket slot plus two slice headers
	entryOverhead := 64
	entrySizes := sizes.Stats()
	sizeBytes := entries * (int(entrySizes.Mean) + entryOverhead)

	meta := &struct {
		Entries           int                    `json:"entries" yaml:"entries"`
		Collections       int                    `json:"collections" yaml:"collections"`
		ShardCount        int                    `json:"shard_count" yaml:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution" yaml:"shard_distribution"`
		EntrySizes        util.Stats             `json:"entry_sizes" yaml:"entry_sizes"`
		Info              string                 `json:"info" yaml:"info"`
	}{
		Entries:           entries,
		Collections:       collections,
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		EntrySizes:        entrySizes,
		Info:              "SizeBytes and entry size percentiles are estimates based on a sample of the entries.",
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		DbType:            db.ImplMaple,
		SupportedFeatures: db.SupportedFeatures(supportedFeatures),
		Metadata:          meta,
	}
}

// Close releases all data. Transactions started afterward fail with db.ErrClosed.
func (maple *mapleImpl) Close() error {
	if !maple.closed.CompareAndSwap(false, true) {
		return nil
	}
	maple.commitMu.Lock()
	defer maple.commitMu.Unlock()
	for _, shard := range maple.shards {
		shard.Collections.Clear()
	}
	log.Debugf("maple: database closed")
	return nil
}
