package internal

import (
	"github.com/ValentinKolb/kvmap/lib/db"
	"github.com/ValentinKolb/kvmap/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Collection Type (key -> entry map of one collection)
// --------------------------------------------------------------------------

// Collection holds the committed entries of a single collection
type Collection struct {
	Name string
	Data *xsync.MapOf[string, db.Entry]
}

// NewCollection creates an empty collection
func NewCollection(name string) *Collection {
	return &Collection{
		Name: name,
		Data: xsync.NewMapOf[string, db.Entry](),
	}
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database.
// Every collection lives in exactly one shard, selected by the hash of its name.
type Shard struct {
	Collections *xsync.MapOf[string, *Collection]
}

// NewShard creates a new empty shard
func NewShard() *Shard {
	return &Shard{
		Collections: xsync.NewMapOf[string, *Collection](),
	}
}

// Collection returns the collection with the given name, if it exists
func (s *Shard) Collection(name string) (*Collection, bool) {
	return s.Collections.Load(name)
}

// CollectionOrCreate returns the collection with the given name and creates it if necessary
func (s *Shard) CollectionOrCreate(name string) *Collection {
	c, _ := s.Collections.LoadOrCompute(name, func() *Collection {
		return NewCollection(name)
	})
	return c
}

// DropIfEmpty removes the collection from the shard when it holds no entries
func (s *Shard) DropIfEmpty(name string) {
	s.Collections.Compute(name, func(c *Collection, loaded bool) (*Collection, bool) {
		if !loaded {
			return nil, true
		}
		return c, c.Data.Size() == 0
	})
}

// GetShard returns the appropriate shard for a given key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](key util.UintKey, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := uint64(key) >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
