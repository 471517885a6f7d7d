package util

import (
	"hash/maphash"
)

// UintKey is the hash of a shard key
type UintKey uint64

// Hasher hashes shard keys with a seed chosen when the hasher is created, so
// two databases spread the same collections differently
type Hasher struct {
	seed maphash.Seed
}

// NewHasher returns a hasher with a random seed
func NewHasher() Hasher {
	return Hasher{seed: maphash.MakeSeed()}
}

// Sum returns the hash of s
func (h Hasher) Sum(s string) UintKey {
	return UintKey(maphash.String(h.seed, s))
}
