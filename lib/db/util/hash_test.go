package util

import (
	"fmt"
	"testing"
)

func TestHasherStable(t *testing.T) {
	h := NewHasher()
	if h.Sum("documents") != h.Sum("documents") {
		t.Errorf("Sum must be stable for one hasher")
	}
	if h.Sum("documents") == h.Sum("Documents") {
		t.Errorf("Expected different hashes for different keys")
	}
}

func TestHasherSpread(t *testing.T) {
	h := NewHasher()
	const buckets = 8
	counts := make([]int64, buckets)
	for i := 0; i < 8000; i++ {
		counts[uint64(h.Sum(fmt.Sprintf("collection-%d", i)))>>7%buckets]++
	}
	if q := NewDistributionStats(counts).Quality; q < 0.8 {
		t.Errorf("Expected an even spread, got quality %v for %v", q, counts)
	}
}
