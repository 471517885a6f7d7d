// This file summarizes entry sizes and shard balance for the metadata of
// db.DatabaseInfo. Sampling and the summary math come from go-metrics.
package util

import (
	"slices"

	gometrics "github.com/rcrowley/go-metrics"
)

// sizeReservoir bounds the memory of a SizeSample regardless of the number of entries
const sizeReservoir = 1028

// Stats summarizes a set of integer samples
type Stats struct {
	Count  int64   `json:"count" yaml:"count"`
	Min    int64   `json:"min" yaml:"min"`
	Max    int64   `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	P50    float64 `json:"p50" yaml:"p50"`
	P95    float64 `json:"p95" yaml:"p95"`
}

// NewStats summarizes values. values is not modified.
func NewStats(values []int64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := slices.Clone(values)
	ps := gometrics.SamplePercentiles(sorted, []float64{0.5, 0.95})
	return Stats{
		Count:  int64(len(values)),
		Min:    gometrics.SampleMin(values),
		Max:    gometrics.SampleMax(values),
		Mean:   gometrics.SampleMean(values),
		StdDev: gometrics.SampleStdDev(values),
		P50:    ps[0],
		P95:    ps[1],
	}
}

// ----------------------------------------------------------------------------
// Shard balance
// ----------------------------------------------------------------------------

// DistributionStats describes how evenly entries spread over shards
type DistributionStats struct {
	Stats   `yaml:",inline"`
	Quality float64 `json:"quality" yaml:"quality"`
}

// NewDistributionStats rates the spread of entries over shards. Quality is 1
// for a perfectly even spread and approaches 0 as a single shard holds everything.
func NewDistributionStats(shardSizes []int64) DistributionStats {
	stats := NewStats(shardSizes)
	if stats.Max == 0 {
		return DistributionStats{Stats: stats, Quality: 1}
	}

	// coefficient of variation and min/max ratio weigh equally
	cv := min(stats.StdDev/stats.Mean, 1)
	ratio := float64(stats.Min) / float64(stats.Max)
	return DistributionStats{
		Stats:   stats,
		Quality: (1-cv)*0.5 + ratio*0.5,
	}
}

// ----------------------------------------------------------------------------
// SizeSample
// ----------------------------------------------------------------------------

// SizeSample records entry sizes in a uniform reservoir, so its memory stays
// fixed while Count still covers every recorded size.
//
// Thread-safe: all methods are safe for concurrent use
type SizeSample struct {
	h gometrics.Histogram
}

// NewSizeSample creates an empty sample
func NewSizeSample() *SizeSample {
	return &SizeSample{h: gometrics.NewHistogram(gometrics.NewUniformSample(sizeReservoir))}
}

// Add records one size in bytes
func (s *SizeSample) Add(size int) {
	s.h.Update(int64(size))
}

// Stats summarizes the recorded sizes. Count is exact, the other fields are
// estimated from the reservoir.
func (s *SizeSample) Stats() Stats {
	snap := s.h.Snapshot()
	if snap.Count() == 0 {
		return Stats{}
	}
	ps := snap.Percentiles([]float64{0.5, 0.95})
	return Stats{
		Count:  snap.Count(),
		Min:    snap.Min(),
		Max:    snap.Max(),
		Mean:   snap.Mean(),
		StdDev: snap.StdDev(),
		P50:    ps[0],
		P95:    ps[1],
	}
}
