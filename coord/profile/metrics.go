// Package profile measures the coordination pipeline: scoped phase timing,
// continuous resource sampling, and bottleneck classification.
package profile

import (
	"math"
	"time"
)

// PerformanceMetrics is a point-in-time or windowed measurement of the
// coordination pipeline.
type PerformanceMetrics struct {
	PhaseDurations  map[string]time.Duration // execution-time breakdown by phase
	Throughput      map[string]float64       // items/sec by operation type
	PeakMemoryMB    float64
	CPUPercent      float64
	CacheHitRate    float64
	DatabaseQueries int64

	// derived against a stored baseline
	OverheadReductionPct float64
	EfficiencyScore      float64 // in [0,1]
}

// TotalPhaseTime sums the per-phase breakdown.
func (m PerformanceMetrics) TotalPhaseTime() time.Duration {
	var total time.Duration
	for _, d := range m.PhaseDurations {
		total += d
	}
	return total
}

// ScoreWeights weights the efficiency-score terms. Policy defaults, not
// invariants.
type ScoreWeights struct {
	Time   float64
	Memory float64
	Cache  float64
}

// DefaultScoreWeights mirrors the overhead-reduction weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Time: 0.4, Memory: 0.3, Cache: 0.3}
}

// referenceTime and referenceMemory anchor normalization: a run at or
// below these levels scores 1.0 on that term.
const (
	referenceTime     = 1 * time.Second
	referenceMemoryMB = 256.0
)

// efficiencyScore combines normalized time, memory, and cache terms into
// [0,1]. Faster, leaner, and better-hitting runs score higher.
func efficiencyScore(m PerformanceMetrics, w ScoreWeights) float64 {
	timeTerm := 1.0
	if total := m.TotalPhaseTime(); total > referenceTime {
		timeTerm = float64(referenceTime) / float64(total)
	}
	memTerm := 1.0
	if m.PeakMemoryMB > referenceMemoryMB {
		memTerm = referenceMemoryMB / m.PeakMemoryMB
	}
	cacheTerm := m.CacheHitRate

	total := w.Time + w.Memory + w.Cache
	if total <= 0 {
		return 0
	}
	score := (w.Time*timeTerm + w.Memory*memTerm + w.Cache*cacheTerm) / total
	return math.Max(0, math.Min(1, score))
}

// OverheadReduction computes the weighted percent improvement of current
// over baseline (time 0.4, memory 0.3, cache 0.3 by default). Negative
// values mean a regression.
func OverheadReduction(baseline, current PerformanceMetrics, w ScoreWeights) float64 {
	timeGain := relativeGain(float64(baseline.TotalPhaseTime()), float64(current.TotalPhaseTime()))
	memGain := relativeGain(baseline.PeakMemoryMB, current.PeakMemoryMB)

	// cache improves upward: gain is the hit-rate increase over headroom
	cacheGain := 0.0
	if headroom := 1.0 - baseline.CacheHitRate; headroom > 0 {
		cacheGain = (current.CacheHitRate - baseline.CacheHitRate) / headroom
	}

	total := w.Time + w.Memory + w.Cache
	if total <= 0 {
		return 0
	}
	return (w.Time*timeGain + w.Memory*memGain + w.Cache*cacheGain) / total * 100
}

// relativeGain is the fractional drop from before to after; 0 when before
// is not positive.
func relativeGain(before, after float64) float64 {
	if before <= 0 {
		return 0
	}
	return (before - after) / before
}
