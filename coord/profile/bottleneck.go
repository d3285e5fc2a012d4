package profile

import (
	"math"

	"github.com/workforce-sim/workforce-sim/coord"
)

// BottleneckKind names the dominant constrained resource of a finding.
type BottleneckKind string

const (
	MemoryBound         BottleneckKind = "memory_bound"
	CPUBound            BottleneckKind = "cpu_bound"
	IOBound             BottleneckKind = "io_bound"
	CacheBound          BottleneckKind = "cache_bound"
	LockContentionBound BottleneckKind = "lock_contention_bound"
)

// BottleneckAnalysis is one classified finding from a sample window.
type BottleneckAnalysis struct {
	Kind                    BottleneckKind
	Severity                float64 // in [0,1], proportional to threshold excess
	Phase                   string
	Cause                   string
	RecommendedAction       string
	EstimatedImprovementPct float64
}

// Thresholds are the classification policy knobs, configurable defaults
// rather than hard invariants.
type Thresholds struct {
	CPUPercent        float64 // cpu-bound above this in a majority of samples
	CacheHitRateFloor float64 // cache-bound below this
	MemoryGrowthMB    float64 // memory-bound when the window climbs by more than this
}

// DefaultThresholds derives thresholds from the profiler config.
func DefaultThresholds(cfg coord.ProfilerConfig) Thresholds {
	t := Thresholds{
		CPUPercent:        cfg.CPUThresholdPct,
		CacheHitRateFloor: cfg.CacheHitRateFloor,
		MemoryGrowthMB:    64,
	}
	if t.CPUPercent <= 0 {
		t.CPUPercent = 80
	}
	if t.CacheHitRateFloor <= 0 {
		t.CacheHitRateFloor = 0.6
	}
	return t
}

// AnalyzeBottlenecks classifies a sample window. Rules: a sustained upward
// memory trend is memory-bound; CPU above threshold in a majority of
// samples is cpu-bound; a hit rate below the floor is cache-bound.
func (p *Profiler) AnalyzeBottlenecks(history []Sample) []BottleneckAnalysis {
	if len(history) < 2 {
		return nil
	}
	t := p.thresholds
	var findings []BottleneckAnalysis

	// memory: compare window halves to smooth single-sample spikes
	firstHalf := meanHeap(history[:len(history)/2])
	secondHalf := meanHeap(history[len(history)/2:])
	growth := secondHalf - firstHalf
	if growth > t.MemoryGrowthMB && sustainedClimb(history) {
		findings = append(findings, BottleneckAnalysis{
			Kind:                    MemoryBound,
			Severity:                clamp01(growth / (4 * t.MemoryGrowthMB)),
			Phase:                   dominantPhase(history),
			Cause:                   "heap allocation climbs across the sample window",
			RecommendedAction:       "pool hot allocations and tune GC pacing (GOGC / memory limit)",
			EstimatedImprovementPct: 20,
		})
	}

	// cpu: majority of samples above threshold
	over, sum := 0, 0.0
	for _, s := range history {
		if s.CPUPercent > t.CPUPercent {
			over++
		}
		sum += s.CPUPercent
	}
	if over*2 > len(history) {
		avg := sum / float64(len(history))
		findings = append(findings, BottleneckAnalysis{
			Kind:                    CPUBound,
			Severity:                clamp01((avg - t.CPUPercent) / (100 - t.CPUPercent)),
			Phase:                   dominantPhase(history),
			Cause:                   "CPU utilization above threshold in a majority of samples",
			RecommendedAction:       "parallelize independent per-year computations across the worker pool",
			EstimatedImprovementPct: 30,
		})
	}

	// cache: latest observed hit rate below the floor
	latest := history[len(history)-1].CacheHitRate
	if latest < t.CacheHitRateFloor {
		findings = append(findings, BottleneckAnalysis{
			Kind:                    CacheBound,
			Severity:                clamp01((t.CacheHitRateFloor - latest) / t.CacheHitRateFloor),
			Phase:                   dominantPhase(history),
			Cause:                   "cache hit rate below configured floor",
			RecommendedAction:       "run cache placement optimization and revisit promotion thresholds",
			EstimatedImprovementPct: 25,
		})
	}

	return findings
}

func meanHeap(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.HeapAllocMB
	}
	return sum / float64(len(samples))
}

// sustainedClimb reports whether heap usage rises in most consecutive
// sample pairs, distinguishing a trend from a spike.
func sustainedClimb(history []Sample) bool {
	rises := 0
	for i := 1; i < len(history); i++ {
		if history[i].HeapAllocMB >= history[i-1].HeapAllocMB {
			rises++
		}
	}
	return rises*3 >= (len(history)-1)*2
}

// dominantPhase returns the most frequent phase label in the window.
func dominantPhase(history []Sample) string {
	counts := make(map[string]int)
	best, bestN := "", 0
	for _, s := range history {
		counts[s.Phase]++
		if counts[s.Phase] > bestN {
			best, bestN = s.Phase, counts[s.Phase]
		}
	}
	return best
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
