package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverheadReduction_WeightedCombination(t *testing.T) {
	// time halves (gain .5), memory drops a quarter (gain .25), the hit
	// rate closes half its headroom (gain .5)
	baseline := PerformanceMetrics{
		PhaseDurations: map[string]time.Duration{"event_application": 2 * time.Second},
		PeakMemoryMB:   400,
		CacheHitRate:   0.5,
	}
	current := PerformanceMetrics{
		PhaseDurations: map[string]time.Duration{"event_application": time.Second},
		PeakMemoryMB:   300,
		CacheHitRate:   0.75,
	}

	got := OverheadReduction(baseline, current, DefaultScoreWeights())
	assert.InDelta(t, 42.5, got, 1e-9)
}

func TestOverheadReduction_RegressionIsNegative(t *testing.T) {
	baseline := PerformanceMetrics{
		PhaseDurations: map[string]time.Duration{"event_application": time.Second},
		PeakMemoryMB:   200,
		CacheHitRate:   0.8,
	}
	current := PerformanceMetrics{
		PhaseDurations: map[string]time.Duration{"event_application": 3 * time.Second},
		PeakMemoryMB:   400,
		CacheHitRate:   0.4,
	}

	assert.Less(t, OverheadReduction(baseline, current, DefaultScoreWeights()), 0.0)
}

func TestOverheadReduction_ZeroBaseline_ScoresZero(t *testing.T) {
	got := OverheadReduction(PerformanceMetrics{}, PerformanceMetrics{}, DefaultScoreWeights())
	assert.Zero(t, got)
}

func TestOverheadReduction_ZeroWeights_ScoresZero(t *testing.T) {
	baseline := PerformanceMetrics{PeakMemoryMB: 400}
	current := PerformanceMetrics{PeakMemoryMB: 100}
	assert.Zero(t, OverheadReduction(baseline, current, ScoreWeights{}))
}

func TestEfficiencyScore_StaysWithinUnitInterval(t *testing.T) {
	fast := PerformanceMetrics{
		PhaseDurations: map[string]time.Duration{"event_application": 100 * time.Millisecond},
		PeakMemoryMB:   64,
		CacheHitRate:   1.0,
	}
	slow := PerformanceMetrics{
		PhaseDurations: map[string]time.Duration{"event_application": time.Minute},
		PeakMemoryMB:   8192,
		CacheHitRate:   0,
	}

	w := DefaultScoreWeights()
	hi := efficiencyScore(fast, w)
	lo := efficiencyScore(slow, w)
	assert.LessOrEqual(t, hi, 1.0)
	assert.GreaterOrEqual(t, lo, 0.0)
	assert.Greater(t, hi, lo)
}

func TestTotalPhaseTime_SumsAllPhases(t *testing.T) {
	m := PerformanceMetrics{PhaseDurations: map[string]time.Duration{
		"event_application":  2 * time.Second,
		"cost_attribution":   time.Second,
		"metric_aggregation": 500 * time.Millisecond,
	}}
	assert.Equal(t, 3500*time.Millisecond, m.TotalPhaseTime())
}
