package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func scoreEntry(created time.Time, accesses int64, lastAccess time.Time, cost time.Duration, size int64) *Entry {
	return &Entry{
		Key:              "score_key_01",
		Type:             EntryComputationResult,
		UncompressedSize: size,
		CreatedAt:        created,
		LastAccess:       lastAccess,
		AccessCount:      accesses,
		ComputationCost:  cost,
	}
}

func TestPromotionScore_MonotoneInFrequency(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)
	w := DefaultScoreWeights()

	prev := -1.0
	for _, accesses := range []int64{0, 5, 20, 45, 60} {
		e := scoreEntry(created, accesses, now.Add(-time.Minute), 0, 512)
		s := promotionScore(e, w, now)
		assert.GreaterOrEqual(t, s, prev, "score must not drop as access count grows")
		prev = s
	}
}

func TestPromotionScore_MonotoneInRecency(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)
	w := DefaultScoreWeights()

	prev := -1.0
	for _, idle := range []time.Duration{45 * time.Minute, 25 * time.Minute, 10 * time.Minute, time.Minute, 0} {
		e := scoreEntry(created, 10, now.Add(-idle), 0, 512)
		s := promotionScore(e, w, now)
		assert.GreaterOrEqual(t, s, prev, "score must not drop as the last access gets fresher")
		prev = s
	}
}

func TestPromotionScore_ExpensiveEntriesOutscoreCheapOnes(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)
	w := DefaultScoreWeights()

	cheap := scoreEntry(created, 10, now.Add(-time.Minute), time.Millisecond, 512)
	expensive := scoreEntry(created, 10, now.Add(-time.Minute), 5*time.Second, 512)
	assert.Greater(t, promotionScore(expensive, w, now), promotionScore(cheap, w, now))
}

func TestPromotionScore_SmallEntriesOutscoreLargeOnes(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)
	w := DefaultScoreWeights()

	small := scoreEntry(created, 10, now.Add(-time.Minute), 0, 512)
	large := scoreEntry(created, 10, now.Add(-time.Minute), 0, 4<<20)
	assert.Greater(t, promotionScore(small, w, now), promotionScore(large, w, now))
}

func TestPromotionScore_StaysWithinUnitInterval(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	w := DefaultScoreWeights()

	// everything saturated high
	hot := scoreEntry(now.Add(-time.Second), 1000, now, time.Minute, 16)
	s := promotionScore(hot, w, now)
	assert.LessOrEqual(t, s, 1.0)
	assert.GreaterOrEqual(t, s, 0.0)

	// everything at the floor
	cold := scoreEntry(now.Add(-24*time.Hour), 0, now.Add(-24*time.Hour), 0, 64<<20)
	s = promotionScore(cold, w, now)
	assert.LessOrEqual(t, s, 1.0)
	assert.GreaterOrEqual(t, s, 0.0)
}

func TestPromotionScore_ZeroWeights_ScoreZero(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	e := scoreEntry(now.Add(-time.Hour), 50, now, time.Second, 128)
	assert.Zero(t, promotionScore(e, ScoreWeights{}, now))
}

func TestParseEvictionPolicy_FallsBackToAdaptive(t *testing.T) {
	assert.Equal(t, EvictLRU, ParseEvictionPolicy("lru"))
	assert.Equal(t, EvictLFU, ParseEvictionPolicy("lfu"))
	assert.Equal(t, EvictAdaptive, ParseEvictionPolicy("adaptive"))
	assert.Equal(t, EvictAdaptive, ParseEvictionPolicy("unknown"))
}
