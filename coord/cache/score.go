package cache

import (
	"math"
	"time"
)

// ScoreWeights tunes the promotion score. Weights are relative; the score
// is the weighted sum of four terms normalized into [0,1].
type ScoreWeights struct {
	Frequency float64 // access frequency: hotter entries score higher
	Recency   float64 // last access: fresher entries score higher
	Cost      float64 // computation cost: expensive-to-recompute entries score higher
	Size      float64 // inverse size: smaller entries score higher
}

// DefaultScoreWeights favors frequency and recomputation cost over recency
// and size.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Frequency: 0.35, Recency: 0.2, Cost: 0.3, Size: 0.15}
}

// Normalization scales. Frequency saturates at 60 accesses/hour, cost at
// 5s of recomputation, and recency decays over a 30 minute half-window.
const (
	freqSaturation   = 60.0
	costSaturationMS = 5000.0
	recencyWindow    = 30 * time.Minute
	sizeReference    = 1 << 10 // 1KiB scores 1.0; larger entries decay
)

// promotionScore computes the tier-placement value of an entry at now.
// It is monotone non-decreasing in access frequency and in recency.
func promotionScore(e *Entry, w ScoreWeights, now time.Time) float64 {
	freq := math.Min(e.AccessFrequency(now)/freqSaturation, 1.0)

	idle := now.Sub(e.LastAccess)
	if idle < 0 {
		idle = 0
	}
	recency := math.Max(0, 1.0-idle.Seconds()/recencyWindow.Seconds())

	cost := math.Min(float64(e.ComputationCost.Milliseconds())/costSaturationMS, 1.0)

	size := 1.0
	if stored := e.StoredBytes(); stored > sizeReference {
		// log-scaled so a 1MiB entry still retains some score
		size = 1.0 / (1.0 + math.Log2(float64(stored)/float64(sizeReference)))
	}

	total := w.Frequency + w.Recency + w.Cost + w.Size
	if total <= 0 {
		return 0
	}
	return (w.Frequency*freq + w.Recency*recency + w.Cost*cost + w.Size*size) / total
}
