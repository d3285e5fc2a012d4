// Package cache implements the three-tier cache for expensive simulation
// intermediates: a fast uncompressed tier, a zstd-compressed tier, and an
// abstracted persistent tier, with score-driven promotion and demotion.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EntryType tags what kind of simulation artifact an entry holds. The tag
// selects the serialization codec and feeds into placement decisions.
type EntryType string

const (
	EntryWorkforceState          EntryType = "workforce_state"
	EntryAggregatedMetric        EntryType = "aggregated_metric"
	EntryComputationResult       EntryType = "computation_result"
	EntryIntermediateCalculation EntryType = "intermediate_calculation"
	EntryEventSummary            EntryType = "event_summary"
)

// Tier identifies one level of the cache hierarchy. Lower values are
// faster; promotion moves an entry toward TierFast.
type Tier int

const (
	TierFast Tier = iota // uncompressed, in-memory
	TierCompressed       // zstd-compressed, in-memory
	TierPersistent       // abstracted persistent store
)

func (t Tier) String() string {
	switch t {
	case TierFast:
		return "fast"
	case TierCompressed:
		return "compressed"
	case TierPersistent:
		return "persistent"
	default:
		return "unknown"
	}
}

// Entry is the unit of cached state plus its access and promotion metadata.
// Entries are treated as immutable after publication: access-metadata
// updates go through withAccess, which returns a clone the manager swaps in
// under the tier lock.
type Entry struct {
	Key         string
	ContentHash string // sha256 hex of the uncompressed payload; change detection, not security
	Type        EntryType

	Data             []byte // serialized payload; compressed iff Compressed
	UncompressedSize int64
	CompressedSize   int64

	Tier Tier // the single tier currently holding this entry

	CreatedAt   time.Time
	LastAccess  time.Time
	AccessCount int64

	// ComputationCost is how long the payload took to produce. Expensive
	// entries are worth promoting to avoid recomputation.
	ComputationCost time.Duration

	ExpiresAt time.Time // zero = no expiry

	DependsOn   map[string]struct{} // keys this entry was derived from
	Invalidates map[string]struct{} // keys this entry invalidates when written

	Compressed        bool
	CompressionFailed bool // compression was attempted and fell back to raw
}

// AccessFrequency returns accesses per hour since creation. Entries younger
// than one minute are annualized against a one-minute floor so a burst of
// early hits does not produce an unbounded score.
func (e *Entry) AccessFrequency(now time.Time) float64 {
	age := now.Sub(e.CreatedAt)
	if age < time.Minute {
		age = time.Minute
	}
	return float64(e.AccessCount) / age.Hours()
}

// Expired reports whether the entry's TTL has lapsed.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// StoredBytes is the size the entry occupies in its current tier.
func (e *Entry) StoredBytes() int64 {
	if e.Compressed {
		return e.CompressedSize
	}
	return e.UncompressedSize
}

// withAccess returns a clone with access metadata advanced to now.
// The original is never mutated; callers replace the stored pointer.
func (e *Entry) withAccess(now time.Time) *Entry {
	clone := *e
	clone.LastAccess = now
	clone.AccessCount = e.AccessCount + 1
	return &clone
}

// withTier returns a clone placed in the given tier.
func (e *Entry) withTier(t Tier) *Entry {
	clone := *e
	clone.Tier = t
	return &clone
}

// hashPayload returns the sha256 hex digest of the serialized payload.
func hashPayload(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
