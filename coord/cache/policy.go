package cache

import "time"

// EvictionPolicy selects the victim when a tier is at capacity.
type EvictionPolicy string

const (
	EvictAdaptive EvictionPolicy = "adaptive" // lowest promotion score
	EvictLRU      EvictionPolicy = "lru"      // least recently used
	EvictLFU      EvictionPolicy = "lfu"      // least frequently used
)

// ParseEvictionPolicy maps a config string to a policy, defaulting to
// adaptive for empty or unrecognized values.
func ParseEvictionPolicy(s string) EvictionPolicy {
	switch EvictionPolicy(s) {
	case EvictLRU:
		return EvictLRU
	case EvictLFU:
		return EvictLFU
	default:
		return EvictAdaptive
	}
}

// selectVictim returns the key of the entry the policy would evict from
// entries, or "" when the map is empty. Called under the tier lock.
func selectVictim(entries map[string]*Entry, policy EvictionPolicy, weights ScoreWeights, now time.Time) string {
	var victim string
	switch policy {
	case EvictLRU:
		var oldest time.Time
		for k, e := range entries {
			if victim == "" || e.LastAccess.Before(oldest) {
				victim, oldest = k, e.LastAccess
			}
		}
	case EvictLFU:
		var fewest int64
		for k, e := range entries {
			if victim == "" || e.AccessCount < fewest {
				victim, fewest = k, e.AccessCount
			}
		}
	default: // EvictAdaptive
		lowest := 0.0
		for k, e := range entries {
			score := promotionScore(e, weights, now)
			if victim == "" || score < lowest {
				victim, lowest = k, score
			}
		}
	}
	return victim
}
