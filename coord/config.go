package coord

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TierConfig groups capacity and eviction settings for one cache tier.
type TierConfig struct {
	MaxEntries     int    `yaml:"max_entries"`      // entry-count capacity (must be > 0)
	MaxBytes       int64  `yaml:"max_bytes"`        // byte budget for stored payloads
	EvictionPolicy string `yaml:"eviction_policy"`  // "adaptive" (default), "lru", "lfu"
	MaxEntryBytes  int64  `yaml:"max_entry_bytes"`  // per-entry budget; 0 = unlimited
}

// CacheConfig groups the three tier configurations plus promotion tuning.
type CacheConfig struct {
	Fast       TierConfig `yaml:"fast"`       // uncompressed in-memory tier
	Compressed TierConfig `yaml:"compressed"` // zstd-compressed in-memory tier
	Persistent TierConfig `yaml:"persistent"` // abstracted persistent tier

	PromotionThreshold float64 `yaml:"promotion_threshold"` // score above which an entry moves up
	DemotionThreshold  float64 `yaml:"demotion_threshold"`  // score below which an entry moves down
}

// ProfilerConfig groups sampling and classification thresholds.
type ProfilerConfig struct {
	SampleInterval    time.Duration `yaml:"sample_interval"`     // continuous monitoring period
	HistorySize       int           `yaml:"history_size"`        // rolling sample window length
	CPUThresholdPct   float64       `yaml:"cpu_threshold_pct"`   // cpu-bound classification threshold
	CacheHitRateFloor float64       `yaml:"cache_hit_rate_floor"` // cache-bound classification floor
}

// OptimizerConfig groups the coordination optimizer's policy knobs.
// The 0.4/0.3/0.3 weights are policy defaults, not invariants.
type OptimizerConfig struct {
	TargetReductionPct float64       `yaml:"target_reduction_pct"` // overhead-reduction goal (default 65)
	TimeWeight         float64       `yaml:"time_weight"`          // weight of time improvement
	MemoryWeight       float64       `yaml:"memory_weight"`        // weight of memory improvement
	CacheWeight        float64       `yaml:"cache_weight"`         // weight of cache hit-rate improvement
	WorkerPoolSize     int           `yaml:"worker_pool_size"`     // bounded measurement pool (0 = NumCPU)
	MeasureTimeout     time.Duration `yaml:"measure_timeout"`      // join timeout for the pool
}

// Config is the top-level coordination configuration.
type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	Profiler  ProfilerConfig  `yaml:"profiler"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			Fast:       TierConfig{MaxEntries: 1000, MaxBytes: 64 << 20, EvictionPolicy: "adaptive", MaxEntryBytes: 256 << 10},
			Compressed: TierConfig{MaxEntries: 5000, MaxBytes: 256 << 20, EvictionPolicy: "lru"},
			Persistent: TierConfig{MaxEntries: 50000, MaxBytes: 1 << 30, EvictionPolicy: "lfu"},

			PromotionThreshold: 0.7,
			DemotionThreshold:  0.2,
		},
		Profiler: ProfilerConfig{
			SampleInterval:    time.Second,
			HistorySize:       120,
			CPUThresholdPct:   80.0,
			CacheHitRateFloor: 0.6,
		},
		Optimizer: OptimizerConfig{
			TargetReductionPct: 65.0,
			TimeWeight:         0.4,
			MemoryWeight:       0.3,
			CacheWeight:        0.3,
			WorkerPoolSize:     0,
			MeasureTimeout:     2 * time.Minute,
		},
	}
}

// LoadConfig reads a YAML coordination config, applying defaults for any
// field left zero-valued in the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read coordination config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse coordination config %s: %w", path, err)
	}
	return cfg, nil
}
