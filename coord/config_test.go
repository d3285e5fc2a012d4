package coord

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_CarriesPolicyDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1000, cfg.Cache.Fast.MaxEntries)
	assert.Equal(t, "adaptive", cfg.Cache.Fast.EvictionPolicy)
	assert.Equal(t, 0.7, cfg.Cache.PromotionThreshold)
	assert.Equal(t, 0.2, cfg.Cache.DemotionThreshold)

	assert.Equal(t, 120, cfg.Profiler.HistorySize)
	assert.Equal(t, 80.0, cfg.Profiler.CPUThresholdPct)

	assert.Equal(t, 65.0, cfg.Optimizer.TargetReductionPct)
	assert.InDelta(t, 1.0, cfg.Optimizer.TimeWeight+cfg.Optimizer.MemoryWeight+cfg.Optimizer.CacheWeight, 1e-9)
	assert.Equal(t, 2*time.Minute, cfg.Optimizer.MeasureTimeout)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordination.yaml")
	doc := `
cache:
  fast:
    max_entries: 64
    eviction_policy: lru
  promotion_threshold: 0.8
optimizer:
  target_reduction_pct: 50
  worker_pool_size: 4
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// overridden fields
	assert.Equal(t, 64, cfg.Cache.Fast.MaxEntries)
	assert.Equal(t, "lru", cfg.Cache.Fast.EvictionPolicy)
	assert.Equal(t, 0.8, cfg.Cache.PromotionThreshold)
	assert.Equal(t, 50.0, cfg.Optimizer.TargetReductionPct)
	assert.Equal(t, 4, cfg.Optimizer.WorkerPoolSize)

	// untouched fields keep their defaults
	assert.Equal(t, 5000, cfg.Cache.Compressed.MaxEntries)
	assert.Equal(t, 0.2, cfg.Cache.DemotionThreshold)
	assert.Equal(t, 120, cfg.Profiler.HistorySize)
}

func TestLoadConfig_MissingFile_Fails(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_MalformedYAML_Fails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache: [not a mapping"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
