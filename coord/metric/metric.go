// Package metric provides Prometheus instrumentation for the coordination
// core: cache traffic counters and optimizer run gauges, registered under
// the workforce_sim namespace.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/workforce-sim/workforce-sim/coord/cache"
)

// Metrics holds every coordination-core metric.
type Metrics struct {
	CacheHits       *prometheus.CounterVec
	CacheMisses     prometheus.Counter
	CachePromotions *prometheus.CounterVec
	CacheDemotions  *prometheus.CounterVec
	CacheEvictions  *prometheus.CounterVec

	OptimizationRuns     *prometheus.CounterVec
	OverheadReductionPct prometheus.Gauge
}

// NewMetrics creates the coordination metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "workforce_sim",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Cache hits by tier",
			},
			[]string{"tier"},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "workforce_sim",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Cache misses",
			},
		),
		CachePromotions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "workforce_sim",
				Subsystem: "cache",
				Name:      "promotions_total",
				Help:      "Entries promoted to a faster tier",
			},
			[]string{"from", "to"},
		),
		CacheDemotions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "workforce_sim",
				Subsystem: "cache",
				Name:      "demotions_total",
				Help:      "Entries demoted to a slower tier",
			},
			[]string{"from", "to"},
		),
		CacheEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "workforce_sim",
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Entries evicted under capacity pressure, by tier",
			},
			[]string{"tier"},
		),
		OptimizationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "workforce_sim",
				Subsystem: "optimizer",
				Name:      "runs_total",
				Help:      "Optimization runs by outcome",
			},
			[]string{"outcome"},
		),
		OverheadReductionPct: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "workforce_sim",
				Subsystem: "optimizer",
				Name:      "overhead_reduction_percent",
				Help:      "Overhead reduction achieved by the latest optimization run",
			},
		),
	}
}

// Register adds every metric to the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.CacheHits,
		m.CacheMisses,
		m.CachePromotions,
		m.CacheDemotions,
		m.CacheEvictions,
		m.OptimizationRuns,
		m.OverheadReductionPct,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// CacheObserver adapts Metrics to the cache manager's Observer seam.
type CacheObserver struct {
	m *Metrics
}

// NewCacheObserver wraps the metric set for cache traffic.
func NewCacheObserver(m *Metrics) *CacheObserver {
	return &CacheObserver{m: m}
}

func (o *CacheObserver) OnHit(tier cache.Tier) {
	o.m.CacheHits.WithLabelValues(tier.String()).Inc()
}

func (o *CacheObserver) OnMiss() {
	o.m.CacheMisses.Inc()
}

func (o *CacheObserver) OnPromotion(from, to cache.Tier) {
	o.m.CachePromotions.WithLabelValues(from.String(), to.String()).Inc()
}

func (o *CacheObserver) OnDemotion(from, to cache.Tier) {
	o.m.CacheDemotions.WithLabelValues(from.String(), to.String()).Inc()
}

func (o *CacheObserver) OnEviction(tier cache.Tier) {
	o.m.CacheEvictions.WithLabelValues(tier.String()).Inc()
}
