package optimize

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/workforce-sim/workforce-sim/coord"
	"github.com/workforce-sim/workforce-sim/coord/attribution"
	"github.com/workforce-sim/workforce-sim/coord/cache"
	"github.com/workforce-sim/workforce-sim/coord/profile"
)

// MeasureEnv hands the measurement workload its collaborators plus the
// tuning knobs the optimization tasks adjust.
type MeasureEnv struct {
	Cache       *cache.Manager
	Profiler    *profile.Profiler
	Workers     int
	DBBatchSize int
}

// WorkloadFunc is one simulation year's worth of coordination work,
// executed on the measurement pool. It must honor ctx cancellation.
type WorkloadFunc func(ctx context.Context, year int, env *MeasureEnv) error

// eventsPerYear sizes the synthetic measurement workload.
const eventsPerYear = 250

// measure runs the per-year workload across the bounded pool and snapshots
// the profiler. A pool join past the timeout fails the measurement; partial
// results are discarded, never reported.
func (o *Optimizer) measure(simulationYears int) (profile.PerformanceMetrics, error) {
	o.profiler.ResetWindow()
	tune := o.currentTuning()

	timeout := o.cfg.MeasureTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	env := &MeasureEnv{
		Cache:       o.cache,
		Profiler:    o.profiler,
		Workers:     tune.workers,
		DBBatchSize: tune.dbBatchSize,
	}

	stop := o.profiler.Profile("coordination_measurement")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tune.workers)
	baseYear := time.Now().Year()
	for i := 0; i < simulationYears; i++ {
		year := baseYear + i
		g.Go(func() error {
			return o.workload(gctx, year, env)
		})
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- g.Wait() }()
	select {
	case err := <-waitErr:
		if err != nil {
			if ctx.Err() != nil {
				return profile.PerformanceMetrics{}, ErrMeasurementTimeout
			}
			return profile.PerformanceMetrics{}, err
		}
	case <-ctx.Done():
		return profile.PerformanceMetrics{}, ErrMeasurementTimeout
	}

	stop()
	o.profiler.RecordCacheHitRate(o.cache.Stats().HitRate())
	return o.profiler.CurrentMetrics(), nil
}

// defaultWorkload is the synthetic per-year coordination workload: event
// aggregation, cross-year attribution, cache traffic, and batched database
// bookkeeping. Deterministic so baseline and re-measurement runs do the
// same logical work.
func defaultWorkload(ctx context.Context, year int, env *MeasureEnv) error {
	start := time.Now()
	events := syntheticEvents(year, eventsPerYear)
	if err := ctx.Err(); err != nil {
		return err
	}

	attr, err := attribution.NewAttributor(attribution.ProRataTemporal{}, attribution.WithMemoCache(env.Cache))
	if err != nil {
		return err
	}
	actx := attribution.Context{
		SourceYear:  year,
		TargetYears: []int{year + 1, year + 2},
		SourceMetrics: coord.WorkforceMetrics{
			SimulationYear:  year,
			ActiveHeadcount: eventsPerYear,
			SnapshotDate:    time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		Events: events,
	}
	entries, err := attr.AttributeCosts(actx)
	if err != nil {
		return fmt.Errorf("year %d attribution: %w", year, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// cache the per-year summary and read it back, generating the traffic
	// placement optimization acts on
	summaryKey := fmt.Sprintf("year_summary_%d", year)
	summary := map[string]any{"year": year, "attributions": len(entries)}
	env.Cache.Put(summaryKey, summary, cache.EntryAggregatedMetric, time.Since(start))
	for i := 0; i < 4; i++ {
		env.Cache.Get(summaryKey, cache.EntryAggregatedMetric)
	}

	// batched database bookkeeping: one flush per batch
	batch := env.DBBatchSize
	if batch < 1 {
		batch = 1
	}
	queries := int64((len(events) + batch - 1) / batch)
	env.Profiler.RecordDatabaseQueries(queries)
	spinPerQuery(queries)

	env.Profiler.RecordThroughput("event_processing", len(events), time.Since(start))
	return ctx.Err()
}

// spinPerQuery models per-query round-trip cost so batching shows up in
// the measurement.
func spinPerQuery(queries int64) {
	sink := 0.0
	for q := int64(0); q < queries; q++ {
		for i := 0; i < 2000; i++ {
			sink += float64(i%7) * 1.000001
		}
	}
	_ = sink
}

// syntheticEvents builds a deterministic event set for one source year.
func syntheticEvents(year, n int) []coord.SimulationEvent {
	events := make([]coord.SimulationEvent, 0, n)
	kinds := []coord.EventKind{
		coord.EventHire,
		coord.EventMeritIncrease,
		coord.EventPromotion,
		coord.EventCOLAAdjustment,
	}
	for i := 0; i < n; i++ {
		base := decimal.NewFromInt(int64(50000 + (i%40)*1000))
		events = append(events, coord.SimulationEvent{
			EmployeeID:           fmt.Sprintf("E%d_%05d", year, i),
			EffectiveDate:        time.Date(year, time.Month(1+i%12), 1+i%28, 0, 0, 0, 0, time.UTC),
			Kind:                 kinds[i%len(kinds)],
			CompensationAmount:   base.Mul(decimal.NewFromFloat(1.05)),
			PreviousCompensation: base,
		})
	}
	return events
}
