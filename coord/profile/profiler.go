package profile

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/sirupsen/logrus"

	"github.com/workforce-sim/workforce-sim/coord"
)

// Sample is one resource observation.
type Sample struct {
	Taken        time.Time
	HeapAllocMB  float64
	CPUPercent   float64
	CacheHitRate float64
	Phase        string
}

// ResourceProbe reads host resource state. The gopsutil-backed default is
// replaced in tests with a scripted probe.
type ResourceProbe interface {
	MemoryMB() (totalMB, availableMB float64, err error)
	CPUPercent() (float64, error)
	CPUCount() int
}

// HostProbe reads from the running host via gopsutil.
type HostProbe struct{}

func (HostProbe) MemoryMB() (float64, float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	const mb = 1 << 20
	return float64(vm.Total) / mb, float64(vm.Available) / mb, nil
}

func (HostProbe) CPUPercent() (float64, error) {
	// non-blocking sample against the previous call's counters
	pcts, err := cpu.Percent(0, false)
	if err != nil || len(pcts) == 0 {
		return 0, err
	}
	return pcts[0], nil
}

func (HostProbe) CPUCount() int { return runtime.NumCPU() }

// Profiler samples resource usage during named phases and keeps a bounded
// rolling history for bottleneck analysis.
type Profiler struct {
	cfg        coord.ProfilerConfig
	probe      ResourceProbe
	weights    ScoreWeights
	thresholds Thresholds

	mu           sync.Mutex
	phases       map[string]time.Duration
	throughput   map[string]float64
	history      []Sample
	peakMemoryMB float64
	cacheHitRate float64
	dbQueries    int64
	baseline     *PerformanceMetrics

	stopCh chan struct{}
	doneCh chan struct{}

	now func() time.Time
}

// ProfilerOption customizes construction.
type ProfilerOption func(*Profiler)

// WithProbe replaces the host resource probe.
func WithProbe(p ResourceProbe) ProfilerOption {
	return func(pr *Profiler) { pr.probe = p }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) ProfilerOption {
	return func(pr *Profiler) { pr.now = now }
}

// NewProfiler builds a profiler from the coordination profiler config.
func NewProfiler(cfg coord.ProfilerConfig, opts ...ProfilerOption) *Profiler {
	p := &Profiler{
		cfg:        cfg,
		probe:      HostProbe{},
		weights:    DefaultScoreWeights(),
		thresholds: DefaultThresholds(cfg),
		phases:     make(map[string]time.Duration),
		throughput: make(map[string]float64),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Profile starts timing a named phase and returns the release function;
// call it (usually via defer) to record the phase's duration and a
// resource snapshot.
func (p *Profiler) Profile(phase string) func() {
	start := p.now()
	return func() {
		elapsed := p.now().Sub(start)
		sample := p.takeSample(phase)

		p.mu.Lock()
		p.phases[phase] += elapsed
		p.recordSampleLocked(sample)
		p.mu.Unlock()

		logrus.Debugf("profile: phase %q took %s", phase, elapsed)
	}
}

// StartContinuousMonitoring launches background sampling at the configured
// interval. A second call while running is a no-op.
func (p *Profiler) StartContinuousMonitoring() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != nil {
		return
	}
	interval := p.cfg.SampleInterval
	if interval <= 0 {
		interval = time.Second
	}
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.monitor(interval, p.stopCh, p.doneCh)
}

// StopContinuousMonitoring halts background sampling and waits for the
// sampler to exit.
func (p *Profiler) StopContinuousMonitoring() {
	p.mu.Lock()
	stop, done := p.stopCh, p.doneCh
	p.stopCh, p.doneCh = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (p *Profiler) monitor(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sample := p.takeSample("continuous")
			p.mu.Lock()
			p.recordSampleLocked(sample)
			p.mu.Unlock()
		}
	}
}

// takeSample reads heap, CPU, and cache state without holding the lock.
func (p *Profiler) takeSample(phase string) Sample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	heapMB := float64(ms.HeapAlloc) / (1 << 20)

	cpuPct, err := p.probe.CPUPercent()
	if err != nil {
		logrus.Debugf("profile: cpu probe failed: %v", err)
	}

	p.mu.Lock()
	hitRate := p.cacheHitRate
	p.mu.Unlock()

	return Sample{
		Taken:        p.now(),
		HeapAllocMB:  heapMB,
		CPUPercent:   cpuPct,
		CacheHitRate: hitRate,
		Phase:        phase,
	}
}

func (p *Profiler) recordSampleLocked(s Sample) {
	if s.HeapAllocMB > p.peakMemoryMB {
		p.peakMemoryMB = s.HeapAllocMB
	}
	p.history = append(p.history, s)
	limit := p.cfg.HistorySize
	if limit <= 0 {
		limit = 120
	}
	if len(p.history) > limit {
		p.history = p.history[len(p.history)-limit:]
	}
}

// RecordThroughput books items processed for one operation type.
func (p *Profiler) RecordThroughput(operation string, items int, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.throughput[operation] = float64(items) / elapsed.Seconds()
}

// RecordCacheHitRate stores the latest cache hit rate observation.
func (p *Profiler) RecordCacheHitRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cacheHitRate = rate
}

// RecordDatabaseQueries adds to the query counter.
func (p *Profiler) RecordDatabaseQueries(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dbQueries += n
}

// SetBaseline stores the measurement later CurrentMetrics calls derive
// overhead reduction from.
func (p *Profiler) SetBaseline(m PerformanceMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseline = &m
}

// ResetWindow clears phase timings, throughput, and the peak-memory mark
// while keeping the baseline and history.
func (p *Profiler) ResetWindow() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases = make(map[string]time.Duration)
	p.throughput = make(map[string]float64)
	p.peakMemoryMB = 0
	p.dbQueries = 0
}

// History returns a copy of the rolling sample window.
func (p *Profiler) History() []Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Sample, len(p.history))
	copy(out, p.history)
	return out
}

// CurrentMetrics snapshots the measurement window, computing the derived
// figures against the stored baseline when one exists.
func (p *Profiler) CurrentMetrics() PerformanceMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := PerformanceMetrics{
		PhaseDurations:  make(map[string]time.Duration, len(p.phases)),
		Throughput:      make(map[string]float64, len(p.throughput)),
		PeakMemoryMB:    p.peakMemoryMB,
		CacheHitRate:    p.cacheHitRate,
		DatabaseQueries: p.dbQueries,
	}
	for k, v := range p.phases {
		m.PhaseDurations[k] = v
	}
	for k, v := range p.throughput {
		m.Throughput[k] = v
	}
	if n := len(p.history); n > 0 {
		m.CPUPercent = p.history[n-1].CPUPercent
	}
	m.EfficiencyScore = efficiencyScore(m, p.weights)
	if p.baseline != nil {
		m.OverheadReductionPct = OverheadReduction(*p.baseline, m, p.weights)
	}
	return m
}
