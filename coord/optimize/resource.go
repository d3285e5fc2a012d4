package optimize

import (
	"github.com/sirupsen/logrus"

	"github.com/workforce-sim/workforce-sim/coord/profile"
)

// MemoryStrategy is the recommended way to hold simulation state.
type MemoryStrategy string

const (
	MemoryInMemory  MemoryStrategy = "in_memory"
	MemoryStreaming MemoryStrategy = "streaming"
)

// SimulationParams sizes a planned simulation run.
type SimulationParams struct {
	Employees              int
	Years                  int
	EventsPerEmployeeYear  float64 // defaults to 8 when zero
	BytesPerEmployeeRecord int64   // defaults to 2KiB when zero
}

// Recommendation is advisory only; the resource optimizer never executes
// the simulation.
type Recommendation struct {
	Memory                MemoryStrategy
	ProjectedWorkingSetMB float64
	AvailableMemoryMB     float64
	Workers               int

	CheckpointEveryYears int
	CompressCheckpoints  bool
	ProjectedEvents      int64
}

// ResourceOptimizer recommends memory and I/O strategy for a simulation of
// a given size, based on the host resource probe.
type ResourceOptimizer struct {
	probe profile.ResourceProbe
}

// NewResourceOptimizer builds a resource optimizer; a nil probe uses the
// gopsutil-backed host probe.
func NewResourceOptimizer(probe profile.ResourceProbe) *ResourceOptimizer {
	if probe == nil {
		probe = profile.HostProbe{}
	}
	return &ResourceOptimizer{probe: probe}
}

// inMemoryHeadroom caps how much of available memory the in-memory
// strategy may plan to use.
const inMemoryHeadroom = 0.6

// Recommend projects the working set and event volume and picks a memory
// strategy and checkpoint policy for them.
func (r *ResourceOptimizer) Recommend(params SimulationParams) Recommendation {
	perRecord := params.BytesPerEmployeeRecord
	if perRecord <= 0 {
		perRecord = 2 << 10
	}
	eventsRate := params.EventsPerEmployeeYear
	if eventsRate <= 0 {
		eventsRate = 8
	}

	workingSetMB := float64(int64(params.Employees)*int64(params.Years)*perRecord) / (1 << 20)
	projectedEvents := int64(float64(params.Employees) * float64(params.Years) * eventsRate)

	_, availableMB, err := r.probe.MemoryMB()
	if err != nil {
		logrus.Warnf("optimize: memory probe failed, assuming streaming: %v", err)
		availableMB = 0
	}

	rec := Recommendation{
		ProjectedWorkingSetMB: workingSetMB,
		AvailableMemoryMB:     availableMB,
		ProjectedEvents:       projectedEvents,
		Memory:                MemoryStreaming,
	}
	if availableMB > 0 && workingSetMB <= availableMB*inMemoryHeadroom {
		rec.Memory = MemoryInMemory
	}

	workers := r.probe.CPUCount()
	if params.Years > 0 && params.Years < workers {
		workers = params.Years
	}
	if workers < 1 {
		workers = 1
	}
	rec.Workers = workers

	// checkpoint cadence: small runs checkpoint rarely, large runs every
	// year with compression to bound replay cost
	switch {
	case projectedEvents >= 5_000_000:
		rec.CheckpointEveryYears = 1
		rec.CompressCheckpoints = true
	case projectedEvents >= 500_000:
		rec.CheckpointEveryYears = 2
		rec.CompressCheckpoints = true
	default:
		rec.CheckpointEveryYears = 5
	}
	if rec.Memory == MemoryStreaming {
		rec.CompressCheckpoints = true
		if rec.CheckpointEveryYears > 2 {
			rec.CheckpointEveryYears = 2
		}
	}
	return rec
}
