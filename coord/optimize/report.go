package optimize

import (
	"fmt"
	"strings"
	"time"

	"github.com/workforce-sim/workforce-sim/coord/profile"
)

// Grade is the letter grade assigned to an optimization run.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// gradeFor maps overhead-reduction percent to a letter grade. The ladder is
// fixed; only the target percent is configurable.
func gradeFor(reductionPct float64) Grade {
	switch {
	case reductionPct >= 65:
		return GradeAPlus
	case reductionPct >= 55:
		return GradeA
	case reductionPct >= 45:
		return GradeB
	case reductionPct >= 35:
		return GradeC
	case reductionPct >= 25:
		return GradeD
	default:
		return GradeF
	}
}

// Report is the structured result of one optimization run. The caller
// serializes it; this core only builds it.
type Report struct {
	Strategy           string
	SimulationYears    int
	TargetReductionPct float64
	ActualReductionPct float64
	TargetAchieved     bool
	PerformanceGrade   Grade

	Baseline profile.PerformanceMetrics
	Final    profile.PerformanceMetrics

	Tasks       []TaskOutcome
	Bottlenecks []profile.BottleneckAnalysis

	StartedAt time.Time
	Duration  time.Duration
}

// Summary renders a compact human-readable report, one line per section.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Coordination Optimization Report ===\n")
	fmt.Fprintf(&b, "Strategy             : %s\n", r.Strategy)
	fmt.Fprintf(&b, "Simulation years     : %d\n", r.SimulationYears)
	fmt.Fprintf(&b, "Overhead reduction   : %.1f%% (target %.1f%%)\n", r.ActualReductionPct, r.TargetReductionPct)
	fmt.Fprintf(&b, "Target achieved      : %v\n", r.TargetAchieved)
	fmt.Fprintf(&b, "Grade                : %s\n", r.PerformanceGrade)
	fmt.Fprintf(&b, "Run duration         : %s\n", r.Duration)
	for _, t := range r.Tasks {
		status := "ok"
		if !t.Succeeded {
			status = "failed: " + t.Error
		}
		fmt.Fprintf(&b, "  task %-32s est %.0f%% took %-12s %s\n", t.Name, t.EstimatedImpact, t.Duration, status)
	}
	for _, f := range r.Bottlenecks {
		fmt.Fprintf(&b, "  bottleneck %-20s severity %.2f: %s\n", f.Kind, f.Severity, f.RecommendedAction)
	}
	return b.String()
}
