// Package optimize drives coordination optimization: it measures a
// baseline, applies prioritized optimization tasks, re-measures, and grades
// the achieved overhead reduction. It also houses the advisory resource
// optimizer.
package optimize

import (
	"sort"
	"time"
)

// Task is a named, prioritized unit of optimization work. Apply performs
// the optimization; Rollback, when set, can undo it after a failed run.
type Task struct {
	Name            string
	Priority        int     // lower runs first
	EstimatedImpact float64 // percent
	Complexity      int     // implementation-complexity rank, 1 = trivial
	Apply           func() error
	Rollback        func() error

	// execution bookkeeping, filled in by the optimizer
	StartedAt time.Time
	Duration  time.Duration
	Succeeded bool
	Err       error
}

// byPriority orders tasks for strictly sequential application.
func byPriority(tasks []*Task) []*Task {
	out := make([]*Task, len(tasks))
	copy(out, tasks)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TaskOutcome is the reportable result of one applied task.
type TaskOutcome struct {
	Name            string
	EstimatedImpact float64
	Duration        time.Duration
	Succeeded       bool
	Error           string
}
