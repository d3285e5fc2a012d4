package coord

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind identifies the kind of workforce event produced by the
// business-simulation layer.
type EventKind string

const (
	EventHire              EventKind = "hire"
	EventTermination       EventKind = "termination"
	EventPromotion         EventKind = "promotion"
	EventMeritIncrease     EventKind = "merit_increase"
	EventCOLAAdjustment    EventKind = "cola_adjustment"
	EventBenefitEnrollment EventKind = "benefit_enrollment"
)

// WorkforceMetrics is a point-in-time snapshot of the simulated workforce
// for one year. It is supplied by the external simulation layer; this core
// never computes it.
type WorkforceMetrics struct {
	SimulationYear      int             `yaml:"simulation_year" json:"simulation_year"`
	ActiveHeadcount     int             `yaml:"active_headcount" json:"active_headcount"`
	TotalCompensation   decimal.Decimal `yaml:"total_compensation" json:"total_compensation"`
	AverageCompensation decimal.Decimal `yaml:"average_compensation" json:"average_compensation"`
	SnapshotDate        time.Time       `yaml:"snapshot_date" json:"snapshot_date"`
}

// SimulationEvent is a single workforce event within a source year.
// Compensation fields are fixed-point decimals because attributed amounts
// must reconcile to the originating totals at 6 fractional digits.
type SimulationEvent struct {
	EmployeeID           string          `yaml:"employee_id" json:"employee_id"`
	EffectiveDate        time.Time       `yaml:"effective_date" json:"effective_date"`
	Kind                 EventKind       `yaml:"kind" json:"kind"`
	CompensationAmount   decimal.Decimal `yaml:"compensation_amount" json:"compensation_amount"`
	PreviousCompensation decimal.Decimal `yaml:"previous_compensation" json:"previous_compensation"`
}

// CostImpact returns the cost change this event introduces into the books:
// the full compensation for hires and baselines, the delta for merit, COLA
// and promotion changes, and a negative amount for terminations.
func (e SimulationEvent) CostImpact() decimal.Decimal {
	switch e.Kind {
	case EventHire, EventBenefitEnrollment:
		return e.CompensationAmount
	case EventTermination:
		return e.CompensationAmount.Neg()
	case EventPromotion, EventMeritIncrease, EventCOLAAdjustment:
		return e.CompensationAmount.Sub(e.PreviousCompensation)
	default:
		return decimal.Zero
	}
}
