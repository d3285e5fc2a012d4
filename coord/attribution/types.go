// Package attribution allocates a source year's cost impact onto later
// simulation years, producing immutable audit records that must reconcile
// exactly with the originating totals.
package attribution

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/workforce-sim/workforce-sim/coord"
)

// AttributionType classifies what kind of cost an entry books.
type AttributionType string

const (
	CompensationBaseline AttributionType = "compensation_baseline"
	MeritIncrease        AttributionType = "merit_increase"
	PromotionIncrease    AttributionType = "promotion_increase"
	COLAAdjustment       AttributionType = "cola_adjustment"
	BenefitEnrollment    AttributionType = "benefit_enrollment"
	TerminationSavings   AttributionType = "termination_savings"
)

// attributionTypeFor maps a workforce event kind to the attribution type
// its cost impact is booked under.
func attributionTypeFor(kind coord.EventKind) AttributionType {
	switch kind {
	case coord.EventHire:
		return CompensationBaseline
	case coord.EventMeritIncrease:
		return MeritIncrease
	case coord.EventPromotion:
		return PromotionIncrease
	case coord.EventCOLAAdjustment:
		return COLAAdjustment
	case coord.EventBenefitEnrollment:
		return BenefitEnrollment
	case coord.EventTermination:
		return TerminationSavings
	default:
		return CompensationBaseline
	}
}

// AmountScale is the fixed-point precision of attributed amounts.
const AmountScale = 6

// Entry is one immutable attribution record. The ID is fresh per call and
// never derived from business data; the Amount is a pure function of the
// allocation context.
type Entry struct {
	ID         string
	SourceYear int
	TargetYear int
	Type       AttributionType
	Amount     decimal.Decimal // fixed-point, AmountScale fractional digits
	Strategy   string
	CrossYear  bool
	Audit      map[string]string
	CreatedAt  time.Time
}

// Issue is one integrity-validation finding.
type Issue struct {
	Kind    string // "reconciliation_gap", "missing_audit_field", "duplicate_id"
	Detail  string
	Type    AttributionType
	YearKey int
}

// Context bundles everything one attribution run needs.
type Context struct {
	SourceYear    int
	TargetYears   []int // ordered; empty means no-op
	SourceMetrics coord.WorkforceMetrics
	TargetMetrics map[int]coord.WorkforceMetrics
	Events        []coord.SimulationEvent
}
