package attribution

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/workforce-sim/workforce-sim/coord/cache"
)

// ErrNilStrategy is returned when an attributor is built without an
// allocation strategy.
var ErrNilStrategy = errors.New("attribution: nil allocation strategy")

// reconcileTolerance is the maximum absolute gap allowed between attributed
// sums and originating totals (6 fractional digits).
var reconcileTolerance = decimal.New(1, -AmountScale)

// requiredAuditFields must be present on every attribution entry for the
// record to be audit-complete.
var requiredAuditFields = []string{"employee_id", "event_kind", "effective_date"}

// sourceKey identifies one reconciliation partition.
type sourceKey struct {
	SourceYear int
	Type       AttributionType
}

// Attributor owns the attribution ledger: every produced entry plus the
// originating totals they must reconcile against. Safe for concurrent use.
type Attributor struct {
	strategy Strategy

	mu       sync.RWMutex
	entries  []*Entry
	expected map[sourceKey]decimal.Decimal

	// memo is optional; when present, per-context cost aggregation is
	// cached under EntryIntermediateCalculation.
	memo *cache.Manager

	now func() time.Time
}

// AttributorOption customizes construction.
type AttributorOption func(*Attributor)

// WithMemoCache lets the attributor memoize expensive allocation inputs
// through the tiered cache.
func WithMemoCache(m *cache.Manager) AttributorOption {
	return func(a *Attributor) { a.memo = m }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) AttributorOption {
	return func(a *Attributor) { a.now = now }
}

// NewAttributor builds an attributor using the given allocation strategy.
func NewAttributor(strategy Strategy, opts ...AttributorOption) (*Attributor, error) {
	if strategy == nil {
		return nil, ErrNilStrategy
	}
	a := &Attributor{
		strategy: strategy,
		expected: make(map[sourceKey]decimal.Decimal),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// AttributeCosts allocates every source-year event's cost impact onto the
// context's target years. Identifiers are fresh per call; amounts are a
// pure function of the context. An empty target set or event set is a
// no-op returning an empty slice.
func (a *Attributor) AttributeCosts(ctx Context) ([]*Entry, error) {
	if len(ctx.TargetYears) == 0 || len(ctx.Events) == 0 {
		return []*Entry{}, nil
	}

	a.recordExpectedTotals(ctx)

	created := make([]*Entry, 0, len(ctx.Events)*len(ctx.TargetYears))
	now := a.now()
	for _, ev := range ctx.Events {
		impact := ev.CostImpact().Round(AmountScale)
		if impact.IsZero() {
			continue
		}
		typ := attributionTypeFor(ev.Kind)
		shares := a.strategy.Allocate(impact, ev.EffectiveDate, ctx)

		for _, year := range ctx.TargetYears {
			amount, ok := shares[year]
			if !ok {
				continue
			}
			entry := &Entry{
				ID:         uuid.NewString(),
				SourceYear: ctx.SourceYear,
				TargetYear: year,
				Type:       typ,
				Amount:     amount,
				Strategy:   a.strategy.Name(),
				CrossYear:  year != ctx.SourceYear,
				CreatedAt:  now,
				Audit: map[string]string{
					"employee_id":    ev.EmployeeID,
					"event_kind":     string(ev.Kind),
					"effective_date": ev.EffectiveDate.Format(time.RFC3339),
					"source_total":   impact.String(),
				},
			}
			created = append(created, entry)
		}
	}

	a.mu.Lock()
	a.entries = append(a.entries, created...)
	a.mu.Unlock()

	logrus.Debugf("attribution: %d entries for source year %d across %d target years",
		len(created), ctx.SourceYear, len(ctx.TargetYears))
	return created, nil
}

// recordExpectedTotals books the originating totals the ledger must later
// reconcile against. Aggregation per context is memoized through the cache
// when one is attached.
func (a *Attributor) recordExpectedTotals(ctx Context) {
	totals := a.aggregateImpacts(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	for typ, total := range totals {
		key := sourceKey{SourceYear: ctx.SourceYear, Type: typ}
		a.expected[key] = a.expected[key].Add(total)
	}
}

// aggregateImpacts sums event cost impacts per attribution type.
func (a *Attributor) aggregateImpacts(ctx Context) map[AttributionType]decimal.Decimal {
	if a.memo != nil {
		if cached, ok := a.memo.Get(contextFingerprint(ctx), cache.EntryIntermediateCalculation); ok {
			if decoded, ok := decodeImpactTotals(cached); ok {
				return decoded
			}
		}
	}

	start := a.now()
	totals := make(map[AttributionType]decimal.Decimal)
	for _, ev := range ctx.Events {
		impact := ev.CostImpact().Round(AmountScale)
		if impact.IsZero() {
			continue
		}
		typ := attributionTypeFor(ev.Kind)
		totals[typ] = totals[typ].Add(impact)
	}

	if a.memo != nil {
		encoded := make(map[string]string, len(totals))
		for typ, total := range totals {
			encoded[string(typ)] = total.String()
		}
		a.memo.Put(contextFingerprint(ctx), encoded, cache.EntryIntermediateCalculation, a.now().Sub(start))
	}
	return totals
}

// decodeImpactTotals rebuilds type totals from a cached JSON payload.
func decodeImpactTotals(payload any) (map[AttributionType]decimal.Decimal, bool) {
	raw, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[AttributionType]decimal.Decimal, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, false
		}
		out[AttributionType(k)] = d
	}
	return out, true
}

// contextFingerprint derives a stable cache key from the allocation
// context's identifying inputs.
func contextFingerprint(ctx Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|", ctx.SourceYear)
	for _, y := range ctx.TargetYears {
		fmt.Fprintf(&b, "%d,", y)
	}
	for _, ev := range ctx.Events {
		fmt.Fprintf(&b, "%s|%s|%s|%s|%s;",
			ev.EmployeeID, ev.Kind, ev.EffectiveDate.Format(time.RFC3339),
			ev.CompensationAmount.String(), ev.PreviousCompensation.String())
	}
	sum := sha256.Sum256([]byte(b.String()))
	return "attr_ctx_" + hex.EncodeToString(sum[:16])
}

// ValidateIntegrity re-sums the ledger and reports every reconciliation
// gap, missing audit field, and duplicate identifier. It returns true only
// when the ledger is clean.
func (a *Attributor) ValidateIntegrity() (bool, []Issue) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var issues []Issue

	sums := make(map[sourceKey]decimal.Decimal)
	seen := make(map[string]struct{}, len(a.entries))
	for _, e := range a.entries {
		key := sourceKey{SourceYear: e.SourceYear, Type: e.Type}
		sums[key] = sums[key].Add(e.Amount)

		if _, dup := seen[e.ID]; dup {
			issues = append(issues, Issue{
				Kind:   "duplicate_id",
				Detail: fmt.Sprintf("identifier %s appears more than once", e.ID),
				Type:   e.Type,
			})
		}
		seen[e.ID] = struct{}{}

		for _, field := range requiredAuditFields {
			if e.Audit[field] == "" {
				issues = append(issues, Issue{
					Kind:    "missing_audit_field",
					Detail:  fmt.Sprintf("entry %s missing audit field %q", e.ID, field),
					Type:    e.Type,
					YearKey: e.TargetYear,
				})
			}
		}
	}

	keys := make([]sourceKey, 0, len(a.expected))
	for k := range a.expected {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SourceYear != keys[j].SourceYear {
			return keys[i].SourceYear < keys[j].SourceYear
		}
		return keys[i].Type < keys[j].Type
	})
	for _, k := range keys {
		gap := sums[k].Sub(a.expected[k]).Abs()
		if gap.GreaterThan(reconcileTolerance) {
			issues = append(issues, Issue{
				Kind: "reconciliation_gap",
				Detail: fmt.Sprintf("source year %d %s: attributed %s vs expected %s (gap %s)",
					k.SourceYear, k.Type, sums[k], a.expected[k], gap),
				Type:    k.Type,
				YearKey: k.SourceYear,
			})
		}
	}

	return len(issues) == 0, issues
}

// SummaryByTargetYear sums attributed amounts landing in the given year,
// per attribution type.
func (a *Attributor) SummaryByTargetYear(year int) map[AttributionType]decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[AttributionType]decimal.Decimal)
	for _, e := range a.entries {
		if e.TargetYear == year {
			out[e.Type] = out[e.Type].Add(e.Amount)
		}
	}
	return out
}

// TotalAttributed sums every ledger amount booked under the given type.
func (a *Attributor) TotalAttributed(typ AttributionType) decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	total := decimal.Zero
	for _, e := range a.entries {
		if e.Type == typ {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// Entries returns a copy of the ledger.
func (a *Attributor) Entries() []*Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Entry, len(a.entries))
	copy(out, a.entries)
	return out
}
