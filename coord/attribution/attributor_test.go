package attribution

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workforce-sim/workforce-sim/coord"
	"github.com/workforce-sim/workforce-sim/coord/cache"
)

func attributionContext() Context {
	jun := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	sep := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)
	return Context{
		SourceYear:  2024,
		TargetYears: []int{2025, 2026},
		SourceMetrics: coord.WorkforceMetrics{
			SimulationYear:  2024,
			ActiveHeadcount: 1000,
		},
		TargetMetrics: map[int]coord.WorkforceMetrics{
			2025: {SimulationYear: 2025, ActiveHeadcount: 1050},
			2026: {SimulationYear: 2026, ActiveHeadcount: 1100},
		},
		Events: []coord.SimulationEvent{
			{
				EmployeeID:         "EMP-0001",
				EffectiveDate:      jun,
				Kind:               coord.EventHire,
				CompensationAmount: decimal.RequireFromString("1500000"),
			},
			{
				EmployeeID:           "EMP-0002",
				EffectiveDate:        sep,
				Kind:                 coord.EventMeritIncrease,
				CompensationAmount:   decimal.RequireFromString("88000"),
				PreviousCompensation: decimal.RequireFromString("80000"),
			},
			{
				EmployeeID:         "EMP-0003",
				EffectiveDate:      sep,
				Kind:               coord.EventTermination,
				CompensationAmount: decimal.RequireFromString("95000"),
			},
		},
	}
}

func TestNewAttributor_NilStrategy_Fails(t *testing.T) {
	_, err := NewAttributor(nil)
	assert.ErrorIs(t, err, ErrNilStrategy)
}

func TestAttributeCosts_EmptyContext_IsNoOp(t *testing.T) {
	a, err := NewAttributor(ProRataTemporal{})
	require.NoError(t, err)

	entries, err := a.AttributeCosts(Context{SourceYear: 2024})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, a.Entries())
}

func TestAttributeCosts_ProducesOneEntryPerEventAndTargetYear(t *testing.T) {
	a, err := NewAttributor(ProRataTemporal{})
	require.NoError(t, err)

	entries, err := a.AttributeCosts(attributionContext())
	require.NoError(t, err)
	// 3 events x 2 target years
	require.Len(t, entries, 6)

	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, 2024, e.SourceYear)
		assert.True(t, e.CrossYear, "targets differ from the source year")
		assert.Equal(t, "pro_rata_temporal", e.Strategy)
		for _, field := range []string{"employee_id", "event_kind", "effective_date", "source_total"} {
			assert.NotEmpty(t, e.Audit[field], "audit field %q", field)
		}
	}
}

func TestAttributeCosts_ZeroImpactEventsAreSkipped(t *testing.T) {
	a, err := NewAttributor(ProRataTemporal{})
	require.NoError(t, err)

	ctx := attributionContext()
	ctx.Events = []coord.SimulationEvent{{
		EmployeeID:           "EMP-0004",
		EffectiveDate:        time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC),
		Kind:                 coord.EventCOLAAdjustment,
		CompensationAmount:   decimal.RequireFromString("70000"),
		PreviousCompensation: decimal.RequireFromString("70000"),
	}}

	entries, err := a.AttributeCosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAttributeCosts_AmountsAreDeterministic_IdentifiersAreNot(t *testing.T) {
	// GIVEN two independent attributors fed the identical context
	first, err := NewAttributor(ProRataTemporal{})
	require.NoError(t, err)
	second, err := NewAttributor(ProRataTemporal{})
	require.NoError(t, err)

	ea, err := first.AttributeCosts(attributionContext())
	require.NoError(t, err)
	eb, err := second.AttributeCosts(attributionContext())
	require.NoError(t, err)
	require.Equal(t, len(ea), len(eb))

	// THEN amounts match position for position while every ID is fresh
	ids := make(map[string]struct{})
	for i := range ea {
		assert.True(t, ea[i].Amount.Equal(eb[i].Amount))
		assert.Equal(t, ea[i].TargetYear, eb[i].TargetYear)
		assert.NotEqual(t, ea[i].ID, eb[i].ID)
		ids[ea[i].ID] = struct{}{}
		ids[eb[i].ID] = struct{}{}
	}
	assert.Len(t, ids, len(ea)+len(eb), "identifiers must be unique")
}

func TestValidateIntegrity_CleanLedger_PassesWithNoIssues(t *testing.T) {
	a, err := NewAttributor(HybridTemporalWorkforce{})
	require.NoError(t, err)
	_, err = a.AttributeCosts(attributionContext())
	require.NoError(t, err)

	ok, issues := a.ValidateIntegrity()
	assert.True(t, ok)
	assert.Empty(t, issues)
}

func TestValidateIntegrity_TamperedAmount_ReportsReconciliationGap(t *testing.T) {
	a, err := NewAttributor(ProRataTemporal{})
	require.NoError(t, err)
	_, err = a.AttributeCosts(attributionContext())
	require.NoError(t, err)

	a.mu.Lock()
	a.entries[0].Amount = a.entries[0].Amount.Add(decimal.RequireFromString("10"))
	a.mu.Unlock()

	ok, issues := a.ValidateIntegrity()
	assert.False(t, ok)
	require.NotEmpty(t, issues)
	assert.Equal(t, "reconciliation_gap", issues[0].Kind)
}

func TestValidateIntegrity_DuplicateID_IsReported(t *testing.T) {
	a, err := NewAttributor(ProRataTemporal{})
	require.NoError(t, err)
	_, err = a.AttributeCosts(attributionContext())
	require.NoError(t, err)

	a.mu.Lock()
	a.entries[1].ID = a.entries[0].ID
	a.mu.Unlock()

	ok, issues := a.ValidateIntegrity()
	assert.False(t, ok)
	found := false
	for _, issue := range issues {
		if issue.Kind == "duplicate_id" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateIntegrity_MissingAuditField_IsReported(t *testing.T) {
	a, err := NewAttributor(ProRataTemporal{})
	require.NoError(t, err)
	_, err = a.AttributeCosts(attributionContext())
	require.NoError(t, err)

	a.mu.Lock()
	delete(a.entries[0].Audit, "employee_id")
	a.mu.Unlock()

	ok, issues := a.ValidateIntegrity()
	assert.False(t, ok)
	found := false
	for _, issue := range issues {
		if issue.Kind == "missing_audit_field" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSummaryByTargetYear_SumsPerType(t *testing.T) {
	a, err := NewAttributor(ProRataTemporal{})
	require.NoError(t, err)
	_, err = a.AttributeCosts(attributionContext())
	require.NoError(t, err)

	s2025 := a.SummaryByTargetYear(2025)
	s2026 := a.SummaryByTargetYear(2026)

	// the hire's baseline lands in both years and sums back to the source total
	baseline := s2025[CompensationBaseline].Add(s2026[CompensationBaseline])
	assert.True(t, baseline.Equal(decimal.RequireFromString("1500000")))

	// the termination books negative savings
	savings := s2025[TerminationSavings].Add(s2026[TerminationSavings])
	assert.True(t, savings.Equal(decimal.RequireFromString("-95000")))

	assert.Empty(t, a.SummaryByTargetYear(2030))
}

func TestTotalAttributed_SumsAcrossTargetYears(t *testing.T) {
	a, err := NewAttributor(ProRataTemporal{})
	require.NoError(t, err)
	_, err = a.AttributeCosts(attributionContext())
	require.NoError(t, err)

	merit := a.TotalAttributed(MeritIncrease)
	assert.True(t, merit.Equal(decimal.RequireFromString("8000")))
}

func TestAttributeCosts_MemoCache_ServesRepeatAggregation(t *testing.T) {
	// GIVEN an attributor memoizing impact aggregation through the cache
	cfg := coord.DefaultConfig().Cache
	cm, err := cache.NewManager(cfg)
	require.NoError(t, err)
	a, err := NewAttributor(ProRataTemporal{}, WithMemoCache(cm))
	require.NoError(t, err)

	// WHEN the identical context is attributed twice
	_, err = a.AttributeCosts(attributionContext())
	require.NoError(t, err)
	missesAfterFirst := cm.Stats().Misses

	_, err = a.AttributeCosts(attributionContext())
	require.NoError(t, err)

	// THEN the second aggregation is a cache hit and the ledger still reconciles
	stats := cm.Stats()
	assert.GreaterOrEqual(t, stats.Hits, int64(1))
	assert.Equal(t, missesAfterFirst, stats.Misses)

	ok, issues := a.ValidateIntegrity()
	assert.True(t, ok, "issues: %v", issues)
}
