package attribution

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workforce-sim/workforce-sim/coord"
)

func midYearHireContext() (decimal.Decimal, time.Time, Context) {
	total := decimal.RequireFromString("1500000")
	effective := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	ctx := Context{
		SourceYear:  2024,
		TargetYears: []int{2025, 2026},
		SourceMetrics: coord.WorkforceMetrics{
			SimulationYear:  2024,
			ActiveHeadcount: 1000,
		},
		TargetMetrics: map[int]coord.WorkforceMetrics{
			2025: {SimulationYear: 2025, ActiveHeadcount: 1000},
			2026: {SimulationYear: 2026, ActiveHeadcount: 1000},
		},
	}
	return total, effective, ctx
}

func sumShares(shares map[int]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range shares {
		total = total.Add(amount)
	}
	return total
}

func TestProRataTemporal_SharesSumExactlyToTotal(t *testing.T) {
	// GIVEN a $1.5M hire effective mid-June 2024, attributed to 2025 and 2026
	total, effective, ctx := midYearHireContext()

	// WHEN the cost is allocated pro rata by elapsed time
	shares := ProRataTemporal{}.Allocate(total, effective, ctx)

	// THEN the partition reconciles exactly, with no rounding residue
	require.Len(t, shares, 2)
	assert.True(t, sumShares(shares).Equal(total),
		"shares %s + %s must sum to %s", shares[2025], shares[2026], total)
}

func TestProRataTemporal_LaterYearsCarryLargerShares(t *testing.T) {
	total, effective, ctx := midYearHireContext()
	shares := ProRataTemporal{}.Allocate(total, effective, ctx)

	// 2026 has carried the cost longer than 2025
	assert.True(t, shares[2026].GreaterThan(shares[2025]))
	assert.True(t, shares[2025].IsPositive())
}

func TestProRataTemporal_SharesRoundedToSixDigits(t *testing.T) {
	total, effective, ctx := midYearHireContext()
	shares := ProRataTemporal{}.Allocate(total, effective, ctx)

	for year, amount := range shares {
		assert.True(t, amount.Equal(amount.Round(AmountScale)),
			"share for %d carries more than %d fractional digits: %s", year, AmountScale, amount)
	}
}

func TestProRataTemporal_IsDeterministic(t *testing.T) {
	total, effective, ctx := midYearHireContext()
	first := ProRataTemporal{}.Allocate(total, effective, ctx)
	second := ProRataTemporal{}.Allocate(total, effective, ctx)

	require.Equal(t, len(first), len(second))
	for year, amount := range first {
		assert.True(t, amount.Equal(second[year]))
	}
}

func TestProRataTemporal_NegativeTotal_PartitionsExactly(t *testing.T) {
	_, effective, ctx := midYearHireContext()
	total := decimal.RequireFromString("-85000")

	shares := ProRataTemporal{}.Allocate(total, effective, ctx)
	assert.True(t, sumShares(shares).Equal(total))
	for _, amount := range shares {
		assert.True(t, amount.IsNegative())
	}
}

func TestProRataTemporal_EffectiveAfterAllTargets_FallsBackToEvenSplit(t *testing.T) {
	// an effective date past every target year-end zeroes the weights
	_, _, ctx := midYearHireContext()
	total := decimal.RequireFromString("100")
	effective := time.Date(2027, time.June, 1, 0, 0, 0, 0, time.UTC)

	shares := ProRataTemporal{}.Allocate(total, effective, ctx)
	assert.True(t, shares[2025].Equal(decimal.RequireFromString("50")))
	assert.True(t, shares[2026].Equal(decimal.RequireFromString("50")))
}

func TestProRataTemporal_EmptyTargets_ReturnsEmptyMap(t *testing.T) {
	total, effective, ctx := midYearHireContext()
	ctx.TargetYears = nil
	assert.Empty(t, ProRataTemporal{}.Allocate(total, effective, ctx))
}

func TestHybridTemporalWorkforce_GrowingYearAttractsMoreCost(t *testing.T) {
	// GIVEN 2025 doubles the source headcount while 2026 holds steady
	total, effective, ctx := midYearHireContext()
	ctx.TargetMetrics[2025] = coord.WorkforceMetrics{SimulationYear: 2025, ActiveHeadcount: 2000}

	// WHEN allocated with and without the workforce adjustment
	temporal := ProRataTemporal{}.Allocate(total, effective, ctx)
	hybrid := HybridTemporalWorkforce{}.Allocate(total, effective, ctx)

	// THEN the grown year's share rises, and the partition still reconciles
	assert.True(t, hybrid[2025].GreaterThan(temporal[2025]))
	assert.True(t, sumShares(hybrid).Equal(total))
}

func TestHybridTemporalWorkforce_MissingSnapshotDefaultsToTemporalWeight(t *testing.T) {
	total, effective, ctx := midYearHireContext()
	ctx.TargetMetrics = nil

	temporal := ProRataTemporal{}.Allocate(total, effective, ctx)
	hybrid := HybridTemporalWorkforce{}.Allocate(total, effective, ctx)

	for year, amount := range temporal {
		assert.True(t, amount.Equal(hybrid[year]),
			"without snapshots the hybrid split must match the temporal split for %d", year)
	}
}

func TestTemporalWeights_ClampNegativeSpansToZero(t *testing.T) {
	effective := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	weights := temporalWeights(effective, []int{2025, 2026})

	assert.Zero(t, weights[0], "a target year already ended carries no weight")
	assert.Greater(t, weights[1], 0.0)
}
