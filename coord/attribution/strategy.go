package attribution

import (
	"time"

	"github.com/shopspring/decimal"
)

// Strategy splits one cost across the ordered target years. Allocations
// must be deterministic for identical inputs and must sum exactly to the
// total: rounding residue goes to the last target year.
type Strategy interface {
	Name() string
	Allocate(total decimal.Decimal, effective time.Time, ctx Context) map[int]decimal.Decimal
}

// ProRataTemporal splits a cost proportional to the time elapsed from the
// source event's effective date to the end of each target year. A cost
// incurred mid-year therefore leans toward later target years, which have
// carried it longer.
type ProRataTemporal struct{}

func (ProRataTemporal) Name() string { return "pro_rata_temporal" }

func (ProRataTemporal) Allocate(total decimal.Decimal, effective time.Time, ctx Context) map[int]decimal.Decimal {
	weights := temporalWeights(effective, ctx.TargetYears)
	return splitByWeights(total, ctx.TargetYears, weights)
}

// HybridTemporalWorkforce adjusts the temporal split by the ratio of each
// target year's workforce size to the source year's, so a growing or
// shrinking workforce shifts the effective per-year cost base.
type HybridTemporalWorkforce struct{}

func (HybridTemporalWorkforce) Name() string { return "hybrid_temporal_workforce" }

func (HybridTemporalWorkforce) Allocate(total decimal.Decimal, effective time.Time, ctx Context) map[int]decimal.Decimal {
	weights := temporalWeights(effective, ctx.TargetYears)
	sourceHeads := ctx.SourceMetrics.ActiveHeadcount
	for i, year := range ctx.TargetYears {
		ratio := 1.0
		if tm, ok := ctx.TargetMetrics[year]; ok && sourceHeads > 0 {
			ratio = float64(tm.ActiveHeadcount) / float64(sourceHeads)
		}
		weights[i] *= ratio
	}
	return splitByWeights(total, ctx.TargetYears, weights)
}

// temporalWeights returns one weight per target year: days elapsed from the
// effective date to the end of that year, unnormalized.
func temporalWeights(effective time.Time, targetYears []int) []float64 {
	weights := make([]float64, len(targetYears))
	for i, year := range targetYears {
		yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
		days := yearEnd.Sub(effective).Hours() / 24
		if days < 0 {
			days = 0
		}
		weights[i] = days
	}
	return weights
}

// splitByWeights apportions total across years by normalized weights, each
// share rounded to AmountScale digits, with the final year receiving the
// exact residual so the partition reconciles to the cent of a millionth.
func splitByWeights(total decimal.Decimal, years []int, weights []float64) map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal, len(years))
	if len(years) == 0 {
		return out
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		// no usable weights: fall back to an even split
		for i := range weights {
			weights[i] = 1
		}
		sum = float64(len(weights))
	}

	allocated := decimal.Zero
	for i, year := range years {
		if i == len(years)-1 {
			out[year] = total.Sub(allocated)
			break
		}
		share := total.Mul(decimal.NewFromFloat(weights[i] / sum)).Round(AmountScale)
		out[year] = share
		allocated = allocated.Add(share)
	}
	return out
}
