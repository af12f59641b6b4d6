package clmm

import (
	"math"

	"clmm-lp-agent/pkg/money"
)

// RangePlan is a concrete [lower, upper) price bound pair, in strategy
// (base/quote) orientation.
type RangePlan struct {
	Lower money.Decimal
	Upper money.Decimal
}

// GeometricBounds builds a range centered on center with width ratio w
// (upper/lower = 1+w): f = sqrt(1+w), bounds = (center/f, center*f). w must
// be a ratio in (0,1),
// never a percent-points value.
func GeometricBounds(center, w money.Decimal) (RangePlan, bool) {
	if !center.IsPositive() {
		return RangePlan{}, false
	}
	if !w.IsPositive() || !w.LessThan(money.One) {
		return RangePlan{}, false
	}
	f := money.One.Add(w).Sqrt()
	lower, ok := center.Div(f)
	if !ok {
		return RangePlan{}, false
	}
	upper := center.Mul(f)
	return RangePlan{Lower: lower, Upper: upper}, true
}

// priceToTick converts a price to its continuous tick coordinate,
// tick(p) = log(p)/log(tickBase).
func priceToTick(price, tickBase money.Decimal) float64 {
	p := price.Float64()
	b := tickBase.Float64()
	return math.Log(p) / math.Log(b)
}

// tickToPrice is the inverse of priceToTick.
func tickToPrice(tick float64, tickBase money.Decimal) money.Decimal {
	b := tickBase.Float64()
	return money.NewFromFloat(math.Pow(b, tick))
}

// AlignBoundsToTicks snaps [lo, hi) to the integer tick grid defined by
// spacing and tickBase: aligned lo rounds down to a spacing multiple,
// aligned hi rounds up. Rejects the result if the aligned bounds collapse.
func AlignBoundsToTicks(lo, hi money.Decimal, spacing int, tickBase money.Decimal) (RangePlan, bool) {
	if spacing <= 0 || !lo.IsPositive() || !hi.IsPositive() || !lo.LessThan(hi) {
		return RangePlan{}, false
	}
	tickLo := priceToTick(lo, tickBase)
	tickHi := priceToTick(hi, tickBase)

	alignedLoTick := math.Floor(tickLo/float64(spacing)) * float64(spacing)
	alignedHiTick := math.Ceil(tickHi/float64(spacing)) * float64(spacing)
	if alignedLoTick >= alignedHiTick {
		return RangePlan{}, false
	}
	return RangePlan{
		Lower: tickToPrice(alignedLoTick, tickBase),
		Upper: tickToPrice(alignedHiTick, tickBase),
	}, true
}

// ClampPriceByTicks clamps p into [tickToPrice(tick(lo)+k), tickToPrice(tick(hi)-k)]
// so a ratio computation never evaluates exactly at a range edge.
func ClampPriceByTicks(p, lo, hi money.Decimal, tickBase money.Decimal, clampTicks int) money.Decimal {
	tickLo := priceToTick(lo, tickBase) + float64(clampTicks)
	tickHi := priceToTick(hi, tickBase) - float64(clampTicks)
	floor := tickToPrice(tickLo, tickBase)
	ceil := tickToPrice(tickHi, tickBase)
	if floor.GreaterThan(ceil) {
		floor, ceil = ceil, floor
	}
	return p.Clamp(floor, ceil)
}
