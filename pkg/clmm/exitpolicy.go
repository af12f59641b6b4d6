package clmm

import "clmm-lp-agent/pkg/money"

// ShouldStoploss reports whether equity has fallen to or below
// anchor*(1-slRatio). slRatio must already be validated to (0,1).
func ShouldStoploss(anchor, equity, slRatio money.Decimal) bool {
	if !anchor.IsPositive() {
		return false
	}
	threshold := anchor.Mul(money.One.Sub(slRatio))
	return equity.LessThanOrEqual(threshold)
}

// ShouldTakeProfit reports whether equity has risen to or above
// anchor*(1+tpRatio).
func ShouldTakeProfit(anchor, equity, tpRatio money.Decimal) bool {
	if !anchor.IsPositive() {
		return false
	}
	threshold := anchor.Mul(money.One.Add(tpRatio))
	return equity.GreaterThanOrEqual(threshold)
}
