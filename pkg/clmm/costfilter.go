package clmm

import "clmm-lp-agent/pkg/money"

// CostFilter estimates fee accrual rate per position and gates rebalances
// so a swap is only triggered when expected fees can pay back its cost
// within a bounded horizon.
type CostFilter struct{}

var feeEWMAAlpha = money.MustFromString("0.1")
var feeEWMAMinDT = 10.0

// UpdateFeeRateEWMA folds a new fee observation into the position's EWMA.
// The first observation only seeds the baseline. A negative fee delta (a
// fee claim resetting the accrued counter) resets the baseline without
// touching the EWMA. Returns the updated estimator context; callers fold it
// into a DecisionPatch rather than mutating ctx directly.
func UpdateFeeRateEWMA(now float64, pendingFeeQuote money.Decimal, fc FeeEstimatorContext) FeeEstimatorContext {
	if !fc.Seeded {
		fc.Seeded = true
		fc.SeenTS = now
		fc.LastFeeQuote = pendingFeeQuote
		return fc
	}

	delta := pendingFeeQuote.Sub(fc.LastFeeQuote)
	if delta.IsNegative() {
		fc.SeenTS = now
		fc.LastFeeQuote = pendingFeeQuote
		return fc
	}

	dt := now - fc.SeenTS
	if dt < feeEWMAMinDT {
		return fc
	}

	rate := delta.DivOrZero(money.NewFromFloat(dt))
	fc.FeeRateEWMA = money.One.Sub(feeEWMAAlpha).Mul(fc.FeeRateEWMA).Add(feeEWMAAlpha.Mul(rate))
	fc.SeenTS = now
	fc.LastFeeQuote = pendingFeeQuote
	return fc
}

// AllowRebalanceParams bundles the inputs to AllowRebalance so the call
// site (RebalanceEngine) doesn't need a nine-argument call.
type AllowRebalanceParams struct {
	Enabled                        bool
	PositionValue                  money.Decimal
	FeeRateEWMA                    money.Decimal
	FeeRateSeeded                  bool
	FeeRateBootstrapQuotePerHour   money.Decimal
	AutoSwapEnabled                bool
	SwapSlippagePct                money.Decimal
	FixedCostQuote                 money.Decimal
	MaxPaybackSec                  money.Decimal
}

// AllowRebalance decides whether the expected fee income over the next hour
// can pay back the swap + fixed cost of a rebalance within MaxPaybackSec.
func AllowRebalance(p AllowRebalanceParams) bool {
	if !p.Enabled {
		return true
	}

	feeRate := p.FeeRateEWMA
	if !p.FeeRateSeeded || feeRate.IsZero() {
		feeRate = p.FeeRateBootstrapQuotePerHour.DivOrZero(money.NewFromInt(3600))
	}
	expectedFees1h := feeRate.Mul(money.NewFromInt(3600))

	swapCost := money.Zero
	if p.AutoSwapEnabled {
		half := p.PositionValue.Mul(money.MustFromString("0.5"))
		pct := p.SwapSlippagePct.Add(money.MustFromString("0.3")).DivOrZero(money.Hundred)
		swapCost = half.Mul(pct)
	}
	totalCost := p.FixedCostQuote.Add(swapCost)

	if expectedFees1h.LessThan(totalCost.Mul(money.NewFromInt(2))) {
		return false
	}

	denom := feeRate.Max(money.MustFromString("0.000000001"))
	paybackSec := totalCost.DivOrZero(denom)
	return paybackSec.LessThanOrEqual(p.MaxPaybackSec)
}

// ShouldForceRebalance overrides a rejected CostFilter gate once a position
// has been out of range for an unreasonably long time.
func ShouldForceRebalance(now, outOfRangeSince, rebalanceSeconds float64) bool {
	threshold := rebalanceSeconds * 10
	if threshold < 600 {
		threshold = 600
	}
	return (now - outOfRangeSince) >= threshold
}
