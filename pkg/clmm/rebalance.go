package clmm

import "clmm-lp-agent/pkg/money"

// RebalanceConfig is the subset of controller config RebalanceEngine needs.
type RebalanceConfig struct {
	Enabled               bool
	HysteresisPct         money.Decimal
	RebalanceSeconds      float64
	CooldownSeconds       float64
	MaxRebalancesPerHour  int
	CostFilterEnabled     bool
	FeeRateBootstrapQuotePerHour money.Decimal
	AutoSwapEnabled       bool
	SwapSlippagePct       money.Decimal
	CostFilterFixedCostQuote money.Decimal
	CostFilterMaxPaybackSec money.Decimal
}

// RebalanceEvaluation is the result of RebalanceEngine.Evaluate.
type RebalanceEvaluation struct {
	ShouldRebalance bool
	Reason          string
	// OutOfRangeSince, when non-nil, sets the out-of-range timer to this
	// value. ClearOutOfRangeSince clears it. With neither, the timer is
	// left as-is (NoChange reports that case).
	OutOfRangeSince *float64
	ClearOutOfRangeSince bool
	NoChange        bool
}

// Evaluate runs the per-tick out-of-range detection pipeline described in
// spec §4.9: hysteresis -> persistence window -> cooldown -> hourly cap ->
// cost filter, with a forced override once a position has been out of
// range far too long.
func Evaluate(cfg RebalanceConfig, now float64, price *money.Decimal, lp LPView, ctx *ControllerContext) RebalanceEvaluation {
	if !cfg.Enabled {
		return RebalanceEvaluation{Reason: ReasonRebalanceDisabled, NoChange: true}
	}

	effectivePrice := price
	if effectivePrice == nil {
		effectivePrice = lp.CurrentPrice
	}
	if effectivePrice == nil || !effectivePrice.IsPositive() {
		return RebalanceEvaluation{Reason: ReasonPriceUnavailable, NoChange: true}
	}

	if lp.LowerPrice == nil || lp.UpperPrice == nil {
		return RebalanceEvaluation{Reason: ReasonPriceUnavailable, NoChange: true}
	}
	lower, upper := *lp.LowerPrice, *lp.UpperPrice

	if effectivePrice.GreaterThanOrEqual(lower) && effectivePrice.LessThanOrEqual(upper) {
		return RebalanceEvaluation{Reason: ReasonInRange, ClearOutOfRangeSince: true}
	}

	var deviationPct money.Decimal
	if effectivePrice.LessThan(lower) {
		deviationPct = lower.Sub(*effectivePrice).DivOrZero(lower).Mul(money.Hundred)
	} else {
		deviationPct = effectivePrice.Sub(upper).DivOrZero(upper).Mul(money.Hundred)
	}

	hysteresisPct := cfg.HysteresisPct.Max(money.Zero).Mul(money.Hundred)
	if deviationPct.LessThan(hysteresisPct) {
		return RebalanceEvaluation{Reason: ReasonHysteresis, NoChange: true}
	}

	outOfRangeSince := ctx.OutOfRangeSince
	if outOfRangeSince == nil {
		n := now
		return RebalanceEvaluation{Reason: ReasonMonitoring, OutOfRangeSince: &n}
	}

	if now-*outOfRangeSince < cfg.RebalanceSeconds {
		return RebalanceEvaluation{Reason: ReasonWaiting, NoChange: true}
	}
	if now-ctx.LastRebalanceTS < cfg.CooldownSeconds {
		return RebalanceEvaluation{Reason: ReasonCooldown, NoChange: true}
	}

	if cfg.MaxRebalancesPerHour > 0 {
		count := ctx.CountRebalancesSince(now - 3600)
		if count >= cfg.MaxRebalancesPerHour {
			return RebalanceEvaluation{Reason: ReasonRateLimit, NoChange: true}
		}
	}

	fc := ctx.FeeContext(lp.PositionAddress)
	allowed := AllowRebalance(AllowRebalanceParams{
		Enabled:                      cfg.CostFilterEnabled,
		PositionValue:                lp.BaseAmount.Mul(*effectivePrice).Add(lp.QuoteAmount),
		FeeRateEWMA:                  fc.FeeRateEWMA,
		FeeRateSeeded:                fc.Seeded,
		FeeRateBootstrapQuotePerHour: cfg.FeeRateBootstrapQuotePerHour,
		AutoSwapEnabled:              cfg.AutoSwapEnabled,
		SwapSlippagePct:              cfg.SwapSlippagePct,
		FixedCostQuote:               cfg.CostFilterFixedCostQuote,
		MaxPaybackSec:                cfg.CostFilterMaxPaybackSec,
	})
	if !allowed && ShouldForceRebalance(now, *outOfRangeSince, cfg.RebalanceSeconds) {
		allowed = true
	}
	if !allowed {
		return RebalanceEvaluation{Reason: ReasonCooldown, NoChange: true}
	}

	return RebalanceEvaluation{ShouldRebalance: true, Reason: ReasonOutOfRangeRebalance, NoChange: true}
}
