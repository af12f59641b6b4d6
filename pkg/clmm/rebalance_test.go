package clmm

import (
	"testing"

	"clmm-lp-agent/pkg/money"
)

func testRebalanceConfig() RebalanceConfig {
	return RebalanceConfig{
		Enabled:              true,
		HysteresisPct:        money.MustFromString("0.02"),
		RebalanceSeconds:     60,
		CooldownSeconds:      30,
		MaxRebalancesPerHour: 2,
	}
}

func testLPView(lower, upper money.Decimal) LPView {
	return LPView{
		PositionAddress: "pos-1",
		LowerPrice:      &lower,
		UpperPrice:      &upper,
		BaseAmount:      money.NewFromInt(5),
		QuoteAmount:     money.NewFromInt(500),
	}
}

// TestEvaluateHysteresisSuppressesSmallDeviations checks that a deviation
// below the configured hysteresis band is ignored rather than starting the
// out-of-range timer.
func TestEvaluateHysteresisSuppressesSmallDeviations(t *testing.T) {
	cfg := testRebalanceConfig()
	ctx := NewControllerContext("c1", 0)
	lower := money.NewFromInt(95)
	upper := money.NewFromInt(105)
	lp := testLPView(lower, upper)

	price := money.NewFromInt(106) // just under 1% past upper, below the 2% hysteresis band
	eval := Evaluate(cfg, 0, &price, lp, ctx)

	if eval.Reason != ReasonHysteresis {
		t.Fatalf("expected hysteresis to suppress a small deviation, got reason=%s", eval.Reason)
	}
}

// TestEvaluateRequiresPersistenceWindowBeforeRebalancing checks that an
// out-of-range deviation must persist for RebalanceSeconds before a
// rebalance is allowed, even once past the hysteresis band.
func TestEvaluateRequiresPersistenceWindowBeforeRebalancing(t *testing.T) {
	cfg := testRebalanceConfig()
	ctx := NewControllerContext("c1", 0)
	lower := money.NewFromInt(95)
	upper := money.NewFromInt(105)
	lp := testLPView(lower, upper)

	price := money.NewFromInt(130) // well past hysteresis
	first := Evaluate(cfg, 0, &price, lp, ctx)
	if first.Reason != ReasonMonitoring || first.OutOfRangeSince == nil {
		t.Fatalf("expected first out-of-range tick to start monitoring, got %+v", first)
	}
	ctx.OutOfRangeSince = first.OutOfRangeSince

	tooSoon := Evaluate(cfg, 30, &price, lp, ctx)
	if tooSoon.Reason != ReasonWaiting {
		t.Fatalf("expected rebalance to wait out the persistence window, got reason=%s", tooSoon.Reason)
	}

	afterWindow := Evaluate(cfg, 61, &price, lp, ctx)
	if !afterWindow.ShouldRebalance {
		t.Fatalf("expected rebalance to fire once the persistence window elapses, got %+v", afterWindow)
	}
}

// TestEvaluateEnforcesHourlyRateLimit checks the MaxRebalancesPerHour cap:
// once the hourly count is reached, further rebalances are refused even
// though the position is still out of range and past cooldown.
func TestEvaluateEnforcesHourlyRateLimit(t *testing.T) {
	cfg := testRebalanceConfig()
	ctx := NewControllerContext("c1", 0)
	lower := money.NewFromInt(95)
	upper := money.NewFromInt(105)
	lp := testLPView(lower, upper)
	since := 0.0
	ctx.OutOfRangeSince = &since
	ctx.LastRebalanceTS = -1000

	// Record MaxRebalancesPerHour rebalances already in the last hour.
	ctx.RebalanceTimestamps = []float64{10, 20}

	price := money.NewFromInt(130)
	eval := Evaluate(cfg, 100, &price, lp, ctx)
	if eval.ShouldRebalance {
		t.Fatalf("expected rate limit to block a rebalance once the hourly cap is hit")
	}
	if eval.Reason != ReasonRateLimit {
		t.Fatalf("expected reason=rate_limit, got %s", eval.Reason)
	}
}

func TestEvaluateEnforcesCooldownBetweenRebalances(t *testing.T) {
	cfg := testRebalanceConfig()
	ctx := NewControllerContext("c1", 0)
	lower := money.NewFromInt(95)
	upper := money.NewFromInt(105)
	lp := testLPView(lower, upper)
	since := 0.0
	ctx.OutOfRangeSince = &since
	ctx.LastRebalanceTS = 80

	price := money.NewFromInt(130)
	eval := Evaluate(cfg, 100, &price, lp, ctx)
	if eval.Reason != ReasonCooldown {
		t.Fatalf("expected cooldown to block a rebalance fired too soon after the last one, got %s", eval.Reason)
	}
}

func TestEvaluateDisabledShortCircuits(t *testing.T) {
	cfg := testRebalanceConfig()
	cfg.Enabled = false
	ctx := NewControllerContext("c1", 0)
	lower := money.NewFromInt(95)
	upper := money.NewFromInt(105)
	lp := testLPView(lower, upper)
	price := money.NewFromInt(130)

	eval := Evaluate(cfg, 0, &price, lp, ctx)
	if eval.Reason != ReasonRebalanceDisabled {
		t.Fatalf("expected disabled rebalancing to short-circuit, got %s", eval.Reason)
	}
}
