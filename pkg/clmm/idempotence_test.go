package clmm

import (
	"reflect"
	"testing"

	"clmm-lp-agent/pkg/money"
)

// TestDecideIsIdempotentWithoutApplyingPatch re-enters Decide twice against
// the same snapshot and context: without applying the returned patch in
// between, both calls must propose the identical action set. The executor
// may re-observe the same pending state across several ticks before a
// submitted action confirms, so Decide must never double-submit on replay.
func TestDecideIsIdempotentWithoutApplyingPatch(t *testing.T) {
	cfg := testConfig()
	policy := cfg.BuildPolicy()
	adapter := testAdapter()

	scenarios := []struct {
		name  string
		setup func() (*ControllerContext, Snapshot)
	}{
		{
			name: "idle-opens-position",
			setup: func() (*ControllerContext, Snapshot) {
				ctx := NewControllerContext(cfg.ControllerID, 0)
				return ctx, baseSnapshot(0, money.NewFromInt(100))
			},
		},
		{
			name: "entry-open-pending-confirmation",
			setup: func() (*ControllerContext, Snapshot) {
				ctx := NewControllerContext(cfg.ControllerID, 0)
				ctx.State = StateEntryOpen
				ctx.PendingOpenLPID = "lp-1"
				snapshot := baseSnapshot(10, money.NewFromInt(100))
				return ctx, snapshot
			},
		},
		{
			name: "active-in-range",
			setup: func() (*ControllerContext, Snapshot) {
				ctx := NewControllerContext(cfg.ControllerID, 0)
				ctx.State = StateActive
				anchor := money.NewFromInt(1000)
				ctx.AnchorValueQuote = &anchor
				snapshot := baseSnapshot(10, money.NewFromInt(100))
				snapshot.LP["lp-1"] = LPView{
					ExecutorID:      "lp-1",
					IsActive:        true,
					State:           LPInRange,
					PositionAddress: "pos-1",
					LowerPrice:      ptrDecimal(money.NewFromInt(90)),
					UpperPrice:      ptrDecimal(money.NewFromInt(110)),
					BaseAmount:      money.NewFromInt(5),
					QuoteAmount:     money.NewFromInt(500),
				}
				snapshot.ActiveLP = []LPView{snapshot.LP["lp-1"]}
				return ctx, snapshot
			},
		},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			ctx, snapshot := sc.setup()
			first := Decide(snapshot, ctx, cfg, policy, adapter)

			ctx2, snapshot2 := sc.setup()
			second := Decide(snapshot2, ctx2, cfg, policy, adapter)

			if !reflect.DeepEqual(first.Actions, second.Actions) {
				t.Fatalf("expected identical actions across repeated Decide calls, got %+v vs %+v", first.Actions, second.Actions)
			}
			if first.Intent.Reason != second.Intent.Reason {
				t.Fatalf("expected identical reason across repeated Decide calls, got %q vs %q", first.Intent.Reason, second.Intent.Reason)
			}
		})
	}
}

func ptrDecimal(d money.Decimal) *money.Decimal {
	return &d
}
