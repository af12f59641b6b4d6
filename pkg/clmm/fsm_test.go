package clmm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"clmm-lp-agent/pkg/money"
)

func testConfig() *Config {
	return &Config{
		ControllerID:        "test-controller",
		Venue:               "meteora",
		PoolAddress:         "pool-1",
		TradingPair:         "SOL-USDC",
		ConnectorName:       "meteora_connector",
		PositionValueQuote:  money.NewFromInt(1000),
		PositionWidthPct:    money.MustFromString("0.1"),
		RebalanceEnabled:     true,
		RebalanceSeconds:     60,
		HysteresisPct:        money.MustFromString("0.02"),
		CooldownSeconds:      30,
		MaxRebalancesPerHour: 4,
		AutoSwapEnabled:      true,
		SwapMinValuePct:      money.MustFromString("0.01"),
		SwapSafetyBufferPct:  money.MustFromString("0.001"),
		SwapSlippagePct:      money.MustFromString("0.005"),
		StopLossPnLPct:       money.MustFromString("0.1"),
		TakeProfitPnLPct:     money.MustFromString("0.2"),
		ExitFullLiquidation:  false,
		ReenterEnabled:       true,
		BalanceRefreshTimeoutSec: 10,
		OpenTimeoutSec:       120,
		MinNativeReserve:     money.Zero,
		FixedReserveQuote:    money.Zero,
		RatioEdgeBufferPct:   money.MustFromString("0.05"),
		MeteoraStrategyType:  0,
	}
}

func testAdapter() PoolDomainAdapter {
	base := common.HexToAddress("0x1")
	quote := common.HexToAddress("0x2")
	return NewPoolDomainAdapter(base, quote, base, quote)
}

func baseSnapshot(now float64, price money.Decimal) Snapshot {
	return Snapshot{
		Now:          now,
		CurrentPrice: &price,
		BalanceFresh: true,
		WalletBase:   money.NewFromInt(10),
		WalletQuote:  money.NewFromInt(1000),
		LP:           map[string]LPView{},
		Swaps:        map[string]SwapView{},
	}
}

func TestIdleOpensPositionWithoutSwap(t *testing.T) {
	cfg := testConfig()
	policy := cfg.BuildPolicy()
	adapter := testAdapter()
	ctx := NewControllerContext(cfg.ControllerID, 0)

	price := money.NewFromInt(100)
	snapshot := baseSnapshot(0, price)

	d := Decide(snapshot, ctx, cfg, policy, adapter)
	if d.Patch.NewState == nil || *d.Patch.NewState != StateEntryOpen {
		t.Fatalf("expected transition to ENTRY_OPEN, got patch=%+v reason=%s", d.Patch, d.Intent.Reason)
	}
	if len(d.Actions) != 1 || d.Actions[0].Type != ActionCreateExecutor {
		t.Fatalf("expected one create-executor action, got %+v", d.Actions)
	}

	ApplyPatch(ctx, snapshot, d.Patch)
	if ctx.State != StateEntryOpen {
		t.Fatalf("expected ctx.State ENTRY_OPEN, got %s", ctx.State)
	}
	if ctx.PendingOpenLPID == "" {
		t.Fatalf("expected PendingOpenLPID to be set")
	}
}

func TestOpenConfirmationTransitionsToActiveAndSetsAnchor(t *testing.T) {
	cfg := testConfig()
	policy := cfg.BuildPolicy()
	adapter := testAdapter()
	ctx := NewControllerContext(cfg.ControllerID, 0)
	ctx.State = StateEntryOpen
	ctx.PendingOpenLPID = "lp-1"

	price := money.NewFromInt(100)
	snapshot := baseSnapshot(10, price)
	snapshot.LP["lp-1"] = LPView{
		ExecutorID:      "lp-1",
		IsActive:        true,
		State:           LPInRange,
		PositionAddress: "pos-1",
		BaseAmount:      money.NewFromInt(5),
		QuoteAmount:     money.NewFromInt(500),
	}

	d := Decide(snapshot, ctx, cfg, policy, adapter)
	if d.Patch.NewState == nil || *d.Patch.NewState != StateActive {
		t.Fatalf("expected transition to ACTIVE, got patch=%+v reason=%s", d.Patch, d.Intent.Reason)
	}
	if d.Patch.AnchorValueQuote == nil {
		t.Fatalf("expected anchor to be set on open confirmation")
	}
	ApplyPatch(ctx, snapshot, d.Patch)
	if ctx.Ledger.DeployedBase.IsZero() || ctx.Ledger.DeployedQuote.IsZero() {
		t.Fatalf("expected ledger to record the opened deployed amounts, got %+v", ctx.Ledger)
	}
}

func TestStoplossTriggersStopThenRealizesPnLOnClose(t *testing.T) {
	cfg := testConfig()
	policy := cfg.BuildPolicy()
	adapter := testAdapter()
	ctx := NewControllerContext(cfg.ControllerID, 0)
	ctx.State = StateActive
	anchor := money.NewFromInt(1000)
	ctx.AnchorValueQuote = &anchor
	ctx.Ledger = NewBudgetLedger(cfg.PositionValueQuote, money.Zero, money.Zero)
	ctx.Ledger.DeployedBase = money.NewFromInt(5)
	ctx.Ledger.DeployedQuote = money.NewFromInt(500)

	lowPrice := money.NewFromInt(10) // equity crashes well past the 10% stop-loss band
	snapshot := baseSnapshot(100, lowPrice)
	snapshot.WalletBase = money.Zero
	snapshot.WalletQuote = money.Zero
	snapshot.LP["lp-1"] = LPView{
		ExecutorID: "lp-1",
		IsActive:   true,
		State:      LPInRange,
		BaseAmount: money.NewFromInt(5),
		QuoteAmount: money.NewFromInt(500),
	}
	snapshot.ActiveLP = []LPView{snapshot.LP["lp-1"]}

	d := Decide(snapshot, ctx, cfg, policy, adapter)
	if d.Patch.NewState == nil || *d.Patch.NewState != StateStoplossStop {
		t.Fatalf("expected transition to STOPLOSS_STOP, got patch=%+v reason=%s", d.Patch, d.Intent.Reason)
	}
	ApplyPatch(ctx, snapshot, d.Patch)

	// Now the stop confirms: the executor reports closed with its final amounts.
	snapshot2 := baseSnapshot(101, lowPrice)
	snapshot2.WalletBase = money.NewFromInt(5)
	snapshot2.WalletQuote = money.NewFromInt(50)
	snapshot2.LP["lp-1"] = LPView{
		ExecutorID:  "lp-1",
		IsActive:    false,
		IsDone:      true,
		CloseType:   CloseCompleted,
		State:       LPComplete,
		BaseAmount:  money.NewFromInt(5),
		QuoteAmount: money.NewFromInt(500),
	}

	d2 := Decide(snapshot2, ctx, cfg, policy, adapter)
	if d2.Patch.RealizedVolumeDeltaQuote == nil {
		t.Fatalf("expected realized volume delta on close")
	}
	if !d2.Patch.RealizedVolumeDeltaQuote.Equal(anchor) {
		t.Fatalf("invariant 3 violated: realized_volume_quote delta should equal the anchor (%s), got %s", anchor, *d2.Patch.RealizedVolumeDeltaQuote)
	}
	if d2.Patch.RealizedPnLDeltaQuote == nil {
		t.Fatalf("expected realized pnl delta on close")
	}
}

func TestConcurrencyGuardStopsExtraLP(t *testing.T) {
	cfg := testConfig()
	policy := cfg.BuildPolicy()
	adapter := testAdapter()
	ctx := NewControllerContext(cfg.ControllerID, 0)
	ctx.State = StateActive

	price := money.NewFromInt(100)
	snapshot := baseSnapshot(0, price)
	snapshot.ActiveLP = []LPView{
		{ExecutorID: "lp-a", IsActive: true},
		{ExecutorID: "lp-b", IsActive: true},
	}

	d := Decide(snapshot, ctx, cfg, policy, adapter)
	if d.Intent.Reason != ReasonConcurrencyGuard {
		t.Fatalf("expected concurrency guard reason, got %s", d.Intent.Reason)
	}
	if len(d.Actions) != 1 || d.Actions[0].StopExecutorID != "lp-b" {
		t.Fatalf("expected exactly one stop action against the higher executor id, got %+v", d.Actions)
	}
}

func TestManualKillOverridesActiveState(t *testing.T) {
	cfg := testConfig()
	policy := cfg.BuildPolicy()
	adapter := testAdapter()
	ctx := NewControllerContext(cfg.ControllerID, 0)
	ctx.State = StateActive

	price := money.NewFromInt(100)
	snapshot := baseSnapshot(0, price)
	snapshot.ManualKill = true
	snapshot.ActiveLP = []LPView{{ExecutorID: "lp-1", IsActive: true}}

	d := Decide(snapshot, ctx, cfg, policy, adapter)
	if d.Intent.Reason != ReasonManualKill {
		t.Fatalf("expected manual kill reason, got %s", d.Intent.Reason)
	}
	if d.Patch.NewState == nil || *d.Patch.NewState != StateStoplossStop {
		t.Fatalf("expected manual kill to route through STOPLOSS_STOP, got %+v", d.Patch.NewState)
	}
}

func TestCooldownWaitsUntilDeadline(t *testing.T) {
	cfg := testConfig()
	policy := cfg.BuildPolicy()
	adapter := testAdapter()
	ctx := NewControllerContext(cfg.ControllerID, 0)
	ctx.State = StateCooldown
	ctx.CooldownUntilTS = 100

	price := money.NewFromInt(100)
	snapshot := baseSnapshot(50, price)

	d := Decide(snapshot, ctx, cfg, policy, adapter)
	if d.Intent.Reason != ReasonCooldown {
		t.Fatalf("expected cooldown reason while before deadline, got %s", d.Intent.Reason)
	}

	snapshot.Now = 101
	d2 := Decide(snapshot, ctx, cfg, policy, adapter)
	if d2.Patch.NewState == nil || *d2.Patch.NewState != StateIdle {
		t.Fatalf("expected transition to IDLE once cooldown elapses, got %+v", d2.Patch)
	}
}

func TestFailureBlockedHaltsDispatch(t *testing.T) {
	cfg := testConfig()
	policy := cfg.BuildPolicy()
	adapter := testAdapter()
	ctx := NewControllerContext(cfg.ControllerID, 0)
	ctx.State = StateActive
	ctx.FailureBlocked = true

	price := money.NewFromInt(100)
	snapshot := baseSnapshot(0, price)

	d := Decide(snapshot, ctx, cfg, policy, adapter)
	if d.Intent.Reason != ReasonFailureBlocked {
		t.Fatalf("expected failure_blocked reason, got %s", d.Intent.Reason)
	}
	if len(d.Actions) != 0 {
		t.Fatalf("expected no actions while failure-blocked, got %+v", d.Actions)
	}
}
