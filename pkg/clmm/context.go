package clmm

import "clmm-lp-agent/pkg/money"

const rebalanceTimestampCap = 200

// FeeEstimatorContext holds the EWMA state for one LP position's fee
// accrual rate, scoped per position_address rather than kept as package
// global state.
type FeeEstimatorContext struct {
	FeeRateEWMA money.Decimal
	SeenTS      float64
	LastFeeQuote money.Decimal
	Seeded      bool
}

// ControllerContext is the persistent, in-memory state for one pool
// controller. It survives across ticks and is mutated only by applying a
// DecisionPatch.
type ControllerContext struct {
	ControllerID string

	State        ControllerState
	StateSinceTS float64

	Ledger BudgetLedger

	AnchorValueQuote *money.Decimal

	PendingRealizedAnchor *money.Decimal
	RealizedVolumeQuote   money.Decimal
	RealizedPnLQuote      money.Decimal

	OutOfRangeSince *float64

	RebalanceTimestamps []float64
	LastRebalanceTS     float64
	RebalancePlans      map[string]RebalancePlan

	PendingOpenLPID  string
	PendingCloseLPID string
	PendingSwapID    string
	PendingSwapSinceTS float64

	InventorySwapAttempts     int
	StoplossSwapAttempts      int
	NormalizationSwapAttempts int

	InventoryBalanceRefreshAttempts     int
	StoplossBalanceRefreshAttempts      int
	NormalizationBalanceRefreshAttempts int

	BalanceBarrier            *BalanceSyncBarrier
	AwaitingBalanceRefresh    bool
	AwaitingBalanceRefreshSinceTS float64

	FailureBlocked bool
	FailureReason  string

	CooldownUntilTS float64
	LastExitReason  string

	FeeByPosition map[string]*FeeEstimatorContext

	// Domain* track pool-orientation resolution. Populated by the runtime
	// before Decide runs (not by ApplyPatch): resolving token orientation is
	// a connector lookup, not a decision outcome.
	DomainReady      bool
	DomainError      string
	DomainResolvedTS float64
}

// NewControllerContext returns a freshly initialized context in StateIdle.
func NewControllerContext(controllerID string, now float64) *ControllerContext {
	return &ControllerContext{
		ControllerID:   controllerID,
		State:          StateIdle,
		StateSinceTS:   now,
		RebalancePlans: map[string]RebalancePlan{},
		FeeByPosition:  map[string]*FeeEstimatorContext{},
	}
}

// SeedLedger initializes the budget ledger from the first observed wallet
// balance and the configured cap. Safe to call every tick: once the ledger
// has any nonzero state, later calls only re-sync the cap and wallet
// balances and leave the deployed amounts untouched.
func (c *ControllerContext) SeedLedger(cap, walletBase, walletQuote money.Decimal) {
	if c.Ledger.ConfiguredCapQuote.IsZero() && c.Ledger.WalletBase.IsZero() && c.Ledger.WalletQuote.IsZero() && c.Ledger.DeployedBase.IsZero() && c.Ledger.DeployedQuote.IsZero() {
		c.Ledger = NewBudgetLedger(cap, walletBase, walletQuote)
	} else {
		c.Ledger.ConfiguredCapQuote = cap
		c.Ledger.WalletBase = walletBase
		c.Ledger.WalletQuote = walletQuote
	}
}

// appendRebalanceTimestamp pushes ts onto the ring buffer, evicting the
// oldest entry once the cap is reached.
func (c *ControllerContext) appendRebalanceTimestamp(ts float64) {
	c.RebalanceTimestamps = append(c.RebalanceTimestamps, ts)
	if len(c.RebalanceTimestamps) > rebalanceTimestampCap {
		c.RebalanceTimestamps = c.RebalanceTimestamps[len(c.RebalanceTimestamps)-rebalanceTimestampCap:]
	}
}

// CountRebalancesSince returns how many recorded rebalance timestamps fall
// at or after since.
func (c *ControllerContext) CountRebalancesSince(since float64) int {
	n := 0
	for _, ts := range c.RebalanceTimestamps {
		if ts >= since {
			n++
		}
	}
	return n
}

// gcRebalanceTimestamps drops entries older than windowSec before now.
func (c *ControllerContext) gcRebalanceTimestamps(now, windowSec float64) {
	cutoff := now - windowSec
	kept := c.RebalanceTimestamps[:0:0]
	for _, ts := range c.RebalanceTimestamps {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	c.RebalanceTimestamps = kept
}

// FeeContext returns (creating if absent) the per-position fee estimator
// state.
func (c *ControllerContext) FeeContext(positionAddress string) *FeeEstimatorContext {
	if c.FeeByPosition == nil {
		c.FeeByPosition = map[string]*FeeEstimatorContext{}
	}
	fc, ok := c.FeeByPosition[positionAddress]
	if !ok {
		fc = &FeeEstimatorContext{}
		c.FeeByPosition[positionAddress] = fc
	}
	return fc
}

// ApplyPatch mutates ctx in place according to patch. This is the only
// sanctioned mutation path for ControllerContext outside construction.
func ApplyPatch(ctx *ControllerContext, snapshot Snapshot, patch DecisionPatch) {
	if patch.NewState != nil {
		ctx.State = *patch.NewState
		ctx.StateSinceTS = snapshot.Now
	}
	if patch.ClearAnchor {
		ctx.AnchorValueQuote = nil
	} else if patch.AnchorValueQuote != nil {
		v := *patch.AnchorValueQuote
		ctx.AnchorValueQuote = &v
	}
	if patch.ClearPendingRealizedAnchor {
		ctx.PendingRealizedAnchor = nil
	} else if patch.PendingRealizedAnchor != nil {
		v := *patch.PendingRealizedAnchor
		ctx.PendingRealizedAnchor = &v
	}
	if patch.RealizedVolumeDeltaQuote != nil {
		ctx.RealizedVolumeQuote = ctx.RealizedVolumeQuote.Add(*patch.RealizedVolumeDeltaQuote)
	}
	if patch.RealizedPnLDeltaQuote != nil {
		ctx.RealizedPnLQuote = ctx.RealizedPnLQuote.Add(*patch.RealizedPnLDeltaQuote)
	}
	if patch.ClearOutOfRangeSince {
		ctx.OutOfRangeSince = nil
	} else if patch.OutOfRangeSince != nil {
		v := *patch.OutOfRangeSince
		ctx.OutOfRangeSince = &v
	}
	if patch.RecordRebalanceTS != nil {
		ctx.appendRebalanceTimestamp(*patch.RecordRebalanceTS)
		ctx.LastRebalanceTS = *patch.RecordRebalanceTS
	}
	ctx.gcRebalanceTimestamps(snapshot.Now, 3600)
	for id := range patch.RemoveRebalancePlans {
		delete(ctx.RebalancePlans, patch.RemoveRebalancePlans[id])
	}
	for id, plan := range patch.AddRebalancePlans {
		ctx.RebalancePlans[id] = plan
	}
	if patch.ClearPendingOpenLPID {
		ctx.PendingOpenLPID = ""
	} else if patch.PendingOpenLPID != nil {
		ctx.PendingOpenLPID = *patch.PendingOpenLPID
	}
	if patch.ClearPendingCloseLPID {
		ctx.PendingCloseLPID = ""
	} else if patch.PendingCloseLPID != nil {
		ctx.PendingCloseLPID = *patch.PendingCloseLPID
	}
	if patch.ClearPendingSwapID {
		ctx.PendingSwapID = ""
	} else if patch.PendingSwapID != nil {
		ctx.PendingSwapID = *patch.PendingSwapID
	}
	if patch.PendingSwapSinceTS != nil {
		ctx.PendingSwapSinceTS = *patch.PendingSwapSinceTS
	}
	if patch.AwaitingBalanceRefresh != nil {
		ctx.AwaitingBalanceRefresh = *patch.AwaitingBalanceRefresh
	}
	if patch.AwaitingBalanceRefreshSinceTS != nil {
		ctx.AwaitingBalanceRefreshSinceTS = *patch.AwaitingBalanceRefreshSinceTS
	}

	if patch.ResetInventorySwapAttempts {
		ctx.InventorySwapAttempts = 0
	} else if patch.IncrementInventorySwapAttempts {
		ctx.InventorySwapAttempts++
	}
	if patch.ResetStoplossSwapAttempts {
		ctx.StoplossSwapAttempts = 0
	} else if patch.IncrementStoplossSwapAttempts {
		ctx.StoplossSwapAttempts++
	}
	if patch.ResetNormalizationSwapAttempts {
		ctx.NormalizationSwapAttempts = 0
	} else if patch.IncrementNormalizationSwapAttempts {
		ctx.NormalizationSwapAttempts++
	}
	if patch.ResetInventoryBalanceRefreshAttempts {
		ctx.InventoryBalanceRefreshAttempts = 0
	} else if patch.IncrementInventoryBalanceRefreshAttempts {
		ctx.InventoryBalanceRefreshAttempts++
	}
	if patch.ResetStoplossBalanceRefreshAttempts {
		ctx.StoplossBalanceRefreshAttempts = 0
	} else if patch.IncrementStoplossBalanceRefreshAttempts {
		ctx.StoplossBalanceRefreshAttempts++
	}
	if patch.ResetNormalizationBalanceRefreshAttempts {
		ctx.NormalizationBalanceRefreshAttempts = 0
	} else if patch.IncrementNormalizationBalanceRefreshAttempts {
		ctx.NormalizationBalanceRefreshAttempts++
	}

	if patch.LedgerAfter != nil {
		ctx.Ledger = *patch.LedgerAfter
	}

	if patch.ClearBalanceBarrier {
		ctx.BalanceBarrier = nil
	} else if patch.SetBalanceBarrier != nil {
		b := *patch.SetBalanceBarrier
		ctx.BalanceBarrier = &b
	}

	if patch.FailureBlocked != nil {
		ctx.FailureBlocked = *patch.FailureBlocked
	}
	if patch.FailureReason != nil {
		ctx.FailureReason = *patch.FailureReason
	}
	if patch.CooldownUntilTS != nil {
		ctx.CooldownUntilTS = *patch.CooldownUntilTS
	}
	if patch.LastExitReason != nil {
		ctx.LastExitReason = *patch.LastExitReason
	}

	for pos, rate := range patch.UpdateFeeRateEWMA {
		fc := ctx.FeeContext(pos)
		fc.FeeRateEWMA = rate
		fc.Seeded = true
	}
	for pos, ts := range patch.UpdateFeeRateSeenTS {
		ctx.FeeContext(pos).SeenTS = ts
	}
	for pos, fee := range patch.UpdateFeeRateLastFee {
		ctx.FeeContext(pos).LastFeeQuote = fee
	}
}
