package clmm

import "clmm-lp-agent/pkg/money"

const maxSwapAttempts = 3

func valueOr(p *money.Decimal, fallback money.Decimal) money.Decimal {
	if p == nil {
		return fallback
	}
	return *p
}

func activeLPView(snapshot Snapshot) *LPView {
	if len(snapshot.ActiveLP) == 0 {
		return nil
	}
	lp := snapshot.ActiveLP[0]
	return &lp
}

func incrementSwapAttempts(patch *DecisionPatch, purpose SwapPurpose) {
	switch purpose {
	case SwapInventory:
		patch.IncrementInventorySwapAttempts = true
	case SwapInventoryRebalance:
		patch.IncrementNormalizationSwapAttempts = true
	default:
		patch.IncrementStoplossSwapAttempts = true
	}
}

func resetSwapAttempts(patch *DecisionPatch, purpose SwapPurpose) {
	switch purpose {
	case SwapInventory:
		patch.ResetInventorySwapAttempts = true
	case SwapInventoryRebalance:
		patch.ResetNormalizationSwapAttempts = true
	default:
		patch.ResetStoplossSwapAttempts = true
	}
}

func swapAttemptsFor(ctx *ControllerContext, purpose SwapPurpose) int {
	switch purpose {
	case SwapInventory:
		return ctx.InventorySwapAttempts
	case SwapInventoryRebalance:
		return ctx.NormalizationSwapAttempts
	default:
		return ctx.StoplossSwapAttempts
	}
}

// balanceRefreshGate stalls the caller until a fresh balance observation
// arrives, and fails out to cooldown if the refresh itself times out.
func balanceRefreshGate(snapshot Snapshot, ctx *ControllerContext, cfg *Config, patch *DecisionPatch, flow IntentFlow, refreshReason string) (Decision, bool) {
	if snapshot.BalanceFresh {
		if ctx.AwaitingBalanceRefresh {
			patch.AwaitingBalanceRefresh = ptrBool(false)
		}
		return Decision{}, false
	}
	if !ctx.AwaitingBalanceRefresh {
		patch.AwaitingBalanceRefresh = ptrBool(true)
		patch.AwaitingBalanceRefreshSinceTS = ptrF64(snapshot.Now)
		return waitDecision(flow, refreshReason, *patch), true
	}
	if snapshot.Now-ctx.AwaitingBalanceRefreshSinceTS > cfg.BalanceRefreshTimeoutSec {
		patch.AwaitingBalanceRefresh = ptrBool(false)
		patch.NewState = transitionTo(StateCooldown)
		patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
		patch.LastExitReason = ptrStr(ReasonBalanceSyncTimeout)
		return waitDecision(flow, ReasonBalanceSyncTimeout, *patch), true
	}
	return waitDecision(flow, refreshReason, *patch), true
}

// computeOpenProposal re-derives the venue range and target split from the
// live snapshot. Called both when first proposing an entry/rebalance open
// and again each tick a pending swap waits, since the range itself is cheap
// to recompute and always reflects the latest price.
func computeOpenProposal(snapshot Snapshot, ctx *ControllerContext, cfg *Config, policy Policy, adapter PoolDomainAdapter) (OpenProposal, RangePlan, string, bool) {
	if !policy.IsReady() {
		return OpenProposal{}, RangePlan{}, ReasonRangeUnavailable, false
	}
	price := snapshot.CurrentPrice
	if price == nil {
		return OpenProposal{}, RangePlan{}, ReasonPriceUnavailable, false
	}
	rng, ok := policy.RangePlan(*price, adapter)
	if !ok {
		return OpenProposal{}, RangePlan{}, ReasonRangeUnavailable, false
	}
	proposal, reason, ok := BuildOpenProposal(ProposalParams{
		Price:              *price,
		WalletBase:         snapshot.WalletBase,
		WalletQuote:        snapshot.WalletQuote,
		Anchor:             ctx.AnchorValueQuote,
		ConfiguredCap:      cfg.PositionValueQuote,
		DeployedValueQuote: ctx.Ledger.DeployedValueQuote(*price),
		FixedReserveQuote:  cfg.FixedReserveQuote,
		Lower:              rng.Lower,
		Upper:              rng.Upper,
		Policy:             policy,
		SwapMinValuePct:    cfg.SwapMinValuePct,
	})
	return proposal, rng, reason, ok
}

// decideIdle evaluates whether a new position should be opened.
func decideIdle(snapshot Snapshot, ctx *ControllerContext, cfg *Config, policy Policy, adapter PoolDomainAdapter, patch DecisionPatch) Decision {
	if lp := activeLPView(snapshot); lp != nil {
		price := snapshot.CurrentPrice
		if price == nil {
			price = lp.CurrentPrice
		}
		if price != nil {
			eq := equity(snapshot, ctx, *price)
			a := clampAnchor(eq, cfg.PositionValueQuote)
			patch.AnchorValueQuote = &a
		}
		patch.NewState = transitionTo(StateActive)
		return waitDecision(FlowNone, ReasonInRange, patch)
	}

	if !cfg.ReenterEnabled && ctx.LastExitReason == "stop_loss" {
		return waitDecision(FlowEntry, ReasonReenterDisabled, patch)
	}

	price := snapshot.CurrentPrice
	if price == nil {
		return waitDecision(FlowEntry, ReasonPriceUnavailable, patch)
	}

	if cfg.TargetPrice != nil && !priceTriggerMatches(*price, *cfg.TargetPrice, cfg.TriggerAbove) {
		return waitDecision(FlowEntry, ReasonWaiting, patch)
	}

	proposal, _, reason, ok := computeOpenProposal(snapshot, ctx, cfg, policy, adapter)
	if !ok {
		return waitDecision(FlowEntry, reason, patch)
	}

	if proposal.NeedsSwap {
		if !cfg.AutoSwapEnabled {
			return waitDecision(FlowEntry, ReasonSwapRequired, patch)
		}
		action, id := buildInventorySwapAction(ctx.ControllerID, snapshot.Now, proposal, cfg, cfg.TradingPair, SwapInventory)
		patch.PendingSwapID = ptrStr(id)
		patch.PendingSwapSinceTS = ptrF64(snapshot.Now)
		patch.NewState = transitionTo(StateEntrySwap)
		return Decision{
			Intent:  Intent{Flow: FlowEntry, Stage: StageSubmitSwap, Reason: ReasonSwapRequired},
			Actions: []Action{action},
			Patch:   patch,
		}
	}

	action, id := buildOpenLPAction(ctx.ControllerID, snapshot.Now, proposal, cfg, adapter, cfg.PoolAddress, cfg.TradingPair)
	patch.PendingOpenLPID = ptrStr(id)
	patch.NewState = transitionTo(StateEntryOpen)
	return Decision{
		Intent:  Intent{Flow: FlowEntry, Stage: StageSubmitLP, Reason: ReasonOpenInProgress},
		Actions: []Action{action},
		Patch:   patch,
	}
}

// decideOpenPending watches a CREATE_EXECUTOR(lp_position) action through to
// confirmation, shared by ENTRY_OPEN and REBALANCE_OPEN.
func decideOpenPending(snapshot Snapshot, ctx *ControllerContext, cfg *Config, patch DecisionPatch, flow IntentFlow, timeoutReason string, nextState ControllerState) Decision {
	id := ctx.PendingOpenLPID
	lp, ok := snapshot.LP[id]
	if !ok {
		if snapshot.Now-ctx.StateSinceTS > cfg.OpenTimeoutSec {
			patch.ClearPendingOpenLPID = true
			patch.NewState = transitionTo(StateCooldown)
			patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
			patch.LastExitReason = ptrStr(timeoutReason)
			return waitDecision(flow, timeoutReason, patch)
		}
		return waitDecision(flow, ReasonOpenInProgress, patch)
	}

	switch lp.State {
	case LPInRange, LPOutOfRange:
		price := snapshot.CurrentPrice
		if price == nil {
			price = lp.CurrentPrice
		}
		ledgerAfter := ctx.Ledger.RecordOpen(lp.BaseAmount, lp.QuoteAmount, valueOr(price, money.One), ctx.AnchorValueQuote)
		patch.LedgerAfter = &ledgerAfter
		if ctx.AnchorValueQuote == nil && price != nil {
			eq := equity(snapshot, ctx, *price)
			a := clampAnchor(eq, cfg.PositionValueQuote)
			patch.AnchorValueQuote = &a
		}
		patch.ClearPendingOpenLPID = true
		patch.NewState = transitionTo(nextState)
		return waitDecision(flow, ReasonInRange, patch)
	case LPRetriesExceeded:
		patch.ClearPendingOpenLPID = true
		patch.NewState = transitionTo(StateCooldown)
		patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
		patch.LastExitReason = ptrStr(ReasonRetriesExceeded)
		return waitDecision(flow, ReasonRetriesExceeded, patch)
	}

	if lp.IsDone && lp.CloseType == CloseFailed {
		patch.ClearPendingOpenLPID = true
		patch.NewState = transitionTo(StateCooldown)
		patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
		patch.LastExitReason = ptrStr(ReasonExecutorFailed)
		return waitDecision(flow, ReasonExecutorFailed, patch)
	}

	if snapshot.Now-ctx.StateSinceTS > cfg.OpenTimeoutSec {
		patch.ClearPendingOpenLPID = true
		patch.NewState = transitionTo(StateCooldown)
		patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
		patch.LastExitReason = ptrStr(timeoutReason)
		return Decision{
			Intent:  Intent{Flow: flow, Stage: StageStopLP, Reason: timeoutReason},
			Actions: []Action{stopAction(ctx.ControllerID, id)},
			Patch:   patch,
		}
	}

	return waitDecision(flow, ReasonOpenInProgress, patch)
}

// submitInventorySwap builds (or watches) the ratio-correcting swap used by
// the entry and rebalance-reopen flows.
func submitInventorySwap(snapshot Snapshot, ctx *ControllerContext, cfg *Config, policy Policy, adapter PoolDomainAdapter, patch DecisionPatch, flow IntentFlow, purpose SwapPurpose) Decision {
	if d, stop := balanceRefreshGate(snapshot, ctx, cfg, &patch, flow, ReasonEntryRefreshBalance); stop {
		return d
	}

	if swapAttemptsFor(ctx, purpose) >= maxSwapAttempts {
		patch.NewState = transitionTo(StateCooldown)
		patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
		patch.LastExitReason = ptrStr(ReasonRetriesExceeded)
		return waitDecision(flow, ReasonRetriesExceeded, patch)
	}

	proposal, _, reason, ok := computeOpenProposal(snapshot, ctx, cfg, policy, adapter)
	if !ok {
		return waitDecision(flow, reason, patch)
	}
	if !proposal.NeedsSwap || !cfg.AutoSwapEnabled {
		return waitDecision(flow, ReasonSwapRequired, patch)
	}

	action, id := buildInventorySwapAction(ctx.ControllerID, snapshot.Now, proposal, cfg, cfg.TradingPair, purpose)
	patch.PendingSwapID = ptrStr(id)
	patch.PendingSwapSinceTS = ptrF64(snapshot.Now)
	incrementSwapAttempts(&patch, purpose)
	return Decision{
		Intent:  Intent{Flow: flow, Stage: StageSubmitSwap, Reason: ReasonSwapRequired},
		Actions: []Action{action},
		Patch:   patch,
	}
}

// submitLiquidationSwap builds (or watches) the sell-down-to-reserve swap
// used by the stoploss-swap flow.
func submitLiquidationSwap(snapshot Snapshot, ctx *ControllerContext, cfg *Config, patch DecisionPatch, flow IntentFlow, nextState ControllerState, purpose SwapPurpose) Decision {
	if d, stop := balanceRefreshGate(snapshot, ctx, cfg, &patch, flow, ReasonExitRefreshBalance); stop {
		return d
	}

	sellBase := snapshot.WalletBase.Sub(cfg.MinNativeReserve).Max(money.Zero)
	if sellBase.IsZero() || !cfg.AutoSwapEnabled {
		patch.NewState = transitionTo(nextState)
		return waitDecision(flow, ReasonInRange, patch)
	}

	action, id := buildExitSwapAction(ctx.ControllerID, snapshot.Now, sellBase, cfg, cfg.TradingPair, purpose)
	patch.PendingSwapID = ptrStr(id)
	patch.PendingSwapSinceTS = ptrF64(snapshot.Now)
	incrementSwapAttempts(&patch, purpose)
	return Decision{
		Intent:  Intent{Flow: flow, Stage: StageSubmitSwap, Reason: ReasonSwapRequired},
		Actions: []Action{action},
		Patch:   patch,
	}
}

// decideSwapPending watches a pending CREATE_EXECUTOR(gateway_swap) action
// through to confirmation, shared by ENTRY_SWAP, REBALANCE_SWAP and
// STOPLOSS_SWAP.
func decideSwapPending(snapshot Snapshot, ctx *ControllerContext, cfg *Config, policy Policy, adapter PoolDomainAdapter, patch DecisionPatch, flow IntentFlow, nextState ControllerState, purpose SwapPurpose) Decision {
	if ctx.PendingSwapID == "" {
		if purpose == SwapStoploss {
			return submitLiquidationSwap(snapshot, ctx, cfg, patch, flow, nextState, purpose)
		}
		return submitInventorySwap(snapshot, ctx, cfg, policy, adapter, patch, flow, purpose)
	}

	sw, ok := snapshot.Swaps[ctx.PendingSwapID]
	if !ok {
		if snapshot.Now-ctx.PendingSwapSinceTS > pendingSwapGraceSec {
			patch.ClearPendingSwapID = true
			patch.NewState = transitionTo(StateCooldown)
			patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
			patch.LastExitReason = ptrStr(ReasonSwapTimeout)
			return waitDecision(flow, ReasonSwapTimeout, patch)
		}
		return waitDecision(flow, ReasonSwapPending, patch)
	}

	if sw.IsActive {
		return waitDecision(flow, ReasonSwapPending, patch)
	}

	if sw.CloseType == CloseCompleted {
		price := snapshot.CurrentPrice
		if price == nil {
			return waitDecision(flow, ReasonPriceUnavailable, patch)
		}
		ledgerAfter := ctx.Ledger.RecordSwapDelta(valueOr(sw.DeltaBase, money.Zero), valueOr(sw.DeltaQuote, money.Zero), *price, ctx.AnchorValueQuote)
		patch.LedgerAfter = &ledgerAfter
		patch.ClearPendingSwapID = true
		patch.NewState = transitionTo(nextState)
		resetSwapAttempts(&patch, purpose)
		return Decision{Intent: Intent{Flow: flow, Stage: StageWait, Reason: ReasonSwapRequired}, Patch: patch}
	}

	patch.ClearPendingSwapID = true
	patch.NewState = transitionTo(StateCooldown)
	patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
	patch.LastExitReason = ptrStr(ReasonExecutorFailed)
	return waitDecision(flow, ReasonExecutorFailed, patch)
}

// decideActive watches the single open LP: stop-loss/take-profit predicates
// run first against a fixed anchor, then the rebalance engine.
func decideActive(snapshot Snapshot, ctx *ControllerContext, cfg *Config, policy Policy, patch DecisionPatch) Decision {
	lp := activeLPView(snapshot)
	if lp == nil {
		patch.NewState = transitionTo(StateIdle)
		patch.ClearAnchor = true
		return waitDecision(FlowNone, ReasonInRange, patch)
	}

	price := snapshot.CurrentPrice
	if price == nil {
		price = lp.CurrentPrice
	}
	if price == nil {
		return waitDecision(FlowNone, ReasonPriceUnavailable, patch)
	}

	eq := equity(snapshot, ctx, *price)
	anchor := ctx.AnchorValueQuote
	if anchor == nil {
		a := clampAnchor(eq, cfg.PositionValueQuote)
		patch.AnchorValueQuote = &a
		anchor = &a
	}

	if ShouldStoploss(*anchor, eq, cfg.StopLossPnLPct) {
		patch.PendingRealizedAnchor = anchor
		patch.PendingCloseLPID = ptrStr(lp.ExecutorID)
		patch.LastExitReason = ptrStr("stop_loss")
		patch.NewState = transitionTo(StateStoplossStop)
		return Decision{
			Intent:  Intent{Flow: FlowStoploss, Stage: StageStopLP, Reason: "stop_loss"},
			Actions: []Action{stopAction(ctx.ControllerID, lp.ExecutorID)},
			Patch:   patch,
		}
	}
	if ShouldTakeProfit(*anchor, eq, cfg.TakeProfitPnLPct) {
		patch.PendingRealizedAnchor = anchor
		patch.PendingCloseLPID = ptrStr(lp.ExecutorID)
		patch.LastExitReason = ptrStr("take_profit")
		patch.NewState = transitionTo(StateTakeProfitStop)
		return Decision{
			Intent:  Intent{Flow: FlowTakeProfit, Stage: StageStopLP, Reason: "take_profit"},
			Actions: []Action{stopAction(ctx.ControllerID, lp.ExecutorID)},
			Patch:   patch,
		}
	}

	eval := Evaluate(cfg.RebalanceConfig(), snapshot.Now, price, *lp, ctx)
	if eval.ClearOutOfRangeSince {
		patch.ClearOutOfRangeSince = true
	} else if eval.OutOfRangeSince != nil {
		patch.OutOfRangeSince = eval.OutOfRangeSince
	}

	if eval.ShouldRebalance {
		patch.PendingRealizedAnchor = anchor
		patch.PendingCloseLPID = ptrStr(lp.ExecutorID)
		patch.RecordRebalanceTS = ptrF64(snapshot.Now)
		patch.NewState = transitionTo(StateRebalanceStop)
		return Decision{
			Intent:  Intent{Flow: FlowRebalance, Stage: StageStopLP, Reason: eval.Reason},
			Actions: []Action{stopAction(ctx.ControllerID, lp.ExecutorID)},
			Patch:   patch,
		}
	}

	return waitDecision(FlowNone, eval.Reason, patch)
}

// decideStopPending watches a pending STOP_EXECUTOR(lp_position) action
// through to confirmation, shared by REBALANCE_STOP, STOPLOSS_STOP and
// TAKE_PROFIT_STOP. Invariant 3: realized_volume_quote always grows by the
// anchor that was in force at close, never by equity.
func decideStopPending(snapshot Snapshot, ctx *ControllerContext, cfg *Config, patch DecisionPatch, flow IntentFlow, nextState ControllerState, exitReasonTag string) Decision {
	id := ctx.PendingCloseLPID
	if lp, ok := snapshot.LP[id]; id != "" && ok && lp.IsActive && !lp.IsDone {
		return waitDecision(flow, ReasonWaiting, patch)
	}

	price := snapshot.CurrentPrice
	if price == nil {
		return waitDecision(flow, ReasonPriceUnavailable, patch)
	}

	ledgerAfter := ctx.Ledger
	if closedLP, hadLP := snapshot.LP[id]; hadLP {
		ledgerAfter = ctx.Ledger.RecordClose(closedLP.BaseAmount, closedLP.QuoteAmount, *price, ctx.AnchorValueQuote)
	}
	patch.LedgerAfter = &ledgerAfter

	var anchorAtClose money.Decimal
	if ctx.PendingRealizedAnchor != nil {
		anchorAtClose = *ctx.PendingRealizedAnchor
	} else if ctx.AnchorValueQuote != nil {
		anchorAtClose = *ctx.AnchorValueQuote
	}

	eqAfterClose := ledgerAfter.TotalValueQuote(*price)
	pnlDelta := eqAfterClose.Sub(anchorAtClose)
	patch.RealizedPnLDeltaQuote = &pnlDelta
	patch.RealizedVolumeDeltaQuote = &anchorAtClose
	patch.ClearPendingRealizedAnchor = true
	patch.ClearPendingCloseLPID = true
	patch.ClearAnchor = true

	if exitReasonTag != "" {
		patch.LastExitReason = ptrStr(exitReasonTag)
	}

	patch.NewState = transitionTo(nextState)
	if nextState == StateCooldown {
		patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
	}

	return Decision{
		Intent: Intent{Flow: flow, Stage: StageWait, Reason: ReasonWaiting},
		Patch:  patch,
	}
}

// decideExitSwap liquidates whatever base remains above the configured
// native reserve, then transitions to cooldown. Entered after a stop-loss or
// take-profit close when exit_full_liquidation is enabled, and directly by
// a manual kill when no LP is active.
func decideExitSwap(snapshot Snapshot, ctx *ControllerContext, cfg *Config, patch DecisionPatch) Decision {
	if snapshot.BalanceUpdateTS < ctx.StateSinceTS {
		if !ctx.AwaitingBalanceRefresh {
			patch.AwaitingBalanceRefresh = ptrBool(true)
			patch.AwaitingBalanceRefreshSinceTS = ptrF64(snapshot.Now)
		}
		return waitDecision(FlowManual, ReasonExitRefreshBalance, patch)
	}
	if ctx.AwaitingBalanceRefresh {
		patch.AwaitingBalanceRefresh = ptrBool(false)
	}

	if ctx.PendingSwapID != "" {
		sw, ok := snapshot.Swaps[ctx.PendingSwapID]
		if !ok {
			if snapshot.Now-ctx.PendingSwapSinceTS > pendingSwapGraceSec {
				patch.ClearPendingSwapID = true
				patch.NewState = transitionTo(StateCooldown)
				patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
				return waitDecision(FlowManual, ReasonSwapTimeout, patch)
			}
			return waitDecision(FlowManual, ReasonSwapPending, patch)
		}
		if sw.IsActive {
			return waitDecision(FlowManual, ReasonSwapPending, patch)
		}
		if sw.CloseType == CloseCompleted {
			if price := snapshot.CurrentPrice; price != nil {
				ledgerAfter := ctx.Ledger.RecordSwapDelta(valueOr(sw.DeltaBase, money.Zero), valueOr(sw.DeltaQuote, money.Zero), *price, nil)
				patch.LedgerAfter = &ledgerAfter
			}
			patch.ClearPendingSwapID = true
			patch.NewState = transitionTo(StateCooldown)
			patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
			return waitDecision(FlowManual, ReasonInRange, patch)
		}
		patch.ClearPendingSwapID = true
		patch.NewState = transitionTo(StateCooldown)
		patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
		patch.LastExitReason = ptrStr(ReasonExecutorFailed)
		return waitDecision(FlowManual, ReasonExecutorFailed, patch)
	}

	sellBase := snapshot.WalletBase.Sub(cfg.MinNativeReserve).Max(money.Zero)
	if sellBase.IsZero() || !cfg.AutoSwapEnabled {
		patch.NewState = transitionTo(StateCooldown)
		patch.CooldownUntilTS = ptrF64(snapshot.Now + cfg.CooldownSeconds)
		return waitDecision(FlowManual, ReasonInRange, patch)
	}

	action, id := buildExitSwapAction(ctx.ControllerID, snapshot.Now, sellBase, cfg, cfg.TradingPair, SwapExitLiquidation)
	patch.PendingSwapID = ptrStr(id)
	patch.PendingSwapSinceTS = ptrF64(snapshot.Now)
	return Decision{
		Intent:  Intent{Flow: FlowManual, Stage: StageSubmitSwap, Reason: ReasonSwapRequired},
		Actions: []Action{action},
		Patch:   patch,
	}
}
