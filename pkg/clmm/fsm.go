package clmm

import "clmm-lp-agent/pkg/money"

const pendingSwapGraceSec = 30

// Decide is the core's single entry point: a synchronous, side-effect-free
// function of (snapshot, ctx, cfg) to (patch, actions). It never samples
// wall time, never performs I/O, and never panics on bad input — every
// failure path returns a WAIT/FAILURE Decision with a stable reason string.
func Decide(snapshot Snapshot, ctx *ControllerContext, cfg *Config, policy Policy, adapter PoolDomainAdapter) Decision {
	// Work on a copy: the ledger re-sync and any fee-estimator entries created
	// while reading stay local, so the caller's ctx changes only via ApplyPatch.
	view := *ctx
	view.FeeByPosition = make(map[string]*FeeEstimatorContext, len(ctx.FeeByPosition))
	for pos, fc := range ctx.FeeByPosition {
		view.FeeByPosition[pos] = fc
	}
	view.SeedLedger(cfg.PositionValueQuote, snapshot.WalletBase, snapshot.WalletQuote)
	ctx = &view

	patch := reconcile(snapshot, ctx)

	if d, stop := concurrencyGuard(snapshot, ctx, patch); stop {
		return d
	}

	if snapshot.ManualKill && ctx.State != StateStoplossStop && ctx.State != StateStoplossSwap &&
		ctx.State != StateTakeProfitStop && ctx.State != StateExitSwap {
		return manualKillDecision(snapshot, ctx, patch)
	}

	if ctx.FailureBlocked && patch.FailureBlocked == nil {
		return waitDecision(FlowFailure, ReasonFailureBlocked, patch)
	}

	switch ctx.State {
	case StateIdle:
		return decideIdle(snapshot, ctx, cfg, policy, adapter, patch)
	case StateEntryOpen:
		return decideOpenPending(snapshot, ctx, cfg, patch, FlowEntry, ReasonEntryOpenTimeout, StateActive)
	case StateRebalanceOpen:
		return decideOpenPending(snapshot, ctx, cfg, patch, FlowRebalance, ReasonRebalanceOpenTimeout, StateActive)
	case StateEntrySwap:
		return decideSwapPending(snapshot, ctx, cfg, policy, adapter, patch, FlowEntry, StateEntryOpen, SwapInventory)
	case StateRebalanceSwap:
		return decideSwapPending(snapshot, ctx, cfg, policy, adapter, patch, FlowRebalance, StateRebalanceOpen, SwapInventory)
	case StateActive:
		return decideActive(snapshot, ctx, cfg, policy, patch)
	case StateRebalanceStop:
		return decideStopPending(snapshot, ctx, cfg, patch, FlowRebalance, StateRebalanceSwap, "")
	case StateStoplossStop:
		return decideStopPending(snapshot, ctx, cfg, patch, FlowStoploss, exitOrCooldown(cfg), "stop_loss")
	case StateTakeProfitStop:
		return decideStopPending(snapshot, ctx, cfg, patch, FlowTakeProfit, exitOrIdle(cfg), "take_profit")
	case StateStoplossSwap:
		return decideSwapPending(snapshot, ctx, cfg, policy, adapter, patch, FlowStoploss, StateCooldown, SwapStoploss)
	case StateExitSwap:
		return decideExitSwap(snapshot, ctx, cfg, patch)
	case StateCooldown:
		return decideCooldown(snapshot, ctx, patch)
	default:
		return waitDecision(FlowNone, ReasonFailureBlocked, patch)
	}
}

func exitOrCooldown(cfg *Config) ControllerState {
	if cfg.ExitFullLiquidation {
		return StateExitSwap
	}
	return StateCooldown
}

func exitOrIdle(cfg *Config) ControllerState {
	if cfg.ExitFullLiquidation {
		return StateExitSwap
	}
	return StateIdle
}

// reconcile performs the per-tick housekeeping that must run before any
// stateful dispatch: balance-barrier cleanup, then fee-rate EWMA refresh.
// Completed-swap handling is state-specific and lives in decideSwapPending
// / decideExitSwap since only those states hold a pending swap id.
func reconcile(snapshot Snapshot, ctx *ControllerContext) DecisionPatch {
	var patch DecisionPatch

	if ctx.BalanceBarrier != nil {
		switch CheckBarrier(*ctx.BalanceBarrier, snapshot.WalletBase, snapshot.WalletQuote, snapshot.Now) {
		case BarrierCleared:
			patch.ClearBalanceBarrier = true
			patch.AwaitingBalanceRefresh = ptrBool(false)
		case BarrierTimedOut:
			patch.ClearBalanceBarrier = true
			patch.FailureBlocked = ptrBool(true)
			patch.FailureReason = ptrStr(ReasonBalanceSyncTimeout)
		case BarrierPending:
		}
	}

	feeRates := map[string]money.Decimal{}
	feeSeen := map[string]float64{}
	feeLast := map[string]money.Decimal{}
	for _, lp := range snapshot.ActiveLP {
		if lp.PositionAddress == "" {
			continue
		}
		fc := ctx.FeeContext(lp.PositionAddress)
		pendingFee := lp.BaseFee.Add(lp.QuoteFee)
		updated := UpdateFeeRateEWMA(snapshot.Now, pendingFee, *fc)
		feeRates[lp.PositionAddress] = updated.FeeRateEWMA
		feeSeen[lp.PositionAddress] = updated.SeenTS
		feeLast[lp.PositionAddress] = updated.LastFeeQuote
	}
	if len(feeRates) > 0 {
		patch.UpdateFeeRateEWMA = feeRates
		patch.UpdateFeeRateSeenTS = feeSeen
		patch.UpdateFeeRateLastFee = feeLast
	}
	return patch
}

// concurrencyGuard enforces at most one active LP and at most one active
// swap (by purpose precedence), per invariant 1/2.
func concurrencyGuard(snapshot Snapshot, ctx *ControllerContext, patch DecisionPatch) (Decision, bool) {
	var actions []Action

	if len(snapshot.ActiveLP) > 1 {
		keep := lowestLPExecutorID(snapshot.ActiveLP)
		for _, lp := range snapshot.ActiveLP {
			if lp.ExecutorID == keep {
				continue
			}
			actions = append(actions, Action{Type: ActionStopExecutor, ControllerID: ctx.ControllerID, StopExecutorID: lp.ExecutorID})
		}
	}

	if len(snapshot.ActiveSwaps) > 1 {
		best := snapshot.ActiveSwaps[0]
		for _, sw := range snapshot.ActiveSwaps[1:] {
			if swapPurposePrecedence[sw.Purpose] < swapPurposePrecedence[best.Purpose] {
				best = sw
			}
		}
		for _, sw := range snapshot.ActiveSwaps {
			if sw.ExecutorID == best.ExecutorID {
				continue
			}
			actions = append(actions, Action{Type: ActionStopExecutor, ControllerID: ctx.ControllerID, StopExecutorID: sw.ExecutorID})
		}
	}

	if len(actions) == 0 {
		return Decision{}, false
	}
	return Decision{
		Intent:  Intent{Flow: FlowNone, Stage: StageStopLP, Reason: ReasonConcurrencyGuard},
		Actions: actions,
		Patch:   patch,
	}, true
}

// manualKillDecision stops all LPs and active swaps and forces the exit
// path, regardless of the state the controller was in.
func manualKillDecision(snapshot Snapshot, ctx *ControllerContext, patch DecisionPatch) Decision {
	var actions []Action
	for _, lp := range snapshot.ActiveLP {
		actions = append(actions, Action{Type: ActionStopExecutor, ControllerID: ctx.ControllerID, StopExecutorID: lp.ExecutorID})
	}
	for _, sw := range snapshot.ActiveSwaps {
		actions = append(actions, Action{Type: ActionStopExecutor, ControllerID: ctx.ControllerID, StopExecutorID: sw.ExecutorID})
	}

	if ctx.AnchorValueQuote != nil {
		patch.PendingRealizedAnchor = ctx.AnchorValueQuote
	}
	patch.LastExitReason = ptrStr(ReasonManualKill)
	patch.CooldownUntilTS = ptrF64(0)

	next := StateStoplossStop
	if len(snapshot.ActiveLP) == 0 {
		next = StateExitSwap
	}
	patch.NewState = transitionTo(next)

	return Decision{
		Intent:  Intent{Flow: FlowManual, Stage: StageStopLP, Reason: ReasonManualKill},
		Actions: actions,
		Patch:   patch,
	}
}

func decideCooldown(snapshot Snapshot, ctx *ControllerContext, patch DecisionPatch) Decision {
	if snapshot.Now < ctx.CooldownUntilTS {
		return waitDecision(FlowNone, ReasonCooldown, patch)
	}
	patch.NewState = transitionTo(StateIdle)
	patch.ClearOutOfRangeSince = true
	return Decision{Intent: Intent{Flow: FlowNone, Stage: StageWait, Reason: ReasonCooldown}, Patch: patch}
}
