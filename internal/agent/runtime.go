package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeromicro/go-zero/core/logx"

	"clmm-lp-agent/internal/metrics"
	"clmm-lp-agent/pkg/clmm"
	"clmm-lp-agent/pkg/journal"
)

// CycleRecorder persists a completed decision cycle; internal/repo.DecisionCyclesRepo
// satisfies this, kept narrow here so runtime doesn't need to import internal/repo.
type CycleRecorder interface {
	Record(ctx context.Context, rec CycleRecordInput) error
}

// CycleRecordInput is the subset of a decision cycle the runtime hands to a
// CycleRecorder; kept structurally compatible with repo.CycleRecord.
type CycleRecordInput struct {
	ControllerID             string
	CycleNumber              int64
	TickTimestamp            float64
	FromState                string
	ToState                  string
	Reason                   string
	Actions                  []clmm.Action
	RealizedPnLDeltaQuote    *string
	RealizedVolumeDeltaQuote *string
	CreatedAt                int64
}

// Runtime ticks every active PoolAgent on its own cadence, driving the
// assemble-Decide-apply-dispatch loop the teacher's cron monitor used for
// market/exchange polling, retargeted to one clmm.Decide call per pool.
type Runtime struct {
	agents      map[string]*PoolAgent
	recorder    CycleRecorder
	coordinator clmm.BudgetCoordinator
	seq         map[string]int64
}

// NewRuntime constructs a Runtime over a set of pool agents keyed by
// controller id. recorder may be nil to disable decision-cycle persistence;
// coordinator may be nil when a single pool owns its wallet outright, in
// which case budget reservation is skipped entirely.
func NewRuntime(agents map[string]*PoolAgent, recorder CycleRecorder, coordinator clmm.BudgetCoordinator) *Runtime {
	return &Runtime{
		agents:      agents,
		recorder:    recorder,
		coordinator: coordinator,
		seq:         make(map[string]int64, len(agents)),
	}
}

// Tick runs one round: every active agent whose decision interval has
// elapsed gets a fresh Decide call. Errors from individual pools are logged
// and do not stop the round; a single stuck connector shouldn't starve the
// rest of the fleet.
func (r *Runtime) Tick(ctx context.Context, now time.Time) {
	metrics.ActiveControllers.Set(float64(r.countActive()))
	for id, a := range r.agents {
		if !a.ShouldTick(now) {
			continue
		}
		if err := r.tickOne(ctx, a, now); err != nil {
			logx.Errorf("agent %s: tick failed: %v", id, err)
			a.markError()
		}
	}
}

func (r *Runtime) countActive() int {
	n := 0
	for _, a := range r.agents {
		if a.IsActive() {
			n++
		}
	}
	return n
}

func (r *Runtime) tickOne(ctx context.Context, a *PoolAgent, now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ensureDomain(ctx, now) {
		return nil
	}

	price, err := a.Adapter.CurrentPrice(ctx, a.Controller.PoolAddress)
	if err != nil {
		return fmt.Errorf("current price: %w", err)
	}
	walletBase, walletQuote, fresh, updateTS, err := a.Adapter.LastObserved(ctx, a.Controller.ConnectorName)
	if err != nil {
		return fmt.Errorf("last observed balances: %w", err)
	}

	snapshot := clmm.Snapshot{
		Now:             float64(now.Unix()),
		CurrentPrice:    &price,
		BalanceFresh:    fresh,
		BalanceUpdateTS: updateTS,
		WalletBase:      walletBase,
		WalletQuote:     walletQuote,
		LP:              make(map[string]clmm.LPView, len(a.trackedLP)),
		Swaps:           make(map[string]clmm.SwapView, len(a.trackedSwaps)),
	}
	if err := a.refreshTrackedExecutors(ctx, &snapshot); err != nil {
		return fmt.Errorf("refresh tracked executors: %w", err)
	}

	timer := prometheusTimer(a.ID)
	decision := clmm.Decide(snapshot, a.Ctx, a.Controller, a.Policy, *a.domain)
	timer()

	fromState := string(a.Ctx.State)
	clmm.ApplyPatch(a.Ctx, snapshot, decision.Patch)
	toState := string(a.Ctx.State)
	if fromState != toState {
		metrics.StateTransitions.WithLabelValues(a.ID, fromState, toState).Inc()
		recordExitTrigger(a.ID, toState, decision.Intent.Reason)
	}
	r.recordActionMetrics(a.ID, decision.Intent.Flow, decision.Actions)

	if err := r.dispatch(ctx, a, decision.Actions); err != nil {
		return fmt.Errorf("dispatch actions: %w", err)
	}

	a.RecordTick(now)
	r.seq[a.ID]++

	r.persist(ctx, a, fromState, toState, decision, now)
	a.writeJournal(fromState, toState, decision, now)
	return nil
}

// recordExitTrigger counts entry into a stop-loss/take-profit stop state, or
// into EXIT_SWAP on a manual kill, labeled by the reason Decide surfaced for
// the transition.
func recordExitTrigger(controllerID, toState, reason string) {
	switch clmm.ControllerState(toState) {
	case clmm.StateStoplossStop, clmm.StateStoplossSwap:
		metrics.ExitTriggers.WithLabelValues(controllerID, reason).Inc()
	case clmm.StateTakeProfitStop:
		metrics.ExitTriggers.WithLabelValues(controllerID, reason).Inc()
	case clmm.StateExitSwap:
		if reason == clmm.ReasonManualKill {
			metrics.ExitTriggers.WithLabelValues(controllerID, reason).Inc()
		}
	}
}

func (r *Runtime) recordActionMetrics(controllerID string, flow clmm.IntentFlow, actions []clmm.Action) {
	for _, act := range actions {
		switch {
		case act.SwapConfig != nil:
			metrics.SwapAttempts.WithLabelValues(controllerID, act.SwapConfig.LevelID).Inc()
		case act.Type == clmm.ActionStopExecutor && flow == clmm.FlowRebalance:
			metrics.Rebalances.WithLabelValues(controllerID).Inc()
		}
	}
}

func (r *Runtime) persist(ctx context.Context, a *PoolAgent, fromState, toState string, d clmm.Decision, now time.Time) {
	if r.recorder == nil {
		return
	}
	rec := CycleRecordInput{
		ControllerID:  a.ID,
		CycleNumber:   r.seq[a.ID],
		TickTimestamp: float64(now.Unix()),
		FromState:     fromState,
		ToState:       toState,
		Reason:        d.Intent.Reason,
		Actions:       d.Actions,
		CreatedAt:     now.Unix(),
	}
	if d.Patch.RealizedPnLDeltaQuote != nil {
		v := d.Patch.RealizedPnLDeltaQuote.String()
		rec.RealizedPnLDeltaQuote = &v
	}
	if d.Patch.RealizedVolumeDeltaQuote != nil {
		v := d.Patch.RealizedVolumeDeltaQuote.String()
		rec.RealizedVolumeDeltaQuote = &v
	}
	if err := r.recorder.Record(ctx, rec); err != nil {
		logx.Errorf("agent %s: persist decision cycle: %v", a.ID, err)
	}
}

func prometheusTimer(controllerID string) func() {
	start := time.Now()
	return func() {
		metrics.DecisionLatency.WithLabelValues(controllerID).Observe(time.Since(start).Seconds())
	}
}

// ensureDomain lazily resolves the pool's token orientation (and, for a V3
// policy, its tick spacing) on first use; the connector is the only party
// that knows chain-side token ordering. Reports
// false (without erroring the agent) when resolution fails, so a connector
// that's still warming up just delays the tick instead of tripping StateError.
func (a *PoolAgent) ensureDomain(ctx context.Context, now time.Time) bool {
	if a.domain != nil {
		a.Ctx.DomainReady = true
		return true
	}
	info, err := a.Adapter.Resolve(ctx, a.Controller.PoolAddress)
	if err != nil {
		a.Ctx.DomainReady = false
		a.Ctx.DomainError = err.Error()
		logx.Errorf("agent %s: %s: %v", a.ID, clmm.ReasonDomainNotReady, err)
		return false
	}
	domain := clmm.NewPoolDomainAdapter(
		common.HexToAddress(info.BaseToken),
		common.HexToAddress(info.QuoteToken),
		common.HexToAddress(info.Token0),
		common.HexToAddress(info.Token1),
	)
	a.domain = &domain
	if v3, ok := a.Policy.(*clmm.V3Policy); ok {
		v3.UpdateTickSpacing(info.TickSpacing)
	}
	a.Ctx.DomainReady = true
	a.Ctx.DomainError = ""
	a.Ctx.DomainResolvedTS = float64(now.Unix())
	return true
}

// refreshTrackedExecutors populates the snapshot's LP/Swaps views from the
// agent's tracked executor ids plus any pending open/close/swap id the
// controller context is currently waiting on.
func (a *PoolAgent) refreshTrackedExecutors(ctx context.Context, snapshot *clmm.Snapshot) error {
	ids := make(map[string]struct{}, len(a.trackedLP)+len(a.trackedSwaps)+3)
	for id := range a.trackedLP {
		ids[id] = struct{}{}
	}
	for id := range a.trackedSwaps {
		ids[id] = struct{}{}
	}
	if a.Ctx.PendingOpenLPID != "" {
		ids[a.Ctx.PendingOpenLPID] = struct{}{}
	}
	if a.Ctx.PendingCloseLPID != "" {
		ids[a.Ctx.PendingCloseLPID] = struct{}{}
	}
	if a.Ctx.PendingSwapID != "" {
		ids[a.Ctx.PendingSwapID] = struct{}{}
	}

	activeLP := make([]clmm.LPView, 0, len(ids))
	activeSwaps := make([]clmm.SwapView, 0, len(ids))
	for id := range ids {
		if lp, ok, err := a.Adapter.LPStatus(ctx, id); err != nil {
			return err
		} else if ok {
			snapshot.LP[id] = lp
			a.trackedLP[id] = lp
			if lp.IsActive {
				activeLP = append(activeLP, lp)
			}
			continue
		}
		if sw, ok, err := a.Adapter.SwapStatus(ctx, id); err != nil {
			return err
		} else if ok {
			snapshot.Swaps[id] = sw
			a.trackedSwaps[id] = sw
			if sw.IsActive {
				activeSwaps = append(activeSwaps, sw)
			}
		}
	}
	snapshot.ActiveLP = activeLP
	snapshot.ActiveSwaps = activeSwaps
	return nil
}

// dispatch submits every action from a decision and starts tracking any
// newly created executor. LP-open actions reserve capital against the
// shared coordinator first, stamping the reservation id onto the executor
// config; closes release the matching reservation once the stop is
// submitted.
func (r *Runtime) dispatch(ctx context.Context, a *PoolAgent, actions []clmm.Action) error {
	for _, act := range actions {
		if act.LPConfig != nil && act.Type == clmm.ActionCreateExecutor {
			if err := r.reserveBudget(ctx, a, act.LPConfig); err != nil {
				return fmt.Errorf("reserve budget for %s: %w", act.ControllerID, err)
			}
		}

		id, err := a.Adapter.Submit(ctx, act)
		if err != nil {
			return fmt.Errorf("submit action %s: %w", act.Type, err)
		}
		switch {
		case act.LPConfig != nil:
			a.trackedLP[id] = clmm.LPView{ExecutorID: id, IsActive: true}
			if act.LPConfig.BudgetReservationID != "" {
				a.reservations[id] = act.LPConfig.BudgetReservationID
			}
		case act.SwapConfig != nil:
			a.trackedSwaps[id] = clmm.SwapView{ExecutorID: id, IsActive: true}
		case act.Type == clmm.ActionStopExecutor:
			delete(a.trackedLP, act.StopExecutorID)
			delete(a.trackedSwaps, act.StopExecutorID)
			r.releaseBudget(ctx, a, act.StopExecutorID)
		}
	}
	return nil
}

// reserveBudget asks the coordinator for capital covering an LP open and
// stamps the reservation id into cfg so the executor config carries proof of
// the reservation downstream. A nil coordinator means the pool owns its
// wallet outright and reservation is skipped.
func (r *Runtime) reserveBudget(ctx context.Context, a *PoolAgent, cfg *clmm.LPExecutorConfig) error {
	if r.coordinator == nil {
		return nil
	}
	reservationID, err := r.coordinator.Reserve(ctx, a.ID, cfg.BudgetKey, a.Controller.PositionValueQuote)
	if err != nil {
		return err
	}
	cfg.BudgetReservationID = reservationID
	return nil
}

// releaseBudget returns a closed LP position's reservation to the
// coordinator, if one was taken out when it was opened.
func (r *Runtime) releaseBudget(ctx context.Context, a *PoolAgent, executorID string) {
	if r.coordinator == nil {
		return
	}
	reservationID, ok := a.reservations[executorID]
	if !ok {
		return
	}
	delete(a.reservations, executorID)
	if err := r.coordinator.Release(ctx, reservationID); err != nil {
		logx.Errorf("agent %s: release budget reservation %s: %v", a.ID, reservationID, err)
	}
}

func (a *PoolAgent) writeJournal(fromState, toState string, d clmm.Decision, now time.Time) {
	if a.journal == nil {
		return
	}
	rec := &journal.CycleRecord{
		Timestamp:    now,
		ControllerID: a.ID,
		FromState:    fromState,
		ToState:      toState,
		Reason:       d.Intent.Reason,
		Actions:      d.Actions,
		Success:      true,
	}
	if d.Patch.RealizedPnLDeltaQuote != nil {
		rec.RealizedPnLDeltaQuote = d.Patch.RealizedPnLDeltaQuote.String()
	}
	if d.Patch.RealizedVolumeDeltaQuote != nil {
		rec.RealizedVolumeDeltaQuote = d.Patch.RealizedVolumeDeltaQuote.String()
	}
	if _, err := a.journal.WriteCycle(rec); err != nil {
		logx.Errorf("agent %s: write journal: %v", a.ID, err)
	}
}
