// Package agent is the runtime layer that ticks one pkg/clmm controller per
// configured pool: it assembles a Snapshot, calls clmm.Decide, applies the
// resulting patch, and dispatches actions to a venue connector. Lifecycle
// handling (running/paused/stopped) is adapted from the teacher's
// VirtualTrader state machine, retargeted from perp traders to pool
// controllers.
package agent

import (
	"sync"
	"time"

	"clmm-lp-agent/internal/adapters"
	"clmm-lp-agent/pkg/clmm"
	"clmm-lp-agent/pkg/journal"
)

// State captures an agent's lifecycle state.
type State string

const (
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
	StateError   State = "error"
)

// PoolAgent wraps one pool's controller state, configuration and connector.
type PoolAgent struct {
	mu sync.RWMutex

	ID         string
	Controller *clmm.Config
	Policy     clmm.Policy
	Adapter    adapters.DexAdapter
	Ctx        *clmm.ControllerContext
	domain     *clmm.PoolDomainAdapter

	state            State
	decisionInterval time.Duration
	lastDecisionAt   time.Time
	createdAt        time.Time
	updatedAt        time.Time

	trackedLP    map[string]clmm.LPView
	trackedSwaps map[string]clmm.SwapView

	// reservations maps an LP executor id to the budget reservation id that
	// was consumed to open it, so it can be released once the position closes.
	reservations map[string]string

	journal *journal.Writer
}

// New constructs a PoolAgent in the stopped state.
func New(pc PoolConfig, adapter adapters.DexAdapter, now time.Time) *PoolAgent {
	a := &PoolAgent{
		ID:               pc.ControllerID,
		Controller:       pc.Controller,
		Policy:           pc.Controller.BuildPolicy(),
		Adapter:          adapter,
		Ctx:              clmm.NewControllerContext(pc.ControllerID, float64(now.Unix())),
		state:            StateStopped,
		decisionInterval: pc.DecisionInterval,
		createdAt:        now,
		updatedAt:        now,
		trackedLP:        make(map[string]clmm.LPView),
		trackedSwaps:     make(map[string]clmm.SwapView),
		reservations:     make(map[string]string),
	}
	if pc.JournalEnabled && pc.JournalDir != "" {
		a.journal = journal.NewWriter(pc.JournalDir)
	}
	return a
}

// Start transitions the agent into running state.
func (a *PoolAgent) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateRunning
	a.updatedAt = time.Now()
}

// Pause moves the agent into paused state; it stops being ticked but keeps
// its controller context and tracked executors.
func (a *PoolAgent) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateStopped {
		return
	}
	a.state = StatePaused
	a.updatedAt = time.Now()
}

// Resume sets the state back to running.
func (a *PoolAgent) Resume() { a.Start() }

// Stop transitions the agent into stopped state.
func (a *PoolAgent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateStopped
	a.updatedAt = time.Now()
}

// IsActive reports whether the agent should participate in the tick loop.
func (a *PoolAgent) IsActive() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == StateRunning
}

// ShouldTick determines whether a decision should be requested now, gated by
// the per-pool decision interval.
func (a *PoolAgent) ShouldTick(now time.Time) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateRunning {
		return false
	}
	if a.decisionInterval <= 0 {
		return true
	}
	if a.lastDecisionAt.IsZero() {
		return true
	}
	return now.Sub(a.lastDecisionAt) >= a.decisionInterval
}

// RecordTick updates timestamps after a decision round completes.
func (a *PoolAgent) RecordTick(ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ts.IsZero() {
		ts = time.Now()
	}
	a.lastDecisionAt = ts
	a.updatedAt = ts
}

// markError transitions the agent into the error state; Runtime.Tick calls
// it on any failed tick (e.g. a single failed price lookup).
func (a *PoolAgent) markError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateError
	a.updatedAt = time.Now()
}
