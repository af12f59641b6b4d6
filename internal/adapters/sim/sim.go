// Package sim is an in-memory paper-trading DEX connector: it simulates LP
// position and swap executors without touching a real chain, for local
// development and integration tests. Grounded on the teacher's in-memory
// exchange simulator (mutex-guarded maps, mark-price driven fills).
package sim

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"clmm-lp-agent/internal/adapters"
	"clmm-lp-agent/pkg/clmm"
	"clmm-lp-agent/pkg/money"
)

const defaultFallbackPrice = "1"

// Adapter is a paper-trading venue connector that keeps pool prices, wallet
// balances, and open executors in-memory.
type Adapter struct {
	mu sync.Mutex

	name string

	markPrice map[string]money.Decimal // poolAddress -> quote-per-base price
	poolInfo  map[string]clmm.PoolInfo

	walletBase  money.Decimal
	walletQuote money.Decimal

	nextExecutorID int
	executors      map[string]Action
	lpViews        map[string]clmm.LPView
	swapViews      map[string]clmm.SwapView
}

// Action records a submitted executor for later inspection by tests.
type Action struct {
	ControllerID string
	Type         clmm.ActionType
	ExecutorType clmm.ExecutorType
}

var _ adapters.DexAdapter = (*Adapter)(nil)

// New constructs a simulator seeded with a starting wallet balance.
func New(walletBase, walletQuote money.Decimal) *Adapter {
	return &Adapter{
		name:        "sim",
		markPrice:   make(map[string]money.Decimal),
		poolInfo:    make(map[string]clmm.PoolInfo),
		walletBase:  walletBase,
		walletQuote: walletQuote,
		executors:   make(map[string]Action),
		lpViews:     make(map[string]clmm.LPView),
		swapViews:   make(map[string]clmm.SwapView),
	}
}

// Build is an adapters.ProviderBuilder entry point so the simulator can be
// selected via connector type "sim" in an adapters config.
func Build(name string, cfg *adapters.ProviderConfig) (adapters.DexAdapter, error) {
	a := New(money.Zero, money.Zero)
	a.name = name
	return a, nil
}

func init() {
	adapters.RegisterProvider("sim", Build)
}

// SetMarkPrice fixes the quote-per-base price reported for a pool.
func (a *Adapter) SetMarkPrice(poolAddress string, price money.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markPrice[poolAddress] = price
}

// SetPoolInfo seeds the static metadata returned by Resolve.
func (a *Adapter) SetPoolInfo(poolAddress string, info clmm.PoolInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.poolInfo[poolAddress] = info
}

// CurrentPrice implements clmm.PriceProvider.
func (a *Adapter) CurrentPrice(ctx context.Context, poolAddress string) (money.Decimal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.markPrice[poolAddress]; ok {
		return p, nil
	}
	return money.MustFromString(defaultFallbackPrice), nil
}

// Resolve implements clmm.PoolInfoResolver.
func (a *Adapter) Resolve(ctx context.Context, poolAddress string) (clmm.PoolInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if info, ok := a.poolInfo[poolAddress]; ok {
		return info, nil
	}
	return clmm.PoolInfo{}, fmt.Errorf("sim: no pool info registered for %s", poolAddress)
}

// RequestRefresh implements clmm.BalanceManager. The simulator's balances are
// always current, so this is a no-op.
func (a *Adapter) RequestRefresh(ctx context.Context, walletAddress string) error {
	return nil
}

// LastObserved implements clmm.BalanceManager.
func (a *Adapter) LastObserved(ctx context.Context, walletAddress string) (base, quote money.Decimal, fresh bool, updateTS float64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.walletBase, a.walletQuote, true, 0, nil
}

// Submit implements clmm.ActionSink. Creates settle instantly (paper trading
// has no network latency); stops mark the tracked view inactive/done.
func (a *Adapter) Submit(ctx context.Context, action clmm.Action) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if action.Type == clmm.ActionStopExecutor {
		if lp, ok := a.lpViews[action.StopExecutorID]; ok {
			lp.IsActive = false
			lp.IsDone = true
			lp.CloseType = clmm.CloseCompleted
			lp.State = clmm.LPComplete
			a.lpViews[action.StopExecutorID] = lp
		}
		if sw, ok := a.swapViews[action.StopExecutorID]; ok {
			sw.IsActive = false
			sw.CloseType = clmm.CloseCompleted
			a.swapViews[action.StopExecutorID] = sw
		}
		return action.StopExecutorID, nil
	}

	a.nextExecutorID++
	id := strconv.Itoa(a.nextExecutorID)
	a.executors[id] = Action{
		ControllerID: action.ControllerID,
		Type:         action.Type,
		ExecutorType: action.ExecutorType,
	}

	switch {
	case action.LPConfig != nil:
		cfg := action.LPConfig
		a.walletBase = a.walletBase.Sub(cfg.BaseAmount)
		a.walletQuote = a.walletQuote.Sub(cfg.QuoteAmount)
		a.lpViews[id] = clmm.LPView{
			ExecutorID:      id,
			PositionAddress: "sim-position-" + id,
			IsActive:        true,
			LowerPrice:      &cfg.LowerPrice,
			UpperPrice:      &cfg.UpperPrice,
			BaseAmount:      cfg.BaseAmount,
			QuoteAmount:     cfg.QuoteAmount,
			State:           clmm.LPInRange,
			StateSinceTS:    cfg.Timestamp,
		}
	case action.SwapConfig != nil:
		cfg := action.SwapConfig
		price := a.markPrice[cfg.PoolAddress]
		if price.IsZero() {
			price = money.MustFromString(defaultFallbackPrice)
		}
		deltaBase, deltaQuote := swapDeltas(cfg, price)
		a.walletBase = a.walletBase.Add(deltaBase)
		a.walletQuote = a.walletQuote.Add(deltaQuote)
		a.swapViews[id] = clmm.SwapView{
			ExecutorID: id,
			Purpose:    clmm.SwapInventory,
			Amount:     cfg.Amount,
			CloseType:  clmm.CloseCompleted,
			Timestamp:  cfg.Timestamp,
			DeltaBase:  &deltaBase,
			DeltaQuote: &deltaQuote,
			IsActive:   false,
		}
	}
	return id, nil
}

// swapDeltas computes the wallet deltas of an instantly-filled swap at the
// given quote-per-base price; sell moves base->quote, buy moves quote->base.
func swapDeltas(cfg *clmm.SwapExecutorConfig, price money.Decimal) (deltaBase, deltaQuote money.Decimal) {
	if cfg.Side == clmm.OrderSell {
		if cfg.AmountInIsQuote {
			base := cfg.Amount.DivOrZero(price)
			return base.Neg(), cfg.Amount
		}
		return cfg.Amount.Neg(), cfg.Amount.Mul(price)
	}
	if cfg.AmountInIsQuote {
		return cfg.Amount.DivOrZero(price), cfg.Amount.Neg()
	}
	return cfg.Amount, cfg.Amount.Mul(price).Neg()
}

// LPStatus implements the agent runtime's ExecutorObserver contract.
func (a *Adapter) LPStatus(ctx context.Context, executorID string) (clmm.LPView, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.lpViews[executorID]
	return v, ok, nil
}

// SwapStatus implements the agent runtime's ExecutorObserver contract.
func (a *Adapter) SwapStatus(ctx context.Context, executorID string) (clmm.SwapView, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.swapViews[executorID]
	return v, ok, nil
}

// Executors returns a snapshot of submitted actions, for test assertions.
func (a *Adapter) Executors() map[string]Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]Action, len(a.executors))
	for k, v := range a.executors {
		out[k] = v
	}
	return out
}
