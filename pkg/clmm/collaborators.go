package clmm

import (
	"context"

	"clmm-lp-agent/pkg/money"
)

// The interfaces in this file are the core's only seams to the outside
// world. None of them is called from Decide; they describe the contracts
// external collaborators (chain RPC, wallet refresh, executor submission)
// must satisfy so a runtime loop can assemble a Snapshot and dispatch a
// Decision's Actions. Implementations live in internal/adapters.

// PriceProvider resolves the current quote-per-base spot price for a pool.
type PriceProvider interface {
	CurrentPrice(ctx context.Context, poolAddress string) (money.Decimal, error)
}

// BalanceManager refreshes wallet balances asynchronously; Decide only ever
// reads the freshness/timestamp fields a prior refresh produced into the
// Snapshot. RequestRefresh is fire-and-forget from the controller's
// perspective.
type BalanceManager interface {
	RequestRefresh(ctx context.Context, walletAddress string) error
	LastObserved(ctx context.Context, walletAddress string) (base, quote money.Decimal, fresh bool, updateTS float64, err error)
}

// PoolInfoResolver discovers static and slow-changing pool metadata: token
// addresses, tick spacing / bin step, and orientation.
type PoolInfoResolver interface {
	Resolve(ctx context.Context, poolAddress string) (PoolInfo, error)
}

// PoolInfo is the result of a PoolInfoResolver lookup. BaseToken/QuoteToken
// identify which of Token0/Token1 is the strategy's base/quote leg; the
// connector knows this from chain-side token ordering, so the core never has
// to guess it from a trading-pair symbol.
type PoolInfo struct {
	Token0      string
	Token1      string
	BaseToken   string
	QuoteToken  string
	TickSpacing int
	BinStep     int
}

// ActionSink submits the Actions emitted by a Decision to the chain
// gateway. The core never calls this directly; a runtime loop does after
// Decide returns.
type ActionSink interface {
	Submit(ctx context.Context, action Action) (executorID string, err error)
}

// BudgetCoordinator arbitrates capital reservations across multiple
// concurrent controllers sharing one wallet. The core only requests and
// releases reservation ids; it never inspects peer controllers' state.
type BudgetCoordinator interface {
	Reserve(ctx context.Context, controllerID, budgetKey string, valueQuote money.Decimal) (reservationID string, err error)
	Release(ctx context.Context, reservationID string) error
}
