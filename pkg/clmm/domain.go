package clmm

import (
	"github.com/ethereum/go-ethereum/common"

	"clmm-lp-agent/pkg/money"
)

// PoolDomainAdapter maps between the strategy's fixed (base, quote)
// orientation and the on-chain pool's (token0, token1) orientation.
// Constructed once per controller from the connector's PoolInfo (see
// internal/agent's ensureDomain); immutable thereafter.
type PoolDomainAdapter struct {
	BaseToken   common.Address
	QuoteToken  common.Address
	Token0      common.Address
	Token1      common.Address
	Inverted    bool
}

// NewPoolDomainAdapter derives the orientation flag from the four token
// addresses: the pool is inverted relative to the strategy when token0 is
// the strategy's quote and token1 is its base.
func NewPoolDomainAdapter(baseToken, quoteToken, token0, token1 common.Address) PoolDomainAdapter {
	inverted := token0 == quoteToken && token1 == baseToken
	return PoolDomainAdapter{
		BaseToken:  baseToken,
		QuoteToken: quoteToken,
		Token0:     token0,
		Token1:     token1,
		Inverted:   inverted,
	}
}

// PoolPriceToStrategy converts a token1-per-token0 pool price into the
// strategy's quote-per-base price.
func (a PoolDomainAdapter) PoolPriceToStrategy(poolPrice money.Decimal) (money.Decimal, bool) {
	if !a.Inverted {
		return poolPrice, true
	}
	return money.One.Div(poolPrice)
}

// StrategyPriceToPool is the inverse of PoolPriceToStrategy.
func (a PoolDomainAdapter) StrategyPriceToPool(strategyPrice money.Decimal) (money.Decimal, bool) {
	if !a.Inverted {
		return strategyPrice, true
	}
	return money.One.Div(strategyPrice)
}

// PoolAmountsToStrategy reorders (amount0, amount1) into (base, quote).
func (a PoolDomainAdapter) PoolAmountsToStrategy(amount0, amount1 money.Decimal) (base, quote money.Decimal) {
	if a.Inverted {
		return amount1, amount0
	}
	return amount0, amount1
}

// StrategyAmountsToPool is the inverse of PoolAmountsToStrategy.
func (a PoolDomainAdapter) StrategyAmountsToPool(base, quote money.Decimal) (amount0, amount1 money.Decimal) {
	if a.Inverted {
		return quote, base
	}
	return base, quote
}

// PoolBoundsToStrategy maps pool-oriented [lower0, upper0) bounds (in
// token1-per-token0 terms) into strategy (base/quote) bounds. Inversion both
// swaps and reciprocates the edges.
func (a PoolDomainAdapter) PoolBoundsToStrategy(poolLower, poolUpper money.Decimal) (lower, upper money.Decimal, ok bool) {
	if !a.Inverted {
		return poolLower, poolUpper, true
	}
	invUpper, ok1 := money.One.Div(poolLower)
	invLower, ok2 := money.One.Div(poolUpper)
	if !ok1 || !ok2 {
		return money.Zero, money.Zero, false
	}
	return invLower, invUpper, true
}

// StrategyBoundsToPool is the inverse of PoolBoundsToStrategy.
func (a PoolDomainAdapter) StrategyBoundsToPool(lower, upper money.Decimal) (poolLower, poolUpper money.Decimal, ok bool) {
	if !a.Inverted {
		return lower, upper, true
	}
	invUpper, ok1 := money.One.Div(lower)
	invLower, ok2 := money.One.Div(upper)
	if !ok1 || !ok2 {
		return money.Zero, money.Zero, false
	}
	return invLower, invUpper, true
}
