package clmm

import "clmm-lp-agent/pkg/money"

// Policy is the narrow, closed-set interface that varies by pool venue
// (Uniswap v3 tick grid vs. Meteora bin step). Modeled as an interface
// rather than a tagged enum since each variant owns distinct state
// (tick spacing discovery for V3).
type Policy interface {
	// RangePlan returns the (possibly tick-aligned) range centered on price,
	// or false if bounds could not be produced.
	RangePlan(centerPrice money.Decimal, adapter PoolDomainAdapter) (RangePlan, bool)
	// QuotePerBaseRatio returns the deposit ratio at a price clamped into a
	// venue-specific safety margin away from the range edges.
	QuotePerBaseRatio(price, lower, upper money.Decimal) (money.Decimal, bool)
	// ExtraLPParams returns venue-specific fields for the executor create
	// config, or nil.
	ExtraLPParams() map[string]any
	// IsReady reports whether the policy has enough discovered pool metadata
	// (e.g. tick spacing) to plan a range.
	IsReady() bool
}

// V3Policy implements Policy for Uniswap-v3-style pools with an integer
// tick grid.
type V3Policy struct {
	WidthRatio              money.Decimal
	TickBase                money.Decimal
	TickSpacing             int
	RatioClampTickMultiplier int
	tickSpacingKnown        bool
}

// NewV3Policy constructs a policy over the given tickBase (Config defaults
// it to 1.0001, the canonical Uniswap v3 tick base). The tick spacing stays
// unknown, and the policy not ready, until UpdateTickSpacing is called.
func NewV3Policy(widthRatio money.Decimal, tickBase money.Decimal, ratioClampTickMultiplier int) *V3Policy {
	return &V3Policy{WidthRatio: widthRatio, TickBase: tickBase, RatioClampTickMultiplier: ratioClampTickMultiplier}
}

// UpdateTickSpacing is called once pool metadata discovery resolves the
// pool's tick spacing.
func (p *V3Policy) UpdateTickSpacing(spacing int) {
	p.TickSpacing = spacing
	p.tickSpacingKnown = spacing > 0
}

func (p *V3Policy) IsReady() bool { return p.tickSpacingKnown }

func (p *V3Policy) RangePlan(centerPrice money.Decimal, adapter PoolDomainAdapter) (RangePlan, bool) {
	if !p.IsReady() {
		return RangePlan{}, false
	}
	geo, ok := GeometricBounds(centerPrice, p.WidthRatio)
	if !ok {
		return RangePlan{}, false
	}
	poolLower, poolUpper, ok := adapter.StrategyBoundsToPool(geo.Lower, geo.Upper)
	if !ok {
		return RangePlan{}, false
	}
	if poolLower.GreaterThan(poolUpper) {
		poolLower, poolUpper = poolUpper, poolLower
	}
	alignedPool, ok := AlignBoundsToTicks(poolLower, poolUpper, p.TickSpacing, p.TickBase)
	if !ok {
		return RangePlan{}, false
	}
	lower, upper, ok := adapter.PoolBoundsToStrategy(alignedPool.Lower, alignedPool.Upper)
	if !ok {
		return RangePlan{}, false
	}
	if lower.GreaterThan(upper) {
		lower, upper = upper, lower
	}
	return RangePlan{Lower: lower, Upper: upper}, true
}

func (p *V3Policy) QuotePerBaseRatio(price, lower, upper money.Decimal) (money.Decimal, bool) {
	clampTicks := p.RatioClampTickMultiplier * max(p.TickSpacing, 1)
	clamped := ClampPriceByTicks(price, lower, upper, p.TickBase, clampTicks)
	return QuotePerBaseRatio(clamped, lower, upper)
}

func (p *V3Policy) ExtraLPParams() map[string]any { return nil }

// MeteoraPolicy implements Policy for Meteora DLMM-style pools, whose bin
// layout the adapter need not tick-align: the geometric bounds are used
// directly.
type MeteoraPolicy struct {
	WidthRatio        money.Decimal
	RatioEdgeBufferPct money.Decimal
	StrategyType      int
}

func NewMeteoraPolicy(widthRatio, ratioEdgeBufferPct money.Decimal, strategyType int) *MeteoraPolicy {
	return &MeteoraPolicy{WidthRatio: widthRatio, RatioEdgeBufferPct: ratioEdgeBufferPct, StrategyType: strategyType}
}

func (p *MeteoraPolicy) IsReady() bool { return true }

func (p *MeteoraPolicy) RangePlan(centerPrice money.Decimal, _ PoolDomainAdapter) (RangePlan, bool) {
	return GeometricBounds(centerPrice, p.WidthRatio)
}

func (p *MeteoraPolicy) QuotePerBaseRatio(price, lower, upper money.Decimal) (money.Decimal, bool) {
	width := upper.Sub(lower)
	buffer := width.Mul(p.RatioEdgeBufferPct)
	clamped := price.Clamp(lower.Add(buffer), upper.Sub(buffer))
	return QuotePerBaseRatio(clamped, lower, upper)
}

func (p *MeteoraPolicy) ExtraLPParams() map[string]any {
	return map[string]any{"strategyType": p.StrategyType}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
