package clmm

import "clmm-lp-agent/pkg/money"

// QuotePerBaseRatio returns the equilibrium quote-per-base deposit ratio for
// a concentrated-liquidity position spanning [lower, upper) at the given
// spot price, or false if price is not strictly inside the range.
//
// Grounded on the uniswap v3 liquidity formula: with sp=sqrt(price),
// sa=sqrt(lower), sb=sqrt(upper), r = sp*sb*(sp-sa) / (sb-sp).
func QuotePerBaseRatio(price, lower, upper money.Decimal) (money.Decimal, bool) {
	if !price.IsPositive() || !lower.IsPositive() || !upper.IsPositive() {
		return money.Zero, false
	}
	if !lower.LessThan(price) || !price.LessThan(upper) {
		return money.Zero, false
	}
	sp := price.Sqrt()
	sa := lower.Sqrt()
	sb := upper.Sqrt()

	numer := sp.Mul(sb).Mul(sp.Sub(sa))
	denom := sb.Sub(sp)
	if !numer.IsPositive() || !denom.IsPositive() {
		return money.Zero, false
	}
	ratio, ok := numer.Div(denom)
	if !ok {
		return money.Zero, false
	}
	return ratio, true
}

// TargetAmountsFromValue splits a total quote-denominated value V into
// target base/quote deposit amounts at the given price and quote-per-base
// ratio r, such that base*price + quote == V.
func TargetAmountsFromValue(value, price, ratio money.Decimal) (base, quote money.Decimal, ok bool) {
	denom := price.Add(ratio)
	if !denom.IsPositive() {
		return money.Zero, money.Zero, false
	}
	base, divOK := value.Div(denom)
	if !divOK {
		return money.Zero, money.Zero, false
	}
	quote = value.Sub(base.Mul(price))
	if !base.IsPositive() || !quote.IsPositive() {
		return money.Zero, money.Zero, false
	}
	return base, quote, true
}
