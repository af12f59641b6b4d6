package clmm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"clmm-lp-agent/pkg/money"
)

// TestPoolDomainAdapterAmountRoundTrip checks the adapter round-trip
// invariant: strategy_amounts_to_pool ∘ pool_amounts_to_strategy == id, for
// both a non-inverted and an inverted pool.
func TestPoolDomainAdapterAmountRoundTrip(t *testing.T) {
	base := common.HexToAddress("0x1")
	quote := common.HexToAddress("0x2")

	cases := []struct {
		name    string
		adapter PoolDomainAdapter
	}{
		{"straight", NewPoolDomainAdapter(base, quote, base, quote)},
		{"inverted", NewPoolDomainAdapter(base, quote, quote, base)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			wantBase := money.NewFromInt(7)
			wantQuote := money.NewFromInt(1300)

			amount0, amount1 := c.adapter.StrategyAmountsToPool(wantBase, wantQuote)
			gotBase, gotQuote := c.adapter.PoolAmountsToStrategy(amount0, amount1)

			if !gotBase.Equal(wantBase) {
				t.Fatalf("base round-trip mismatch: got %s want %s", gotBase, wantBase)
			}
			if !gotQuote.Equal(wantQuote) {
				t.Fatalf("quote round-trip mismatch: got %s want %s", gotQuote, wantQuote)
			}
		})
	}
}

func TestPoolDomainAdapterPriceRoundTrip(t *testing.T) {
	base := common.HexToAddress("0x1")
	quote := common.HexToAddress("0x2")
	adapter := NewPoolDomainAdapter(base, quote, quote, base)

	strategyPrice := money.NewFromInt(150)
	poolPrice, ok := adapter.StrategyPriceToPool(strategyPrice)
	if !ok {
		t.Fatalf("expected StrategyPriceToPool to succeed")
	}
	roundTripped, ok := adapter.PoolPriceToStrategy(poolPrice)
	if !ok {
		t.Fatalf("expected PoolPriceToStrategy to succeed")
	}
	diff := roundTripped.Sub(strategyPrice).Abs()
	if diff.GreaterThan(money.MustFromString("0.0000001")) {
		t.Fatalf("price round-trip mismatch: got %s want %s", roundTripped, strategyPrice)
	}
}

func TestPoolDomainAdapterBoundsRoundTrip(t *testing.T) {
	base := common.HexToAddress("0x1")
	quote := common.HexToAddress("0x2")
	adapter := NewPoolDomainAdapter(base, quote, quote, base)

	lower := money.NewFromInt(90)
	upper := money.NewFromInt(110)

	poolLower, poolUpper, ok := adapter.StrategyBoundsToPool(lower, upper)
	if !ok {
		t.Fatalf("expected StrategyBoundsToPool to succeed")
	}
	gotLower, gotUpper, ok := adapter.PoolBoundsToStrategy(poolLower, poolUpper)
	if !ok {
		t.Fatalf("expected PoolBoundsToStrategy to succeed")
	}
	if diff := gotLower.Sub(lower).Abs(); diff.GreaterThan(money.MustFromString("0.0000001")) {
		t.Fatalf("lower bound round-trip mismatch: got %s want %s", gotLower, lower)
	}
	if diff := gotUpper.Sub(upper).Abs(); diff.GreaterThan(money.MustFromString("0.0000001")) {
		t.Fatalf("upper bound round-trip mismatch: got %s want %s", gotUpper, upper)
	}
}

func TestNewPoolDomainAdapterDerivesInversionFromAddresses(t *testing.T) {
	base := common.HexToAddress("0x1")
	quote := common.HexToAddress("0x2")

	straight := NewPoolDomainAdapter(base, quote, base, quote)
	if straight.Inverted {
		t.Fatalf("expected a token0=base, token1=quote pool to be non-inverted")
	}

	inverted := NewPoolDomainAdapter(base, quote, quote, base)
	if !inverted.Inverted {
		t.Fatalf("expected a token0=quote, token1=base pool to be inverted")
	}
}
