package clmm

import (
	"testing"

	"clmm-lp-agent/pkg/money"
)

// TestApplyCapContainsTotalValueWithinConfiguredCap is the budget
// containment invariant: after any ledger mutation, total quote-equivalent
// value never exceeds min(ConfiguredCapQuote, anchor).
func TestApplyCapContainsTotalValueWithinConfiguredCap(t *testing.T) {
	price := money.NewFromInt(100)
	cap := money.NewFromInt(1000)

	ledger := NewBudgetLedger(cap, money.NewFromInt(50), money.NewFromInt(6000))
	ledger = ledger.ApplyCap(price, nil)

	total := ledger.TotalValueQuote(price)
	if total.GreaterThan(cap) {
		t.Fatalf("expected total value <= cap, got %s > %s", total, cap)
	}
}

func TestApplyCapShavesWalletQuoteBeforeWalletBase(t *testing.T) {
	price := money.NewFromInt(100)
	cap := money.NewFromInt(1000)

	ledger := BudgetLedger{
		WalletBase:         money.NewFromInt(1),
		WalletQuote:        money.NewFromInt(950),
		ConfiguredCapQuote: cap,
	}
	ledger = ledger.ApplyCap(price, nil)

	if !ledger.WalletBase.Equal(money.NewFromInt(1)) {
		t.Fatalf("expected wallet base untouched while quote alone covers the surplus, got %s", ledger.WalletBase)
	}
	if ledger.TotalValueQuote(price).GreaterThan(cap) {
		t.Fatalf("expected total value contained after quote-only shave")
	}
}

func TestApplyCapHonorsAnchorWhenTighterThanConfiguredCap(t *testing.T) {
	price := money.NewFromInt(100)
	cap := money.NewFromInt(1000)
	anchor := money.NewFromInt(500)

	ledger := NewBudgetLedger(cap, money.NewFromInt(0), money.NewFromInt(900))
	ledger = ledger.ApplyCap(price, &anchor)

	if total := ledger.TotalValueQuote(price); total.GreaterThan(anchor) {
		t.Fatalf("expected total value <= anchor when anchor < cap, got %s > %s", total, anchor)
	}
}

func TestRecordOpenAndRecordCloseRoundTripDeployedBalances(t *testing.T) {
	price := money.NewFromInt(100)
	cap := money.NewFromInt(10000)

	ledger := NewBudgetLedger(cap, money.NewFromInt(10), money.NewFromInt(2000))
	opened := ledger.RecordOpen(money.NewFromInt(5), money.NewFromInt(500), price, nil)
	closed := opened.RecordClose(money.NewFromInt(5), money.NewFromInt(500), price, nil)

	if !closed.WalletBase.Equal(ledger.WalletBase) {
		t.Fatalf("expected wallet base to round-trip through open+close, got %s want %s", closed.WalletBase, ledger.WalletBase)
	}
	if !closed.WalletQuote.Equal(ledger.WalletQuote) {
		t.Fatalf("expected wallet quote to round-trip through open+close, got %s want %s", closed.WalletQuote, ledger.WalletQuote)
	}
	if !closed.DeployedBase.IsZero() || !closed.DeployedQuote.IsZero() {
		t.Fatalf("expected deployed balances to return to zero after close, got base=%s quote=%s", closed.DeployedBase, closed.DeployedQuote)
	}
}
