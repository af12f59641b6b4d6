package clmm

import "clmm-lp-agent/pkg/money"

// BudgetLedger tracks the controller's wallet and deployed balances and
// caps their combined quote-equivalent value at the lesser of the
// configured cap and the fixed anchor.
type BudgetLedger struct {
	WalletBase    money.Decimal
	WalletQuote   money.Decimal
	DeployedBase  money.Decimal
	DeployedQuote money.Decimal
	ConfiguredCapQuote money.Decimal
}

// NewBudgetLedger seeds the ledger's wallet side from the first observed
// snapshot; deployed starts at zero until an open is recorded.
func NewBudgetLedger(configuredCapQuote, walletBase, walletQuote money.Decimal) BudgetLedger {
	return BudgetLedger{
		WalletBase:         walletBase,
		WalletQuote:        walletQuote,
		ConfiguredCapQuote: configuredCapQuote,
	}
}

// RecordOpen moves (base, quote) from wallet to deployed, then re-applies
// the cap.
func (l BudgetLedger) RecordOpen(base, quote, price money.Decimal, anchor *money.Decimal) BudgetLedger {
	l.WalletBase = l.WalletBase.Sub(base)
	l.WalletQuote = l.WalletQuote.Sub(quote)
	l.DeployedBase = l.DeployedBase.Add(base)
	l.DeployedQuote = l.DeployedQuote.Add(quote)
	return l.ApplyCap(price, anchor)
}

// RecordClose reverses RecordOpen: moves (base, quote) from deployed back
// to wallet.
func (l BudgetLedger) RecordClose(base, quote, price money.Decimal, anchor *money.Decimal) BudgetLedger {
	l.DeployedBase = l.DeployedBase.Sub(base)
	l.DeployedQuote = l.DeployedQuote.Sub(quote)
	l.WalletBase = l.WalletBase.Add(base)
	l.WalletQuote = l.WalletQuote.Add(quote)
	return l.ApplyCap(price, anchor)
}

// RecordSwapDelta applies a confirmed swap's balance change within the
// wallet (base and quote move in opposite directions by construction of the
// caller) and re-applies the cap.
func (l BudgetLedger) RecordSwapDelta(deltaBase, deltaQuote, price money.Decimal, anchor *money.Decimal) BudgetLedger {
	l.WalletBase = l.WalletBase.Add(deltaBase)
	l.WalletQuote = l.WalletQuote.Add(deltaQuote)
	return l.ApplyCap(price, anchor)
}

// ApplyCap enforces total value <= min(ConfiguredCapQuote, anchor or +inf)
// by shaving surplus from WalletQuote first, then WalletBase. Deployed
// value is never reduced by the cap.
func (l BudgetLedger) ApplyCap(price money.Decimal, anchor *money.Decimal) BudgetLedger {
	cap := l.ConfiguredCapQuote
	if anchor != nil && anchor.LessThan(cap) {
		cap = *anchor
	}

	deployedValue := l.DeployedBase.Mul(price).Add(l.DeployedQuote)
	walletValue := l.WalletBase.Mul(price).Add(l.WalletQuote)
	total := deployedValue.Add(walletValue)

	surplus := total.Sub(cap)
	if !surplus.IsPositive() {
		return l
	}

	if l.WalletQuote.GreaterThanOrEqual(surplus) {
		l.WalletQuote = l.WalletQuote.Sub(surplus)
		return l
	}
	remaining := surplus.Sub(l.WalletQuote)
	l.WalletQuote = money.Zero
	if price.IsPositive() {
		baseShave, ok := remaining.Div(price)
		if ok {
			l.WalletBase = l.WalletBase.Sub(baseShave).Max(money.Zero)
		}
	}
	return l
}

// TotalValueQuote returns the ledger's combined wallet+deployed value in
// quote terms.
func (l BudgetLedger) TotalValueQuote(price money.Decimal) money.Decimal {
	deployedValue := l.DeployedBase.Mul(price).Add(l.DeployedQuote)
	walletValue := l.WalletBase.Mul(price).Add(l.WalletQuote)
	return deployedValue.Add(walletValue)
}

// DeployedValueQuote returns just the deployed side's value in quote terms.
func (l BudgetLedger) DeployedValueQuote(price money.Decimal) money.Decimal {
	return l.DeployedBase.Mul(price).Add(l.DeployedQuote)
}
