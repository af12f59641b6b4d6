package clmm

import "clmm-lp-agent/pkg/money"

// ProposalParams bundles the inputs needed to build an OpenProposal.
type ProposalParams struct {
	Price             money.Decimal
	WalletBase        money.Decimal
	WalletQuote       money.Decimal
	Anchor            *money.Decimal
	ConfiguredCap     money.Decimal
	DeployedValueQuote money.Decimal
	FixedReserveQuote money.Decimal
	Lower             money.Decimal
	Upper             money.Decimal
	Policy            Policy
	SwapMinValuePct   money.Decimal
}

// BuildOpenProposal computes the target base/quote split for opening a new
// LP position and whatever inventory swap is required to reach it.
// Grounded on the original planner's five-step budget -> ratio -> split ->
// swap-need pipeline (spec §4.10).
func BuildOpenProposal(p ProposalParams) (OpenProposal, string, bool) {
	cap := p.ConfiguredCap
	if p.Anchor != nil && p.Anchor.LessThan(cap) {
		cap = *p.Anchor
	}
	remaining := cap.Sub(p.DeployedValueQuote).Max(money.Zero)
	if remaining.IsZero() {
		return OpenProposal{}, ReasonBudgetDepleted, false
	}

	walletValue := p.WalletBase.Mul(p.Price).Add(p.WalletQuote)
	effectiveBudget := remaining.Min(walletValue).Sub(p.FixedReserveQuote)
	if !effectiveBudget.IsPositive() {
		return OpenProposal{}, ReasonBudgetDepleted, false
	}

	ratio, ok := p.Policy.QuotePerBaseRatio(p.Price, p.Lower, p.Upper)
	if !ok {
		return OpenProposal{}, ReasonRatioUnavailable, false
	}

	targetBase, targetQuote, ok := TargetAmountsFromValue(effectiveBudget, p.Price, ratio)
	if !ok {
		return OpenProposal{}, ReasonRatioUnavailable, false
	}

	openBase := p.WalletBase.Min(targetBase)
	openQuote := p.WalletQuote.Min(targetQuote)

	baseDeficit := targetBase.Sub(p.WalletBase)
	quoteDeficit := targetQuote.Sub(p.WalletQuote)

	proposal := OpenProposal{
		Lower:             p.Lower,
		Upper:             p.Upper,
		TargetBase:        targetBase,
		TargetQuote:       targetQuote,
		OpenBase:          openBase,
		OpenQuote:         openQuote,
		MinSwapValueQuote: p.SwapMinValuePct.Mul(effectiveBudget),
	}

	if !baseDeficit.IsPositive() && !quoteDeficit.IsPositive() {
		proposal.NeedsSwap = false
		return proposal, "", true
	}

	if baseDeficit.IsPositive() && quoteDeficit.IsPositive() {
		return OpenProposal{}, ReasonInsufficientBalance, false
	}

	// Exactly one side has a deficit: the other is in surplus and funds it.
	deltaBase := baseDeficit
	if !deltaBase.IsPositive() {
		deltaBase = quoteDeficit.DivOrZero(p.Price).Neg()
	}
	deltaQuoteValue := deltaBase.Mul(p.Price).Abs()
	proposal.DeltaBase = deltaBase
	proposal.DeltaQuoteValue = deltaQuoteValue

	if deltaQuoteValue.LessThan(proposal.MinSwapValueQuote) {
		proposal.NeedsSwap = false
		return proposal, ReasonSwapRequired, true
	}

	proposal.NeedsSwap = true
	return proposal, "", true
}
