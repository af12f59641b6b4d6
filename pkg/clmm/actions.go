package clmm

import (
	"github.com/google/uuid"

	"clmm-lp-agent/pkg/money"
)

// slippageFieldScale converts an internal (0,1) slippage ratio into the
// executor config's "percentage points x100" wire scale (spec §6).
var slippageFieldScale = money.NewFromInt(10000)

func levelIDFor(purpose SwapPurpose) string {
	switch purpose {
	case SwapInventory:
		return "inventory"
	case SwapInventoryRebalance:
		return "inventory_rebalance"
	case SwapExitLiquidation:
		return "liquidate"
	case SwapStoploss:
		return "stoploss"
	default:
		return "inventory"
	}
}

func buildOpenLPAction(controllerID string, now float64, proposal OpenProposal, cfg *Config, adapter PoolDomainAdapter, poolAddress, tradingPair string) (Action, string) {
	id := uuid.NewString()
	lowerPool, upperPool, _ := adapter.StrategyBoundsToPool(proposal.Lower, proposal.Upper)
	amount0, amount1 := adapter.StrategyAmountsToPool(proposal.OpenBase, proposal.OpenQuote)

	side := LPSideBoth
	if amount0.IsZero() && !amount1.IsZero() {
		side = LPSideQuoteOnly
	} else if amount1.IsZero() && !amount0.IsZero() {
		side = LPSideBaseOnly
	}

	cfgOut := LPExecutorConfig{
		Timestamp:     now,
		ConnectorName: cfg.ConnectorName,
		PoolAddress:   poolAddress,
		TradingPair:   tradingPair,
		BaseToken:   adapter.BaseToken.Hex(),
		QuoteToken:  adapter.QuoteToken.Hex(),
		LowerPrice:  lowerPool,
		UpperPrice:  upperPool,
		BaseAmount:  amount0,
		QuoteAmount: amount1,
		Side:        side,
		BudgetKey:   cfg.ControllerID,
		ExtraParams: extraParamsForPolicy(cfg),
	}
	return Action{
		Type:         ActionCreateExecutor,
		ControllerID: controllerID,
		ExecutorType: ExecutorLPPosition,
		LPConfig:     &cfgOut,
	}, id
}

func extraParamsForPolicy(cfg *Config) map[string]any {
	if cfg.Venue != "meteora" {
		return nil
	}
	return map[string]any{"strategyType": cfg.MeteoraStrategyType}
}

func buildInventorySwapAction(controllerID string, now float64, proposal OpenProposal, cfg *Config, tradingPair string, purpose SwapPurpose) (Action, string) {
	id := uuid.NewString()
	var side OrderSide
	var amount money.Decimal
	amountInIsQuote := false
	if proposal.DeltaBase.IsPositive() {
		side = OrderBuy
		amount = proposal.DeltaQuoteValue
		amountInIsQuote = true
	} else {
		side = OrderSell
		safety := money.One.Sub(cfg.SwapSafetyBufferPct)
		amount = proposal.DeltaBase.Abs().Mul(safety)
	}

	cfgOut := SwapExecutorConfig{
		Timestamp:       now,
		ConnectorName:   cfg.ConnectorName,
		TradingPair:     tradingPair,
		Side:            side,
		Amount:          amount,
		AmountInIsQuote: amountInIsQuote,
		SlippagePct:     cfg.SwapSlippagePct.Mul(slippageFieldScale),
		LevelID:         levelIDFor(purpose),
		BudgetKey:       cfg.ControllerID,
	}
	return Action{
		Type:         ActionCreateExecutor,
		ControllerID: controllerID,
		ExecutorType: ExecutorGatewaySwap,
		SwapConfig:   &cfgOut,
	}, id
}

func buildExitSwapAction(controllerID string, now float64, sellBase money.Decimal, cfg *Config, tradingPair string, purpose SwapPurpose) (Action, string) {
	id := uuid.NewString()
	cfgOut := SwapExecutorConfig{
		Timestamp:       now,
		ConnectorName:   cfg.ConnectorName,
		TradingPair:     tradingPair,
		Side:            OrderSell,
		Amount:          sellBase,
		AmountInIsQuote: false,
		SlippagePct:     cfg.SwapSlippagePct.Mul(slippageFieldScale),
		LevelID:         levelIDFor(purpose),
		BudgetKey:       cfg.ControllerID,
	}
	return Action{
		Type:         ActionCreateExecutor,
		ControllerID: controllerID,
		ExecutorType: ExecutorGatewaySwap,
		SwapConfig:   &cfgOut,
	}, id
}

func stopAction(controllerID, executorID string) Action {
	return Action{Type: ActionStopExecutor, ControllerID: controllerID, StopExecutorID: executorID}
}

// equity returns the controller's current mark-to-market value: observed
// wallet plus the ledger's tracked deployed value.
func equity(snapshot Snapshot, ctx *ControllerContext, price money.Decimal) money.Decimal {
	walletValue := snapshot.WalletBase.Mul(price).Add(snapshot.WalletQuote)
	return walletValue.Add(ctx.Ledger.DeployedValueQuote(price))
}

func clampAnchor(v money.Decimal, cap money.Decimal) money.Decimal {
	clamped := v.Min(cap)
	if clamped.IsNegative() {
		return money.Zero
	}
	return clamped
}

func priceTriggerMatches(price, target money.Decimal, triggerAbove bool) bool {
	if triggerAbove {
		return price.GreaterThanOrEqual(target)
	}
	return price.LessThanOrEqual(target)
}
