// Package clmm implements the tick-driven decision core for a concentrated-
// liquidity LP controller: given a Snapshot of pool/wallet/executor state it
// returns a Decision without performing any I/O of its own.
package clmm

import "clmm-lp-agent/pkg/money"

// ControllerState is a state of the per-pool FSM.
type ControllerState string

const (
	StateIdle           ControllerState = "IDLE"
	StateEntryOpen      ControllerState = "ENTRY_OPEN"
	StateEntrySwap      ControllerState = "ENTRY_SWAP"
	StateActive         ControllerState = "ACTIVE"
	StateRebalanceStop  ControllerState = "REBALANCE_STOP"
	StateRebalanceSwap  ControllerState = "REBALANCE_SWAP"
	StateRebalanceOpen  ControllerState = "REBALANCE_OPEN"
	StateStoplossStop   ControllerState = "STOPLOSS_STOP"
	StateStoplossSwap   ControllerState = "STOPLOSS_SWAP"
	StateTakeProfitStop ControllerState = "TAKE_PROFIT_STOP"
	StateExitSwap       ControllerState = "EXIT_SWAP"
	StateCooldown       ControllerState = "COOLDOWN"
)

// LPLifecycleState mirrors the executor's reported position lifecycle.
type LPLifecycleState string

const (
	LPOpening         LPLifecycleState = "OPENING"
	LPInRange         LPLifecycleState = "IN_RANGE"
	LPOutOfRange      LPLifecycleState = "OUT_OF_RANGE"
	LPClosing         LPLifecycleState = "CLOSING"
	LPComplete        LPLifecycleState = "COMPLETE"
	LPNotActive       LPLifecycleState = "NOT_ACTIVE"
	LPRetriesExceeded LPLifecycleState = "RETRIES_EXCEEDED"
)

// CloseType records why an executor closed.
type CloseType string

const (
	CloseNone       CloseType = ""
	CloseCompleted  CloseType = "COMPLETED"
	CloseFailed     CloseType = "FAILED"
	CloseEarlyStop  CloseType = "EARLY_STOP"
)

// SwapPurpose tags why a swap executor was created.
type SwapPurpose string

const (
	SwapInventory           SwapPurpose = "INVENTORY"
	SwapInventoryRebalance  SwapPurpose = "INVENTORY_REBALANCE"
	SwapExitLiquidation     SwapPurpose = "EXIT_LIQUIDATION"
	SwapStoploss            SwapPurpose = "STOPLOSS"
)

// swapPurposePrecedence orders concurrent swap purposes; lower index wins
// when the concurrency guard must keep exactly one active swap.
var swapPurposePrecedence = map[SwapPurpose]int{
	SwapStoploss:           0,
	SwapInventoryRebalance: 1,
	SwapInventory:          2,
	SwapExitLiquidation:    0,
}

// LPView is the controller's read-only view of one LP executor as reported
// in a Snapshot.
type LPView struct {
	ExecutorID        string
	PositionAddress   string
	IsActive          bool
	IsDone            bool
	CloseType         CloseType
	LowerPrice        *money.Decimal
	UpperPrice        *money.Decimal
	CurrentPrice      *money.Decimal
	OutOfRangeSince   *float64
	BaseAmount        money.Decimal
	QuoteAmount       money.Decimal
	BaseFee           money.Decimal
	QuoteFee          money.Decimal
	State             LPLifecycleState
	StateSinceTS      float64
	InTransition      bool
}

// SwapView is the controller's read-only view of one swap executor.
type SwapView struct {
	ExecutorID  string
	Purpose     SwapPurpose
	Amount      money.Decimal
	CloseType   CloseType
	Timestamp   float64
	DeltaBase   *money.Decimal
	DeltaQuote  *money.Decimal
	IsActive    bool
}

// Snapshot is the immutable per-tick input to Decide.
type Snapshot struct {
	Now             float64
	CurrentPrice    *money.Decimal
	BalanceFresh    bool
	BalanceUpdateTS float64
	WalletBase      money.Decimal
	WalletQuote     money.Decimal
	LP              map[string]LPView
	ActiveLP        []LPView
	Swaps           map[string]SwapView
	ActiveSwaps     []SwapView
	ManualKill      bool
}

// OpenProposal is the output of the proposal builder: the target split plus
// whatever inventory swap is needed to reach it.
type OpenProposal struct {
	Lower              money.Decimal
	Upper              money.Decimal
	TargetBase         money.Decimal
	TargetQuote        money.Decimal
	DeltaBase          money.Decimal
	DeltaQuoteValue    money.Decimal
	OpenBase           money.Decimal
	OpenQuote          money.Decimal
	MinSwapValueQuote  money.Decimal
	NeedsSwap          bool
}

// RebalanceStage tracks a per-executor rebalance plan across ticks.
type RebalanceStage string

const (
	RebalanceStageStopRequested RebalanceStage = "STOP_REQUESTED"
	RebalanceStageWaitReopen    RebalanceStage = "WAIT_REOPEN"
	RebalanceStageOpenRequested RebalanceStage = "OPEN_REQUESTED"
)

// RebalancePlan is keyed by the executor id of the LP being replaced.
type RebalancePlan struct {
	Stage           RebalanceStage
	ReopenAfterTS   float64
	OpenExecutorID  string
	RequestedAtTS   float64
}

// IntentFlow categorizes why a Decision was produced.
type IntentFlow string

const (
	FlowNone        IntentFlow = "NONE"
	FlowEntry       IntentFlow = "ENTRY"
	FlowRebalance   IntentFlow = "REBALANCE"
	FlowStoploss    IntentFlow = "STOPLOSS"
	FlowTakeProfit  IntentFlow = "TAKE_PROFIT"
	FlowFailure     IntentFlow = "FAILURE"
	FlowManual      IntentFlow = "MANUAL"
)

// IntentStage is the sub-step within a flow.
type IntentStage string

const (
	StageNone       IntentStage = "NONE"
	StageWait       IntentStage = "WAIT"
	StageSubmitLP   IntentStage = "SUBMIT_LP"
	StageStopLP     IntentStage = "STOP_LP"
	StageSubmitSwap IntentStage = "SUBMIT_SWAP"
)

// Intent summarizes the flow/stage/reason for a Decision.
type Intent struct {
	Flow   IntentFlow
	Stage  IntentStage
	Reason string
}

// ActionType distinguishes the two action kinds the core can emit.
type ActionType string

const (
	ActionCreateExecutor ActionType = "CREATE_EXECUTOR"
	ActionStopExecutor   ActionType = "STOP_EXECUTOR"
)

// ExecutorType is the kind of executor a CreateExecutor action spawns.
type ExecutorType string

const (
	ExecutorLPPosition  ExecutorType = "lp_position"
	ExecutorGatewaySwap ExecutorType = "gateway_swap"
)

// OrderSide is the swap executor's buy/sell direction.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// LPSide constrains which side(s) of the range the LP deposits into.
type LPSide int

const (
	LPSideBoth      LPSide = 0
	LPSideQuoteOnly LPSide = 1
	LPSideBaseOnly  LPSide = 2
)

// LPExecutorConfig is handed to the external executor to create an LP
// position. Lower/upper and amounts are already in pool orientation.
type LPExecutorConfig struct {
	Timestamp           float64
	ConnectorName       string
	PoolAddress         string
	TradingPair         string
	BaseToken           string
	QuoteToken          string
	LowerPrice          money.Decimal
	UpperPrice          money.Decimal
	BaseAmount          money.Decimal
	QuoteAmount         money.Decimal
	Side                LPSide
	KeepPosition        bool
	BudgetKey           string
	BudgetReservationID string
	ExtraParams         map[string]any
}

// SwapExecutorConfig is handed to the external executor to submit a router
// swap.
type SwapExecutorConfig struct {
	Timestamp        float64
	ConnectorName    string
	TradingPair      string
	Side             OrderSide
	Amount           money.Decimal
	AmountInIsQuote  bool
	SlippagePct      money.Decimal
	PoolAddress      string
	LevelID          string
	BudgetKey        string
}

// Action is one of CreateExecutor or StopExecutor.
type Action struct {
	Type            ActionType
	ControllerID    string
	ExecutorType    ExecutorType
	LPConfig        *LPExecutorConfig
	SwapConfig      *SwapExecutorConfig
	StopExecutorID  string
}

// DecisionPatch is the set of additive mutations Decide wants applied to the
// ControllerContext. Applying a patch is the only way the context changes.
type DecisionPatch struct {
	NewState             *ControllerState
	StateChanged         bool
	AnchorValueQuote     *money.Decimal
	ClearAnchor          bool
	PendingRealizedAnchor *money.Decimal
	ClearPendingRealizedAnchor bool
	RealizedVolumeDeltaQuote *money.Decimal
	RealizedPnLDeltaQuote    *money.Decimal
	OutOfRangeSince      *float64
	ClearOutOfRangeSince bool
	RecordRebalanceTS    *float64
	AddRebalancePlans    map[string]RebalancePlan
	RemoveRebalancePlans []string
	PendingOpenLPID      *string
	ClearPendingOpenLPID bool
	PendingCloseLPID     *string
	ClearPendingCloseLPID bool
	PendingSwapID        *string
	ClearPendingSwapID   bool
	PendingSwapSinceTS   *float64
	AwaitingBalanceRefresh *bool
	AwaitingBalanceRefreshSinceTS *float64
	IncrementInventorySwapAttempts      bool
	IncrementStoplossSwapAttempts       bool
	IncrementNormalizationSwapAttempts  bool
	IncrementInventoryBalanceRefreshAttempts     bool
	IncrementStoplossBalanceRefreshAttempts      bool
	IncrementNormalizationBalanceRefreshAttempts bool
	ResetInventorySwapAttempts      bool
	ResetStoplossSwapAttempts       bool
	ResetNormalizationSwapAttempts  bool
	ResetInventoryBalanceRefreshAttempts     bool
	ResetStoplossBalanceRefreshAttempts      bool
	ResetNormalizationBalanceRefreshAttempts bool
	SetBalanceBarrier    *BalanceSyncBarrier
	ClearBalanceBarrier  bool
	LedgerAfter          *BudgetLedger
	FailureBlocked       *bool
	FailureReason        *string
	CooldownUntilTS      *float64
	LastExitReason       *string
	UpdateFeeRateEWMA    map[string]money.Decimal
	UpdateFeeRateSeenTS  map[string]float64
	UpdateFeeRateLastFee map[string]money.Decimal
}

// Decision is the output of a single Decide call.
type Decision struct {
	Intent  Intent
	Actions []Action
	Patch   DecisionPatch
}
