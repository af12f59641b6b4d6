package clmm

import "clmm-lp-agent/pkg/money"

// BalanceSyncBarrier holds a pending expected wallet delta after a
// side-effectful action (a confirmed swap or LP close), and stalls further
// decisions in its owning state until the observed wallet change matches,
// or until it times out.
type BalanceSyncBarrier struct {
	BaselineBase    money.Decimal
	BaselineQuote   money.Decimal
	ExpectedDeltaBase  money.Decimal
	ExpectedDeltaQuote money.Decimal
	CreatedTS  float64
	DeadlineTS float64
	Attempts   int
	Reason     string
}

const balanceSyncDeadlineExtensionSec = 30

// RequestSync returns a new or extended barrier accumulating the additional
// expected deltas. Call on every side-effectful action; multiple pending
// actions accumulate into a single barrier.
func RequestSync(existing *BalanceSyncBarrier, baselineBase, baselineQuote, deltaBase, deltaQuote money.Decimal, reason string, now float64) BalanceSyncBarrier {
	if existing == nil {
		return BalanceSyncBarrier{
			BaselineBase:       baselineBase,
			BaselineQuote:      baselineQuote,
			ExpectedDeltaBase:  deltaBase,
			ExpectedDeltaQuote: deltaQuote,
			CreatedTS:          now,
			DeadlineTS:         now + balanceSyncDeadlineExtensionSec,
			Reason:             reason,
		}
	}
	b := *existing
	b.ExpectedDeltaBase = b.ExpectedDeltaBase.Add(deltaBase)
	b.ExpectedDeltaQuote = b.ExpectedDeltaQuote.Add(deltaQuote)
	b.DeadlineTS = now + balanceSyncDeadlineExtensionSec
	b.Reason = reason
	return b
}

func tolerance(expected money.Decimal) money.Decimal {
	rel := expected.Abs().Mul(money.MustFromString("0.001"))
	abs := money.MustFromString("0.00000001")
	return rel.Max(abs)
}

// BarrierOutcome is the result of checking a barrier against an observed
// wallet balance.
type BarrierOutcome int

const (
	BarrierPending BarrierOutcome = iota
	BarrierCleared
	BarrierTimedOut
)

// CheckBarrier compares the observed wallet balance against the barrier's
// baseline + expected delta, within per-asset tolerance. If matched, the
// barrier clears. If now has passed the deadline without a match, the
// barrier times out and the caller should raise BalanceSyncTimeout.
func CheckBarrier(b BalanceSyncBarrier, observedBase, observedQuote money.Decimal, now float64) BarrierOutcome {
	expectedBase := b.BaselineBase.Add(b.ExpectedDeltaBase)
	expectedQuote := b.BaselineQuote.Add(b.ExpectedDeltaQuote)

	baseDiff := observedBase.Sub(expectedBase).Abs()
	quoteDiff := observedQuote.Sub(expectedQuote).Abs()

	if baseDiff.LessThanOrEqual(tolerance(b.ExpectedDeltaBase)) && quoteDiff.LessThanOrEqual(tolerance(b.ExpectedDeltaQuote)) {
		return BarrierCleared
	}
	if now > b.DeadlineTS {
		return BarrierTimedOut
	}
	return BarrierPending
}

// NextRefreshBackoffSec returns the backoff before the next balance refresh
// retry: min(20s, 3*2^min(attempts,3)).
func NextRefreshBackoffSec(attempts int) float64 {
	capped := attempts
	if capped > 3 {
		capped = 3
	}
	backoff := 3.0
	for i := 0; i < capped; i++ {
		backoff *= 2
	}
	if backoff > 20 {
		backoff = 20
	}
	return backoff
}
