package clmm

import (
	"testing"

	"clmm-lp-agent/pkg/money"
)

func TestCheckBarrierClearsWhenObservedMatchesExpected(t *testing.T) {
	b := RequestSync(nil, money.NewFromInt(10), money.NewFromInt(1000), money.NewFromInt(-2), money.NewFromInt(200), "swap", 0)

	observedBase := money.NewFromInt(8)
	observedQuote := money.NewFromInt(1200)

	if outcome := CheckBarrier(b, observedBase, observedQuote, 5); outcome != BarrierCleared {
		t.Fatalf("expected barrier to clear on exact match, got %v", outcome)
	}
}

func TestCheckBarrierStaysPendingWithinDeadline(t *testing.T) {
	b := RequestSync(nil, money.NewFromInt(10), money.NewFromInt(1000), money.NewFromInt(-2), money.NewFromInt(200), "swap", 0)

	if outcome := CheckBarrier(b, money.NewFromInt(10), money.NewFromInt(1000), 5); outcome != BarrierPending {
		t.Fatalf("expected barrier to stay pending before balances move, got %v", outcome)
	}
}

func TestCheckBarrierTimesOutPastDeadline(t *testing.T) {
	b := RequestSync(nil, money.NewFromInt(10), money.NewFromInt(1000), money.NewFromInt(-2), money.NewFromInt(200), "swap", 0)

	if outcome := CheckBarrier(b, money.NewFromInt(10), money.NewFromInt(1000), b.DeadlineTS+1); outcome != BarrierTimedOut {
		t.Fatalf("expected barrier to time out past the deadline, got %v", outcome)
	}
}

// TestRequestSyncAccumulatesDeltas verifies that multiple pending actions
// against the same barrier sum their expected deltas rather than overwriting.
func TestRequestSyncAccumulatesDeltas(t *testing.T) {
	b := RequestSync(nil, money.NewFromInt(10), money.NewFromInt(1000), money.NewFromInt(-1), money.NewFromInt(100), "swap-1", 0)
	existing := b
	b2 := RequestSync(&existing, money.NewFromInt(10), money.NewFromInt(1000), money.NewFromInt(-1), money.NewFromInt(100), "swap-2", 1)

	if !b2.ExpectedDeltaBase.Equal(money.NewFromInt(-2)) {
		t.Fatalf("expected accumulated base delta -2, got %s", b2.ExpectedDeltaBase)
	}
	if !b2.ExpectedDeltaQuote.Equal(money.NewFromInt(200)) {
		t.Fatalf("expected accumulated quote delta 200, got %s", b2.ExpectedDeltaQuote)
	}
}

func TestNextRefreshBackoffSecCapsAtTwentySeconds(t *testing.T) {
	if b := NextRefreshBackoffSec(0); b != 3 {
		t.Fatalf("expected first backoff of 3s, got %v", b)
	}
	if b := NextRefreshBackoffSec(10); b != 20 {
		t.Fatalf("expected backoff to cap at 20s for large attempt counts, got %v", b)
	}
}
