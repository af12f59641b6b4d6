package clmm

import (
	"testing"

	"clmm-lp-agent/pkg/money"
)

// TestGeometricBoundsIsSymmetricInLogSpace checks that center sits at the
// geometric mean of the two bounds: lower*upper == center^2.
func TestGeometricBoundsIsSymmetricInLogSpace(t *testing.T) {
	center := money.NewFromInt(100)
	width := money.MustFromString("0.2")

	plan, ok := GeometricBounds(center, width)
	if !ok {
		t.Fatalf("expected geometric bounds to succeed")
	}

	product := plan.Lower.Mul(plan.Upper)
	centerSquared := center.Mul(center)
	diff := product.Sub(centerSquared).Abs()
	tolerance := centerSquared.Mul(money.MustFromString("0.0001"))
	if diff.GreaterThan(tolerance) {
		t.Fatalf("expected lower*upper == center^2, got %s vs %s", product, centerSquared)
	}
	if !plan.Lower.LessThan(center) || !center.LessThan(plan.Upper) {
		t.Fatalf("expected center strictly inside bounds, got [%s, %s] center=%s", plan.Lower, plan.Upper, center)
	}
}

func TestGeometricBoundsRejectsNonRatioWidth(t *testing.T) {
	if _, ok := GeometricBounds(money.NewFromInt(100), money.NewFromInt(1)); ok {
		t.Fatalf("expected width >= 1 to be rejected as a ratio")
	}
	if _, ok := GeometricBounds(money.NewFromInt(100), money.Zero); ok {
		t.Fatalf("expected zero width to be rejected")
	}
}

// TestAlignBoundsToTicksWidensOrKeepsRange ensures the tick-aligned range
// never narrows past what was requested: aligned lo <= lo, aligned hi >= hi.
func TestAlignBoundsToTicksWidensOrKeepsRange(t *testing.T) {
	tickBase := money.MustFromString("1.0001")
	lo := money.NewFromInt(95)
	hi := money.NewFromInt(105)

	aligned, ok := AlignBoundsToTicks(lo, hi, 60, tickBase)
	if !ok {
		t.Fatalf("expected alignment to succeed")
	}
	if aligned.Lower.GreaterThan(lo) {
		t.Fatalf("expected aligned lower <= requested lower, got %s > %s", aligned.Lower, lo)
	}
	if aligned.Upper.LessThan(hi) {
		t.Fatalf("expected aligned upper >= requested upper, got %s < %s", aligned.Upper, hi)
	}
}

func TestAlignBoundsToTicksRejectsNonPositiveSpacing(t *testing.T) {
	tickBase := money.MustFromString("1.0001")
	if _, ok := AlignBoundsToTicks(money.NewFromInt(90), money.NewFromInt(110), 0, tickBase); ok {
		t.Fatalf("expected zero spacing to be rejected")
	}
}
