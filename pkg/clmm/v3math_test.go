package clmm

import (
	"testing"

	"clmm-lp-agent/pkg/money"
)

func TestQuotePerBaseRatioRejectsPriceOutsideRange(t *testing.T) {
	lower := money.NewFromInt(90)
	upper := money.NewFromInt(110)

	if _, ok := QuotePerBaseRatio(money.NewFromInt(80), lower, upper); ok {
		t.Fatalf("expected ratio to reject price below range")
	}
	if _, ok := QuotePerBaseRatio(money.NewFromInt(110), lower, upper); ok {
		t.Fatalf("expected ratio to reject price at the upper edge")
	}
}

// TestTargetAmountsFromValueSatisfiesValueLaw checks base*price + quote == V,
// the defining law of the ratio split.
func TestTargetAmountsFromValueSatisfiesValueLaw(t *testing.T) {
	price := money.NewFromInt(100)
	lower := money.NewFromInt(90)
	upper := money.NewFromInt(110)
	value := money.NewFromInt(1000)

	ratio, ok := QuotePerBaseRatio(price, lower, upper)
	if !ok {
		t.Fatalf("expected ratio computation to succeed")
	}

	base, quote, ok := TargetAmountsFromValue(value, price, ratio)
	if !ok {
		t.Fatalf("expected target amounts to succeed")
	}

	reconstructed := base.Mul(price).Add(quote)
	diff := reconstructed.Sub(value).Abs()
	if diff.GreaterThan(money.MustFromString("0.000001")) {
		t.Fatalf("expected base*price+quote == value, got %s vs %s", reconstructed, value)
	}
}

func TestQuotePerBaseRatioIsSymmetricAroundCenter(t *testing.T) {
	center := money.NewFromInt(100)
	lower := money.NewFromInt(50)
	upper := money.NewFromInt(200)

	ratio, ok := QuotePerBaseRatio(center, lower, upper)
	if !ok {
		t.Fatalf("expected ratio computation to succeed at the range center")
	}
	if !ratio.IsPositive() {
		t.Fatalf("expected a positive ratio at the range center, got %s", ratio)
	}
	// At the geometric center (center^2 == lower*upper) the ratio equals the
	// price, i.e. the position holds equal value in base and quote.
	if ratio.Sub(center).Abs().GreaterThan(money.MustFromString("0.000001")) {
		t.Fatalf("expected ratio == price at the geometric center, got %s", ratio)
	}
}
