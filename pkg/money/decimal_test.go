package money

import "testing"

func TestSqrt(t *testing.T) {
	cases := map[string]string{
		"4":    "2",
		"9":    "3",
		"2":    "1.414213562373095",
		"0":    "0",
		"1.21": "1.1",
	}
	for in, want := range cases {
		got := MustFromString(in).Sqrt()
		wantD := MustFromString(want)
		diff := got.Sub(wantD).Abs()
		if diff.GreaterThan(MustFromString("0.000000000000001")) {
			t.Fatalf("Sqrt(%s) = %s, want ~%s", in, got.String(), want)
		}
	}
}

func TestDivZero(t *testing.T) {
	_, ok := MustFromString("5").Div(Zero)
	if ok {
		t.Fatalf("expected division by zero to report !ok")
	}
	if got := MustFromString("5").DivOrZero(Zero); !got.IsZero() {
		t.Fatalf("DivOrZero by zero = %s, want 0", got.String())
	}
}

func TestClampBetween(t *testing.T) {
	lo, hi := MustFromString("1"), MustFromString("10")
	if !MustFromString("5").Between(lo, hi) {
		t.Fatalf("expected 5 to be between 1 and 10")
	}
	if got := MustFromString("20").Clamp(lo, hi); !got.Equal(hi) {
		t.Fatalf("Clamp(20, 1, 10) = %s, want 10", got.String())
	}
	if got := MustFromString("-3").Clamp(lo, hi); !got.Equal(lo) {
		t.Fatalf("Clamp(-3, 1, 10) = %s, want 1", got.String())
	}
}
