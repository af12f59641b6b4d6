// Package money wraps shopspring/decimal so every monetary quantity in the
// controller flows through one arbitrary-precision type instead of float64.
package money

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimal is an immutable arbitrary-precision number. All operations return
// a new value; there is no in-place mutation.
type Decimal struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{d: decimal.Zero}

// One is the multiplicative identity.
var One = Decimal{d: decimal.NewFromInt(1)}

// Hundred is used throughout the controller to convert percent values to ratios.
var Hundred = Decimal{d: decimal.NewFromInt(100)}

// New wraps a shopspring/decimal.Decimal.
func New(d decimal.Decimal) Decimal {
	return Decimal{d: d}
}

// NewFromInt builds a Decimal from an int64.
func NewFromInt(v int64) Decimal {
	return Decimal{d: decimal.NewFromInt(v)}
}

// NewFromFloat builds a Decimal from a float64. Reserved for constants and
// test fixtures; live monetary values must come from NewFromString.
func NewFromFloat(v float64) Decimal {
	return Decimal{d: decimal.NewFromFloat(v)}
}

// NewFromString parses a decimal literal, the preferred entry point for
// values sourced from config files, wire payloads, or chain reads.
func NewFromString(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return Decimal{d: d}, nil
}

// MustFromString panics on parse failure; use only for literal constants.
func MustFromString(s string) Decimal {
	d, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Decimal) Add(other Decimal) Decimal { return Decimal{d: d.d.Add(other.d)} }
func (d Decimal) Sub(other Decimal) Decimal { return Decimal{d: d.d.Sub(other.d)} }
func (d Decimal) Mul(other Decimal) Decimal { return Decimal{d: d.d.Mul(other.d)} }

// Div divides by other, returning false when other is zero instead of
// propagating shopspring's divide-by-zero panic.
func (d Decimal) Div(other Decimal) (Decimal, bool) {
	if other.IsZero() {
		return Decimal{}, false
	}
	return Decimal{d: d.d.DivRound(other.d, 18)}, true
}

// DivOrZero is Div with a zero fallback, for call sites that already guard
// the denominator but want a terse expression.
func (d Decimal) DivOrZero(other Decimal) Decimal {
	v, ok := d.Div(other)
	if !ok {
		return Zero
	}
	return v
}

func (d Decimal) Neg() Decimal { return Decimal{d: d.d.Neg()} }
func (d Decimal) Abs() Decimal { return Decimal{d: d.d.Abs()} }

func (d Decimal) IsZero() bool     { return d.d.IsZero() }
func (d Decimal) IsNegative() bool { return d.d.IsNegative() }
func (d Decimal) IsPositive() bool { return d.d.IsPositive() }

func (d Decimal) GreaterThan(other Decimal) bool      { return d.d.GreaterThan(other.d) }
func (d Decimal) GreaterThanOrEqual(o Decimal) bool    { return d.d.GreaterThanOrEqual(o.d) }
func (d Decimal) LessThan(other Decimal) bool          { return d.d.LessThan(other.d) }
func (d Decimal) LessThanOrEqual(other Decimal) bool   { return d.d.LessThanOrEqual(other.d) }
func (d Decimal) Equal(other Decimal) bool             { return d.d.Equal(other.d) }

// Between reports whether lo <= d <= hi.
func (d Decimal) Between(lo, hi Decimal) bool {
	return d.GreaterThanOrEqual(lo) && d.LessThanOrEqual(hi)
}

// Max returns the greater of d and other.
func (d Decimal) Max(other Decimal) Decimal {
	if d.GreaterThan(other) {
		return d
	}
	return other
}

// Min returns the lesser of d and other.
func (d Decimal) Min(other Decimal) Decimal {
	if d.LessThan(other) {
		return d
	}
	return other
}

// Clamp bounds d to [lo, hi].
func (d Decimal) Clamp(lo, hi Decimal) Decimal {
	return d.Max(lo).Min(hi)
}

// Sqrt computes the non-negative square root by round-tripping through
// math/big.Float, since shopspring/decimal has no native Sqrt. Panics on a
// negative operand; callers in the range/V3 math paths already guard for
// positive prices before calling this.
func (d Decimal) Sqrt() Decimal {
	if d.IsNegative() {
		panic(fmt.Sprintf("money: Sqrt of negative value %s", d.String()))
	}
	if d.IsZero() {
		return Zero
	}
	bf := new(big.Float).SetPrec(200)
	if _, ok := bf.SetString(d.d.String()); !ok {
		panic(fmt.Sprintf("money: Sqrt: cannot parse %s as big.Float", d.String()))
	}
	bf.Sqrt(bf)
	out, err := decimal.NewFromString(bf.Text('f', 36))
	if err != nil {
		panic(fmt.Sprintf("money: Sqrt: %v", err))
	}
	return Decimal{d: out}
}

// Float64 returns the closest float64 approximation, for logging and metrics
// export only — never for decision arithmetic.
func (d Decimal) Float64() float64 {
	f, _ := d.d.Float64()
	return f
}

func (d Decimal) String() string { return d.d.String() }

// Decimal exposes the underlying shopspring value for call sites that need
// to hand it to a library expecting that concrete type (e.g. pgx scanning).
func (d Decimal) Decimal() decimal.Decimal { return d.d }

func (d Decimal) MarshalJSON() ([]byte, error) { return d.d.MarshalJSON() }

func (d *Decimal) UnmarshalJSON(data []byte) error {
	return d.d.UnmarshalJSON(data)
}

// UnmarshalYAML accepts both numeric and string YAML scalars, so config
// authors can write either `1.5` or `"1.5"` for a ratio field.
func (d *Decimal) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		parsed, perr := decimal.NewFromString(s)
		if perr != nil {
			return fmt.Errorf("money: unmarshal yaml %q: %w", s, perr)
		}
		d.d = parsed
		return nil
	}
	var f float64
	if err := unmarshal(&f); err != nil {
		return fmt.Errorf("money: unmarshal yaml: %w", err)
	}
	d.d = decimal.NewFromFloat(f)
	return nil
}

func (d Decimal) MarshalYAML() (interface{}, error) {
	return d.d.String(), nil
}
