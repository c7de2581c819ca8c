// Package decimal provides the fixed-point Decimal value used throughout the
// engine for every money computation. It wraps shopspring/decimal and adds
// the canonicalization rule the engine relies on: any Decimal derived from a
// floating point source (venue JSON, YAML config) is first formatted with
// exactly 8 fractional digits and reparsed, so two values that should be
// "the same number" always compare exactly equal regardless of how they
// were produced.
package decimal

import (
	"database/sql/driver"
	"fmt"

	shopspring "github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every Decimal is canonicalized to.
const Scale = 8

// Decimal is an exact fixed-point number at Scale fractional digits.
type Decimal struct {
	d shopspring.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{d: shopspring.Zero}

// New builds a Decimal from an integer coefficient and exponent, matching
// shopspring.New's convention (value = coefficient * 10^exponent).
func New(coefficient int64, exponent int32) Decimal {
	return Decimal{d: shopspring.New(coefficient, exponent)}
}

// NewFromInt builds a Decimal from a plain integer amount.
func NewFromInt(v int64) Decimal {
	return Decimal{d: shopspring.NewFromInt(v)}
}

// Parse reads a Decimal from its string form and canonicalizes it.
func Parse(s string) (Decimal, error) {
	d, err := shopspring.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("decimal: parse %q: %w", s, err)
	}
	return Decimal{d: d}.canonical(), nil
}

// MustParse is Parse but panics on error; reserved for literal constants in
// tests and seed data, never for venue-controlled input.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromFloat canonicalizes a float64 by formatting it with Scale fractional
// digits and reparsing, avoiding binary-floating-point representation drift.
// This is the only sanctioned path from float to Decimal in the engine; venue
// JSON payloads that surface numbers as floats must go through this.
func FromFloat(f float64) Decimal {
	d := shopspring.NewFromFloat(f)
	return Decimal{d: d}.canonical()
}

func (d Decimal) canonical() Decimal {
	s := d.d.StringFixed(Scale)
	reparsed, err := shopspring.NewFromString(s)
	if err != nil {
		// StringFixed always produces a parseable string; this would be a bug
		// in shopspring/decimal itself.
		panic(fmt.Sprintf("decimal: canonicalization round-trip failed for %q: %v", s, err))
	}
	return Decimal{d: reparsed}
}

// String renders the canonical 8-digit fractional form.
func (d Decimal) String() string {
	return d.d.StringFixed(Scale)
}

// Add, Sub, Mul, Div perform exact arithmetic and canonicalize the result so
// that repeated operations never accumulate sub-tick noise.
func (d Decimal) Add(o Decimal) Decimal { return Decimal{d: d.d.Add(o.d)}.canonical() }
func (d Decimal) Sub(o Decimal) Decimal { return Decimal{d: d.d.Sub(o.d)}.canonical() }
func (d Decimal) Mul(o Decimal) Decimal { return Decimal{d: d.d.Mul(o.d)}.canonical() }

// Div divides by o. Division by zero panics, mirroring shopspring/decimal;
// callers in this engine never divide by a quantity that can legitimately be
// zero (e.g. amountBase of a fulfillment with tradeCount > 0).
func (d Decimal) Div(o Decimal) Decimal { return Decimal{d: d.d.Div(o.d)}.canonical() }

// Floor, Ceil, Truncate round to integer (zero fractional digits).
func (d Decimal) Floor() Decimal    { return Decimal{d: d.d.Floor()}.canonical() }
func (d Decimal) Ceil() Decimal     { return Decimal{d: d.d.Ceil()}.canonical() }
func (d Decimal) Truncate() Decimal { return Decimal{d: d.d.Truncate(0)}.canonical() }

// Neg returns the additive inverse.
func (d Decimal) Neg() Decimal { return Decimal{d: d.d.Neg()} }

// Abs returns the absolute value.
func (d Decimal) Abs() Decimal { return Decimal{d: d.d.Abs()} }

// Cmp returns -1, 0, or 1 comparing d to o.
func (d Decimal) Cmp(o Decimal) int { return d.d.Cmp(o.d) }

func (d Decimal) Equal(o Decimal) bool        { return d.Cmp(o) == 0 }
func (d Decimal) GreaterThan(o Decimal) bool  { return d.Cmp(o) > 0 }
func (d Decimal) GreaterOrEqual(o Decimal) bool { return d.Cmp(o) >= 0 }
func (d Decimal) LessThan(o Decimal) bool     { return d.Cmp(o) < 0 }
func (d Decimal) LessOrEqual(o Decimal) bool  { return d.Cmp(o) <= 0 }
func (d Decimal) IsZero() bool                { return d.d.IsZero() }
func (d Decimal) IsPositive() bool            { return d.d.IsPositive() }
func (d Decimal) IsNegative() bool            { return d.d.IsNegative() }

// Float64 exposes the value as a float64, for venue request payloads that
// require a JSON number. It is lossy in principle but safe at Scale=8 for
// the magnitudes this engine trades.
func (d Decimal) Float64() float64 {
	f, _ := d.d.Float64()
	return f
}

// TickFilter applies the exchange tick-size rule: the value is floored to the
// nearest multiple of tick, and the remainder (the part cut off) is returned
// alongside it. A zero tick is treated as "no filter" (returns d, Zero).
func (d Decimal) TickFilter(tick Decimal) (filtered, remainder Decimal) {
	if tick.IsZero() {
		return d, Zero
	}
	quotient := d.d.DivRound(tick.d, int32(Scale+4)).Floor()
	filteredAmount := Decimal{d: quotient.Mul(tick.d)}.canonical()
	return filteredAmount, d.Sub(filteredAmount)
}

// Value implements driver.Valuer so Decimal can be written to database/sql
// as its canonical string form.
func (d Decimal) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner, reading back a canonical string.
func (d *Decimal) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case int64:
		*d = NewFromInt(v).canonical()
		return nil
	case float64:
		*d = FromFloat(v)
		return nil
	case nil:
		*d = Zero
		return nil
	default:
		return fmt.Errorf("decimal: unsupported scan source type %T", src)
	}
}

// MarshalJSON emits the canonical string form, matching the venue's own
// convention of sending prices and quantities as JSON strings.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare JSON number, since
// some venue payloads (and most YAML decoders) produce the latter.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*d = Zero
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
