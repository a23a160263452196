package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Money is an amount in cents. Arithmetic stays integral; decimal is only
// used at the text boundary and for fractional multipliers.
type Money struct {
	Cents int64
}

func Cents(c int64) Money { return Money{Cents: c} }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Times(n int) Money { return Money{Cents: m.Cents * int64(n)} }

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// ParseMoney converts a decimal string to Money with half-up rounding to cents.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Negative and
// zero amounts are rejected.
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("12,345") -> 1235
func ParseMoney(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%q: %w", s, ErrInvalidAmount)
	}
	return moneyFromDecimal(d)
}

var maxCents = decimal.NewFromInt(1 << 62)

func moneyFromDecimal(d decimal.Decimal) (Money, error) {
	m, err := centsInRange(d)
	if err != nil || m.Cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// centsInRange rounds d to cents and rejects amounts outside +/-2^62 cents.
// Sign is left to the caller's Validate.
func centsInRange(d decimal.Decimal) (Money, error) {
	cents := d.Mul(hundred).Round(0)
	if cents.Abs().GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// MarshalJSON renders money as a fixed-point string ("12.30").
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a string ("12.30") or a JSON number (12.3).
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("decode amount: %w", ErrInvalidAmount)
	}
	v, err := centsInRange(d)
	if err != nil {
		return fmt.Errorf("amount %s out of range: %w", d.String(), err)
	}
	*m = v
	return nil
}
