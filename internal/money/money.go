package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in currency minor units.
type Money = int64

// Currency carries the minor-unit precision used for all rounding. It is
// threaded explicitly through every calculation instead of being read from
// package state so that preview and commit paths cannot diverge.
type Currency struct {
	Code     string
	Exponent int32
}

// Floor converts a major-unit decimal amount into minor units, truncating
// any fraction below the minor unit. Truncation happens per calculation
// step, never once at the end, so repeated computations stay bit-exact.
func (c Currency) Floor(d decimal.Decimal) Money {
	return d.Shift(c.Exponent).Floor().IntPart()
}

// Decimal converts a minor-unit amount back into a major-unit decimal.
func (c Currency) Decimal(m Money) decimal.Decimal {
	return decimal.New(m, -c.Exponent)
}

// Format renders a minor-unit amount as a plain decimal string, e.g. 6110
// with exponent 2 becomes "61.10".
func (c Currency) Format(m Money) string {
	return c.Decimal(m).StringFixed(c.Exponent)
}

// Parse reads a major-unit decimal string into minor units. It rejects
// amounts with more precision than the currency carries rather than
// rounding them silently.
func (c Currency) Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	shifted := d.Shift(c.Exponent)
	if !shifted.Equal(shifted.Floor()) {
		return 0, fmt.Errorf("money: %q exceeds %s precision", s, c.Code)
	}
	return shifted.IntPart(), nil
}
