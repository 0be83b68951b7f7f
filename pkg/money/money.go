// Package money converts between decimal amounts and integer minor units.
// All arithmetic in the engine is done on int64 cents.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const minorUnits = 2

// ToCents converts d to cents. It fails when d has more precision than the
// currency's minor unit, so "10.005" is rejected instead of rounded.
func ToCents(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(minorUnits)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), minorUnits)
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s out of range", d.String())
	}
	return shifted.IntPart(), nil
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -minorUnits)
}

// Format renders cents with exactly two decimal places, e.g. 10500 -> "105.00".
func Format(cents int64) string {
	return FromCents(cents).StringFixed(minorUnits)
}

// Parse reads a decimal string into cents with the same precision rule as ToCents.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return ToCents(d)
}
