// Package money converts decimal major-unit currency amounts into integer
// minor units (cents). All billing arithmetic downstream is integer-only;
// this package is the single place where floating point is allowed in.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount (e.g. 19.99 USD) to minor units
// (1999 cents). Rounding is half away from zero, never truncation, so a
// billed total is never silently shaved by a cent. Non-finite and negative
// inputs clamp to 0.
func ToMinorUnits(amount float64) int64 {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	cents := decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
	if cents < 0 {
		return 0
	}
	return cents
}

// FromMinorUnits converts minor units back to a major-unit decimal. Used only
// for display metadata; never fed back into billing arithmetic.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}
