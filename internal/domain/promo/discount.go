package promo

import "github.com/shopspring/decimal"

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Compute calculates the discount for amount under the given rates.
//
// The percentage component is floored (never rounded up or to nearest) so
// the discount can never exceed what the percentage literally implies; the
// fixed component is added on top. Negative intermediates clamp to zero, and
// the total discount is capped at amount-1 so the payable amount stays at
// least 1 whenever the original amount is at least 1.
//
// Amounts below 1 are passed through untouched with a zero discount; the
// calculator treats them as a no-op rather than an error.
func Compute(amount, percent, fixed decimal.Decimal) (discount, finalAmount decimal.Decimal) {
	if amount.LessThan(one) {
		return decimal.Zero, amount
	}

	disc := decimal.Zero
	if percent.IsPositive() {
		disc = disc.Add(amount.Mul(percent).Div(hundred).Floor())
	}
	if fixed.IsPositive() {
		disc = disc.Add(fixed)
	}

	if disc.IsNegative() {
		disc = decimal.Zero
	}
	if disc.GreaterThanOrEqual(amount) {
		disc = decimal.Max(decimal.Zero, amount.Sub(one))
	}

	return disc, amount.Sub(disc)
}
