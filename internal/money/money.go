// Package money holds the monetary comparison helpers used by the
// matching and reconciliation layers.
package money

import (
	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// Round2 rounds to centavos
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// PercentOf computes amount * (percent/100), rounded to centavos
func PercentOf(amount decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}

// RelativeDiff returns |a-b| / |b| as a float, or +Inf semantics avoided
// by reporting 0 when both are zero and 1 when only b is zero.
func RelativeDiff(a, b decimal.Decimal) float64 {
	if b.IsZero() {
		if a.IsZero() {
			return 0
		}
		return 1
	}
	diff, _ := a.Sub(b).Abs().Div(b.Abs()).Float64()
	return diff
}

// WithinPercent reports whether a is within the given fraction of b
func WithinPercent(a, b decimal.Decimal, fraction float64) bool {
	return RelativeDiff(a, b) <= fraction
}

// WithinAbsolute reports whether |a-b| does not exceed the tolerance
func WithinAbsolute(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// Sum adds a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
