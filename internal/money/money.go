package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

const places = 2

// ceiling bounds every parsed amount well inside float64 range so balance
// arithmetic stays finite.
var ceiling = decimal.New(1, 15)

// Parse reads a user supplied amount such as "100" or "250.50". Negative,
// zero, sub-cent and absurdly large inputs are rejected.
func Parse(input string) (float64, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), "$"))
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if value.Exponent() < -places && !value.Equal(value.Round(places)) {
		return 0, ErrTooManyDecimals
	}
	if value.LessThanOrEqual(decimal.Zero) || value.GreaterThan(ceiling) {
		return 0, ErrInvalidAmount
	}
	return value.InexactFloat64(), nil
}

// Finite reports whether value is a usable amount: not NaN, not infinite and
// no larger than any amount Parse accepts.
func Finite(value float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	return math.Abs(value) <= ceiling.InexactFloat64()
}

// Round rounds to whole cents.
func Round(value float64) float64 {
	return decimal.NewFromFloat(value).Round(places).InexactFloat64()
}

// Add sums two amounts in decimal and rounds the result to cents, so repeated
// credits do not accumulate binary floating point drift.
func Add(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(places).InexactFloat64()
}

// Sum adds amounts the same way Add does.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.Round(places).InexactFloat64()
}

// Scale multiplies an amount by a factor and rounds to cents.
func Scale(amount, factor float64) float64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(factor)).Round(places).InexactFloat64()
}

func Format(value float64) string {
	return decimal.NewFromFloat(value).StringFixed(places)
}
