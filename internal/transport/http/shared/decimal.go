package shared

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money parses a monetary field, adding an issue when it is missing,
// malformed, or has more than two decimal places.
func (v *Validator) Money(field, raw string) (decimal.Decimal, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		v.Add(field, "is required")
		return decimal.Zero, false
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		v.Add(field, "must be a decimal amount")
		return decimal.Zero, false
	}
	if parsed.Exponent() < -2 && !parsed.Equal(parsed.Round(2)) {
		v.Add(field, "must have at most two decimal places")
		return decimal.Zero, false
	}
	return parsed, true
}
