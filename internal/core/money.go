// Package core provides money parsing and handling utilities.
//
// This file contains the amount normalizer used for statement rows. Amounts
// are kept as shopspring decimals so per-category sums never drift.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	amountNoise   = strings.NewReplacer(",", "", `"`, "", "'", "")
	amountPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
)

// ParseAmount converts a raw statement amount into a decimal.
//
// Thousands separators, quote characters and surrounding whitespace are
// removed before parsing. An empty cell yields zero. Anything else that is
// not a plain decimal number fails with a MalformedAmount error.
//
// Examples:
//
//	ParseAmount(`"1,234.50"`) -> 1234.50, nil
//	ParseAmount(" 150 ")      -> 150, nil
//	ParseAmount("")           -> 0, nil
//	ParseAmount("12a")        -> 0, MalformedAmount
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(amountNoise.Replace(strings.TrimSpace(raw)))
	if s == "" {
		return decimal.Zero, nil
	}
	if !amountPattern.MatchString(s) {
		return decimal.Zero, NewError(KindMalformedAmount, "amount %q is not numeric", raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, WrapError(KindMalformedAmount, err, "amount %q is not numeric", raw)
	}
	return d, nil
}

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
