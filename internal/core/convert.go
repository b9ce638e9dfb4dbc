package core

// convert.go turns raw field text into typed values.
//
// Unlike spreadsheet exports, the import format is fixed: dates are ISO
// calendar dates and values are plain decimal numbers. Anything else is
// rejected rather than guessed at.

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Accepted numeric range, matching PostgreSQL NUMERIC: at most
// MaxIntegerDigits digits before the decimal point and MaxFractionDigits
// after it.
const (
	MaxIntegerDigits  = 131072
	MaxFractionDigits = 16383
)

// numericRegex matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseDate parses a YYYY-MM-DD string. It reports false for empty input or
// any other layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ToDecimal converts a plain numeric string to a decimal.
// Currency symbols, thousands separators and accounting parentheses are
// not accepted, nor are values outside the NUMERIC range.
func ToDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !numericRegex.MatchString(s) {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil || !inNumericRange(d) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// inNumericRange checks digit counts from the coefficient and exponent so
// that huge exponents are never expanded.
func inNumericRange(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp < -MaxFractionDigits {
		return false
	}
	return int64(d.NumDigits())+exp <= MaxIntegerDigits
}

// CleanField trims surrounding whitespace and a trailing carriage return.
func CleanField(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(s, "\r"))
}
