package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tpv-reconciliation-service/pkg/errors"
)

// DecimalConvention tags a textual amount with the decimal-separator
// convention of its source.
type DecimalConvention string

const (
	// DotDecimal treats '.' as the decimal point and ',' as a thousands
	// separator. This is the terminal-statement convention.
	DotDecimal DecimalConvention = "dot"

	// CommaDecimal treats ',' as the decimal point and '.' as a thousands
	// separator. This is the delivery-note spreadsheet convention.
	CommaDecimal DecimalConvention = "comma"

	// AutoDecimal guesses: exactly one comma and no dot reads as a decimal
	// comma; with more than one dot, all but the last are thousands
	// separators; anything else parses as written. Known limitation: a value
	// with a single thousands separator and no decimal part (e.g. "1.234")
	// is read as a decimal.
	AutoDecimal DecimalConvention = "auto"
)

// IsValid checks if the convention is a known value.
func (c DecimalConvention) IsValid() bool {
	return c == DotDecimal || c == CommaDecimal || c == AutoDecimal
}

// String returns the string representation of DecimalConvention.
func (c DecimalConvention) String() string {
	return string(c)
}

// ParseDecimalConvention parses a convention name from configuration input.
func ParseDecimalConvention(s string) (DecimalConvention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dot", "point", "pdf":
		return DotDecimal, nil
	case "comma", "excel":
		return CommaDecimal, nil
	case "auto", "":
		return AutoDecimal, nil
	default:
		return "", fmt.Errorf("unknown decimal convention %q: must be dot, comma or auto", s)
	}
}

// NormalizeAmount converts a textual amount into an exact decimal value under
// the given convention. Currency symbols and whitespace are stripped first.
// Failure returns a normalization-category error; the caller decides whether
// that is fatal (spreadsheet cells) or simply drops the candidate (statement
// scanning).
func NormalizeAmount(raw string, convention DecimalConvention) (decimal.Decimal, error) {
	cleaned := stripCurrency(raw)
	if cleaned == "" {
		return decimal.Zero, errors.NormalizationError(
			errors.CodeInvalidAmount, "amount", raw,
			fmt.Errorf("amount string is empty"),
		)
	}

	switch convention {
	case DotDecimal:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case CommaDecimal:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case AutoDecimal:
		if strings.Count(cleaned, ",") == 1 && strings.Count(cleaned, ".") == 0 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else if strings.Count(cleaned, ".") > 1 {
			idx := strings.LastIndex(cleaned, ".")
			cleaned = strings.ReplaceAll(cleaned[:idx], ".", "") + cleaned[idx:]
		}
	default:
		return decimal.Zero, errors.ConfigurationError(
			errors.CodeInvalidConfig, "decimal_convention", convention, nil,
		)
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, errors.NormalizationError(
			errors.CodeInvalidAmount, "amount", raw, err,
		)
	}
	return value, nil
}

// FormatAmount renders a decimal under the given convention with two
// fractional digits, the monetary round-trip counterpart of NormalizeAmount.
func FormatAmount(value decimal.Decimal, convention DecimalConvention) string {
	fixed := value.StringFixed(2)
	if convention == CommaDecimal {
		return strings.ReplaceAll(fixed, ".", ",")
	}
	return fixed
}

func stripCurrency(raw string) string {
	cleaned := strings.TrimSpace(raw)
	for _, symbol := range []string{"€", "$", "EUR"} {
		cleaned = strings.ReplaceAll(cleaned, symbol, "")
	}
	return strings.TrimSpace(cleaned)
}
