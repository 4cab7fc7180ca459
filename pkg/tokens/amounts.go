package tokens

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// DustThreshold is the smallest value rendered as itself; anything
// smaller but non-zero displays as zero to avoid scientific notation
// in formatted output.
const DustThreshold = "0.000001"

var amountPattern = regexp.MustCompile(`^\d*[.,]?\d*$`)

// ParseAmount converts a human-readable amount string into atomic
// units for the asset on the given chain.
func ParseAmount(amount string, symbol Symbol, network Network) (*big.Int, error) {
	cfg, err := ForChain(symbol, network)
	if err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(amount, ",", "."))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", amount)
	}

	shifted := d.Shift(cfg.Decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, cfg.Decimals)
	}

	return shifted.BigInt(), nil
}

// FormatAmount converts atomic units into a human-readable string,
// truncated to displayDecimals places. Non-zero values below the dust
// threshold render as "0".
func FormatAmount(atomic *big.Int, symbol Symbol, network Network, displayDecimals int32) string {
	cfg, err := ForChain(symbol, network)
	if err != nil {
		return "0"
	}

	d := decimal.NewFromBigInt(atomic, -cfg.Decimals)
	dust, _ := decimal.NewFromString(DustThreshold)
	if !d.IsZero() && d.Abs().LessThan(dust) {
		return "0"
	}

	return d.Truncate(displayDecimals).String()
}

// CompareAmounts compares two human-readable amounts of the same asset,
// returning -1, 0, or 1. Empty strings compare as zero.
func CompareAmounts(a, b string, symbol Symbol, network Network) (int, error) {
	if a == "" {
		a = "0"
	}
	if b == "" {
		b = "0"
	}
	aAtomic, err := ParseAmount(a, symbol, network)
	if err != nil {
		return 0, err
	}
	bAtomic, err := ParseAmount(b, symbol, network)
	if err != nil {
		return 0, err
	}
	return aAtomic.Cmp(bAtomic), nil
}

// MaxSpendable returns the balance minus the gas buffer for native
// assets, floored at zero.
func MaxSpendable(balance *big.Int, symbol Symbol, network Network) *big.Int {
	buffer := GasBuffer(symbol, network)
	if buffer == "0" {
		return new(big.Int).Set(balance)
	}

	bufferAtomic, err := ParseAmount(buffer, symbol, network)
	if err != nil {
		return new(big.Int).Set(balance)
	}

	max := new(big.Int).Sub(balance, bufferAtomic)
	if max.Sign() < 0 {
		return big.NewInt(0)
	}
	return max
}

// IsValidAmountString reports whether the input parses as a decimal
// number. Both dot and comma are accepted as the decimal separator.
func IsValidAmountString(amount string) bool {
	amount = strings.TrimSpace(amount)
	if amount == "" || amount == "." || amount == "," {
		return false
	}
	if !amountPattern.MatchString(amount) {
		return false
	}
	return strings.ContainsAny(amount, "0123456789")
}

// IsPositiveAmount reports whether the input parses as a value > 0
func IsPositiveAmount(amount string) bool {
	if !IsValidAmountString(amount) {
		return false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(amount, ",", "."))
	if err != nil {
		return false
	}
	return d.IsPositive()
}

// SanitizeAmountInput normalizes raw user input: commas become dots,
// non-numeric characters are stripped, and only the first decimal
// point survives.
func SanitizeAmountInput(input string) string {
	sanitized := strings.ReplaceAll(input, ",", ".")
	sanitized = regexp.MustCompile(`[^0-9.]`).ReplaceAllString(sanitized, "")

	parts := strings.SplitN(sanitized, ".", 2)
	if len(parts) == 2 {
		return parts[0] + "." + strings.ReplaceAll(parts[1], ".", "")
	}
	return sanitized
}
