package domain

import (
	"fmt"
	"strings"
)

// ParseSymbol splits a BASE/QUOTE symbol into its assets.
func ParseSymbol(symbol string) (base, quote string, err error) {
	parts := strings.Split(strings.TrimSpace(symbol), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

// NormalizeSymbol upper-cases and trims a symbol for storage and comparison.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
