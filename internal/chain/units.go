package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseUnits converts a decimal token string (e.g. "5.5") to base units.
// With 18 decimals, "1" is 1_000_000_000_000_000_000.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(amount, "-") || strings.HasPrefix(amount, "+") {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}

	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}

	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %s has more than %d decimals", amount, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", amount)
	}
	return v, nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	s := new(big.Int).Abs(v).String()
	if decimals > 0 {
		if len(s) <= decimals {
			s = strings.Repeat("0", decimals-len(s)+1) + s
		}
		whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
		s = whole
		if frac != "" {
			s += "." + frac
		}
	}
	if neg {
		s = "-" + s
	}
	return s
}
