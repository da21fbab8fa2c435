package replenishment

import (
	"math"
	"strings"
)

// roundFloat rounds v to the given number of decimal places.
func roundFloat(v float64, decimals int) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	if decimals <= 0 {
		return math.Round(v)
	}

	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

// normalizeCategory makes category lookups case and whitespace insensitive.
func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
