package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// LiquidationTier is a discount bracket for surstock items, keyed on days of stock.
type LiquidationTier string

const (
	Tier90To120  LiquidationTier = "TIER_90_120"
	Tier120To180 LiquidationTier = "TIER_120_180"
	Tier180Plus  LiquidationTier = "TIER_180_PLUS"
)

type tierSpec struct {
	tier     LiquidationTier
	low      float64
	high     float64
	discount string
}

// liquidationTiers are ordered ascending with half-open [low, high) ranges.
var liquidationTiers = []tierSpec{
	{tier: Tier90To120, low: 90, high: 120, discount: "0.10"},
	{tier: Tier120To180, low: 120, high: 180, discount: "0.20"},
	{tier: Tier180Plus, low: 180, high: math.Inf(1), discount: "0.30"},
}

// LiquidationTiers returns the tiers in ascending order.
func LiquidationTiers() []LiquidationTier {
	out := make([]LiquidationTier, len(liquidationTiers))
	for i, t := range liquidationTiers {
		out[i] = t.tier
	}
	return out
}

// TierForRotationDays selects the single tier whose range contains days.
func TierForRotationDays(days float64) (LiquidationTier, bool) {
	if math.IsNaN(days) {
		return "", false
	}
	for _, t := range liquidationTiers {
		if days >= t.low && days < t.high {
			return t.tier, true
		}
	}
	return "", false
}

// Discount returns the markdown fraction of the tier, zero for unknown tiers.
func (t LiquidationTier) Discount() decimal.Decimal {
	for _, spec := range liquidationTiers {
		if spec.tier == t {
			return decimal.RequireFromString(spec.discount)
		}
	}
	return decimal.Zero
}

// Bounds returns the half-open range [low, high) of the tier.
func (t LiquidationTier) Bounds() (low, high float64, ok bool) {
	for _, spec := range liquidationTiers {
		if spec.tier == t {
			return spec.low, spec.high, true
		}
	}
	return 0, 0, false
}

// LiquidationRequest asks the pricing collaborator to mark a SKU down.
// Nothing in this module applies the discount.
type LiquidationRequest struct {
	RunID          string          `json:"run_id"`
	SKU            SKU             `json:"sku"`
	Tier           LiquidationTier `json:"tier"`
	Discount       decimal.Decimal `json:"discount"`
	RotationDays   float64         `json:"rotation_days"`
	QuantityOnHand float64         `json:"quantity_on_hand"`
	StockValue     decimal.Decimal `json:"stock_value"`
}
