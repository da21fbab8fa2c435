package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ForecastReport is the artifact of a DAILY_FORECAST run, cached under
// stock:forecast:latest.
type ForecastReport struct {
	RunID       string                   `json:"run_id"`
	Status      RunStatus                `json:"status"`
	GeneratedAt time.Time                `json:"generated_at"`
	LeadTime    float64                  `json:"lead_time_days"`
	Forecasts   map[SKU][]ForecastResult `json:"forecasts"`
	AtRisk      []AtRiskItem             `json:"at_risk"`
	SafetyStock map[SKU]float64          `json:"safety_stock"`
	FromCache   []SKU                    `json:"from_cache,omitempty"`
	Errors      []StageError             `json:"errors,omitempty"`
}

// SurstockItem is a SKU whose days of stock exceed the surstock threshold.
type SurstockItem struct {
	SKU                SKU             `json:"sku"`
	Category           string          `json:"category,omitempty"`
	QuantityOnHand     float64         `json:"quantity_on_hand"`
	AvgMonthlyRotation float64         `json:"avg_monthly_rotation"`
	DaysOfStock        float64         `json:"days_of_stock"`
	Tier               LiquidationTier `json:"tier,omitempty"`
	Value              decimal.Decimal `json:"value"`
}

// SurstockReport is the artifact of a WEEKLY_SURSTOCK run.
type SurstockReport struct {
	RunID        string                  `json:"run_id"`
	Status       RunStatus               `json:"status"`
	GeneratedAt  time.Time               `json:"generated_at"`
	Surstock     []SurstockItem          `json:"surstock"`
	Liquidations []LiquidationRequest    `json:"liquidations"`
	TierCounts   map[LiquidationTier]int `json:"tier_counts"`
	TotalValue   decimal.Decimal         `json:"total_value"`
	Errors       []StageError            `json:"errors,omitempty"`
}

// SeasonalReport is the artifact of a SEASONAL_PREP run.
type SeasonalReport struct {
	RunID       string               `json:"run_id"`
	Status      RunStatus            `json:"status"`
	GeneratedAt time.Time            `json:"generated_at"`
	Event       SeasonalEvent        `json:"event"`
	Uplifts     map[string]float64   `json:"uplifts"`
	Adjustments []CategoryAdjustment `json:"adjustments"`
	Targets     []AdjustedTarget     `json:"targets"`
	PreOrders   []PreOrderRequest    `json:"pre_orders"`
	Errors      []StageError         `json:"errors,omitempty"`
}
