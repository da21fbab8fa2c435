package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SKU identifies a stock keeping unit.
type SKU string

// StockSnapshot is the ERP view of a SKU at fetch time.
type StockSnapshot struct {
	SKU            SKU             `json:"sku" db:"sku"`
	Category       string          `json:"category,omitempty" db:"category"`
	QuantityOnHand float64         `json:"quantity_on_hand" db:"quantity_on_hand"`
	UnitCost       decimal.Decimal `json:"unit_cost" db:"unit_cost"`
}

// Value returns quantity on hand valued at unit cost.
func (s StockSnapshot) Value() decimal.Decimal {
	return s.UnitCost.Mul(decimal.NewFromFloat(s.QuantityOnHand))
}

// Granularity of a sales history series.
type Granularity string

const (
	GranularityDaily  Granularity = "daily"
	GranularityWeekly Granularity = "weekly"
)

// SalesHistoryPoint represents units sold for a SKU on a given date
type SalesHistoryPoint struct {
	SKU       SKU       `json:"sku" db:"sku"`
	Date      time.Time `json:"date" db:"sale_date"`
	UnitsSold float64   `json:"units_sold" db:"units_sold"`
}

// ForecastResult is the model output for one (sku, horizon) pair.
type ForecastResult struct {
	SKU            SKU     `json:"sku"`
	HorizonDays    int     `json:"horizon_days"`
	ExpectedDemand float64 `json:"expected_demand"`
	DemandStdDev   float64 `json:"demand_std_dev"`
}

// DailyDemand spreads the expected demand of the horizon over its days.
func (f ForecastResult) DailyDemand() float64 {
	if f.HorizonDays <= 0 {
		return 0
	}
	return f.ExpectedDemand / float64(f.HorizonDays)
}

// FindHorizon returns the result for the given horizon, if present.
func FindHorizon(results []ForecastResult, horizonDays int) (ForecastResult, bool) {
	for _, r := range results {
		if r.HorizonDays == horizonDays {
			return r, true
		}
	}
	return ForecastResult{}, false
}

// CachedForecast is the per-SKU cache entry used when the model is unavailable.
type CachedForecast struct {
	SKU         SKU              `json:"sku"`
	Results     []ForecastResult `json:"results"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Fresh reports whether the entry is younger than maxAge at now.
func (c CachedForecast) Fresh(now time.Time, maxAge time.Duration) bool {
	return !c.GeneratedAt.IsZero() && now.Sub(c.GeneratedAt) <= maxAge
}

// SafetyStockParams are validated inputs shared by every SKU of a run.
type SafetyStockParams struct {
	ServiceLevel float64 `json:"service_level"`
	LeadTimeDays float64 `json:"lead_time_days"`
}

// NewSafetyStockParams validates serviceLevel in (0,1) and leadTimeDays > 0.
func NewSafetyStockParams(serviceLevel, leadTimeDays float64) (SafetyStockParams, error) {
	if serviceLevel <= 0 || serviceLevel >= 1 {
		return SafetyStockParams{}, NewInvalidParameter("serviceLevel", serviceLevel, "must be within (0,1)")
	}
	if leadTimeDays <= 0 {
		return SafetyStockParams{}, NewInvalidParameter("leadTimeDays", leadTimeDays, "must be > 0")
	}
	return SafetyStockParams{ServiceLevel: serviceLevel, LeadTimeDays: leadTimeDays}, nil
}

// SafetyStockTarget is the buffer quantity computed for a SKU.
type SafetyStockTarget struct {
	SKU      SKU     `json:"sku"`
	Quantity float64 `json:"quantity"`
}
