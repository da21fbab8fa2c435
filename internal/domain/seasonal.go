package domain

import (
	"strings"
	"time"
)

// SeasonalEvent describes a demand spike to prepare for.
// CategoryUplifts may be left empty; the planner then resolves uplifts from
// the catalog using Type.
type SeasonalEvent struct {
	Name            string             `json:"name" yaml:"name"`
	Type            string             `json:"type" yaml:"type"`
	Date            time.Time          `json:"date" yaml:"date"`
	Multiplier      float64            `json:"multiplier" yaml:"multiplier"`
	LeadDays        int                `json:"lead_days" yaml:"lead_days"`
	CategoryUplifts map[string]float64 `json:"category_uplifts,omitempty" yaml:"category_uplifts,omitempty"`
}

// Validate rejects events that cannot produce pre-orders.
func (e SeasonalEvent) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return NewInvalidParameter("event.name", e.Name, "must not be empty")
	}
	if e.LeadDays <= 0 {
		return NewInvalidParameter("event.leadDays", e.LeadDays, "must be > 0")
	}
	if e.Multiplier < 0 {
		return NewInvalidParameter("event.multiplier", e.Multiplier, "must be >= 0")
	}
	if e.Date.IsZero() {
		return NewInvalidParameter("event.date", e.Date, "must be set")
	}
	return nil
}

// PreOrderDate is the target delivery date, LeadDays before the event.
func (e SeasonalEvent) PreOrderDate() time.Time {
	return e.Date.AddDate(0, 0, -e.LeadDays)
}

// CategoryAdjustment is the uplifted multiplier for one category.
type CategoryAdjustment struct {
	Category       string  `json:"category"`
	UpliftFraction float64 `json:"uplift_fraction"`
	NewMultiplier  float64 `json:"new_multiplier"`
}

// AdjustedTarget is a SKU safety stock scaled by its category multiplier.
type AdjustedTarget struct {
	SKU                 SKU     `json:"sku"`
	Category            string  `json:"category"`
	BaselineSafetyStock float64 `json:"baseline_safety_stock"`
	AdjustedSafetyStock float64 `json:"adjusted_safety_stock"`
}

// PreOrderRequest asks purchasing to secure stock ahead of an event.
type PreOrderRequest struct {
	RunID              string    `json:"run_id"`
	EventName          string    `json:"event_name"`
	SKU                SKU       `json:"sku"`
	Category           string    `json:"category"`
	Quantity           float64   `json:"quantity"`
	TargetDeliveryDate time.Time `json:"target_delivery_date"`
}

// SeasonalPlan is the output of the seasonal adjustment planner.
type SeasonalPlan struct {
	Adjustments []CategoryAdjustment `json:"adjustments"`
	Targets     []AdjustedTarget     `json:"targets"`
	PreOrders   []PreOrderRequest    `json:"pre_orders"`
}
