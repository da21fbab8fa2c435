package replenishment

import (
	"math"
	"sort"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
)

// UpliftSource resolves category uplifts for an event type. Unknown types
// return an empty map.
type UpliftSource interface {
	UpliftsFor(eventType string) map[string]float64
}

// SeasonalPlanner maps a seasonal event to category multipliers, adjusted
// safety stock targets and pre-order requests.
type SeasonalPlanner struct {
	source UpliftSource
}

func NewSeasonalPlanner(source UpliftSource) *SeasonalPlanner {
	return &SeasonalPlanner{source: source}
}

// ResolveUplifts prefers uplifts carried by the event, then the catalog.
// Keys are normalized to lower case.
func (p *SeasonalPlanner) ResolveUplifts(event domain.SeasonalEvent) map[string]float64 {
	raw := event.CategoryUplifts
	if len(raw) == 0 && p.source != nil {
		raw = p.source.UpliftsFor(event.Type)
	}
	out := make(map[string]float64, len(raw))
	for category, uplift := range raw {
		if key := normalizeCategory(category); key != "" {
			out[key] = uplift
		}
	}
	return out
}

// Adjustments computes newMultiplier = 1 + uplift × event.Multiplier for
// every category with an uplift, sorted by category.
func (p *SeasonalPlanner) Adjustments(event domain.SeasonalEvent, uplifts map[string]float64) []domain.CategoryAdjustment {
	out := make([]domain.CategoryAdjustment, 0, len(uplifts))
	for category, uplift := range uplifts {
		out = append(out, domain.CategoryAdjustment{
			Category:       category,
			UpliftFraction: uplift,
			NewMultiplier:  1 + uplift*event.Multiplier,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// Plan validates the event, then scales each SKU's baseline safety stock by
// its category multiplier. SKUs of categories without uplift, or without a
// baseline, are left out. A pre-order is emitted when the adjusted target
// exceeds stock on hand.
func (p *SeasonalPlanner) Plan(runID string, event domain.SeasonalEvent, stock []domain.StockSnapshot, baseline map[domain.SKU]float64) (domain.SeasonalPlan, error) {
	if err := event.Validate(); err != nil {
		return domain.SeasonalPlan{}, err
	}

	adjustments := p.Adjustments(event, p.ResolveUplifts(event))
	multipliers := make(map[string]float64, len(adjustments))
	for _, a := range adjustments {
		multipliers[a.Category] = a.NewMultiplier
	}

	plan := domain.SeasonalPlan{
		Adjustments: adjustments,
		Targets:     []domain.AdjustedTarget{},
		PreOrders:   []domain.PreOrderRequest{},
	}
	deliveryDate := event.PreOrderDate()

	for _, snap := range stock {
		category := normalizeCategory(snap.Category)
		multiplier, ok := multipliers[category]
		if !ok {
			continue
		}
		base, ok := baseline[snap.SKU]
		if !ok {
			continue
		}

		adjusted := math.Max(0, base*multiplier)
		plan.Targets = append(plan.Targets, domain.AdjustedTarget{
			SKU:                 snap.SKU,
			Category:            category,
			BaselineSafetyStock: roundFloat(base, 2),
			AdjustedSafetyStock: roundFloat(adjusted, 2),
		})

		if shortfall := math.Ceil(adjusted - snap.QuantityOnHand); shortfall > 0 {
			plan.PreOrders = append(plan.PreOrders, domain.PreOrderRequest{
				RunID:              runID,
				EventName:          event.Name,
				SKU:                snap.SKU,
				Category:           category,
				Quantity:           shortfall,
				TargetDeliveryDate: deliveryDate,
			})
		}
	}

	return plan, nil
}
