package replenishment

import (
	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ClassifyTier maps days of stock to a liquidation tier. Below the first
// tier it returns false. Tiers are evaluated as one ordered dispatch over
// half-open ranges so a SKU can never land in two brackets.
func ClassifyTier(rotationDays float64) (domain.LiquidationTier, bool) {
	return domain.TierForRotationDays(rotationDays)
}

// SurstockCandidate pairs a surstock classification with its snapshot.
type SurstockCandidate struct {
	Risk     domain.SurstockRisk
	Snapshot domain.StockSnapshot
}

// LiquidationPlan is the output of the tier engine.
type LiquidationPlan struct {
	Requests   []domain.LiquidationRequest
	Tiered     []domain.SurstockRisk
	TierCounts map[domain.LiquidationTier]int
}

// LiquidationEngine assigns tiers and emits liquidation requests. It never
// applies discounts itself.
type LiquidationEngine struct {
	log zerolog.Logger
}

func NewLiquidationEngine(log zerolog.Logger) *LiquidationEngine {
	return &LiquidationEngine{log: log}
}

// Plan builds one request per candidate that falls into a tier.
func (e *LiquidationEngine) Plan(runID string, candidates []SurstockCandidate) LiquidationPlan {
	plan := LiquidationPlan{
		Requests:   make([]domain.LiquidationRequest, 0, len(candidates)),
		Tiered:     make([]domain.SurstockRisk, 0, len(candidates)),
		TierCounts: make(map[domain.LiquidationTier]int, 3),
	}
	for _, tier := range domain.LiquidationTiers() {
		plan.TierCounts[tier] = 0
	}

	for _, c := range candidates {
		risk := c.Risk
		tier, ok := ClassifyTier(risk.RotationDays)
		if !ok {
			plan.Tiered = append(plan.Tiered, risk)
			continue
		}
		risk.Tier = tier
		plan.Tiered = append(plan.Tiered, risk)
		plan.TierCounts[tier]++
		plan.Requests = append(plan.Requests, domain.LiquidationRequest{
			RunID:          runID,
			SKU:            risk.SKU,
			Tier:           tier,
			Discount:       tier.Discount(),
			RotationDays:   roundFloat(risk.RotationDays, 2),
			QuantityOnHand: c.Snapshot.QuantityOnHand,
			StockValue:     c.Snapshot.Value().Round(2),
		})
	}

	e.log.Info().
		Str("run_id", runID).
		Int(string(domain.Tier90To120), plan.TierCounts[domain.Tier90To120]).
		Int(string(domain.Tier120To180), plan.TierCounts[domain.Tier120To180]).
		Int(string(domain.Tier180Plus), plan.TierCounts[domain.Tier180Plus]).
		Int("requests", len(plan.Requests)).
		Msg("liquidation tiers assigned")

	return plan
}

// TotalValue sums quantity × unit cost over the candidates.
func TotalValue(candidates []SurstockCandidate) decimal.Decimal {
	total := decimal.Zero
	for _, c := range candidates {
		total = total.Add(c.Snapshot.Value())
	}
	return total
}
