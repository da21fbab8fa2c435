package pipeline

import (
	"context"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/pipeline/replenishment"
	"golang.org/x/sync/errgroup"
)

// runSurstock implements WEEKLY_SURSTOCK. SKUs absent from the turnover
// rates have no recorded sales and are treated as zero rotation.
func (c *Coordinator) runSurstock(ctx context.Context, rc *runContext) error {
	report := &domain.SurstockReport{
		RunID:        rc.record.RunID,
		Status:       domain.RunStatusRunning,
		GeneratedAt:  rc.record.StartedAt,
		Surstock:     []domain.SurstockItem{},
		Liquidations: []domain.LiquidationRequest{},
		TierCounts:   map[domain.LiquidationTier]int{},
	}
	rc.record.Artifacts.Surstock = report

	var (
		stock []domain.StockSnapshot
		rates map[domain.SKU]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := c.deps.Stock.GetStockLevels(gctx)
		if err != nil {
			return unavailable("stock_levels", err)
		}
		stock = s
		return nil
	})
	g.Go(func() error {
		r, err := c.deps.Turnover.GetTurnoverRates(gctx)
		if err != nil {
			return unavailable("turnover", err)
		}
		rates = r
		return nil
	})
	if err := g.Wait(); err != nil {
		rc.recordError("fetch", "", err)
		return err
	}

	var candidates []replenishment.SurstockCandidate
	rotations := make(map[domain.SKU]float64)
	for _, snap := range stock {
		rotation := rates[snap.SKU]
		classification, _ := c.classifier.AssessSurstock(snap, rotation)
		if risk, ok := classification.(domain.SurstockRisk); ok {
			candidates = append(candidates, replenishment.SurstockCandidate{Risk: risk, Snapshot: snap})
			rotations[snap.SKU] = rotation
		}
	}

	plan := c.liquidator.Plan(rc.record.RunID, candidates)
	report.Liquidations = plan.Requests
	report.TierCounts = plan.TierCounts
	for i, risk := range plan.Tiered {
		snap := candidates[i].Snapshot
		report.Surstock = append(report.Surstock, domain.SurstockItem{
			SKU:                risk.SKU,
			Category:           snap.Category,
			QuantityOnHand:     snap.QuantityOnHand,
			AvgMonthlyRotation: rotations[risk.SKU],
			DaysOfStock:        risk.RotationDays,
			Tier:               risk.Tier,
			Value:              snap.Value().Round(2),
		})
	}
	report.TotalValue = replenishment.TotalValue(candidates).Round(2)

	rc.log.Info().
		Int("skus", len(stock)).
		Int("surstock", len(report.Surstock)).
		Str("total_value", report.TotalValue.StringFixed(2)).
		Msg("surstock scan done")

	if len(plan.Requests) > 0 && c.deps.Liquidation != nil {
		if err := c.deps.Liquidation.Submit(ctx, plan.Requests); err != nil {
			rc.recordError("liquidation", "liquidation", unavailable("liquidation", err))
		} else {
			c.deps.Metrics.liquidationRequests(plan.TierCounts)
		}
	}
	return nil
}
