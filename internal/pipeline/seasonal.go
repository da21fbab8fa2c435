package pipeline

import (
	"context"
	"fmt"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
)

// runSeasonal implements SEASONAL_PREP. The event was validated before the
// lock was taken. Baseline safety stock comes from the latest cached
// forecast report; without it the adjustments are still returned.
func (c *Coordinator) runSeasonal(ctx context.Context, rc *runContext, event domain.SeasonalEvent) error {
	uplifts := c.planner.ResolveUplifts(event)
	report := &domain.SeasonalReport{
		RunID:       rc.record.RunID,
		Status:      domain.RunStatusRunning,
		GeneratedAt: rc.record.StartedAt,
		Event:       event,
		Uplifts:     uplifts,
		Adjustments: c.planner.Adjustments(event, uplifts),
		Targets:     []domain.AdjustedTarget{},
		PreOrders:   []domain.PreOrderRequest{},
	}
	rc.record.Artifacts.Seasonal = report

	stock, err := c.deps.Stock.GetStockLevels(ctx)
	if err != nil {
		err = unavailable("stock_levels", err)
		rc.recordError("fetch", "", err)
		return err
	}

	baseline := c.loadBaseline(ctx, rc)

	plan, err := c.planner.Plan(rc.record.RunID, event, stock, baseline)
	if err != nil {
		rc.recordError("plan", "", err)
		return err
	}
	report.Adjustments = plan.Adjustments
	report.Targets = plan.Targets
	report.PreOrders = plan.PreOrders

	rc.log.Info().
		Str("event", event.Name).
		Int("categories", len(plan.Adjustments)).
		Int("targets", len(plan.Targets)).
		Int("pre_orders", len(plan.PreOrders)).
		Msg("seasonal plan done")

	if len(plan.PreOrders) > 0 && c.deps.PurchaseOrders != nil {
		if err := c.deps.PurchaseOrders.CreatePreOrders(ctx, plan.PreOrders); err != nil {
			rc.recordError("pre_order", "purchase_order", unavailable("purchase_order", err))
		}
	}
	return nil
}

func (c *Coordinator) loadBaseline(ctx context.Context, rc *runContext) map[domain.SKU]float64 {
	if c.deps.Cache == nil {
		rc.recordError("baseline", "cache", domain.ErrNoBaselineTargets)
		return nil
	}
	report, ok, err := LoadForecastReport(ctx, c.deps.Cache)
	switch {
	case err != nil:
		rc.recordError("baseline", "cache", unavailable("cache", err))
		return nil
	case !ok || len(report.SafetyStock) == 0:
		rc.recordError("baseline", "cache", fmt.Errorf("%w: %s is empty", domain.ErrNoBaselineTargets, ForecastLatestKey))
		return nil
	}
	return report.SafetyStock
}
