package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/pipeline/replenishment"
	"golang.org/x/sync/errgroup"
)

type dailyInputs struct {
	stock    []domain.StockSnapshot
	history  []domain.SalesHistoryPoint
	leadTime int
}

// runDaily implements DAILY_FORECAST. Only the input fetch, the lead time
// check and a forecast with no usable fallback are fatal.
func (c *Coordinator) runDaily(ctx context.Context, rc *runContext) error {
	report := &domain.ForecastReport{
		RunID:       rc.record.RunID,
		Status:      domain.RunStatusRunning,
		GeneratedAt: rc.record.StartedAt,
		Forecasts:   map[domain.SKU][]domain.ForecastResult{},
		AtRisk:      []domain.AtRiskItem{},
		SafetyStock: map[domain.SKU]float64{},
	}
	rc.record.Artifacts.Forecast = report

	in, err := c.fetchDailyInputs(ctx)
	if err != nil {
		rc.recordError("fetch", "", err)
		return err
	}
	report.LeadTime = float64(in.leadTime)

	calc, err := replenishment.NewSafetyStockCalculator(c.settings.ServiceLevel, float64(in.leadTime))
	if err != nil {
		rc.recordError("safety_stock", "lead_time", err)
		return err
	}

	forecasts, fresh, err := c.forecast(ctx, rc, in)
	if err != nil {
		return err
	}
	report.Forecasts = forecasts
	for sku := range forecasts {
		if !fresh[sku] {
			report.FromCache = append(report.FromCache, sku)
		}
	}
	sort.Slice(report.FromCache, func(i, j int) bool { return report.FromCache[i] < report.FromCache[j] })

	var drafts []domain.StockSnapshot
	var invalid int
	for _, snap := range in.stock {
		f, ok := domain.FindHorizon(forecasts[snap.SKU], c.settings.RuptureHorizon)
		if !ok {
			continue
		}
		target, err := calc.Target(f)
		if err != nil {
			invalid++
			rc.log.Warn().Err(err).Str("sku", string(snap.SKU)).Msg("safety stock skipped")
			continue
		}
		report.SafetyStock[snap.SKU] = target.Quantity

		a := c.classifier.AssessRupture(snap, target.Quantity, f)
		if !a.AtRisk {
			continue
		}
		item := domain.NewAtRiskItem(snap, target.Quantity, a.Threshold, a.DaysUntilRupture, a.Severity)
		report.AtRisk = append(report.AtRisk, item)
		if item.Alerting() {
			drafts = append(drafts, snap)
		}
	}
	if invalid > 0 {
		rc.recordError("safety_stock", "forecast", fmt.Errorf("%d SKU(s) had an invalid demand deviation", invalid))
	}

	rc.log.Info().
		Int("skus", len(in.stock)).
		Int("forecasts", len(forecasts)).
		Int("from_cache", len(report.FromCache)).
		Int("at_risk", len(report.AtRisk)).
		Msg("rupture classification done")

	c.dispatchAlerts(ctx, rc, report.AtRisk)

	if len(drafts) > 0 && c.deps.PurchaseOrders != nil {
		if err := c.deps.PurchaseOrders.CreateDraft(ctx, drafts); err != nil {
			rc.recordError("purchase_order", "purchase_order", unavailable("purchase_order", err))
		}
	}

	c.cacheForecasts(ctx, rc, forecasts, fresh)
	return nil
}

func (c *Coordinator) fetchDailyInputs(ctx context.Context) (dailyInputs, error) {
	var in dailyInputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stock, err := c.deps.Stock.GetStockLevels(gctx)
		if err != nil {
			return unavailable("stock_levels", err)
		}
		in.stock = stock
		return nil
	})
	g.Go(func() error {
		history, err := c.deps.Sales.GetSalesHistory(gctx, c.settings.SalesHistoryDays, c.settings.Granularity)
		if err != nil {
			return unavailable("sales_history", err)
		}
		in.history = history
		return nil
	})
	g.Go(func() error {
		days, err := c.deps.LeadTime.GetAverageLeadTime(gctx)
		if err != nil {
			return unavailable("lead_time", err)
		}
		in.leadTime = days
		return nil
	})
	if err := g.Wait(); err != nil {
		return dailyInputs{}, err
	}
	return in, nil
}

// forecast calls the model under a timeout and fills the gaps from the
// per-SKU cache. fresh marks SKUs that came from the model.
func (c *Coordinator) forecast(ctx context.Context, rc *runContext, in dailyInputs) (map[domain.SKU][]domain.ForecastResult, map[domain.SKU]bool, error) {
	predictCtx, cancel := context.WithTimeout(ctx, c.settings.ForecastTimeout)
	results, predictErr := c.predict(predictCtx, in.history)
	timedOut := errors.Is(predictCtx.Err(), context.DeadlineExceeded)
	cancel()

	if predictErr != nil {
		if timedOut || errors.Is(predictErr, context.DeadlineExceeded) || errors.Is(predictErr, domain.ErrForecastTimeout) {
			var fte *domain.ForecastTimeoutError
			if !errors.As(predictErr, &fte) {
				predictErr = &domain.ForecastTimeoutError{Timeout: c.settings.ForecastTimeout, Err: predictErr}
			}
		} else {
			predictErr = unavailable("forecast", predictErr)
		}
		rc.recordError("forecast", "forecast", predictErr)
		results = nil
	}

	forecasts := make(map[domain.SKU][]domain.ForecastResult, len(in.stock))
	fresh := make(map[domain.SKU]bool, len(in.stock))
	for _, snap := range in.stock {
		if r, ok := results[snap.SKU]; ok && len(r) > 0 {
			forecasts[snap.SKU] = r
			fresh[snap.SKU] = true
		}
	}

	c.fillFromCache(ctx, rc, in.stock, forecasts)

	if predictErr != nil && len(forecasts) == 0 && len(in.stock) > 0 {
		return nil, nil, fmt.Errorf("no forecast available for %d SKU(s): %w", len(in.stock), predictErr)
	}
	return forecasts, fresh, nil
}

type predictResult struct {
	results map[domain.SKU][]domain.ForecastResult
	err     error
}

// predict returns when the port answers or ctx is done, whichever comes
// first. A port that ignores ctx is left to finish on its own.
func (c *Coordinator) predict(ctx context.Context, history []domain.SalesHistoryPoint) (map[domain.SKU][]domain.ForecastResult, error) {
	done := make(chan predictResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- predictResult{err: fmt.Errorf("forecast port panicked: %v", r)}
			}
		}()
		results, err := c.deps.Forecast.Predict(ctx, history, c.settings.Horizons, c.settings.Seasonality)
		done <- predictResult{results: results, err: err}
	}()
	select {
	case r := <-done:
		return r.results, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) fillFromCache(ctx context.Context, rc *runContext, stock []domain.StockSnapshot, forecasts map[domain.SKU][]domain.ForecastResult) {
	if c.deps.Cache == nil {
		return
	}
	now := rc.clock.Now()
	var firstErr error
	for _, snap := range stock {
		if _, ok := forecasts[snap.SKU]; ok {
			continue
		}
		entry, ok, err := c.loadCachedForecast(ctx, snap.SKU)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok || !entry.Fresh(now, c.settings.ForecastMaxAge) || len(entry.Results) == 0 {
			continue
		}
		forecasts[snap.SKU] = entry.Results
	}
	if firstErr != nil {
		rc.recordError("forecast_fallback", "cache", unavailable("cache", firstErr))
	}
}

// cacheForecasts refreshes the per-SKU fallback entries with model output.
func (c *Coordinator) cacheForecasts(ctx context.Context, rc *runContext, forecasts map[domain.SKU][]domain.ForecastResult, fresh map[domain.SKU]bool) {
	if c.deps.Cache == nil {
		return
	}
	now := rc.clock.Now()
	var failed int
	var lastErr error
	for sku, results := range forecasts {
		if !fresh[sku] {
			continue
		}
		payload, err := json.Marshal(domain.CachedForecast{SKU: sku, Results: results, GeneratedAt: now})
		if err == nil {
			err = c.deps.Cache.Set(ctx, ForecastSKUKey(sku), payload, c.settings.ArtifactTTL)
		}
		if err != nil {
			failed++
			lastErr = err
		}
	}
	if failed > 0 {
		rc.recordError("forecast_cache", "cache", unavailable("cache", fmt.Errorf("%d SKU write(s) failed: %w", failed, lastErr)))
	}
}
