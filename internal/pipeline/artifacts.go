package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
)

const (
	ForecastLatestKey = "stock:forecast:latest"
	SurstockLatestKey = "stock:surstock:latest"
	forecastSKUPrefix = "stock:forecast:sku:"
)

// ForecastSKUKey is the per-SKU cache entry used as the forecast fallback.
func ForecastSKUKey(sku domain.SKU) string {
	return forecastSKUPrefix + string(sku)
}

// SeasonalLatestKey is the cache key of the last seasonal report for an event.
func SeasonalLatestKey(eventName string) string {
	name := strings.ToLower(strings.TrimSpace(eventName))
	name = strings.Join(strings.Fields(name), "_")
	return "stock:seasonal:" + name + ":latest"
}

// publishArtifact writes the kind's report to the cache. A failure turns a
// COMPLETED run into DEGRADED.
func (c *Coordinator) publishArtifact(ctx context.Context, rc *runContext) {
	if c.deps.Cache == nil {
		return
	}
	key, report := artifactFor(rc.record)
	if key == "" {
		return
	}
	payload, err := json.Marshal(report)
	if err == nil {
		err = c.deps.Cache.Set(ctx, key, payload, c.settings.ArtifactTTL)
	}
	if err != nil {
		rc.recordError("cache_artifact", "cache", unavailable("cache", err))
		rc.record.Status = domain.RunStatusDegraded
		rc.stampReports()
		return
	}
	rc.log.Debug().Str("key", key).Int("bytes", len(payload)).Msg("artifact cached")
}

func artifactFor(record *domain.RunRecord) (string, any) {
	a := record.Artifacts
	switch {
	case a.Forecast != nil:
		return ForecastLatestKey, a.Forecast
	case a.Surstock != nil:
		return SurstockLatestKey, a.Surstock
	case a.Seasonal != nil:
		return SeasonalLatestKey(a.Seasonal.Event.Name), a.Seasonal
	}
	return "", nil
}

// archive stores the whole finished record. Failed runs are archived too.
// It reports false when the archive write failed.
func (c *Coordinator) archive(ctx context.Context, rc *runContext) bool {
	if c.deps.Archive == nil {
		return true
	}
	payload, err := json.Marshal(rc.record)
	if err == nil {
		err = c.deps.Archive.Archive(ctx, rc.record, payload)
	}
	if err != nil {
		rc.recordError("archive", "archive", unavailable("archive", err))
		if rc.record.Status == domain.RunStatusCompleted {
			rc.record.Status = domain.RunStatusDegraded
		}
		rc.stampReports()
		return false
	}
	return true
}

func (c *Coordinator) saveRun(ctx context.Context, rc *runContext) {
	if c.deps.Runs == nil {
		return
	}
	if err := c.deps.Runs.SaveRun(ctx, rc.record); err != nil {
		// the record is already being finalized; only log
		rc.log.Warn().Err(err).Str("status", string(rc.record.Status)).Msg("failed to save run record")
	}
}

// loadCachedForecast reads the per-SKU fallback entry.
func (c *Coordinator) loadCachedForecast(ctx context.Context, sku domain.SKU) (domain.CachedForecast, bool, error) {
	raw, ok, err := c.deps.Cache.Get(ctx, ForecastSKUKey(sku))
	if err != nil || !ok {
		return domain.CachedForecast{}, false, err
	}
	var entry domain.CachedForecast
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.CachedForecast{}, false, fmt.Errorf("decode cached forecast %s: %w", sku, err)
	}
	return entry, true, nil
}

// LoadForecastReport reads the latest trustworthy forecast report from cache.
func LoadForecastReport(ctx context.Context, cache ports.CachePort) (*domain.ForecastReport, bool, error) {
	raw, ok, err := cache.Get(ctx, ForecastLatestKey)
	if err != nil || !ok {
		return nil, false, err
	}
	var report domain.ForecastReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false, fmt.Errorf("decode forecast report: %w", err)
	}
	return &report, true, nil
}
