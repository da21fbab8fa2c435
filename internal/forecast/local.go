package forecast

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
)

// Local is a moving-average forecaster for development and as a stand-in
// when no model service is deployed. It ignores seasonality hints.
type Local struct {
	window     int
	periodDays int
}

// NewLocal averages the last window periods. periodDays is 7 for weekly
// history and 1 otherwise.
func NewLocal(window int, granularity domain.Granularity) *Local {
	if window <= 0 {
		window = 28
	}
	period := 1
	if granularity == domain.GranularityWeekly {
		period = 7
	}
	return &Local{window: window, periodDays: period}
}

// Predict projects mean daily demand over each horizon. Periods without a
// sale count as zero; the deviation scales with the square root of the
// horizon.
func (l *Local) Predict(ctx context.Context, history []domain.SalesHistoryPoint, horizons []int, _ []string) (map[domain.SKU][]domain.ForecastResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	periods := make(map[time.Time]bool)
	units := make(map[domain.SKU]map[time.Time]float64)
	for _, p := range history {
		day := p.Date.UTC().Truncate(24 * time.Hour)
		periods[day] = true
		if units[p.SKU] == nil {
			units[p.SKU] = make(map[time.Time]float64)
		}
		units[p.SKU][day] += p.UnitsSold
	}

	window := make([]time.Time, 0, len(periods))
	for d := range periods {
		window = append(window, d)
	}
	sort.Slice(window, func(i, j int) bool { return window[i].Before(window[j]) })
	if len(window) > l.window {
		window = window[len(window)-l.window:]
	}

	out := make(map[domain.SKU][]domain.ForecastResult, len(units))
	for sku, byDay := range units {
		mean, std := meanStd(byDay, window)
		dailyMean := mean / float64(l.periodDays)
		dailyStd := std / math.Sqrt(float64(l.periodDays))

		results := make([]domain.ForecastResult, 0, len(horizons))
		for _, h := range horizons {
			results = append(results, domain.ForecastResult{
				SKU:            sku,
				HorizonDays:    h,
				ExpectedDemand: dailyMean * float64(h),
				DemandStdDev:   dailyStd * math.Sqrt(float64(h)),
			})
		}
		out[sku] = results
	}
	return out, nil
}

func meanStd(byDay map[time.Time]float64, window []time.Time) (float64, float64) {
	if len(window) == 0 {
		return 0, 0
	}
	var sum float64
	for _, d := range window {
		sum += byDay[d]
	}
	mean := sum / float64(len(window))

	var sq float64
	for _, d := range window {
		diff := byDay[d] - mean
		sq += diff * diff
	}
	return mean, math.Sqrt(sq / float64(len(window)))
}
