package replenishment

import (
	"math"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
)

// DefaultZScore is used for any service level missing from the table.
// Unrecognised service levels silently get the 95% quantile; callers that
// need another level must add it to zScores.
const DefaultZScore = 1.65

var zScores = map[float64]float64{
	0.90: 1.28,
	0.95: 1.65,
	0.99: 2.33,
}

// ZScore returns the standard normal quantile for the service level.
func ZScore(serviceLevel float64) float64 {
	if z, ok := zScores[serviceLevel]; ok {
		return z
	}
	return DefaultZScore
}

// ComputeSafetyStock returns stdDev × Z(serviceLevel) × √leadTimeDays.
//
// It is a pure function. Negative or NaN stdDev, a service level outside
// (0,1) and a non-positive lead time are rejected with an
// InvalidParameterError instead of being clamped.
func ComputeSafetyStock(stdDev, serviceLevel, leadTimeDays float64) (float64, error) {
	if stdDev < 0 || math.IsNaN(stdDev) {
		return 0, domain.NewInvalidParameter("stdDev", stdDev, "must be >= 0")
	}
	params, err := domain.NewSafetyStockParams(serviceLevel, leadTimeDays)
	if err != nil {
		return 0, err
	}
	return SafetyStockFor(stdDev, params), nil
}

// SafetyStockFor applies the formula with already validated parameters.
func SafetyStockFor(stdDev float64, params domain.SafetyStockParams) float64 {
	if stdDev <= 0 {
		return 0
	}
	return stdDev * ZScore(params.ServiceLevel) * math.Sqrt(params.LeadTimeDays)
}

// SafetyStockCalculator computes targets for every SKU of a run.
type SafetyStockCalculator struct {
	params domain.SafetyStockParams
}

// NewSafetyStockCalculator validates params once for the whole run.
func NewSafetyStockCalculator(serviceLevel, leadTimeDays float64) (*SafetyStockCalculator, error) {
	params, err := domain.NewSafetyStockParams(serviceLevel, leadTimeDays)
	if err != nil {
		return nil, err
	}
	return &SafetyStockCalculator{params: params}, nil
}

// Params returns the validated run parameters.
func (c *SafetyStockCalculator) Params() domain.SafetyStockParams {
	return c.params
}

// Target computes the safety stock for one forecast.
func (c *SafetyStockCalculator) Target(f domain.ForecastResult) (domain.SafetyStockTarget, error) {
	if f.DemandStdDev < 0 || math.IsNaN(f.DemandStdDev) {
		return domain.SafetyStockTarget{}, domain.NewInvalidParameter("stdDev", f.DemandStdDev, "must be >= 0")
	}
	return domain.SafetyStockTarget{
		SKU:      f.SKU,
		Quantity: SafetyStockFor(f.DemandStdDev, c.params),
	}, nil
}
