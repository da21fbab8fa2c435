package replenishment

import (
	"math"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
)

// MaxDaysOfStock caps days of stock for SKUs that hold stock but never rotate.
const MaxDaysOfStock = 3650

// RiskThresholds are business constants, configurable per deployment.
type RiskThresholds struct {
	RuptureMultiplier float64 // stock below safetyStock × multiplier is at risk
	CriticalDays      float64 // rupture sooner than this is CRITICAL
	WarningDays       float64 // rupture sooner than this is WARNING
	SurstockDays      float64 // more days of stock than this is surstock
}

// DefaultRiskThresholds returns the thresholds used when nothing is configured.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{
		RuptureMultiplier: 1.2,
		CriticalDays:      7,
		WarningDays:       14,
		SurstockDays:      90,
	}
}

// withDefaults replaces non-positive fields with their defaults.
func (t RiskThresholds) withDefaults() RiskThresholds {
	d := DefaultRiskThresholds()
	if t.RuptureMultiplier <= 0 {
		t.RuptureMultiplier = d.RuptureMultiplier
	}
	if t.CriticalDays <= 0 {
		t.CriticalDays = d.CriticalDays
	}
	if t.WarningDays <= 0 {
		t.WarningDays = d.WarningDays
	}
	if t.SurstockDays <= 0 {
		t.SurstockDays = d.SurstockDays
	}
	return t
}

// RiskClassifier turns stock snapshots into rupture or surstock classifications.
type RiskClassifier struct {
	thresholds RiskThresholds
}

// NewRiskClassifier creates a classifier; zero thresholds fall back to defaults.
func NewRiskClassifier(thresholds RiskThresholds) *RiskClassifier {
	return &RiskClassifier{thresholds: thresholds.withDefaults()}
}

// Thresholds returns the effective thresholds.
func (c *RiskClassifier) Thresholds() RiskThresholds {
	return c.thresholds
}

// RuptureAssessment is the outcome of the rupture path for one SKU.
type RuptureAssessment struct {
	Classification   domain.RiskClassification
	AtRisk           bool
	Threshold        float64
	DaysUntilRupture float64
	Severity         domain.Severity
}

// DaysUntilRupture projects when stock runs out at the forecast daily demand.
// No demand means no projected rupture (+Inf).
func DaysUntilRupture(quantityOnHand float64, f domain.ForecastResult) float64 {
	daily := f.DailyDemand()
	if daily <= 0 {
		return math.Inf(1)
	}
	if quantityOnHand <= 0 {
		return 0
	}
	return quantityOnHand / daily
}

// Severity maps days until rupture to an alert severity. Beyond the warning
// window there is no rupture classification.
func (c *RiskClassifier) Severity(daysUntilRupture float64) (domain.Severity, bool) {
	switch {
	case daysUntilRupture < c.thresholds.CriticalDays:
		return domain.SeverityCritical, true
	case daysUntilRupture < c.thresholds.WarningDays:
		return domain.SeverityWarning, true
	default:
		return "", false
	}
}

// AssessRupture applies the rupture path using the short horizon forecast.
func (c *RiskClassifier) AssessRupture(snap domain.StockSnapshot, safetyStock float64, f domain.ForecastResult) RuptureAssessment {
	threshold := safetyStock * c.thresholds.RuptureMultiplier
	out := RuptureAssessment{
		Classification:   domain.Nominal{SKU: snap.SKU},
		Threshold:        threshold,
		DaysUntilRupture: math.Inf(1),
	}
	if !(snap.QuantityOnHand < threshold) {
		return out
	}

	out.AtRisk = true
	out.DaysUntilRupture = DaysUntilRupture(snap.QuantityOnHand, f)
	if severity, ok := c.Severity(out.DaysUntilRupture); ok {
		out.Severity = severity
		out.Classification = domain.RuptureRisk{
			SKU:              snap.SKU,
			DaysUntilRupture: out.DaysUntilRupture,
			Severity:         severity,
		}
	}
	return out
}

// DaysOfStock is quantity / (avgMonthlyRotation / 30).
func DaysOfStock(quantityOnHand, avgMonthlyRotation float64) float64 {
	if quantityOnHand <= 0 {
		return 0
	}
	if avgMonthlyRotation <= 0 {
		return MaxDaysOfStock
	}
	return math.Min(quantityOnHand/(avgMonthlyRotation/30), MaxDaysOfStock)
}

// AssessSurstock applies the surstock path.
func (c *RiskClassifier) AssessSurstock(snap domain.StockSnapshot, avgMonthlyRotation float64) (domain.RiskClassification, float64) {
	days := DaysOfStock(snap.QuantityOnHand, avgMonthlyRotation)
	if days > c.thresholds.SurstockDays {
		return domain.SurstockRisk{SKU: snap.SKU, RotationDays: days}, days
	}
	return domain.Nominal{SKU: snap.SKU}, days
}

// ClassificationInput carries the optional signals available for a SKU.
type ClassificationInput struct {
	Snapshot           domain.StockSnapshot
	SafetyStock        float64
	Forecast           *domain.ForecastResult
	AvgMonthlyRotation *float64
}

// Classify returns exactly one classification per SKU: rupture first, then
// surstock, otherwise nominal.
func (c *RiskClassifier) Classify(in ClassificationInput) domain.RiskClassification {
	if in.Forecast != nil {
		if a := c.AssessRupture(in.Snapshot, in.SafetyStock, *in.Forecast); a.Classification.Kind() == domain.RiskKindRupture {
			return a.Classification
		}
	}
	if in.AvgMonthlyRotation != nil {
		rc, _ := c.AssessSurstock(in.Snapshot, *in.AvgMonthlyRotation)
		return rc
	}
	return domain.Nominal{SKU: in.Snapshot.SKU}
}
