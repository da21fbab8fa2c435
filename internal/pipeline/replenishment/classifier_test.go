package replenishment

import (
	"math"
	"testing"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskClassifier_SeverityBoundaries(t *testing.T) {
	c := NewRiskClassifier(DefaultRiskThresholds())

	tests := []struct {
		days     float64
		severity domain.Severity
		ok       bool
	}{
		{0, domain.SeverityCritical, true},
		{6.99, domain.SeverityCritical, true},
		{7, domain.SeverityWarning, true},
		{13.99, domain.SeverityWarning, true},
		{14, "", false},
		{math.Inf(1), "", false},
	}

	for _, tt := range tests {
		severity, ok := c.Severity(tt.days)
		assert.Equal(t, tt.ok, ok, "days=%v", tt.days)
		assert.Equal(t, tt.severity, severity, "days=%v", tt.days)
	}
}

func TestRiskClassifier_AssessRupture(t *testing.T) {
	c := NewRiskClassifier(DefaultRiskThresholds())

	t.Run("below threshold with fast demand is critical", func(t *testing.T) {
		snap := domain.StockSnapshot{SKU: "A", QuantityOnHand: 10}
		f := domain.ForecastResult{SKU: "A", HorizonDays: 7, ExpectedDemand: 14}
		a := c.AssessRupture(snap, 12, f)

		assert.True(t, a.AtRisk)
		assert.InDelta(t, 14.4, a.Threshold, 1e-9)
		assert.InDelta(t, 5, a.DaysUntilRupture, 1e-9)
		require.Equal(t, domain.RiskKindRupture, a.Classification.Kind())
		assert.Equal(t, domain.SeverityCritical, a.Classification.(domain.RuptureRisk).Severity)
	})

	t.Run("below threshold with slow demand stays nominal but at risk", func(t *testing.T) {
		snap := domain.StockSnapshot{SKU: "A", QuantityOnHand: 10}
		f := domain.ForecastResult{SKU: "A", HorizonDays: 7, ExpectedDemand: 3.5}
		a := c.AssessRupture(snap, 12, f)

		assert.True(t, a.AtRisk)
		assert.InDelta(t, 20, a.DaysUntilRupture, 1e-9)
		assert.Equal(t, domain.RiskKindNominal, a.Classification.Kind())
		assert.Empty(t, a.Severity)
	})

	t.Run("at threshold is not at risk", func(t *testing.T) {
		snap := domain.StockSnapshot{SKU: "A", QuantityOnHand: 14.4}
		a := c.AssessRupture(snap, 12, domain.ForecastResult{HorizonDays: 7, ExpectedDemand: 70})
		assert.False(t, a.AtRisk)
		assert.Equal(t, domain.RiskKindNominal, a.Classification.Kind())
	})

	t.Run("no demand never ruptures", func(t *testing.T) {
		snap := domain.StockSnapshot{SKU: "A", QuantityOnHand: 1}
		a := c.AssessRupture(snap, 12, domain.ForecastResult{HorizonDays: 7})
		assert.True(t, a.AtRisk)
		assert.True(t, math.IsInf(a.DaysUntilRupture, 1))
		assert.Equal(t, domain.RiskKindNominal, a.Classification.Kind())
	})
}

func TestRiskClassifier_ConfiguredMultiplier(t *testing.T) {
	c := NewRiskClassifier(RiskThresholds{RuptureMultiplier: 1.0})
	snap := domain.StockSnapshot{SKU: "A", QuantityOnHand: 13}
	a := c.AssessRupture(snap, 12, domain.ForecastResult{HorizonDays: 7, ExpectedDemand: 70})
	assert.False(t, a.AtRisk)
	assert.Equal(t, 90.0, c.Thresholds().SurstockDays)
}

func TestDaysOfStock(t *testing.T) {
	assert.InDelta(t, 300, DaysOfStock(300, 30), 1e-9)
	assert.InDelta(t, 90, DaysOfStock(90, 30), 1e-9)
	assert.Equal(t, 0.0, DaysOfStock(0, 30))
	assert.Equal(t, float64(MaxDaysOfStock), DaysOfStock(5, 0))
}

func TestRiskClassifier_AssessSurstock(t *testing.T) {
	c := NewRiskClassifier(DefaultRiskThresholds())

	rc, days := c.AssessSurstock(domain.StockSnapshot{SKU: "S", QuantityOnHand: 300}, 30)
	require.Equal(t, domain.RiskKindSurstock, rc.Kind())
	assert.InDelta(t, 300, days, 1e-9)
	assert.InDelta(t, 300, rc.(domain.SurstockRisk).RotationDays, 1e-9)

	rc, _ = c.AssessSurstock(domain.StockSnapshot{SKU: "E", QuantityOnHand: 90}, 30)
	assert.Equal(t, domain.RiskKindNominal, rc.Kind(), "exactly 90 days is not surstock")
}

func TestRiskClassifier_ClassifyIsExclusive(t *testing.T) {
	c := NewRiskClassifier(DefaultRiskThresholds())
	rotation := 0.5
	fast := domain.ForecastResult{HorizonDays: 7, ExpectedDemand: 70}

	rc := c.Classify(ClassificationInput{
		Snapshot:           domain.StockSnapshot{SKU: "X", QuantityOnHand: 10},
		SafetyStock:        12,
		Forecast:           &fast,
		AvgMonthlyRotation: &rotation,
	})
	assert.Equal(t, domain.RiskKindRupture, rc.Kind())

	rc = c.Classify(ClassificationInput{
		Snapshot:           domain.StockSnapshot{SKU: "X", QuantityOnHand: 10},
		AvgMonthlyRotation: &rotation,
	})
	assert.Equal(t, domain.RiskKindSurstock, rc.Kind())

	rc = c.Classify(ClassificationInput{Snapshot: domain.StockSnapshot{SKU: "X", QuantityOnHand: 10}})
	assert.Equal(t, domain.RiskKindNominal, rc.Kind())
	assert.Equal(t, domain.SKU("X"), rc.Subject())

	label := domain.MatchRisk(rc,
		func(domain.RuptureRisk) string { return "rupture" },
		func(domain.SurstockRisk) string { return "surstock" },
		func(domain.Nominal) string { return "nominal" },
	)
	assert.Equal(t, "nominal", label)
}
