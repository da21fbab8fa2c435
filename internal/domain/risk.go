package domain

import (
	"fmt"
	"math"
)

// Severity of a rupture risk. Only CRITICAL and WARNING trigger alerts.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

// RiskKind names the variant of a RiskClassification.
type RiskKind string

const (
	RiskKindRupture  RiskKind = "RUPTURE"
	RiskKindSurstock RiskKind = "SURSTOCK"
	RiskKindNominal  RiskKind = "NOMINAL"
)

// RiskClassification is a closed set: RuptureRisk, SurstockRisk or Nominal.
// The unexported marker keeps other packages from adding variants; use
// MatchRisk to handle every case.
type RiskClassification interface {
	Subject() SKU
	Kind() RiskKind
	isRiskClassification()
}

type RuptureRisk struct {
	SKU              SKU      `json:"sku"`
	DaysUntilRupture float64  `json:"days_until_rupture"`
	Severity         Severity `json:"severity"`
}

type SurstockRisk struct {
	SKU          SKU             `json:"sku"`
	RotationDays float64         `json:"rotation_days"`
	Tier         LiquidationTier `json:"tier,omitempty"`
}

type Nominal struct {
	SKU SKU `json:"sku"`
}

func (r RuptureRisk) Subject() SKU  { return r.SKU }
func (r SurstockRisk) Subject() SKU { return r.SKU }
func (r Nominal) Subject() SKU      { return r.SKU }

func (RuptureRisk) Kind() RiskKind  { return RiskKindRupture }
func (SurstockRisk) Kind() RiskKind { return RiskKindSurstock }
func (Nominal) Kind() RiskKind      { return RiskKindNominal }

func (RuptureRisk) isRiskClassification()  {}
func (SurstockRisk) isRiskClassification() {}
func (Nominal) isRiskClassification()      {}

// MatchRisk dispatches on the variant. All three handlers are required.
func MatchRisk[T any](
	rc RiskClassification,
	onRupture func(RuptureRisk) T,
	onSurstock func(SurstockRisk) T,
	onNominal func(Nominal) T,
) T {
	switch v := rc.(type) {
	case RuptureRisk:
		return onRupture(v)
	case SurstockRisk:
		return onSurstock(v)
	case Nominal:
		return onNominal(v)
	default:
		panic(fmt.Sprintf("unknown risk classification %T", rc))
	}
}

// AtRiskItem is a SKU whose stock is below the rupture threshold. Severity is
// empty when the projected rupture is beyond the alert window.
type AtRiskItem struct {
	SKU              SKU      `json:"sku"`
	Category         string   `json:"category,omitempty"`
	QuantityOnHand   float64  `json:"quantity_on_hand"`
	SafetyStock      float64  `json:"safety_stock"`
	Threshold        float64  `json:"threshold"`
	DaysUntilRupture *float64 `json:"days_until_rupture,omitempty"`
	Severity         Severity `json:"severity,omitempty"`
}

// Alerting reports whether the item must be part of an alert.
func (i AtRiskItem) Alerting() bool {
	return i.Severity == SeverityCritical || i.Severity == SeverityWarning
}

// finiteOrNil keeps +Inf out of JSON payloads.
func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// NewAtRiskItem builds the report row for a snapshot flagged at risk.
func NewAtRiskItem(snap StockSnapshot, safetyStock, threshold, daysUntilRupture float64, severity Severity) AtRiskItem {
	return AtRiskItem{
		SKU:              snap.SKU,
		Category:         snap.Category,
		QuantityOnHand:   snap.QuantityOnHand,
		SafetyStock:      safetyStock,
		Threshold:        threshold,
		DaysUntilRupture: finiteOrNil(daysUntilRupture),
		Severity:         severity,
	}
}
