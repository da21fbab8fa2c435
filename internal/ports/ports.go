// Package ports declares the narrow interfaces the replenishment engine
// consumes. Each one is implemented by an adapter under internal/ and by a
// test double in the pipeline tests.
package ports

import (
	"context"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
)

// StockLevelsPort reads current stock from the ERP.
type StockLevelsPort interface {
	GetStockLevels(ctx context.Context) ([]domain.StockSnapshot, error)
}

// SalesHistoryPort reads historical sales from the ERP.
type SalesHistoryPort interface {
	GetSalesHistory(ctx context.Context, periodDays int, granularity domain.Granularity) ([]domain.SalesHistoryPoint, error)
}

// LeadTimePort returns the average supplier lead time in days.
type LeadTimePort interface {
	GetAverageLeadTime(ctx context.Context) (int, error)
}

// TurnoverPort returns the average monthly rotation (units sold per month) per SKU.
type TurnoverPort interface {
	GetTurnoverRates(ctx context.Context) (map[domain.SKU]float64, error)
}

// ForecastPort is the opaque statistical model.
type ForecastPort interface {
	Predict(ctx context.Context, history []domain.SalesHistoryPoint, horizons []int, seasonality []string) (map[domain.SKU][]domain.ForecastResult, error)
}

// PurchaseOrderPort drafts purchase orders. Failures are never fatal to a run.
type PurchaseOrderPort interface {
	CreateDraft(ctx context.Context, items []domain.StockSnapshot) error
	CreatePreOrders(ctx context.Context, requests []domain.PreOrderRequest) error
}

// CachePort is a key -> (value, expiry) store.
type CachePort interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Attachment is an optional structured payload sent along with a message.
type Attachment struct {
	Title  string            `json:"title"`
	Fields map[string]string `json:"fields,omitempty"`
}

// NotificationPort delivers alert messages to a channel.
type NotificationPort interface {
	Send(ctx context.Context, channel string, severity domain.Severity, message string, attachments []Attachment) error
}

// LiquidationPort hands liquidation requests to the pricing collaborator.
type LiquidationPort interface {
	Submit(ctx context.Context, requests []domain.LiquidationRequest) error
}

// RunRepository archives run records.
type RunRepository interface {
	SaveRun(ctx context.Context, run *domain.RunRecord) error
}

// ArtifactArchive stores finished run artifacts.
type ArtifactArchive interface {
	Archive(ctx context.Context, run *domain.RunRecord, payload []byte) error
}

// Locker provides one non-blocking lock per run kind.
type Locker interface {
	// TryLock returns ok=false immediately when the kind is already locked.
	TryLock(ctx context.Context, kind domain.RunKind) (release func(), ok bool, err error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Scheduler triggers registered jobs on a cron-like spec.
type Scheduler interface {
	Register(name, spec string, job func(ctx context.Context)) error
	Start()
	Stop(ctx context.Context) error
}

type dedupKey struct{}

// WithDedupKey attaches an idempotency key to a notification context so
// adapters that support it can drop duplicate deliveries.
func WithDedupKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, dedupKey{}, key)
}

// DedupKey returns the idempotency key set by WithDedupKey.
func DedupKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(dedupKey{}).(string)
	return key, ok && key != ""
}
