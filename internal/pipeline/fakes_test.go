package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeStock returns snaps. When release is set, the first call blocks until
// release is closed and signals started once it is inside.
type fakeStock struct {
	snaps   []domain.StockSnapshot
	err     error
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	panics  bool
}

func (f *fakeStock) GetStockLevels(ctx context.Context) ([]domain.StockSnapshot, error) {
	n := f.calls.Add(1)
	if f.panics {
		panic("erp exploded")
	}
	if n == 1 && f.release != nil {
		close(f.started)
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.snaps, nil
}

type fakeSales struct {
	points []domain.SalesHistoryPoint
	err    error
	period int
}

func (f *fakeSales) GetSalesHistory(_ context.Context, periodDays int, _ domain.Granularity) ([]domain.SalesHistoryPoint, error) {
	f.period = periodDays
	return f.points, f.err
}

type fakeLeadTime struct {
	days int
	err  error
}

func (f fakeLeadTime) GetAverageLeadTime(context.Context) (int, error) { return f.days, f.err }

type fakeTurnover struct {
	rates map[domain.SKU]float64
	err   error
}

func (f fakeTurnover) GetTurnoverRates(context.Context) (map[domain.SKU]float64, error) {
	return f.rates, f.err
}

// fakeForecast blocks until ctx is done when block is set. When hang is set
// it ignores ctx and waits for hang to be closed.
type fakeForecast struct {
	results map[domain.SKU][]domain.ForecastResult
	err     error
	block   bool
	hang    chan struct{}
}

func (f *fakeForecast) Predict(ctx context.Context, _ []domain.SalesHistoryPoint, _ []int, _ []string) (map[domain.SKU][]domain.ForecastResult, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.hang != nil {
		<-f.hang
	}
	return f.results, f.err
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	setErr error
	getErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type sentAlert struct {
	channel  string
	severity domain.Severity
	message  string
	items    int
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []sentAlert
	calls int
	err   error
}

func (n *fakeNotifier) Send(_ context.Context, channel string, severity domain.Severity, message string, attachments []ports.Attachment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentAlert{channel: channel, severity: severity, message: message, items: len(attachments)})
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, channel string, severity domain.Severity, message string, attachments []ports.Attachment) error {
	args := m.Called(ctx, channel, severity, message, attachments)
	return args.Error(0)
}

type fakePurchaseOrders struct {
	mu        sync.Mutex
	drafts    []domain.StockSnapshot
	preOrders []domain.PreOrderRequest
	err       error
}

func (p *fakePurchaseOrders) CreateDraft(_ context.Context, items []domain.StockSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.drafts = append(p.drafts, items...)
	return nil
}

func (p *fakePurchaseOrders) CreatePreOrders(_ context.Context, requests []domain.PreOrderRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.preOrders = append(p.preOrders, requests...)
	return nil
}

type fakeLiquidation struct {
	requests []domain.LiquidationRequest
	err      error
}

func (l *fakeLiquidation) Submit(_ context.Context, requests []domain.LiquidationRequest) error {
	if l.err != nil {
		return l.err
	}
	l.requests = append(l.requests, requests...)
	return nil
}

type fakeRuns struct {
	mu       sync.Mutex
	statuses []domain.RunStatus
}

func (r *fakeRuns) SaveRun(_ context.Context, run *domain.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, run.Status)
	return nil
}

type fakeArchive struct {
	payloads map[string][]byte
	err      error
}

func (a *fakeArchive) Archive(_ context.Context, run *domain.RunRecord, payload []byte) error {
	if a.err != nil {
		return a.err
	}
	if a.payloads == nil {
		a.payloads = map[string][]byte{}
	}
	a.payloads[run.RunID] = payload
	return nil
}

type fakeScheduler struct {
	jobs map[string]func(context.Context)
	spec map[string]string
}

func (s *fakeScheduler) Register(name, spec string, job func(context.Context)) error {
	if s.jobs == nil {
		s.jobs = map[string]func(context.Context){}
		s.spec = map[string]string{}
	}
	s.jobs[name] = job
	s.spec[name] = spec
	return nil
}

func (s *fakeScheduler) Start()                     {}
func (s *fakeScheduler) Stop(context.Context) error { return nil }

type staticCatalog map[string]map[string]float64

func (s staticCatalog) UpliftsFor(eventType string) map[string]float64 { return s[eventType] }

func snapshot(sku string, qty float64, cost string, category string) domain.StockSnapshot {
	return domain.StockSnapshot{
		SKU:            domain.SKU(sku),
		Category:       category,
		QuantityOnHand: qty,
		UnitCost:       decimal.RequireFromString(cost),
	}
}

func horizons(sku string, demand7, std float64) []domain.ForecastResult {
	return []domain.ForecastResult{
		{SKU: domain.SKU(sku), HorizonDays: 7, ExpectedDemand: demand7, DemandStdDev: std},
		{SKU: domain.SKU(sku), HorizonDays: 14, ExpectedDemand: demand7 * 2, DemandStdDev: std * 1.4},
		{SKU: domain.SKU(sku), HorizonDays: 30, ExpectedDemand: demand7 * 30 / 7, DemandStdDev: std * 2},
	}
}

type harness struct {
	stock     *fakeStock
	sales     *fakeSales
	forecast  *fakeForecast
	cache     *fakeCache
	notifier  *fakeNotifier
	orders    *fakePurchaseOrders
	liquidate *fakeLiquidation
	runs      *fakeRuns
	archive   *fakeArchive
	deps      Dependencies
	settings  Settings
}

// newHarness wires a daily scenario: A is critical (5 days left), C is a
// warning (10 days left) and B is healthy. Lead time 4 gives
// safety stock 4 × 1.65 × 2 = 13.2 and a threshold of 15.84.
func newHarness() *harness {
	h := &harness{
		stock: &fakeStock{snaps: []domain.StockSnapshot{
			snapshot("A", 10, "2.50", "electronics"),
			snapshot("B", 100, "1.00", "electronics"),
			snapshot("C", 10, "4.00", "fashion"),
		}},
		sales: &fakeSales{},
		forecast: &fakeForecast{results: map[domain.SKU][]domain.ForecastResult{
			"A": horizons("A", 14, 4),
			"B": horizons("B", 14, 4),
			"C": horizons("C", 7, 4),
		}},
		cache:     newFakeCache(),
		notifier:  &fakeNotifier{},
		orders:    &fakePurchaseOrders{},
		liquidate: &fakeLiquidation{},
		runs:      &fakeRuns{},
		archive:   &fakeArchive{},
	}
	h.deps = Dependencies{
		Stock:          h.stock,
		Sales:          h.sales,
		LeadTime:       fakeLeadTime{days: 4},
		Turnover:       fakeTurnover{rates: map[domain.SKU]float64{}},
		Forecast:       h.forecast,
		PurchaseOrders: h.orders,
		Cache:          h.cache,
		Notifier:       h.notifier,
		Liquidation:    h.liquidate,
		Runs:           h.runs,
		Archive:        h.archive,
		Clock:          fixedClock{now: testNow},
		Uplifts:        staticCatalog{"black_friday": {"electronics": 0.5}},
	}
	h.settings = DefaultSettings()
	h.settings.AlertBackoff = 0
	h.settings.ForecastTimeout = time.Second
	return h
}

func (h *harness) coordinator() *Coordinator {
	c, err := NewCoordinator(h.deps, h.settings)
	if err != nil {
		panic(err)
	}
	return c
}
