package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/config"
	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/pipeline/replenishment"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Settings are the tunables of every run kind.
type Settings struct {
	ServiceLevel     float64
	Thresholds       replenishment.RiskThresholds
	Horizons         []int
	RuptureHorizon   int
	Seasonality      []string
	SalesHistoryDays int
	Granularity      domain.Granularity
	ForecastTimeout  time.Duration
	ForecastMaxAge   time.Duration
	ArtifactTTL      time.Duration
	AlertChannel     string
	AlertMaxAttempts int
	AlertBackoff     time.Duration
}

// DefaultSettings returns the documented business defaults.
func DefaultSettings() Settings {
	return Settings{
		ServiceLevel:     0.95,
		Thresholds:       replenishment.DefaultRiskThresholds(),
		Horizons:         []int{7, 14, 30},
		RuptureHorizon:   7,
		Seasonality:      []string{"weekly", "yearly"},
		SalesHistoryDays: 365,
		Granularity:      domain.GranularityDaily,
		ForecastTimeout:  30 * time.Second,
		ForecastMaxAge:   24 * time.Hour,
		ArtifactTTL:      24 * time.Hour,
		AlertChannel:     "#stock-alerts",
		AlertMaxAttempts: 3,
		AlertBackoff:     500 * time.Millisecond,
	}
}

// SettingsFromConfig maps loaded configuration onto Settings, keeping the
// defaults for anything left unset.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := DefaultSettings()
	r := cfg.Replenishment
	if r.ServiceLevel > 0 {
		s.ServiceLevel = r.ServiceLevel
	}
	s.Thresholds = replenishment.RiskThresholds{
		RuptureMultiplier: r.RuptureRiskMultiplier,
		CriticalDays:      r.CriticalDays,
		WarningDays:       r.WarningDays,
		SurstockDays:      r.SurstockThresholdDays,
	}
	if len(r.Horizons) > 0 {
		s.Horizons = r.Horizons
	}
	if len(r.Seasonality) > 0 {
		s.Seasonality = r.Seasonality
	}
	if r.SalesHistoryDays > 0 {
		s.SalesHistoryDays = r.SalesHistoryDays
	}
	if r.SalesGranularity != "" {
		s.Granularity = domain.Granularity(r.SalesGranularity)
	}
	if t := cfg.Forecast.Timeout(); t > 0 {
		s.ForecastTimeout = t
	}
	if ttl := r.ArtifactTTL(); ttl > 0 {
		s.ArtifactTTL = ttl
		s.ForecastMaxAge = ttl
	}
	if r.AlertChannel != "" {
		s.AlertChannel = r.AlertChannel
	}
	if r.AlertMaxAttempts > 0 {
		s.AlertMaxAttempts = r.AlertMaxAttempts
	}
	if r.AlertBackoffMillis >= 0 {
		s.AlertBackoff = r.AlertBackoff()
	}
	return s
}

// Dependencies are the ports a Coordinator drives. Stock, Sales, LeadTime,
// Turnover and Forecast are required; the rest may be nil and are then
// skipped.
type Dependencies struct {
	Stock          ports.StockLevelsPort
	Sales          ports.SalesHistoryPort
	LeadTime       ports.LeadTimePort
	Turnover       ports.TurnoverPort
	Forecast       ports.ForecastPort
	PurchaseOrders ports.PurchaseOrderPort
	Cache          ports.CachePort
	Notifier       ports.NotificationPort
	Liquidation    ports.LiquidationPort
	Runs           ports.RunRepository
	Archive        ports.ArtifactArchive
	Locker         ports.Locker
	Clock          ports.Clock
	Uplifts        replenishment.UpliftSource
	Metrics        *Metrics
}

// RunParams carries the trigger arguments. Only SEASONAL_PREP needs an event.
type RunParams struct {
	Event *domain.SeasonalEvent
}

// Coordinator triggers the three run kinds, holds one lock per kind and owns
// failure containment.
type Coordinator struct {
	deps       Dependencies
	settings   Settings
	classifier *replenishment.RiskClassifier
	liquidator *replenishment.LiquidationEngine
	planner    *replenishment.SeasonalPlanner
	log        zerolog.Logger

	mu     sync.RWMutex
	active map[domain.RunKind]domain.RunRecord
	last   map[domain.RunKind]domain.RunRecord
}

func NewCoordinator(deps Dependencies, settings Settings) (*Coordinator, error) {
	switch {
	case deps.Stock == nil:
		return nil, errors.New("coordinator: stock levels port is required")
	case deps.Sales == nil:
		return nil, errors.New("coordinator: sales history port is required")
	case deps.LeadTime == nil:
		return nil, errors.New("coordinator: lead time port is required")
	case deps.Turnover == nil:
		return nil, errors.New("coordinator: turnover port is required")
	case deps.Forecast == nil:
		return nil, errors.New("coordinator: forecast port is required")
	}
	if deps.Locker == nil {
		deps.Locker = NewMemoryLocker()
	}
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if settings.RuptureHorizon <= 0 {
		settings.RuptureHorizon = 7
	}
	if settings.AlertMaxAttempts <= 0 {
		settings.AlertMaxAttempts = 1
	}

	logger := log.With().Str("component", "replenishment_coordinator").Logger()
	classifier := replenishment.NewRiskClassifier(settings.Thresholds)
	settings.Thresholds = classifier.Thresholds()

	return &Coordinator{
		deps:       deps,
		settings:   settings,
		classifier: classifier,
		liquidator: replenishment.NewLiquidationEngine(logger),
		planner:    replenishment.NewSeasonalPlanner(deps.Uplifts),
		log:        logger,
		active:     make(map[domain.RunKind]domain.RunRecord),
		last:       make(map[domain.RunKind]domain.RunRecord),
	}, nil
}

// Settings returns the effective settings.
func (c *Coordinator) Settings() Settings {
	return c.settings
}

// StartRun executes one run of the given kind and returns its finished
// record. It fails without creating a record when params are invalid or when
// a run of the same kind is already active. A FAILED run is reported through
// the record status, not the error.
func (c *Coordinator) StartRun(ctx context.Context, kind domain.RunKind, params RunParams) (*domain.RunRecord, error) {
	runner, err := c.runnerFor(kind, params)
	if err != nil {
		return nil, err
	}

	release, ok, err := c.deps.Locker.TryLock(ctx, kind)
	if err != nil {
		return nil, &domain.PortUnavailableError{Port: "lock", Err: err}
	}
	if !ok {
		return nil, &domain.RunAlreadyActiveError{Kind: kind}
	}
	defer release()

	rc := c.newRunContext(kind)
	c.markActive(rc.record)
	defer c.markDone(rc.record)

	rc.log.Info().Msg("run started")
	c.saveRun(ctx, rc)

	fatal := c.execute(ctx, rc, runner)
	c.finish(ctx, rc, fatal)
	return rc.record, nil
}

type runner func(ctx context.Context, rc *runContext) error

func (c *Coordinator) runnerFor(kind domain.RunKind, params RunParams) (runner, error) {
	switch kind {
	case domain.RunKindDailyForecast:
		return c.runDaily, nil
	case domain.RunKindWeeklySurstock:
		return c.runSurstock, nil
	case domain.RunKindSeasonalPrep:
		if params.Event == nil {
			return nil, domain.NewInvalidParameter("event", nil, "required for seasonal prep")
		}
		event := *params.Event
		if err := event.Validate(); err != nil {
			return nil, err
		}
		return func(ctx context.Context, rc *runContext) error {
			return c.runSeasonal(ctx, rc, event)
		}, nil
	default:
		return nil, domain.NewInvalidParameter("kind", kind, "unknown run kind")
	}
}

// execute runs the pipeline and turns a panic into a fatal stage error so
// the deferred lock release and bookkeeping still happen.
func (c *Coordinator) execute(ctx context.Context, rc *runContext, run runner) (fatal error) {
	defer func() {
		if r := recover(); r != nil {
			rc.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("run panicked")
			fatal = fmt.Errorf("run panicked: %v", r)
			rc.recordError("panic", "", fatal)
		}
	}()
	return run(ctx, rc)
}

func (c *Coordinator) finish(ctx context.Context, rc *runContext, fatal error) {
	record := rc.record
	switch {
	case fatal != nil:
		record.Status = domain.RunStatusFailed
	case len(record.Artifacts.Errors) > 0:
		record.Status = domain.RunStatusDegraded
	default:
		record.Status = domain.RunStatusCompleted
	}
	finished := c.deps.Clock.Now()
	record.FinishedAt = &finished
	rc.stampReports()

	// cache, archive and run row must all carry the same final status
	if record.Status.Trustworthy() {
		c.publishArtifact(ctx, rc)
	}
	status := record.Status
	if !c.archive(ctx, rc) && status != record.Status {
		c.publishArtifact(ctx, rc)
	}
	c.saveRun(ctx, rc)

	c.deps.Metrics.observeRun(record.Kind, record.Status, record.Duration())

	event := rc.log.Info()
	if record.Status == domain.RunStatusFailed {
		event = rc.log.Error().Err(fatal)
	} else if record.Status == domain.RunStatusDegraded {
		event = rc.log.Warn()
	}
	event.Str("status", string(record.Status)).
		Int("errors", len(record.Artifacts.Errors)).
		Dur("duration", record.Duration()).
		Msg("run finished")
}

// Active returns the records currently RUNNING, one per kind at most.
func (c *Coordinator) Active() []domain.RunRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.RunRecord, 0, len(c.active))
	for _, kind := range domain.RunKinds() {
		if r, ok := c.active[kind]; ok {
			out = append(out, r)
		}
	}
	return out
}

// LastRun returns the most recent finished record of a kind.
func (c *Coordinator) LastRun(kind domain.RunKind) (domain.RunRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.last[kind]
	return r, ok
}

func (c *Coordinator) markActive(record *domain.RunRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[record.Kind] = *record
}

func (c *Coordinator) markDone(record *domain.RunRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, record.Kind)
	if record.Status.Finished() {
		c.last[record.Kind] = *record
	}
}

func (c *Coordinator) newRunContext(kind domain.RunKind) *runContext {
	runID := uuid.NewString()
	return &runContext{
		record: &domain.RunRecord{
			RunID:     runID,
			Kind:      kind,
			StartedAt: c.deps.Clock.Now(),
			Status:    domain.RunStatusRunning,
		},
		log:     c.log.With().Str("run_id", runID).Str("kind", string(kind)).Logger(),
		clock:   c.deps.Clock,
		metrics: c.deps.Metrics,
		sent:    make(map[alertKey]bool),
	}
}

// RunDailyForecast triggers a DAILY_FORECAST run and returns its report.
func (c *Coordinator) RunDailyForecast(ctx context.Context) (*domain.ForecastReport, error) {
	record, err := c.StartRun(ctx, domain.RunKindDailyForecast, RunParams{})
	if err != nil {
		return nil, err
	}
	return record.Artifacts.Forecast, nil
}

// DetectSurstock triggers a WEEKLY_SURSTOCK run and returns its report.
func (c *Coordinator) DetectSurstock(ctx context.Context) (*domain.SurstockReport, error) {
	record, err := c.StartRun(ctx, domain.RunKindWeeklySurstock, RunParams{})
	if err != nil {
		return nil, err
	}
	return record.Artifacts.Surstock, nil
}

// PrepareSeasonalSpike triggers a SEASONAL_PREP run for event.
func (c *Coordinator) PrepareSeasonalSpike(ctx context.Context, event domain.SeasonalEvent) (*domain.SeasonalReport, error) {
	record, err := c.StartRun(ctx, domain.RunKindSeasonalPrep, RunParams{Event: &event})
	if err != nil {
		return nil, err
	}
	return record.Artifacts.Seasonal, nil
}

// RegisterSchedules wires the daily and weekly runs onto the scheduler. A
// trigger that finds its kind already running is logged and skipped.
func (c *Coordinator) RegisterSchedules(s ports.Scheduler, daily, weekly string) error {
	jobs := []struct {
		name string
		spec string
		kind domain.RunKind
	}{
		{"daily_forecast", daily, domain.RunKindDailyForecast},
		{"weekly_surstock", weekly, domain.RunKindWeeklySurstock},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		kind := j.kind
		if err := s.Register(j.name, j.spec, func(ctx context.Context) {
			c.trigger(ctx, kind)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) trigger(ctx context.Context, kind domain.RunKind) {
	record, err := c.StartRun(ctx, kind, RunParams{})
	switch {
	case errors.Is(err, domain.ErrRunAlreadyActive):
		c.log.Warn().Str("kind", string(kind)).Msg("scheduled run skipped, previous run still active")
	case err != nil:
		c.log.Error().Err(err).Str("kind", string(kind)).Msg("scheduled run rejected")
	default:
		c.log.Info().Str("kind", string(kind)).Str("run_id", record.RunID).Str("status", string(record.Status)).Msg("scheduled run done")
	}
}
