package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-py/replenishment/internal/cache"
	"github.com/andresuchdata/autopo-py/replenishment/internal/config"
	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/drive"
	"github.com/andresuchdata/autopo-py/replenishment/internal/forecast"
	"github.com/andresuchdata/autopo-py/replenishment/internal/notify"
	"github.com/andresuchdata/autopo-py/replenishment/internal/pipeline"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
	"github.com/andresuchdata/autopo-py/replenishment/internal/pricing"
	"github.com/andresuchdata/autopo-py/replenishment/internal/repository/postgres"
	"github.com/andresuchdata/autopo-py/replenishment/internal/seasonal"
	"github.com/andresuchdata/autopo-py/replenishment/internal/storage"
	"github.com/andresuchdata/autopo-py/replenishment/pkg/logger"
)

// components holds everything a command needs, built once from config.
type components struct {
	cfg         *config.Config
	db          *postgres.DB
	redis       *redis.Client
	cache       ports.CachePort
	runs        *postgres.RunRepository
	archive     *storage.Archive
	events      seasonal.EventSource
	coordinator *pipeline.Coordinator
	closers     []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Warn().Err(err).Msg("error while closing component")
		}
	}
}

func openDB(cfg *config.Config) (*postgres.DB, error) {
	if !cfg.Database.Enabled() {
		return nil, errors.New("database is not configured: set DATABASE_URL or DB_HOST")
	}
	return postgres.NewDB(&cfg.Database)
}

// buildComponents wires every adapter. serving is true for the long-lived
// API process, where an in-memory cache outlives a single run.
func buildComponents(ctx context.Context, cfg *config.Config, serving bool) (*components, error) {
	comp := &components{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			comp.Close()
		}
	}()

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	comp.db = db
	comp.closers = append(comp.closers, db.Close)

	erp := postgres.NewERPRepository(db)
	comp.runs = postgres.NewRunRepository(db)

	deps := pipeline.Dependencies{
		Stock:          erp,
		Sales:          erp,
		LeadTime:       erp,
		Turnover:       erp,
		PurchaseOrders: postgres.NewPurchaseOrderRepository(db),
		Runs:           comp.runs,
		Clock:          ports.SystemClock{},
		Metrics:        pipeline.NewMetrics(),
	}

	if cfg.Cache.Enabled {
		client, err := cache.NewRedisClient(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		comp.redis = client
		comp.closers = append(comp.closers, client.Close)
		comp.cache = cache.NewRedisCache(client)
	} else if serving {
		log.Warn().Msg("redis cache disabled, forecast fallback only lives for this process")
		comp.cache = cache.NewMemoryCache(ports.SystemClock{})
	} else {
		log.Warn().Msg("redis cache disabled, no forecast fallback and no seasonal baseline")
		comp.cache = cache.NoopCache{}
	}
	deps.Cache = comp.cache

	if deps.Locker, err = buildLocker(cfg, comp.redis); err != nil {
		return nil, err
	}
	if deps.Forecast, err = buildForecaster(ctx, cfg); err != nil {
		return nil, err
	}
	if deps.Notifier, err = buildNotifier(cfg, comp.redis); err != nil {
		return nil, err
	}

	if cfg.Pricing.Enabled {
		publisher, err := pricing.NewKafkaPublisher(cfg.Pricing.Brokers, cfg.Pricing.Topic)
		if err != nil {
			return nil, fmt.Errorf("pricing: %w", err)
		}
		comp.closers = append(comp.closers, publisher.Close)
		deps.Liquidation = publisher
	}

	if cfg.Storage.Enabled {
		archive, err := storage.NewArchive(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		comp.archive = archive
		deps.Archive = archive
	}

	catalog, err := loadCatalog(cfg.Replenishment.UpliftCatalogPath)
	if err != nil {
		return nil, err
	}
	deps.Uplifts = catalog

	if comp.events, err = buildEventSource(ctx, cfg); err != nil {
		return nil, err
	}

	comp.coordinator, err = pipeline.NewCoordinator(deps, pipeline.SettingsFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	ok = true
	return comp, nil
}

func buildLocker(cfg *config.Config, client *redis.Client) (ports.Locker, error) {
	switch cfg.Cache.LockDriver {
	case "", "memory":
		return pipeline.NewMemoryLocker(), nil
	case "redis":
		if client == nil {
			return nil, errors.New("LOCK_DRIVER=redis requires CACHE_ENABLED=true")
		}
		return cache.NewRedisLocker(client, time.Duration(cfg.Cache.LockTTLSecond)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown LOCK_DRIVER %q", cfg.Cache.LockDriver)
	}
}

func buildForecaster(ctx context.Context, cfg *config.Config) (ports.ForecastPort, error) {
	switch cfg.Forecast.Driver {
	case "", "local":
		granularity := domain.Granularity(cfg.Replenishment.SalesGranularity)
		return forecast.NewLocal(0, granularity), nil
	case "http":
		return forecast.NewHTTPClient(ctx, cfg.Forecast)
	default:
		return nil, fmt.Errorf("unknown FORECAST_DRIVER %q", cfg.Forecast.Driver)
	}
}

func buildNotifier(cfg *config.Config, client *redis.Client) (ports.NotificationPort, error) {
	switch cfg.Notification.Driver {
	case "", "log":
		return notify.NewLogNotifier(logger.Component("alerts")), nil
	case "webhook":
		return notify.NewWebhook(cfg.Notification.WebhookURL, 10*time.Second)
	case "redis":
		if client == nil {
			return nil, errors.New("NOTIFY_DRIVER=redis requires CACHE_ENABLED=true")
		}
		return notify.NewRedisPublisher(client, cfg.Notification.RedisChannel), nil
	default:
		return nil, fmt.Errorf("unknown NOTIFY_DRIVER %q", cfg.Notification.Driver)
	}
}

func loadCatalog(path string) (*seasonal.Catalog, error) {
	if path == "" {
		return seasonal.NewCatalog(), nil
	}
	catalog, err := seasonal.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("uplift catalog: %w", err)
	}
	return catalog, nil
}

// buildEventSource prefers the shared Drive folder, then a local YAML file.
func buildEventSource(ctx context.Context, cfg *config.Config) (seasonal.EventSource, error) {
	if cfg.Drive.CredentialsJSON != "" && cfg.Drive.CalendarFolderID != "" {
		svc, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("drive: %w", err)
		}
		return drive.NewCalendar(svc, cfg.Drive.CalendarFolderID, seasonal.ParseEventRows), nil
	}
	if cfg.Replenishment.EventCalendarPath != "" {
		return seasonal.NewFileCalendar(cfg.Replenishment.EventCalendarPath), nil
	}
	return nil, nil
}
