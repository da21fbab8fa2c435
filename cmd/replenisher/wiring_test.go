package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-py/replenishment/internal/config"
	"github.com/andresuchdata/autopo-py/replenishment/internal/forecast"
	"github.com/andresuchdata/autopo-py/replenishment/internal/notify"
	"github.com/andresuchdata/autopo-py/replenishment/internal/pipeline"
	"github.com/andresuchdata/autopo-py/replenishment/internal/seasonal"
)

func TestBuildLocker(t *testing.T) {
	cfg := &config.Config{}
	locker, err := buildLocker(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &pipeline.MemoryLocker{}, locker)

	cfg.Cache.LockDriver = "redis"
	_, err = buildLocker(cfg, nil)
	assert.ErrorContains(t, err, "CACHE_ENABLED")

	cfg.Cache.LockDriver = "etcd"
	_, err = buildLocker(cfg, nil)
	assert.ErrorContains(t, err, "unknown LOCK_DRIVER")
}

func TestBuildForecaster(t *testing.T) {
	cfg := &config.Config{}
	f, err := buildForecaster(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &forecast.Local{}, f)

	cfg.Forecast = config.ForecastConfig{Driver: "http", BaseURL: "http://forecast:8090", TimeoutSeconds: 5}
	f, err = buildForecaster(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &forecast.HTTPClient{}, f)

	cfg.Forecast.Driver = "prophet"
	_, err = buildForecaster(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuildNotifier(t *testing.T) {
	cfg := &config.Config{}
	n, err := buildNotifier(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &notify.LogNotifier{}, n)

	cfg.Notification = config.NotificationConfig{Driver: "webhook", WebhookURL: "https://hooks.example.com/x"}
	n, err = buildNotifier(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &notify.Webhook{}, n)

	cfg.Notification.Driver = "redis"
	_, err = buildNotifier(cfg, nil)
	assert.ErrorContains(t, err, "CACHE_ENABLED")
}

func TestLoadCatalogDefaults(t *testing.T) {
	catalog, err := loadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, catalog.UpliftsFor("black_friday"))

	_, err = loadCatalog("/nonexistent/uplifts.yaml")
	assert.Error(t, err)
}

func TestBuildEventSource(t *testing.T) {
	cfg := &config.Config{}
	src, err := buildEventSource(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, src)

	cfg.Replenishment.EventCalendarPath = "events.yaml"
	src, err = buildEventSource(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &seasonal.FileCalendar{}, src)
}

func TestOpenDBRequiresSettings(t *testing.T) {
	_, err := openDB(&config.Config{})
	assert.ErrorContains(t, err, "DATABASE_URL")
}
