package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "weekly,yearly", want: []string{"weekly", "yearly"}},
		{raw: " a, b ,,c ", want: []string{"a", "b", "c"}},
		{raw: "", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, splitList(tt.raw))
		})
	}
}

func TestParseIntList(t *testing.T) {
	assert.Equal(t, []int{7, 14, 30}, parseIntList("7, 14,30"))
	assert.Equal(t, []int{7}, parseIntList("7,abc,-1,0"))
	assert.Nil(t, parseIntList(""))
}

func loadFromEnv(t *testing.T, env map[string]string) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for k, v := range env {
		t.Setenv(k, v)
	}
	setDefaults()
	viper.AutomaticEnv()
	return fromViper()
}

func TestDefaults(t *testing.T) {
	cfg := loadFromEnv(t, nil)

	assert.Equal(t, 0.95, cfg.Replenishment.ServiceLevel)
	assert.Equal(t, 1.2, cfg.Replenishment.RuptureRiskMultiplier)
	assert.Equal(t, 90.0, cfg.Replenishment.SurstockThresholdDays)
	assert.Equal(t, []int{7, 14, 30}, cfg.Replenishment.Horizons)
	assert.Equal(t, []string{"weekly", "yearly"}, cfg.Replenishment.Seasonality)
	assert.Equal(t, 24*time.Hour, cfg.Replenishment.ArtifactTTL())
	assert.Equal(t, 500*time.Millisecond, cfg.Replenishment.AlertBackoff())
	assert.Equal(t, 30*time.Second, cfg.Forecast.Timeout())
	assert.Equal(t, "local", cfg.Forecast.Driver)
	assert.Equal(t, "log", cfg.Notification.Driver)
	assert.Equal(t, "memory", cfg.Cache.LockDriver)
	assert.False(t, cfg.Database.Enabled())
}

func TestEnvOverrides(t *testing.T) {
	cfg := loadFromEnv(t, map[string]string{
		"SERVICE_LEVEL":     "0.99",
		"FORECAST_HORIZONS": "7,28",
		"FORECAST_DRIVER":   "HTTP",
		"KAFKA_BROKERS":     "k1:9092, k2:9092",
		"DATABASE_URL":      "postgres://u:p@db:5432/erp",
		"ALERT_BACKOFF_MS":  "250",
	})

	require.NotNil(t, cfg)
	assert.Equal(t, 0.99, cfg.Replenishment.ServiceLevel)
	assert.Equal(t, []int{7, 28}, cfg.Replenishment.Horizons)
	assert.Equal(t, "http", cfg.Forecast.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Pricing.Brokers)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 250*time.Millisecond, cfg.Replenishment.AlertBackoff())
}
