package config

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Cache         CacheConfig
	Replenishment ReplenishmentConfig
	Forecast      ForecastConfig
	Notification  NotificationConfig
	Pricing       PricingConfig
	Storage       StorageConfig
	Schedule      ScheduleConfig
	Drive         DriveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	LogLevel       string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether any connection settings were provided.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	LockDriver    string
	LockTTLSecond int
}

// ReplenishmentConfig carries the business constants of the engine.
type ReplenishmentConfig struct {
	ServiceLevel          float64
	RuptureRiskMultiplier float64
	SurstockThresholdDays float64
	CriticalDays          float64
	WarningDays           float64
	Horizons              []int
	Seasonality           []string
	SalesHistoryDays      int
	SalesGranularity      string
	ArtifactTTLSeconds    int
	AlertChannel          string
	AlertMaxAttempts      int
	AlertBackoffMillis    int
	UpliftCatalogPath     string
	EventCalendarPath     string
}

func (c ReplenishmentConfig) ArtifactTTL() time.Duration {
	return time.Duration(c.ArtifactTTLSeconds) * time.Second
}

func (c ReplenishmentConfig) AlertBackoff() time.Duration {
	return time.Duration(c.AlertBackoffMillis) * time.Millisecond
}

type ForecastConfig struct {
	Driver         string
	BaseURL        string
	TimeoutSeconds int
	ClientID       string
	ClientSecret   string
	TokenURL       string
}

func (c ForecastConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type NotificationConfig struct {
	Driver       string
	WebhookURL   string
	RedisChannel string
}

type PricingConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type ScheduleConfig struct {
	Enabled  bool
	Daily    string
	Weekly   string
	Timezone string
}

type DriveConfig struct {
	CredentialsJSON  string
	CalendarFolderID string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		instance = fromViper()
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DB_HOST", "")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "autopo")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("LOCK_DRIVER", "memory")
	viper.SetDefault("LOCK_TTL_SECONDS", 3600)

	viper.SetDefault("SERVICE_LEVEL", 0.95)
	viper.SetDefault("RUPTURE_RISK_MULTIPLIER", 1.2)
	viper.SetDefault("SURSTOCK_THRESHOLD_DAYS", 90)
	viper.SetDefault("CRITICAL_DAYS", 7)
	viper.SetDefault("WARNING_DAYS", 14)
	viper.SetDefault("FORECAST_HORIZONS", "7,14,30")
	viper.SetDefault("FORECAST_SEASONALITY", "weekly,yearly")
	viper.SetDefault("SALES_HISTORY_DAYS", 365)
	viper.SetDefault("SALES_GRANULARITY", "daily")
	viper.SetDefault("ARTIFACT_TTL_SECONDS", 86400)
	viper.SetDefault("ALERT_CHANNEL", "#stock-alerts")
	viper.SetDefault("ALERT_MAX_ATTEMPTS", 3)
	viper.SetDefault("ALERT_BACKOFF_MS", 500)
	viper.SetDefault("UPLIFT_CATALOG_PATH", "")
	viper.SetDefault("EVENT_CALENDAR_PATH", "")

	viper.SetDefault("FORECAST_DRIVER", "local")
	viper.SetDefault("FORECAST_BASE_URL", "http://localhost:8090")
	viper.SetDefault("FORECAST_TIMEOUT_SECONDS", 30)
	viper.SetDefault("FORECAST_CLIENT_ID", "")
	viper.SetDefault("FORECAST_CLIENT_SECRET", "")
	viper.SetDefault("FORECAST_TOKEN_URL", "")

	viper.SetDefault("NOTIFY_DRIVER", "log")
	viper.SetDefault("NOTIFY_WEBHOOK_URL", "")
	viper.SetDefault("NOTIFY_REDIS_CHANNEL", "replenishment:alerts")

	viper.SetDefault("PRICING_ENABLED", false)
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("PRICING_LIQUIDATION_TOPIC", "pricing.liquidation.requests")

	viper.SetDefault("STORAGE_ENABLED", false)
	viper.SetDefault("STORAGE_ENDPOINT", "")
	viper.SetDefault("STORAGE_ACCESS_KEY", "")
	viper.SetDefault("STORAGE_SECRET_KEY", "")
	viper.SetDefault("STORAGE_BUCKET", "replenishment-runs")
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", true)

	viper.SetDefault("SCHEDULE_ENABLED", true)
	viper.SetDefault("SCHEDULE_DAILY", "0 6 * * *")
	viper.SetDefault("SCHEDULE_WEEKLY", "0 7 * * 1")
	viper.SetDefault("SCHEDULE_TIMEZONE", "UTC")

	viper.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	viper.SetDefault("EVENT_CALENDAR_DRIVE_FOLDER_ID", "")
}

func fromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:      viper.GetString("DATABASE_URL"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:       viper.GetBool("CACHE_ENABLED"),
			RedisURL:      viper.GetString("REDIS_URL"),
			RedisHost:     viper.GetString("REDIS_HOST"),
			RedisPort:     viper.GetString("REDIS_PORT"),
			RedisPassword: viper.GetString("REDIS_PASSWORD"),
			RedisDB:       viper.GetInt("REDIS_DB"),
			LockDriver:    strings.ToLower(viper.GetString("LOCK_DRIVER")),
			LockTTLSecond: viper.GetInt("LOCK_TTL_SECONDS"),
		},
		Replenishment: ReplenishmentConfig{
			ServiceLevel:          viper.GetFloat64("SERVICE_LEVEL"),
			RuptureRiskMultiplier: viper.GetFloat64("RUPTURE_RISK_MULTIPLIER"),
			SurstockThresholdDays: viper.GetFloat64("SURSTOCK_THRESHOLD_DAYS"),
			CriticalDays:          viper.GetFloat64("CRITICAL_DAYS"),
			WarningDays:           viper.GetFloat64("WARNING_DAYS"),
			Horizons:              parseIntList(viper.GetString("FORECAST_HORIZONS")),
			Seasonality:           splitList(viper.GetString("FORECAST_SEASONALITY")),
			SalesHistoryDays:      viper.GetInt("SALES_HISTORY_DAYS"),
			SalesGranularity:      viper.GetString("SALES_GRANULARITY"),
			ArtifactTTLSeconds:    viper.GetInt("ARTIFACT_TTL_SECONDS"),
			AlertChannel:          viper.GetString("ALERT_CHANNEL"),
			AlertMaxAttempts:      viper.GetInt("ALERT_MAX_ATTEMPTS"),
			AlertBackoffMillis:    viper.GetInt("ALERT_BACKOFF_MS"),
			UpliftCatalogPath:     viper.GetString("UPLIFT_CATALOG_PATH"),
			EventCalendarPath:     viper.GetString("EVENT_CALENDAR_PATH"),
		},
		Forecast: ForecastConfig{
			Driver:         strings.ToLower(viper.GetString("FORECAST_DRIVER")),
			BaseURL:        viper.GetString("FORECAST_BASE_URL"),
			TimeoutSeconds: viper.GetInt("FORECAST_TIMEOUT_SECONDS"),
			ClientID:       viper.GetString("FORECAST_CLIENT_ID"),
			ClientSecret:   viper.GetString("FORECAST_CLIENT_SECRET"),
			TokenURL:       viper.GetString("FORECAST_TOKEN_URL"),
		},
		Notification: NotificationConfig{
			Driver:       strings.ToLower(viper.GetString("NOTIFY_DRIVER")),
			WebhookURL:   viper.GetString("NOTIFY_WEBHOOK_URL"),
			RedisChannel: viper.GetString("NOTIFY_REDIS_CHANNEL"),
		},
		Pricing: PricingConfig{
			Enabled: viper.GetBool("PRICING_ENABLED"),
			Brokers: splitList(viper.GetString("KAFKA_BROKERS")),
			Topic:   viper.GetString("PRICING_LIQUIDATION_TOPIC"),
		},
		Storage: StorageConfig{
			Enabled:   viper.GetBool("STORAGE_ENABLED"),
			Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
			AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:    viper.GetString("STORAGE_BUCKET"),
			Region:    viper.GetString("STORAGE_REGION"),
			UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
		},
		Schedule: ScheduleConfig{
			Enabled:  viper.GetBool("SCHEDULE_ENABLED"),
			Daily:    viper.GetString("SCHEDULE_DAILY"),
			Weekly:   viper.GetString("SCHEDULE_WEEKLY"),
			Timezone: viper.GetString("SCHEDULE_TIMEZONE"),
		},
		Drive: DriveConfig{
			CredentialsJSON:  viper.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			CalendarFolderID: viper.GetString("EVENT_CALENDAR_DRIVE_FOLDER_ID"),
		},
	}
}

// splitList accepts comma separated env values ("a, b,c").
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIntList(raw string) []int {
	var out []int
	for _, p := range splitList(raw) {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			out = append(out, v)
		}
	}
	return out
}
