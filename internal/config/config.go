package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	AdminToken  string

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool
	DBLogQueries      bool

	PaymentProvider string
	CatalogSeedFile string

	Redis       RedisConfig
	RateLimit   RateLimitConfig
	MetricsPush MetricsPushConfig
	Stripe      StripeConfig
}

// TelemetryConfig follows the standard OTEL_* variable names.
type TelemetryConfig struct {
	LogLevel       string
	LogFormat      string
	OtelEnabled    bool
	OtelEndpoint   string
	OtelProtocol   string
	OtelSampleRate float64
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig throttles subscription mutations per user. Needs redis.
type RateLimitConfig struct {
	Enabled         bool
	UserActionRate  float64
	UserActionBurst int
}

// MetricsPushConfig ships metrics from processes without an HTTP listener.
// An empty Exporter disables pushing.
type MetricsPushConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	MaxNetworkRetries int64
	HTTPTimeout       time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "subsync"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		AdminToken:        strings.TrimSpace(getenv("ADMIN_TOKEN", "")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "subsync"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),
		DBLogQueries:      getenvBool("DATABASE_LOG_QUERIES", false),
		PaymentProvider:   strings.ToLower(strings.TrimSpace(getenv("PAYMENT_PROVIDER", "stripe"))),
		CatalogSeedFile:   strings.TrimSpace(getenv("CATALOG_SEED_FILE", "")),
		Telemetry: TelemetryConfig{
			LogLevel:       strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:      strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:    getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:   strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			OtelProtocol:   strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			OtelSampleRate: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getenvBool("RATE_LIMIT_ENABLED", false),
			UserActionRate:  getenvFloat("RATE_LIMIT_USER_RATE", 0.5),
			UserActionBurst: int(getenvInt64("RATE_LIMIT_USER_BURST", 5)),
		},
		MetricsPush: MetricsPushConfig{
			Exporter:  strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", "")),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_TOKEN", "")),
			Interval:  getenvDuration("METRICS_PUSH_INTERVAL", 30*time.Second),
		},
		Stripe: StripeConfig{
			SecretKey:         strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:     strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			MaxNetworkRetries: getenvInt64("STRIPE_MAX_NETWORK_RETRIES", 2),
			HTTPTimeout:       getenvDuration("STRIPE_HTTP_TIMEOUT", 30*time.Second),
		},
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
