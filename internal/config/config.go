package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Sla      SlaConfig
	Geo      GeoConfig
	Hub      HubConfig
	Geocode  GeocodeConfig
	SideChan SideChannelConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token validation parameters for the live channel.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// SlaConfig tunes deadline and breach evaluation.
type SlaConfig struct {
	AtRiskFraction      float64
	MonitorIntervalSpec string
	TimezoneName        string
}

// GeoConfig bounds the expected operating region and movement heuristics.
type GeoConfig struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
	MaxSpeedKmh  float64
}

// HubConfig tunes the live notification hub.
type HubConfig struct {
	HeartbeatSeconds int
}

// GeocodeConfig points at the reverse-geocoding provider.
type GeocodeConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// SideChannelConfig holds best-effort outbound messaging endpoints.
type SideChannelConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-workflow-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Sla: SlaConfig{
			AtRiskFraction:      getEnvAsFloat("SLA_AT_RISK_FRACTION", 0.2),
			MonitorIntervalSpec: getEnv("SLA_MONITOR_CRON", "@every 5m"),
			TimezoneName:        getEnv("SLA_TIMEZONE", "Asia/Kolkata"),
		},
		Geo: GeoConfig{
			MinLatitude:  getEnvAsFloat("GEO_MIN_LATITUDE", 6.0),
			MaxLatitude:  getEnvAsFloat("GEO_MAX_LATITUDE", 37.5),
			MinLongitude: getEnvAsFloat("GEO_MIN_LONGITUDE", 68.0),
			MaxLongitude: getEnvAsFloat("GEO_MAX_LONGITUDE", 97.5),
			MaxSpeedKmh:  getEnvAsFloat("GEO_MAX_SPEED_KMH", 200),
		},
		Hub: HubConfig{
			HeartbeatSeconds: getEnvAsInt("HUB_HEARTBEAT_SECONDS", 30),
		},
		Geocode: GeocodeConfig{
			BaseURL:        getEnv("GEOCODE_BASE_URL", ""),
			TimeoutSeconds: getEnvAsInt("GEOCODE_TIMEOUT_SECONDS", 5),
		},
		SideChan: SideChannelConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// HeartbeatInterval returns the liveness ping cadence.
func (h HubConfig) HeartbeatInterval() time.Duration {
	if h.HeartbeatSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.HeartbeatSeconds) * time.Second
}

// Timeout returns the provider call timeout.
func (g GeocodeConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Location resolves the business-hours timezone, falling back to UTC.
func (s SlaConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.TimezoneName)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
