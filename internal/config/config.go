package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	GinMode            string
	DatabaseURL        string
	JWTSecret          string
	CORSAllowedOrigins []string
	LogFormat          string
	LogLevel           string
	RedisURL           string
	CacheTTL           time.Duration
	KafkaBrokers       []string
	KafkaTopic         string
	TaxRateTiers       string
	DefaultTaxRate     string
	TotalEpsilon       decimal.Decimal
	RecalcRateLimit    string
	MetricsNamespace   string
}

const devJWTSecret = "default_super_secret_key"

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		GinMode:            strings.TrimSpace(k.String("GIN_MODE")),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CacheTTL:           parseDuration(k.String("CACHE_TTL"), "5m"),
		KafkaBrokers:       splitAndTrim(k.String("KAFKA_BROKERS")),
		KafkaTopic:         valueOrDefault(k.String("KAFKA_TOPIC"), "procurement.events"),
		TaxRateTiers:       strings.TrimSpace(k.String("TAX_RATE_TIERS")),
		DefaultTaxRate:     valueOrDefault(k.String("DEFAULT_TAX_RATE"), "18"),
		TotalEpsilon:       parseDecimal(k.String("TOTAL_EPSILON"), "0.01"),
		RecalcRateLimit:    valueOrDefault(k.String("RECALC_RATE_LIMIT"), "600-M"),
		MetricsNamespace:   valueOrDefault(k.String("METRICS_NAMESPACE"), "procurement"),
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = buildDSN(k)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsRelease() {
			return nil, errors.New("JWT_SECRET is required in release mode")
		}
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

// IsRelease reports whether the service runs with production settings.
func (c *Config) IsRelease() bool {
	return c.GinMode == "release" || c.AppEnv == "production"
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// buildDSN assembles a postgres URL from the discrete DB_* variables.
func buildDSN(k *koanf.Koanf) string {
	u := url.URL{
		Scheme: "postgres",
		User: url.UserPassword(
			valueOrDefault(k.String("DB_USER"), "postgres"),
			valueOrDefault(k.String("DB_PASSWORD"), "postgres"),
		),
		Host: valueOrDefault(k.String("DB_HOST"), "localhost") + ":" + valueOrDefault(k.String("DB_PORT"), "5432"),
		Path: "/" + valueOrDefault(k.String("DB_NAME"), "postgres"),
	}
	q := url.Values{}
	q.Set("sslmode", valueOrDefault(k.String("DB_SSLMODE"), "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseDecimal(value, fallback string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || !d.IsPositive() {
		return decimal.RequireFromString(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
