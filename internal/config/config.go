package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// Packing defaults, overridable per request is a non-goal: tenants
	// share one engine configuration per deployment.
	PackingMarginCm   float64
	VolumetricDivisor float64

	CartonCacheTTL     time.Duration
	GridCacheTTL       time.Duration
	SuggestionCacheTTL time.Duration
	GroupLockTTL       time.Duration

	EmailEnabled    bool
	EmailFrom       string
	WebhooksEnabled bool

	RateLimitPerMinute int
	BodyLimitBytes     int64

	WebhookEndpoints []WebhookEndpoint
}

// WebhookEndpoint is one configured webhook receiver, read from the
// WEBHOOK_ENDPOINTS environment variable as a JSON array.
type WebhookEndpoint struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Topics []string `json:"topics"`
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		PackingMarginCm:    parseFloat(k.String("PACKING_MARGIN_CM"), 0),
		VolumetricDivisor:  parseFloat(k.String("VOLUMETRIC_DIVISOR"), 5000),
		CartonCacheTTL:     parseDuration(k.String("CARTON_CACHE_TTL"), "5m"),
		GridCacheTTL:       parseDuration(k.String("GRID_CACHE_TTL"), "5m"),
		SuggestionCacheTTL: parseDuration(k.String("SUGGESTION_CACHE_TTL"), "2m"),
		GroupLockTTL:       parseDuration(k.String("GROUP_LOCK_TTL"), "5s"),
		EmailEnabled:       parseBool(k.String("EMAIL_ENABLED")),
		EmailFrom:          strings.TrimSpace(k.String("EMAIL_FROM")),
		WebhooksEnabled:    parseBool(k.String("WEBHOOKS_ENABLED")),
		RateLimitPerMinute: parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 120),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
	}

	if raw := strings.TrimSpace(k.String("WEBHOOK_ENDPOINTS")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.WebhookEndpoints); err != nil {
			return nil, fmt.Errorf("parse WEBHOOK_ENDPOINTS: %w", err)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.VolumetricDivisor <= 0 {
		return nil, errors.New("VOLUMETRIC_DIVISOR must be positive")
	}
	if cfg.PackingMarginCm < 0 {
		return nil, errors.New("PACKING_MARGIN_CM must not be negative")
	}

	return cfg, nil
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
		return value
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

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
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
