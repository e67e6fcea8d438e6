package config

import (
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

	// RoundType selects the rounding strategy applied to cart and
	// credit-note totals: item, line or total.
	RoundType string
	// ComputePrecision is the number of decimals intermediate prices
	// are computed with; DisplayPrecision is what amounts are rounded
	// to for totals.
	ComputePrecision int
	DisplayPrecision int

	// DefaultRooms and DefaultVAT seed the variant dimensions when the
	// settings table carries no values yet. DefaultVAT uses the
	// "group:rate" comma list format, e.g. "1:20, 2:10".
	DefaultRooms string
	DefaultVAT   string

	DefaultShopID     int64
	DefaultCurrencyID int64
	DefaultCountryID  int64
	DefaultGroupID    int64

	// EcotaxTaxRulesGroupID is the tax-rules group applied to ecotax
	// amounts independently of the product's own group.
	EcotaxTaxRulesGroupID int64
	TaxEnabled            bool
	UseEcotax             bool

	SettingsCacheTTL time.Duration
	CatalogCacheTTL  time.Duration
	IdempotencyTTL   time.Duration
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

		RoundType:        valueOrDefault(k.String("ROUND_TYPE"), "line"),
		ComputePrecision: parseInt(k.String("COMPUTE_PRECISION"), 6),
		DisplayPrecision: parseInt(k.String("DISPLAY_PRECISION"), 2),

		DefaultRooms: k.String("DEFAULT_ROOMS"),
		DefaultVAT:   k.String("DEFAULT_VAT"),

		DefaultShopID:     parseInt64(k.String("DEFAULT_SHOP_ID"), 1),
		DefaultCurrencyID: parseInt64(k.String("DEFAULT_CURRENCY_ID"), 1),
		DefaultCountryID:  parseInt64(k.String("DEFAULT_COUNTRY_ID"), 0),
		DefaultGroupID:    parseInt64(k.String("DEFAULT_GROUP_ID"), 1),

		EcotaxTaxRulesGroupID: parseInt64(k.String("ECOTAX_TAX_RULES_GROUP_ID"), 0),
		TaxEnabled:            parseBoolDefault(k.String("TAX_ENABLED"), true),
		UseEcotax:             parseBool(k.String("USE_ECOTAX")),

		SettingsCacheTTL: parseDuration(k.String("SETTINGS_CACHE_TTL"), "5m"),
		CatalogCacheTTL:  parseDuration(k.String("CATALOG_CACHE_TTL"), "10m"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
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

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseInt64(value string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
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

func parseBoolDefault(value string, fallback bool) bool {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return parseBool(value)
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
