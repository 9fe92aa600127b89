package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "CargoLoop Billing"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultCurrency        = "USD"
	defaultGateway         = "static"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultHoldTTL         = 30 * time.Minute
	defaultSweepInterval   = time.Minute
	defaultTopupPendingTTL = 24 * time.Hour
	defaultTenantRateLimit = 120
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	DefaultCurrency string
	PaymentGateway  string
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
	HoldTTL         time.Duration
	SweepInterval   time.Duration
	TopupPendingTTL time.Duration
	TenantRateLimit int
}

// Load reads configuration from a .env file when present and then the
// environment. DATABASE_URL and REDIS_URL are optional: without them the
// engine runs on in-memory stores, which is only suitable for development.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", defaultCurrency),
		PaymentGateway:  getEnv("PAYMENT_GATEWAY", defaultGateway),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		HoldTTL:         defaultHoldTTL,
		SweepInterval:   defaultSweepInterval,
		TopupPendingTTL: defaultTopupPendingTTL,
		TenantRateLimit: defaultTenantRateLimit,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.HoldTTL, err = durationEnv("HOLD_TTL", cfg.HoldTTL); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.TopupPendingTTL, err = durationEnv("TOPUP_PENDING_TTL", cfg.TopupPendingTTL); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("TENANT_RATE_LIMIT_PER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TENANT_RATE_LIMIT_PER_MIN: %w", err)
		}
		cfg.TenantRateLimit = n
	}

	if cfg.HoldTTL <= 0 {
		return Config{}, fmt.Errorf("HOLD_TTL must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL must be positive")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
