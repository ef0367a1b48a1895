// Package config provides configuration management for the licensee manager.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ServerConfig holds the runtime configuration of the service.
type ServerConfig struct {
	Environment      Environment
	ListenAddr       string
	DatabaseDriver   string
	DatabaseURL      string
	SQLitePath       string
	RedisURL         string // empty disables the shared alert cache
	HorizonDays      int
	SweepSchedule    string // standard 5-field cron expression, evaluated in UTC
	SweepTimeout     time.Duration
	OperationTimeout time.Duration
	AlertCacheTTL    time.Duration
	LogLevel         string
	MetricsEnabled   bool
	RateLimit        int64
	RateLimitPeriod  string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() ServerConfig {
	return ServerConfig{
		Environment:      EnvDevelopment,
		ListenAddr:       ":8080",
		DatabaseDriver:   DriverSQLite,
		SQLitePath:       "licensee-manager.db",
		HorizonDays:      30,
		SweepSchedule:    "5 0 * * *",
		SweepTimeout:     5 * time.Minute,
		OperationTimeout: 10 * time.Second,
		AlertCacheTTL:    5 * time.Minute,
		LogLevel:         "info",
		MetricsEnabled:   true,
		RateLimit:        100,
		RateLimitPeriod:  "1m",
	}
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

// Load builds the configuration from defaults, then the YAML file at path
// (if any), then environment variables.
func Load(path string) (ServerConfig, error) {
	cfg := Defaults()
	if path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return cfg, err
		}
		f.ApplyTo(&cfg)
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides cfg with any environment variables that are set.
// Unparseable values keep the current setting.
func applyEnv(cfg *ServerConfig) {
	if env := Environment(os.Getenv("ENV")); env != "" {
		cfg.Environment = env
	}
	switch cfg.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		cfg.Environment = EnvDevelopment
	}

	cfg.ListenAddr = getEnvString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DatabaseURL = getEnvString("DATABASE_URL", cfg.DatabaseURL)
	cfg.SQLitePath = getEnvString("SQLITE_PATH", cfg.SQLitePath)
	cfg.RedisURL = getEnvString("REDIS_URL", cfg.RedisURL)
	cfg.SweepSchedule = getEnvString("SWEEP_SCHEDULE", cfg.SweepSchedule)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", cfg.LogLevel))
	cfg.RateLimitPeriod = getEnvString("RATE_LIMIT_PERIOD", cfg.RateLimitPeriod)

	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		cfg.DatabaseDriver = strings.ToLower(driver)
	} else if os.Getenv("DATABASE_URL") != "" {
		cfg.DatabaseDriver = DriverPostgres
	}

	if n := getEnvInt("HORIZON_DAYS", cfg.HorizonDays); n > 0 {
		cfg.HorizonDays = n
	}
	if n := getEnvInt("RATE_LIMIT_REQUESTS", int(cfg.RateLimit)); n > 0 {
		cfg.RateLimit = int64(n)
	}

	cfg.SweepTimeout = getEnvDuration("SWEEP_TIMEOUT", cfg.SweepTimeout)
	cfg.OperationTimeout = getEnvDuration("OPERATION_TIMEOUT", cfg.OperationTimeout)
	cfg.AlertCacheTTL = getEnvDuration("ALERT_CACHE_TTL", cfg.AlertCacheTTL)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
}

// Validate reports every invalid setting.
func (c ServerConfig) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.DatabaseDriver))
	}

	if c.HorizonDays <= 0 {
		errs = append(errs, fmt.Errorf("horizon days must be positive, got %d", c.HorizonDays))
	}
	if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid sweep schedule %q: %w", c.SweepSchedule, err))
	}
	if c.SweepTimeout <= 0 {
		errs = append(errs, errors.New("sweep timeout must be positive"))
	}
	if c.OperationTimeout <= 0 {
		errs = append(errs, errors.New("operation timeout must be positive"))
	}
	if c.AlertCacheTTL <= 0 {
		errs = append(errs, errors.New("alert cache TTL must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// ZerologLevel returns the parsed log level, defaulting to info.
func (c ServerConfig) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func getEnvString(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvDuration reads a positive duration such as "90s", returning the default if unset or invalid.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
