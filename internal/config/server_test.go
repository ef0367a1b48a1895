package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadServerConfig_DefaultEnvironment(t *testing.T) {
	os.Unsetenv("ENV")
	cfg := LoadServerConfig()
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q, got %q", EnvDevelopment, cfg.Environment)
	}
}

func TestLoadServerConfig_InvalidEnvironment(t *testing.T) {
	t.Setenv("ENV", "invalid")
	cfg := LoadServerConfig()
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q for invalid ENV, got %q", EnvDevelopment, cfg.Environment)
	}
}

func TestLoadServerConfig_ValidEnvironments(t *testing.T) {
	tests := []struct {
		env  string
		want Environment
	}{
		{"development", EnvDevelopment},
		{"staging", EnvStaging},
		{"production", EnvProduction},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("ENV", tt.env)
			cfg := LoadServerConfig()
			if cfg.Environment != tt.want {
				t.Errorf("expected %q, got %q", tt.want, cfg.Environment)
			}
		})
	}
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "DATABASE_DRIVER", "HORIZON_DAYS", "SWEEP_TIMEOUT", "REDIS_URL"} {
		t.Setenv(key, "")
	}

	cfg := LoadServerConfig()
	if cfg.DatabaseDriver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %q", cfg.DatabaseDriver)
	}
	if cfg.HorizonDays != 30 {
		t.Errorf("expected horizon 30, got %d", cfg.HorizonDays)
	}
	if cfg.SweepTimeout != 5*time.Minute {
		t.Errorf("expected sweep timeout 5m, got %v", cfg.SweepTimeout)
	}
	if cfg.RedisURL != "" {
		t.Errorf("expected no redis URL, got %q", cfg.RedisURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadServerConfig_Overrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/licensees")
	t.Setenv("HORIZON_DAYS", "14")
	t.Setenv("SWEEP_SCHEDULE", "0 2 * * *")
	t.Setenv("SWEEP_TIMEOUT", "90s")
	t.Setenv("OPERATION_TIMEOUT", "3s")
	t.Setenv("ALERT_CACHE_TTL", "1m")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("METRICS_ENABLED", "no")

	cfg := LoadServerConfig()
	if cfg.DatabaseDriver != DriverPostgres {
		t.Errorf("DATABASE_URL should select postgres, got %q", cfg.DatabaseDriver)
	}
	if cfg.HorizonDays != 14 {
		t.Errorf("expected horizon 14, got %d", cfg.HorizonDays)
	}
	if cfg.SweepSchedule != "0 2 * * *" {
		t.Errorf("unexpected schedule %q", cfg.SweepSchedule)
	}
	if cfg.SweepTimeout != 90*time.Second || cfg.OperationTimeout != 3*time.Second || cfg.AlertCacheTTL != time.Minute {
		t.Errorf("unexpected durations: %v %v %v", cfg.SweepTimeout, cfg.OperationTimeout, cfg.AlertCacheTTL)
	}
	if cfg.ZerologLevel() != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %v", cfg.ZerologLevel())
	}
	if cfg.MetricsEnabled {
		t.Error("expected metrics disabled")
	}
}

func TestLoadServerConfig_InvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("HORIZON_DAYS", "-5")
	t.Setenv("SWEEP_TIMEOUT", "forever")
	t.Setenv("OPERATION_TIMEOUT", "-1s")

	cfg := LoadServerConfig()
	if cfg.HorizonDays != 30 {
		t.Errorf("expected horizon 30, got %d", cfg.HorizonDays)
	}
	if cfg.SweepTimeout != 5*time.Minute {
		t.Errorf("expected sweep timeout 5m, got %v", cfg.SweepTimeout)
	}
	if cfg.OperationTimeout != 10*time.Second {
		t.Errorf("expected operation timeout 10s, got %v", cfg.OperationTimeout)
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"postgres without url", func(c *ServerConfig) { c.DatabaseDriver = DriverPostgres }, "DATABASE_URL"},
		{"unknown driver", func(c *ServerConfig) { c.DatabaseDriver = "mysql" }, "unknown database driver"},
		{"empty sqlite path", func(c *ServerConfig) { c.SQLitePath = "" }, "SQLITE_PATH"},
		{"zero horizon", func(c *ServerConfig) { c.HorizonDays = 0 }, "horizon"},
		{"bad schedule", func(c *ServerConfig) { c.SweepSchedule = "every day" }, "sweep schedule"},
		{"zero timeout", func(c *ServerConfig) { c.OperationTimeout = 0 }, "operation timeout"},
		{"bad log level", func(c *ServerConfig) { c.LogLevel = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		val  string
		def  bool
		want bool
	}{
		{"true", false, true},
		{"YES", false, true},
		{"0", true, false},
		{"maybe", true, true},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Setenv("TEST_BOOL", tt.val)
		if got := getEnvBool("TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.val, tt.def, got, tt.want)
		}
	}
}
