package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile_Missing(t *testing.T) {
	f, err := LoadFile(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	cfg := Defaults()
	f.ApplyTo(&cfg)
	if cfg != Defaults() {
		t.Errorf("empty file changed the config: %+v", cfg)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := writeFile(t, "lifecycle:\n  sweep_timeout: soonish\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
environment: staging
database:
  url: postgres://file/licensees
lifecycle:
  horizon_days: 45
  sweep_timeout: 2m
metrics:
  enabled: false
`)
	t.Setenv("ENV", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("HORIZON_DAYS", "10")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Environment != EnvStaging {
		t.Errorf("expected staging, got %q", cfg.Environment)
	}
	if cfg.DatabaseDriver != DriverPostgres || cfg.DatabaseURL != "postgres://file/licensees" {
		t.Errorf("unexpected database settings: %q %q", cfg.DatabaseDriver, cfg.DatabaseURL)
	}
	if cfg.HorizonDays != 10 {
		t.Errorf("environment should win, got horizon %d", cfg.HorizonDays)
	}
	if cfg.SweepTimeout != 2*time.Minute {
		t.Errorf("expected sweep timeout 2m, got %v", cfg.SweepTimeout)
	}
	if cfg.MetricsEnabled {
		t.Error("expected metrics disabled by file")
	}
}

func TestFileConfigSaveRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.RedisURL = "redis://cache:6379/0"
	cfg.AlertCacheTTL = 90 * time.Second

	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	if err := FileFromConfig(cfg).Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	got := Defaults()
	f.ApplyTo(&got)
	if got != cfg {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, cfg)
	}
}
