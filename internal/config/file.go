package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration file. Zero values leave the
// corresponding setting untouched.
type FileConfig struct {
	Environment string        `yaml:"environment,omitempty"`
	ListenAddr  string        `yaml:"listen_addr,omitempty"`
	LogLevel    string        `yaml:"log_level,omitempty"`
	Database    DatabaseFile  `yaml:"database,omitempty"`
	RedisURL    string        `yaml:"redis_url,omitempty"`
	Lifecycle   LifecycleFile `yaml:"lifecycle,omitempty"`
	HTTP        HTTPFile      `yaml:"http,omitempty"`
	Metrics     *MetricsFile  `yaml:"metrics,omitempty"`
}

// DatabaseFile selects and configures the store.
type DatabaseFile struct {
	Driver     string `yaml:"driver,omitempty"`
	URL        string `yaml:"url,omitempty"`
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// LifecycleFile configures expiration evaluation and the sweep.
type LifecycleFile struct {
	HorizonDays      int      `yaml:"horizon_days,omitempty"`
	SweepSchedule    string   `yaml:"sweep_schedule,omitempty"`
	SweepTimeout     Duration `yaml:"sweep_timeout,omitempty"`
	OperationTimeout Duration `yaml:"operation_timeout,omitempty"`
	AlertCacheTTL    Duration `yaml:"alert_cache_ttl,omitempty"`
}

// Duration is a time.Duration written as a string such as "5m".
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// HTTPFile configures the API rate limit.
type HTTPFile struct {
	RateLimit       int64  `yaml:"rate_limit,omitempty"`
	RateLimitPeriod string `yaml:"rate_limit_period,omitempty"`
}

// MetricsFile toggles the Prometheus endpoint.
type MetricsFile struct {
	Enabled bool `yaml:"enabled"`
}

// LoadFile reads the configuration file at path.
// If the file does not exist, an empty config is returned.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var f FileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &f, nil
}

// ApplyTo copies every set field of f onto cfg.
func (f *FileConfig) ApplyTo(cfg *ServerConfig) {
	if f.Environment != "" {
		cfg.Environment = Environment(f.Environment)
	}
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.Database.Driver != "" {
		cfg.DatabaseDriver = f.Database.Driver
	} else if f.Database.URL != "" {
		cfg.DatabaseDriver = DriverPostgres
	}
	if f.Database.URL != "" {
		cfg.DatabaseURL = f.Database.URL
	}
	if f.Database.SQLitePath != "" {
		cfg.SQLitePath = f.Database.SQLitePath
	}
	if f.RedisURL != "" {
		cfg.RedisURL = f.RedisURL
	}

	lc := f.Lifecycle
	if lc.HorizonDays > 0 {
		cfg.HorizonDays = lc.HorizonDays
	}
	if lc.SweepSchedule != "" {
		cfg.SweepSchedule = lc.SweepSchedule
	}
	if lc.SweepTimeout > 0 {
		cfg.SweepTimeout = time.Duration(lc.SweepTimeout)
	}
	if lc.OperationTimeout > 0 {
		cfg.OperationTimeout = time.Duration(lc.OperationTimeout)
	}
	if lc.AlertCacheTTL > 0 {
		cfg.AlertCacheTTL = time.Duration(lc.AlertCacheTTL)
	}

	if f.HTTP.RateLimit > 0 {
		cfg.RateLimit = f.HTTP.RateLimit
	}
	if f.HTTP.RateLimitPeriod != "" {
		cfg.RateLimitPeriod = f.HTTP.RateLimitPeriod
	}
	if f.Metrics != nil {
		cfg.MetricsEnabled = f.Metrics.Enabled
	}
}

// FileFromConfig renders cfg as a FileConfig, for writing a starter file.
func FileFromConfig(cfg ServerConfig) *FileConfig {
	return &FileConfig{
		Environment: string(cfg.Environment),
		ListenAddr:  cfg.ListenAddr,
		LogLevel:    cfg.LogLevel,
		Database: DatabaseFile{
			Driver:     cfg.DatabaseDriver,
			URL:        cfg.DatabaseURL,
			SQLitePath: cfg.SQLitePath,
		},
		RedisURL: cfg.RedisURL,
		Lifecycle: LifecycleFile{
			HorizonDays:      cfg.HorizonDays,
			SweepSchedule:    cfg.SweepSchedule,
			SweepTimeout:     Duration(cfg.SweepTimeout),
			OperationTimeout: Duration(cfg.OperationTimeout),
			AlertCacheTTL:    Duration(cfg.AlertCacheTTL),
		},
		HTTP: HTTPFile{
			RateLimit:       cfg.RateLimit,
			RateLimitPeriod: cfg.RateLimitPeriod,
		},
		Metrics: &MetricsFile{Enabled: cfg.MetricsEnabled},
	}
}

// Save writes the configuration to the given path, creating directories as needed.
func (f *FileConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// The database URL may carry credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
