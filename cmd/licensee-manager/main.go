// Package main is the entrypoint for the licensee manager.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/alerts"
	"github.com/MacJediWizard/licensee-manager/internal/config"
	"github.com/MacJediWizard/licensee-manager/internal/db"
	"github.com/MacJediWizard/licensee-manager/internal/db/sqlite"
	"github.com/MacJediWizard/licensee-manager/internal/licensing"
	"github.com/MacJediWizard/licensee-manager/internal/metrics"
	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	cfg        config.ServerConfig
	logger     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "licensee-manager",
		Short: "Track licensee status, expirations and office assignments",
		Long: `licensee-manager tracks the license lifecycle of licensees: it expires
licenses whose date has passed, audits every status change and moves
licensees off offices that are being closed.

Configuration comes from an optional YAML file (--config) overlaid by
environment variables such as DATABASE_URL, SQLITE_PATH and REDIS_URL.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			opts.cfg = cfg
			opts.logger = newLogger(cfg, cmd.ErrOrStderr())
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("LICENSEE_MANAGER_CONFIG"), "path to YAML config file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(opts),
		newSweepCmd(opts),
		newEvaluateCmd(opts),
		newTransitionCmd(opts),
		newDeactivateOfficeCmd(opts),
		newActivateOfficeCmd(opts),
		newOfficeLicenseesCmd(opts),
		newAuditTrailCmd(opts),
		newConfigCmd(opts),
		newMigrateCmd(opts),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "licensee-manager %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
		},
	}
}

// newLogger writes JSON in production and a console format elsewhere.
func newLogger(cfg config.ServerConfig, w io.Writer) zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Str("version", Version).Logger()
	if cfg.Environment != config.EnvProduction {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}
	return logger.Level(cfg.ZerologLevel())
}

// backend is a store together with its health checks.
type backend interface {
	store.Store
	Ping(ctx context.Context) error
	Health() map[string]any
}

// app holds everything a command needs; close releases it.
type app struct {
	service  *licensing.Service
	backend  backend
	cache    *alerts.RedisCache
	redis    *redis.Client
	registry *prometheus.Registry
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openApp connects the configured store and cache and builds the service.
func openApp(ctx context.Context, cfg config.ServerConfig, logger zerolog.Logger) (*app, error) {
	a := &app{}

	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, database.Close)
		if err := database.Migrate(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("run database migrations: %w", err)
		}
		a.backend = database
	default:
		s, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		a.backend = s
	}

	client, err := alerts.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	opts := licensing.Options{
		OperationTimeout: cfg.OperationTimeout,
		SweepTimeout:     cfg.SweepTimeout,
		AlertTTL:         cfg.AlertCacheTTL,
	}
	if client != nil {
		a.redis = client
		a.cache = alerts.NewRedisCache(client, alerts.DefaultKeyPrefix)
		a.closers = append(a.closers, func() { _ = client.Close() })
		opts.AlertCache = a.cache
	}

	if cfg.MetricsEnabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := metrics.NewPrometheusMetrics(a.registry)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts.Metrics = m
	}

	a.service = licensing.NewService(a.backend, opts, logger)
	return a, nil
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
