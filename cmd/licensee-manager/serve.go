package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/api"
	"github.com/MacJediWizard/licensee-manager/internal/api/handlers"
	"github.com/MacJediWizard/licensee-manager/internal/lifecycle"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled expiration sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runServe(ctx, opts, a, !noScheduler)
			})
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without running the daily sweep")
	return cmd
}

func runServe(ctx context.Context, opts *globalOptions, a *app, schedule bool) error {
	cfg := opts.cfg
	logger := opts.logger

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("driver", cfg.DatabaseDriver).
		Msg("Starting licensee manager")

	routerCfg := api.DefaultConfig()
	routerCfg.RateLimitRequests = cfg.RateLimit
	routerCfg.RateLimitPeriod = cfg.RateLimitPeriod
	routerCfg.RateLimitRedis = a.redis
	if a.registry != nil {
		routerCfg.Gatherer = a.registry
	}

	var cache handlers.CacheHealthChecker
	if a.cache != nil {
		cache = a.cache
	}

	router, err := api.NewRouter(routerCfg, a.service, a.backend, cache, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	if schedule {
		sched, err := a.service.StartScheduler(lifecycle.SchedulerConfig{
			Schedule:    cfg.SweepSchedule,
			HorizonDays: cfg.HorizonDays,
			Timeout:     cfg.SweepTimeout,
		})
		if err != nil {
			return err
		}
		defer func() {
			<-sched.Stop().Done()
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server error")
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return err
	}

	logger.Info().Msg("Server stopped gracefully")
	return nil
}
