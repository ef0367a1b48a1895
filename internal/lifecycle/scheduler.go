package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/clock"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSweepSchedule runs the sweep five minutes past midnight UTC.
const DefaultSweepSchedule = "5 0 * * *"

// SweepRunner runs one expiration sweep.
type SweepRunner interface {
	RunExpirationSweep(ctx context.Context, asOf time.Time, horizonDays int) (*SweepReport, error)
}

// SchedulerConfig holds the sweep scheduler settings.
type SchedulerConfig struct {
	Schedule    string
	HorizonDays int
	Timeout     time.Duration
}

// Scheduler runs the expiration sweep on a cron schedule.
type Scheduler struct {
	runner  SweepRunner
	config  SchedulerConfig
	clock   clock.Clock
	cron    *cron.Cron
	logger  zerolog.Logger
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new sweep scheduler.
func NewScheduler(runner SweepRunner, cfg SchedulerConfig, clk clock.Clock, logger zerolog.Logger) *Scheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSweepSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	cfg.HorizonDays = NormalizeHorizon(cfg.HorizonDays)

	return &Scheduler{
		runner: runner,
		config: cfg,
		clock:  clk,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger.With().Str("component", "sweep_scheduler").Logger(),
	}
}

// Start begins running the sweep on the configured schedule.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("sweep scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.runSweep); err != nil {
		return err
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Int("horizon_days", s.config.HorizonDays).
		Msg("sweep scheduler started")

	return nil
}

// Stop stops the scheduler. The returned context is done once a running
// sweep has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.logger.Info().Msg("stopping sweep scheduler")
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	report, err := s.runner.RunExpirationSweep(ctx, clock.Today(s.clock), s.config.HorizonDays)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled expiration sweep failed")
		return
	}

	s.logger.Info().
		Str("run_id", report.RunID.String()).
		Int("expired", report.ExpiredCount).
		Int("failures", len(report.Failures)).
		Msg("scheduled expiration sweep finished")
}

// RunNow triggers an immediate sweep.
func (s *Scheduler) RunNow() {
	s.runSweep()
}
