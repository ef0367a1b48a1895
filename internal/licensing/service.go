// Package licensing is the entry point the CLI and HTTP layers use to drive
// the licensee lifecycle and office operations.
package licensing

import (
	"context"
	"fmt"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/alerts"
	"github.com/MacJediWizard/licensee-manager/internal/clock"
	"github.com/MacJediWizard/licensee-manager/internal/licensees"
	"github.com/MacJediWizard/licensee-manager/internal/lifecycle"
	"github.com/MacJediWizard/licensee-manager/internal/metrics"
	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/offices"
	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/rs/zerolog"
)

// DefaultOperationTimeout bounds every store-backed call.
const DefaultOperationTimeout = 10 * time.Second

// Options configures a Service.
type Options struct {
	Clock            clock.Clock
	OperationTimeout time.Duration
	// SweepTimeout bounds RunExpirationSweep; it defaults to OperationTimeout.
	SweepTimeout time.Duration
	AlertCache   alerts.Cache
	AlertTTL     time.Duration
	// Metrics is optional.
	Metrics *metrics.PrometheusMetrics
}

// Service exposes the lifecycle engine to the surrounding application.
type Service struct {
	store      store.Store
	clock      clock.Clock
	timeout    time.Duration
	sweepLimit time.Duration
	evaluator  *lifecycle.Evaluator
	recorder   *lifecycle.Recorder
	guard      *lifecycle.Guard
	sweep      *lifecycle.Sweep
	offices    *offices.Reassigner
	registry   *licensees.Registry
	alerts     *alerts.Service
	metrics    *metrics.PrometheusMetrics
	logger     zerolog.Logger
}

// NewService wires the lifecycle components on top of s.
func NewService(s store.Store, opts Options, logger zerolog.Logger) *Service {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	timeout := opts.OperationTimeout
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	sweepLimit := opts.SweepTimeout
	if sweepLimit <= 0 {
		sweepLimit = timeout
	}

	evaluator := lifecycle.NewEvaluator(s, logger)
	recorder := lifecycle.NewRecorder(s, logger)
	guard := lifecycle.NewGuard(s, recorder, clk, logger)

	return &Service{
		store:      s,
		clock:      clk,
		timeout:    timeout,
		sweepLimit: sweepLimit,
		evaluator:  evaluator,
		recorder:   recorder,
		guard:      guard,
		sweep:      lifecycle.NewSweep(evaluator, guard, clk, logger),
		offices:    offices.NewReassigner(s, clk, logger),
		registry:   licensees.NewRegistry(s, clk, logger),
		alerts:     alerts.NewService(evaluator, opts.AlertCache, opts.AlertTTL, logger),
		metrics:    opts.Metrics,
		logger:     logger.With().Str("component", "licensing").Logger(),
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Today returns the current calendar date.
func (s *Service) Today() time.Time {
	return clock.Today(s.clock)
}

// Ping checks the store connection.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.Ping(ctx)
}

// EvaluateExpirations classifies licensees without changing anything. A
// non-positive horizon is replaced with the default.
func (s *Service) EvaluateExpirations(ctx context.Context, asOf time.Time, horizonDays int) (lifecycle.Evaluation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	eval, err := s.evaluator.Evaluate(ctx, asOf, lifecycle.NormalizeHorizon(horizonDays))
	if err != nil {
		return lifecycle.Evaluation{}, err
	}
	if s.metrics != nil {
		s.metrics.SetAlertCounts(len(eval.Expired), len(eval.ExpiringSoon))
	}
	return eval, nil
}

// RunExpirationSweep expires every licensee past its expiration date.
func (s *Service) RunExpirationSweep(ctx context.Context, asOf time.Time, horizonDays int) (*lifecycle.SweepReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.sweepLimit)
	defer cancel()

	start := time.Now()
	report, err := s.sweep.Run(ctx, asOf, lifecycle.NormalizeHorizon(horizonDays))

	if report != nil && report.ExpiredCount > 0 {
		s.alerts.Invalidate(context.WithoutCancel(ctx))
	}
	if s.metrics != nil {
		result := "success"
		expired, failures := 0, 0
		if err != nil {
			result = "error"
		}
		if report != nil {
			expired, failures = report.ExpiredCount, len(report.Failures)
		}
		s.metrics.RecordSweep(result, time.Since(start), expired, failures)

		if report != nil && err == nil {
			eval, evalErr := s.evaluator.Evaluate(ctx, asOf, report.HorizonDays)
			if evalErr != nil {
				s.logger.Warn().Err(evalErr).Msg("failed to refresh alert gauges after sweep")
			} else {
				s.metrics.SetAlertCounts(len(eval.Expired), len(eval.ExpiringSoon))
			}
		}
	}
	return report, err
}

// TransitionLicenseeStatus requests a status change. isManual marks a user
// edit; otherwise the caller is treated as the system sweep.
func (s *Service) TransitionLicenseeStatus(ctx context.Context, licenseeID int64, status models.LicenseeStatus, isManual bool) (lifecycle.TransitionResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	caller := lifecycle.CallerSystem
	if isManual {
		caller = lifecycle.CallerManual
	}

	result, err := s.guard.Transition(ctx, licenseeID, status, caller)
	if s.metrics != nil {
		s.metrics.RecordTransition(caller.String(), transitionOutcome(result, err))
	}
	if err != nil {
		return lifecycle.TransitionResult{}, err
	}
	if result.Changed {
		s.alerts.Invalidate(ctx)
	}
	return result, nil
}

func transitionOutcome(result lifecycle.TransitionResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case !result.Accepted:
		return string(result.Reason)
	case result.Changed:
		return "changed"
	default:
		return "noop"
	}
}

// DeactivateOffice deactivates an office, optionally moving its licensees to
// replacementID.
func (s *Service) DeactivateOffice(ctx context.Context, officeID int64, replacementID *int64) (offices.DeactivationResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.offices.Deactivate(ctx, officeID, replacementID)
	if s.metrics != nil {
		outcome := "deactivated"
		switch {
		case err != nil:
			outcome = "error"
		case !result.Deactivated:
			outcome = string(result.Reason)
		}
		s.metrics.RecordDeactivation(outcome, result.Reassigned)
	}
	return result, err
}

// ActivateOffice marks an office active again.
func (s *Service) ActivateOffice(ctx context.Context, officeID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.offices.Activate(ctx, officeID)
}

// OfficeLicensees lists the licensees assigned to an office.
func (s *Service) OfficeLicensees(ctx context.Context, officeID int64) ([]*models.Licensee, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.offices.Licensees(ctx, officeID)
}

// ReplacementCandidates lists offices that can receive officeID's licensees.
func (s *Service) ReplacementCandidates(ctx context.Context, officeID int64) ([]*models.Office, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.offices.ReplacementCandidates(ctx, officeID)
}

// GetAuditTrail returns a licensee's status history, oldest first.
func (s *Service) GetAuditTrail(ctx context.Context, licenseeID int64) ([]*models.StatusAudit, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.recorder.Trail(ctx, licenseeID)
}

// DashboardAlerts returns the cached expired and expiring-soon counts.
func (s *Service) DashboardAlerts(ctx context.Context, asOf time.Time, horizonDays int) (alerts.Summary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.alerts.Summary(ctx, asOf, lifecycle.NormalizeHorizon(horizonDays))
}

// CreateLicensee adds a licensee.
func (s *Service) CreateLicensee(ctx context.Context, in licensees.NewLicensee) (*models.Licensee, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	l, err := s.registry.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.alerts.Invalidate(ctx)
	return l, nil
}

// UpdateLicenseeDetails edits a licensee's non-status fields.
func (s *Service) UpdateLicenseeDetails(ctx context.Context, id, version int64, d licensees.Details) (*models.Licensee, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	l, err := s.registry.UpdateDetails(ctx, id, version, d)
	if err != nil {
		return nil, err
	}
	s.alerts.Invalidate(ctx)
	return l, nil
}

// CreateLicenseType adds a license type.
func (s *Service) CreateLicenseType(ctx context.Context, name string) (*models.LicenseType, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.registry.CreateLicenseType(ctx, name)
}

// CreateOffice adds an office.
func (s *Service) CreateOffice(ctx context.Context, name, city, state string) (*models.Office, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.registry.CreateOffice(ctx, name, city, state)
}

// StartScheduler starts the cron-driven sweep and returns the scheduler so
// the caller can stop it.
func (s *Service) StartScheduler(cfg lifecycle.SchedulerConfig) (*lifecycle.Scheduler, error) {
	sched := lifecycle.NewScheduler(s, cfg, s.clock, s.logger)
	if err := sched.Start(); err != nil {
		return nil, fmt.Errorf("start sweep scheduler: %w", err)
	}
	return sched, nil
}
