package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/clock"
	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SweepFailure records one licensee the sweep could not expire.
type SweepFailure struct {
	LicenseeID int64     `json:"licensee_id"`
	Reason     Rejection `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	RunID       uuid.UUID `json:"run_id"`
	AsOf        time.Time `json:"as_of"`
	HorizonDays int       `json:"horizon_days"`
	// ExpiredCount counts licensees this run actually moved to expired.
	ExpiredCount      int            `json:"expired_count"`
	ExpiringSoonCount int            `json:"expiring_soon_count"`
	Failures          []SweepFailure `json:"failures,omitempty"`
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
}

// Duration returns how long the run took.
func (r *SweepReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Sweep expires every licensee whose expiration date has passed. Running it
// again for the same date changes nothing.
type Sweep struct {
	evaluator *Evaluator
	guard     *Guard
	clock     clock.Clock
	logger    zerolog.Logger
}

// NewSweep creates a new Sweep.
func NewSweep(evaluator *Evaluator, guard *Guard, clk clock.Clock, logger zerolog.Logger) *Sweep {
	return &Sweep{
		evaluator: evaluator,
		guard:     guard,
		clock:     clk,
		logger:    logger.With().Str("component", "expiration_sweep").Logger(),
	}
}

// Run evaluates licensees as of asOf and expires each expired candidate.
// A failure on one licensee is recorded in the report and the run moves on.
// If ctx ends mid-run the partial report is returned with the context error.
func (s *Sweep) Run(ctx context.Context, asOf time.Time, horizonDays int) (*SweepReport, error) {
	report := &SweepReport{
		RunID:       uuid.New(),
		HorizonDays: horizonDays,
		StartedAt:   s.clock.Now().UTC(),
	}
	logger := s.logger.With().Str("run_id", report.RunID.String()).Logger()

	eval, err := s.evaluator.Evaluate(ctx, asOf, horizonDays)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	report.AsOf = eval.AsOf
	report.ExpiringSoonCount = len(eval.ExpiringSoon)

	logger.Info().
		Time("as_of", eval.AsOf).
		Int("candidates", len(eval.Expired)).
		Msg("starting expiration sweep")

	for _, id := range eval.Expired {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = s.clock.Now().UTC()
			logger.Warn().Err(err).Int("expired", report.ExpiredCount).Msg("expiration sweep interrupted")
			return report, fmt.Errorf("sweep interrupted: %w", err)
		}

		result, err := s.guard.Transition(ctx, id, models.LicenseeStatusExpired, CallerSystem)
		switch {
		case err != nil:
			report.Failures = append(report.Failures, SweepFailure{LicenseeID: id, Error: err.Error()})
			logger.Error().Err(err).Int64("licensee_id", id).Msg("failed to expire licensee")
		case !result.Accepted:
			report.Failures = append(report.Failures, SweepFailure{LicenseeID: id, Reason: result.Reason})
			logger.Warn().Int64("licensee_id", id).Str("reason", string(result.Reason)).Msg("licensee not expired")
		case result.Changed:
			report.ExpiredCount++
		}
	}

	report.FinishedAt = s.clock.Now().UTC()
	logger.Info().
		Int("expired", report.ExpiredCount).
		Int("expiring_soon", report.ExpiringSoonCount).
		Int("failures", len(report.Failures)).
		Dur("duration", report.Duration()).
		Msg("expiration sweep completed")

	return report, nil
}
