package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/clock"
	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/rs/zerolog"
)

// Evaluation classifies licensees relative to an as-of date.
type Evaluation struct {
	AsOf        time.Time `json:"as_of"`
	HorizonDays int       `json:"horizon_days"`
	// Expired holds licensees past their expiration date that are not yet
	// marked expired.
	Expired []int64 `json:"expired"`
	// ExpiringSoon holds active licensees expiring within the horizon.
	ExpiringSoon []int64 `json:"expiring_soon"`
}

// Evaluator finds expired and soon-to-expire licensees. It never writes.
type Evaluator struct {
	store  store.Reader
	logger zerolog.Logger
}

// NewEvaluator creates a new Evaluator.
func NewEvaluator(r store.Reader, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		store:  r,
		logger: logger.With().Str("component", "expiration_evaluator").Logger(),
	}
}

// Evaluate classifies licensees as of the calendar date of asOf. The horizon
// must be positive; callers apply NormalizeHorizon for defaults.
func (e *Evaluator) Evaluate(ctx context.Context, asOf time.Time, horizonDays int) (Evaluation, error) {
	if horizonDays <= 0 {
		return Evaluation{}, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizonDays)
	}

	day := clock.DateOf(asOf)
	result := Evaluation{AsOf: day, HorizonDays: horizonDays}

	expired, err := e.store.ListExpiredCandidateIDs(ctx, day)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate expired: %w", err)
	}
	soon, err := e.store.ListExpiringSoonIDs(ctx, day, day.AddDate(0, 0, horizonDays))
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate expiring soon: %w", err)
	}

	slices.Sort(expired)
	slices.Sort(soon)
	result.Expired = expired
	result.ExpiringSoon = soon

	e.logger.Debug().
		Time("as_of", day).
		Int("horizon_days", horizonDays).
		Int("expired", len(expired)).
		Int("expiring_soon", len(soon)).
		Msg("expiration evaluation complete")

	return result, nil
}
