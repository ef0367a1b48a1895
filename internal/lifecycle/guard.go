package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/clock"
	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/rs/zerolog"
)

// Guard is the only path by which a licensee's status changes.
type Guard struct {
	store    store.Store
	recorder *Recorder
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewGuard creates a new Guard.
func NewGuard(s store.Store, recorder *Recorder, clk clock.Clock, logger zerolog.Logger) *Guard {
	return &Guard{
		store:    s,
		recorder: recorder,
		clock:    clk,
		logger:   logger.With().Str("component", "status_guard").Logger(),
	}
}

// Transition moves a licensee to the requested status on behalf of caller.
// Disallowed moves and unknown licensees come back as a rejected result. An
// accepted change writes the status and its audit row in one transaction.
// A concurrent write to the same licensee yields store.ErrConflict.
func (g *Guard) Transition(ctx context.Context, licenseeID int64, requested models.LicenseeStatus, caller Caller) (TransitionResult, error) {
	if requested == models.LicenseeStatusExpired && caller == CallerManual {
		g.logger.Warn().Int64("licensee_id", licenseeID).Msg("manual expiration rejected")
		return rejected(licenseeID, RejectionManualExpirationForbidden), nil
	}
	if !requested.IsValid() {
		return rejected(licenseeID, RejectionInvalidTransition), nil
	}

	var result TransitionResult
	err := g.store.WithTx(ctx, func(tx store.Tx) error {
		l, err := tx.GetLicensee(ctx, licenseeID)
		if errors.Is(err, store.ErrNotFound) {
			result = rejected(licenseeID, RejectionNotFound)
			return nil
		}
		if err != nil {
			return err
		}

		if l.Status == requested {
			result = TransitionResult{
				LicenseeID: licenseeID,
				Accepted:   true,
				OldStatus:  l.Status,
				NewStatus:  requested,
			}
			return nil
		}

		if !transitionAllowed(l.Status, requested, caller) {
			result = rejected(licenseeID, RejectionInvalidTransition)
			result.OldStatus = l.Status
			return nil
		}

		at := g.clock.Now().UTC()
		var updatedAt *time.Time
		if caller == CallerManual {
			updatedAt = &at
		}

		if err := tx.UpdateLicenseeStatus(ctx, licenseeID, l.Version, requested, updatedAt); err != nil {
			return err
		}
		audit, err := g.recorder.Append(ctx, tx, licenseeID, l.Status, requested, at, caller.Source())
		if err != nil {
			return err
		}

		result = TransitionResult{
			LicenseeID: licenseeID,
			Accepted:   true,
			OldStatus:  l.Status,
			NewStatus:  requested,
			Changed:    true,
			Audit:      audit,
		}
		return nil
	})
	if err != nil {
		return TransitionResult{}, fmt.Errorf("transition licensee %d: %w", licenseeID, err)
	}

	if !result.Accepted {
		g.logger.Debug().
			Int64("licensee_id", licenseeID).
			Str("requested", string(requested)).
			Str("caller", caller.String()).
			Str("reason", string(result.Reason)).
			Msg("transition rejected")
	}
	return result, nil
}
