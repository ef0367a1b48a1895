// Package offices manages office activation and the deactivation of an
// office together with the reassignment of its licensees.
package offices

import (
	"context"
	"errors"
	"fmt"

	"github.com/MacJediWizard/licensee-manager/internal/clock"
	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/rs/zerolog"
)

// Rejection is the reason a deactivation was refused.
type Rejection string

const (
	// RejectionNotFound means the office being deactivated does not exist.
	RejectionNotFound Rejection = "not_found"
	// RejectionReplacementIsSameOffice means the replacement equals the office.
	RejectionReplacementIsSameOffice Rejection = "replacement_is_same_office"
	// RejectionReplacementNotActive means the replacement is inactive or missing.
	RejectionReplacementNotActive Rejection = "replacement_not_active"
)

// DeactivationResult is the outcome of Deactivate.
type DeactivationResult struct {
	OfficeID      int64     `json:"office_id"`
	ReplacementID *int64    `json:"replacement_id,omitempty"`
	Deactivated   bool      `json:"deactivated"`
	Reason        Rejection `json:"reason,omitempty"`
	// Reassigned is the number of licensees moved to the replacement.
	Reassigned int64 `json:"reassigned"`
	// Orphaned is the number of licensees left on the now-inactive office.
	Orphaned int64 `json:"orphaned"`
}

// Reassigner deactivates offices and moves their licensees.
type Reassigner struct {
	store  store.Store
	clock  clock.Clock
	logger zerolog.Logger
}

// NewReassigner creates a new Reassigner.
func NewReassigner(s store.Store, clk clock.Clock, logger zerolog.Logger) *Reassigner {
	return &Reassigner{
		store:  s,
		clock:  clk,
		logger: logger.With().Str("component", "office_reassigner").Logger(),
	}
}

// Deactivate marks an office inactive. When replacementID is given every
// licensee of the office is moved to it first; both steps commit together
// or not at all. Without a replacement the licensees stay where they are.
func (r *Reassigner) Deactivate(ctx context.Context, officeID int64, replacementID *int64) (DeactivationResult, error) {
	result := DeactivationResult{OfficeID: officeID, ReplacementID: replacementID}
	if replacementID != nil && *replacementID == officeID {
		result.Reason = RejectionReplacementIsSameOffice
		return result, nil
	}

	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		office, replacement, reason, err := lockOffices(ctx, tx, officeID, replacementID)
		if err != nil {
			return err
		}
		if reason != "" {
			result.Reason = reason
			return nil
		}

		if replacement != nil {
			moved, err := tx.ReassignLicensees(ctx, office.ID, replacement.ID, r.clock.Now().UTC())
			if err != nil {
				return err
			}
			result.Reassigned = moved
		}

		if office.Active {
			if err := tx.SetOfficeActive(ctx, office.ID, false); err != nil {
				return err
			}
		}

		if replacement == nil {
			remaining, err := tx.CountLicenseesByOffice(ctx, office.ID)
			if err != nil {
				return err
			}
			result.Orphaned = remaining
		}

		result.Deactivated = true
		return nil
	})
	if err != nil {
		return DeactivationResult{}, fmt.Errorf("deactivate office %d: %w", officeID, err)
	}

	if !result.Deactivated {
		r.logger.Info().
			Int64("office_id", officeID).
			Str("reason", string(result.Reason)).
			Msg("office deactivation rejected")
		return result, nil
	}

	event := r.logger.Info().
		Int64("office_id", officeID).
		Int64("reassigned", result.Reassigned)
	if replacementID != nil {
		event = event.Int64("replacement_id", *replacementID)
	}
	event.Msg("office deactivated")

	if result.Orphaned > 0 {
		r.logger.Warn().
			Int64("office_id", officeID).
			Int64("licensees", result.Orphaned).
			Msg("licensees left assigned to inactive office")
	}

	return result, nil
}

// lockOffices reads the office and the optional replacement in ascending id
// order so that concurrent deactivations cannot deadlock.
func lockOffices(ctx context.Context, tx store.Tx, officeID int64, replacementID *int64) (office, replacement *models.Office, reason Rejection, err error) {
	ids := []int64{officeID}
	if replacementID != nil {
		ids = append(ids, *replacementID)
		if ids[1] < ids[0] {
			ids[0], ids[1] = ids[1], ids[0]
		}
	}

	found := make(map[int64]*models.Office, len(ids))
	for _, id := range ids {
		o, err := tx.GetOfficeForUpdate(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, "", err
		}
		found[id] = o
	}

	office = found[officeID]
	if office == nil {
		return nil, nil, RejectionNotFound, nil
	}
	if replacementID != nil {
		replacement = found[*replacementID]
		if replacement == nil || !replacement.Active {
			return nil, nil, RejectionReplacementNotActive, nil
		}
	}
	return office, replacement, "", nil
}

// Activate marks an office active again. It returns store.ErrNotFound for an
// unknown office.
func (r *Reassigner) Activate(ctx context.Context, officeID int64) error {
	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		office, err := tx.GetOfficeForUpdate(ctx, officeID)
		if err != nil {
			return err
		}
		if office.Active {
			return nil
		}
		return tx.SetOfficeActive(ctx, officeID, true)
	})
	if err != nil {
		return fmt.Errorf("activate office %d: %w", officeID, err)
	}

	r.logger.Info().Int64("office_id", officeID).Msg("office activated")
	return nil
}

// Licensees lists the licensees assigned to an office. After a deactivation
// without replacement these are the licensees left on the inactive office.
func (r *Reassigner) Licensees(ctx context.Context, officeID int64) ([]*models.Licensee, error) {
	if _, err := r.store.GetOffice(ctx, officeID); err != nil {
		return nil, err
	}

	roster, err := r.store.ListLicenseesByOffice(ctx, officeID)
	if err != nil {
		return nil, fmt.Errorf("list licensees of office %d: %w", officeID, err)
	}
	return roster, nil
}

// ReplacementCandidates lists the active offices other than officeID that
// can receive its licensees.
func (r *Reassigner) ReplacementCandidates(ctx context.Context, officeID int64) ([]*models.Office, error) {
	if _, err := r.store.GetOffice(ctx, officeID); err != nil {
		return nil, err
	}

	active, err := r.store.ListActiveOffices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list replacement offices: %w", err)
	}

	candidates := make([]*models.Office, 0, len(active))
	for _, o := range active {
		if o.ID != officeID {
			candidates = append(candidates, o)
		}
	}
	return candidates, nil
}
