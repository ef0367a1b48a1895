package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/rs/zerolog"
)

// Recorder appends status audit rows and reads the audit trail.
type Recorder struct {
	store  store.Reader
	logger zerolog.Logger
}

// NewRecorder creates a new Recorder.
func NewRecorder(r store.Reader, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  r,
		logger: logger.With().Str("component", "audit_recorder").Logger(),
	}
}

// Append records a status change inside tx. It must be called in the same
// transaction as the status update it describes.
func (r *Recorder) Append(ctx context.Context, tx store.Tx, licenseeID int64, oldStatus, newStatus models.LicenseeStatus, at time.Time, source models.AuditSource) (*models.StatusAudit, error) {
	if !oldStatus.IsValid() || !newStatus.IsValid() {
		return nil, fmt.Errorf("append audit: invalid status %q -> %q", oldStatus, newStatus)
	}
	if oldStatus == newStatus {
		return nil, fmt.Errorf("append audit: status unchanged (%s)", oldStatus)
	}

	audit := models.NewStatusAudit(licenseeID, oldStatus, newStatus, at, source)
	if err := tx.CreateStatusAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("append audit: %w", err)
	}

	r.logger.Info().
		Int64("licensee_id", licenseeID).
		Str("old_status", string(oldStatus)).
		Str("new_status", string(newStatus)).
		Str("source", string(source)).
		Msg("status change recorded")

	return audit, nil
}

// Trail returns every status change of a licensee, oldest first.
func (r *Recorder) Trail(ctx context.Context, licenseeID int64) ([]*models.StatusAudit, error) {
	if _, err := r.store.GetLicensee(ctx, licenseeID); err != nil {
		return nil, err
	}
	audits, err := r.store.ListStatusAudits(ctx, licenseeID)
	if err != nil {
		return nil, fmt.Errorf("get audit trail: %w", err)
	}
	if audits == nil {
		audits = []*models.StatusAudit{}
	}
	return audits, nil
}
