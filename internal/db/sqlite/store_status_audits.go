package sqlite

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/licensee-manager/internal/models"
)

// ListStatusAudits returns the status history of a licensee, oldest first.
func (s *Store) ListStatusAudits(ctx context.Context, licenseeID int64) ([]*models.StatusAudit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, licensee_id, old_status, new_status, changed_at, source
		FROM licensee_status_audits
		WHERE licensee_id = ?
		ORDER BY changed_at ASC, id ASC
	`, licenseeID)
	if err != nil {
		return nil, fmt.Errorf("list status audits: %w", err)
	}
	defer rows.Close()

	var audits []*models.StatusAudit
	for rows.Next() {
		var a models.StatusAudit
		var oldCode, newCode int
		var changedAt, source string
		if err := rows.Scan(&a.ID, &a.LicenseeID, &oldCode, &newCode, &changedAt, &source); err != nil {
			return nil, fmt.Errorf("scan status audit: %w", err)
		}
		if a.OldStatus, err = models.LicenseeStatusFromCode(oldCode); err != nil {
			return nil, err
		}
		if a.NewStatus, err = models.LicenseeStatusFromCode(newCode); err != nil {
			return nil, err
		}
		if a.ChangedAt, err = parseTimestamp(changedAt); err != nil {
			return nil, err
		}
		a.Source = models.AuditSource(source)
		audits = append(audits, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status audits: %w", err)
	}
	return audits, nil
}

func (t *txStore) CreateStatusAudit(ctx context.Context, a *models.StatusAudit) error {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO licensee_status_audits (licensee_id, old_status, new_status, changed_at, source)
		VALUES (?, ?, ?, ?, ?)
	`, a.LicenseeID, a.OldStatus.Code(), a.NewStatus.Code(), formatTimestamp(a.ChangedAt), string(a.Source))
	if err != nil {
		return fmt.Errorf("create status audit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read status audit id: %w", err)
	}
	a.ID = id
	return nil
}
