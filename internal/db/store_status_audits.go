package db

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/licensee-manager/internal/models"
)

// ListStatusAudits returns the status history of a licensee, oldest first.
func (db *DB) ListStatusAudits(ctx context.Context, licenseeID int64) ([]*models.StatusAudit, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, licensee_id, old_status, new_status, changed_at, source
		FROM licensee_status_audits
		WHERE licensee_id = $1
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
		var source string
		if err := rows.Scan(&a.ID, &a.LicenseeID, &oldCode, &newCode, &a.ChangedAt, &source); err != nil {
			return nil, fmt.Errorf("scan status audit: %w", err)
		}
		if a.OldStatus, err = models.LicenseeStatusFromCode(oldCode); err != nil {
			return nil, err
		}
		if a.NewStatus, err = models.LicenseeStatusFromCode(newCode); err != nil {
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
	err := t.q.QueryRow(ctx, `
		INSERT INTO licensee_status_audits (licensee_id, old_status, new_status, changed_at, source)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, a.LicenseeID, a.OldStatus.Code(), a.NewStatus.Code(), a.ChangedAt, string(a.Source)).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("create status audit: %w", err)
	}
	return nil
}
