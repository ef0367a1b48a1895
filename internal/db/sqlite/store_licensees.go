package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/store"
)

const licenseeColumns = `id, first_name, last_name, email, license_number, license_type_id,
	office_id, status, issue_date, expiration_date, created_at, updated_at, version`

func scanLicensee(row rowScanner) (*models.Licensee, error) {
	var l models.Licensee
	var statusCode int
	var issueDate, expirationDate, updatedAt sql.NullString
	var createdAt string
	err := row.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.LicenseNumber, &l.LicenseTypeID,
		&l.OfficeID, &statusCode, &issueDate, &expirationDate, &createdAt, &updatedAt, &l.Version)
	if err != nil {
		return nil, err
	}

	if l.Status, err = models.LicenseeStatusFromCode(statusCode); err != nil {
		return nil, err
	}
	if l.IssueDate, err = parseDate(issueDate); err != nil {
		return nil, err
	}
	if l.ExpirationDate, err = parseDate(expirationDate); err != nil {
		return nil, err
	}
	if l.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseNullTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func getLicensee(ctx context.Context, q querier, id int64) (*models.Licensee, error) {
	l, err := scanLicensee(q.QueryRowContext(ctx, `SELECT `+licenseeColumns+` FROM licensees WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "licensee", id)
	}
	return l, nil
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, store.ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", what, id, err)
}

func conditionalMiss(ctx context.Context, q querier, table string, id int64) error {
	var exists bool
	err := q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM "+table+" WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s %d exists: %w", table, id, err)
	}
	if !exists {
		return fmt.Errorf("%s %d: %w", table, id, store.ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", table, id, store.ErrConflict)
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetLicensee returns a licensee by ID.
func (s *Store) GetLicensee(ctx context.Context, id int64) (*models.Licensee, error) {
	return getLicensee(ctx, s.db, id)
}

// ListExpiredCandidateIDs returns licensees past expiration that are not yet expired.
func (s *Store) ListExpiredCandidateIDs(ctx context.Context, asOf time.Time) ([]int64, error) {
	ids, err := s.queryIDs(ctx, `
		SELECT id FROM licensees
		WHERE expiration_date IS NOT NULL AND expiration_date < ? AND status <> ?
		ORDER BY id
	`, asOf.Format(dateFormat), models.LicenseeStatusExpired.Code())
	if err != nil {
		return nil, fmt.Errorf("list expired licensees: %w", err)
	}
	return ids, nil
}

// ListExpiringSoonIDs returns active licensees expiring within [from, to].
func (s *Store) ListExpiringSoonIDs(ctx context.Context, from, to time.Time) ([]int64, error) {
	ids, err := s.queryIDs(ctx, `
		SELECT id FROM licensees
		WHERE expiration_date BETWEEN ? AND ? AND status = ?
		ORDER BY id
	`, from.Format(dateFormat), to.Format(dateFormat), models.LicenseeStatusActive.Code())
	if err != nil {
		return nil, fmt.Errorf("list expiring licensees: %w", err)
	}
	return ids, nil
}

// ListLicenseesByOffice returns all licensees assigned to an office.
func (s *Store) ListLicenseesByOffice(ctx context.Context, officeID int64) ([]*models.Licensee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+licenseeColumns+` FROM licensees WHERE office_id = ? ORDER BY id`, officeID)
	if err != nil {
		return nil, fmt.Errorf("list licensees by office: %w", err)
	}
	defer rows.Close()

	var licensees []*models.Licensee
	for rows.Next() {
		l, err := scanLicensee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan licensee: %w", err)
		}
		licensees = append(licensees, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate licensees: %w", err)
	}
	return licensees, nil
}

func (t *txStore) GetLicensee(ctx context.Context, id int64) (*models.Licensee, error) {
	return getLicensee(ctx, t.q, id)
}

func (t *txStore) CreateLicensee(ctx context.Context, l *models.Licensee) error {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO licensees (first_name, last_name, email, license_number, license_type_id,
		                       office_id, status, issue_date, expiration_date, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`, l.FirstName, l.LastName, l.Email, l.LicenseNumber, l.LicenseTypeID,
		l.OfficeID, l.Status.Code(), formatDate(l.IssueDate), formatDate(l.ExpirationDate),
		formatTimestamp(l.CreatedAt), formatNullTimestamp(l.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create licensee: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read licensee id: %w", err)
	}
	l.ID = id
	l.Version = 1
	return nil
}

func (t *txStore) UpdateLicenseeDetails(ctx context.Context, l *models.Licensee) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE licensees
		SET first_name = ?, last_name = ?, email = ?, license_number = ?,
		    license_type_id = ?, office_id = ?, issue_date = ?, expiration_date = ?,
		    updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, l.FirstName, l.LastName, l.Email, l.LicenseNumber,
		l.LicenseTypeID, l.OfficeID, formatDate(l.IssueDate), formatDate(l.ExpirationDate),
		formatNullTimestamp(l.UpdatedAt), l.ID, l.Version)
	if err != nil {
		return fmt.Errorf("update licensee: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update licensee: %w", err)
	} else if n == 0 {
		return conditionalMiss(ctx, t.q, "licensees", l.ID)
	}
	l.Version++
	return nil
}

func (t *txStore) UpdateLicenseeStatus(ctx context.Context, id, expectedVersion int64, status models.LicenseeStatus, updatedAt *time.Time) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE licensees
		SET status = ?, updated_at = COALESCE(?, updated_at), version = version + 1
		WHERE id = ? AND version = ?
	`, status.Code(), formatNullTimestamp(updatedAt), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update licensee status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update licensee status: %w", err)
	} else if n == 0 {
		return conditionalMiss(ctx, t.q, "licensees", id)
	}
	return nil
}

func (t *txStore) ReassignLicensees(ctx context.Context, fromOfficeID, toOfficeID int64, at time.Time) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		UPDATE licensees
		SET office_id = ?, updated_at = ?, version = version + 1
		WHERE office_id = ?
	`, toOfficeID, formatTimestamp(at), fromOfficeID)
	if err != nil {
		return 0, fmt.Errorf("reassign licensees: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign licensees: %w", err)
	}
	return n, nil
}

func (t *txStore) CountLicenseesByOffice(ctx context.Context, officeID int64) (int64, error) {
	var n int64
	err := t.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM licensees WHERE office_id = ?`, officeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count licensees for office %d: %w", officeID, err)
	}
	return n, nil
}
