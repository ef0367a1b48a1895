package db

import (
	"context"
	"fmt"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/jackc/pgx/v5"
)

const licenseeColumns = `id, first_name, last_name, email, license_number, license_type_id,
	office_id, status, issue_date, expiration_date, created_at, updated_at, version`

func scanLicensee(row pgx.Row) (*models.Licensee, error) {
	var l models.Licensee
	var statusCode int
	err := row.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.LicenseNumber, &l.LicenseTypeID,
		&l.OfficeID, &statusCode, &l.IssueDate, &l.ExpirationDate, &l.CreatedAt, &l.UpdatedAt, &l.Version)
	if err != nil {
		return nil, err
	}
	status, err := models.LicenseeStatusFromCode(statusCode)
	if err != nil {
		return nil, err
	}
	l.Status = status
	return &l, nil
}

func getLicensee(ctx context.Context, q querier, id int64) (*models.Licensee, error) {
	l, err := scanLicensee(q.QueryRow(ctx, `SELECT `+licenseeColumns+` FROM licensees WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "licensee", id)
	}
	return l, nil
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.Query(ctx, query, args...)
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

func countLicenseesByOffice(ctx context.Context, q querier, officeID int64) (int64, error) {
	var n int64
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM licensees WHERE office_id = $1`, officeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count licensees for office %d: %w", officeID, err)
	}
	return n, nil
}

// GetLicensee returns a licensee by ID.
func (db *DB) GetLicensee(ctx context.Context, id int64) (*models.Licensee, error) {
	return getLicensee(ctx, db.Pool, id)
}

// ListExpiredCandidateIDs returns licensees past expiration that are not yet expired.
func (db *DB) ListExpiredCandidateIDs(ctx context.Context, asOf time.Time) ([]int64, error) {
	ids, err := queryIDs(ctx, db.Pool, `
		SELECT id FROM licensees
		WHERE expiration_date < $1 AND status <> $2
		ORDER BY id
	`, asOf, models.LicenseeStatusExpired.Code())
	if err != nil {
		return nil, fmt.Errorf("list expired licensees: %w", err)
	}
	return ids, nil
}

// ListExpiringSoonIDs returns active licensees expiring within [from, to].
func (db *DB) ListExpiringSoonIDs(ctx context.Context, from, to time.Time) ([]int64, error) {
	ids, err := queryIDs(ctx, db.Pool, `
		SELECT id FROM licensees
		WHERE expiration_date BETWEEN $1 AND $2 AND status = $3
		ORDER BY id
	`, from, to, models.LicenseeStatusActive.Code())
	if err != nil {
		return nil, fmt.Errorf("list expiring licensees: %w", err)
	}
	return ids, nil
}

// ListLicenseesByOffice returns all licensees assigned to an office.
func (db *DB) ListLicenseesByOffice(ctx context.Context, officeID int64) ([]*models.Licensee, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+licenseeColumns+` FROM licensees WHERE office_id = $1 ORDER BY id`, officeID)
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
	err := t.q.QueryRow(ctx, `
		INSERT INTO licensees (first_name, last_name, email, license_number, license_type_id,
		                       office_id, status, issue_date, expiration_date, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		RETURNING id, version
	`, l.FirstName, l.LastName, l.Email, l.LicenseNumber, l.LicenseTypeID,
		l.OfficeID, l.Status.Code(), l.IssueDate, l.ExpirationDate, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID, &l.Version)
	if err != nil {
		return fmt.Errorf("create licensee: %w", err)
	}
	return nil
}

func (t *txStore) UpdateLicenseeDetails(ctx context.Context, l *models.Licensee) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE licensees
		SET first_name = $3, last_name = $4, email = $5, license_number = $6,
		    license_type_id = $7, office_id = $8, issue_date = $9, expiration_date = $10,
		    updated_at = $11, version = version + 1
		WHERE id = $1 AND version = $2
	`, l.ID, l.Version, l.FirstName, l.LastName, l.Email, l.LicenseNumber,
		l.LicenseTypeID, l.OfficeID, l.IssueDate, l.ExpirationDate, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update licensee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conditionalMiss(ctx, t.q, "licensees", l.ID)
	}
	l.Version++
	return nil
}

func (t *txStore) UpdateLicenseeStatus(ctx context.Context, id, expectedVersion int64, status models.LicenseeStatus, updatedAt *time.Time) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE licensees
		SET status = $3, updated_at = COALESCE($4, updated_at), version = version + 1
		WHERE id = $1 AND version = $2
	`, id, expectedVersion, status.Code(), updatedAt)
	if err != nil {
		return fmt.Errorf("update licensee status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conditionalMiss(ctx, t.q, "licensees", id)
	}
	return nil
}

func (t *txStore) ReassignLicensees(ctx context.Context, fromOfficeID, toOfficeID int64, at time.Time) (int64, error) {
	tag, err := t.q.Exec(ctx, `
		UPDATE licensees
		SET office_id = $2, updated_at = $3, version = version + 1
		WHERE office_id = $1
	`, fromOfficeID, toOfficeID, at)
	if err != nil {
		return 0, fmt.Errorf("reassign licensees: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txStore) CountLicenseesByOffice(ctx context.Context, officeID int64) (int64, error) {
	return countLicenseesByOffice(ctx, t.q, officeID)
}
