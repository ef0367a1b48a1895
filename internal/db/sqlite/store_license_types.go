package sqlite

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/licensee-manager/internal/models"
)

func getLicenseType(ctx context.Context, q querier, id int64) (*models.LicenseType, error) {
	var lt models.LicenseType
	err := q.QueryRowContext(ctx, `SELECT id, name FROM license_types WHERE id = ?`, id).Scan(&lt.ID, &lt.Name)
	if err != nil {
		return nil, notFound(err, "license type", id)
	}
	return &lt, nil
}

// GetLicenseType returns a license type by ID.
func (s *Store) GetLicenseType(ctx context.Context, id int64) (*models.LicenseType, error) {
	return getLicenseType(ctx, s.db, id)
}

// ListLicenseTypes returns all license types ordered by name.
func (s *Store) ListLicenseTypes(ctx context.Context) ([]*models.LicenseType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM license_types ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list license types: %w", err)
	}
	defer rows.Close()

	var types []*models.LicenseType
	for rows.Next() {
		var lt models.LicenseType
		if err := rows.Scan(&lt.ID, &lt.Name); err != nil {
			return nil, fmt.Errorf("scan license type: %w", err)
		}
		types = append(types, &lt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate license types: %w", err)
	}
	return types, nil
}

func (t *txStore) GetLicenseType(ctx context.Context, id int64) (*models.LicenseType, error) {
	return getLicenseType(ctx, t.q, id)
}

func (t *txStore) CreateLicenseType(ctx context.Context, lt *models.LicenseType) error {
	res, err := t.q.ExecContext(ctx, `INSERT INTO license_types (name) VALUES (?)`, lt.Name)
	if err != nil {
		return fmt.Errorf("create license type: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read license type id: %w", err)
	}
	lt.ID = id
	return nil
}
