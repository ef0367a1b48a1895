package db

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/licensee-manager/internal/models"
)

func getLicenseType(ctx context.Context, q querier, id int64) (*models.LicenseType, error) {
	var lt models.LicenseType
	err := q.QueryRow(ctx, `SELECT id, name FROM license_types WHERE id = $1`, id).Scan(&lt.ID, &lt.Name)
	if err != nil {
		return nil, notFound(err, "license type", id)
	}
	return &lt, nil
}

// GetLicenseType returns a license type by ID.
func (db *DB) GetLicenseType(ctx context.Context, id int64) (*models.LicenseType, error) {
	return getLicenseType(ctx, db.Pool, id)
}

// ListLicenseTypes returns all license types ordered by name.
func (db *DB) ListLicenseTypes(ctx context.Context) ([]*models.LicenseType, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, name FROM license_types ORDER BY name, id`)
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
	err := t.q.QueryRow(ctx, `INSERT INTO license_types (name) VALUES ($1) RETURNING id`, lt.Name).Scan(&lt.ID)
	if err != nil {
		return fmt.Errorf("create license type: %w", err)
	}
	return nil
}
