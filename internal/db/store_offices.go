package db

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/store"
)

// GetOffice returns an office by ID.
func (db *DB) GetOffice(ctx context.Context, id int64) (*models.Office, error) {
	var o models.Office
	err := db.Pool.QueryRow(ctx, `
		SELECT id, name, city, state, active
		FROM offices
		WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.City, &o.State, &o.Active)
	if err != nil {
		return nil, notFound(err, "office", id)
	}
	return &o, nil
}

// ListActiveOffices returns all active offices ordered by name.
func (db *DB) ListActiveOffices(ctx context.Context) ([]*models.Office, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, name, city, state, active
		FROM offices
		WHERE active
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list active offices: %w", err)
	}
	defer rows.Close()

	var offices []*models.Office
	for rows.Next() {
		var o models.Office
		if err := rows.Scan(&o.ID, &o.Name, &o.City, &o.State, &o.Active); err != nil {
			return nil, fmt.Errorf("scan office: %w", err)
		}
		offices = append(offices, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offices: %w", err)
	}
	return offices, nil
}

func (t *txStore) GetOfficeForUpdate(ctx context.Context, id int64) (*models.Office, error) {
	var o models.Office
	err := t.q.QueryRow(ctx, `
		SELECT id, name, city, state, active
		FROM offices
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&o.ID, &o.Name, &o.City, &o.State, &o.Active)
	if err != nil {
		return nil, notFound(err, "office", id)
	}
	return &o, nil
}

func (t *txStore) CreateOffice(ctx context.Context, o *models.Office) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO offices (name, city, state, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, o.Name, o.City, o.State, o.Active).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("create office: %w", err)
	}
	return nil
}

func (t *txStore) SetOfficeActive(ctx context.Context, id int64, active bool) error {
	tag, err := t.q.Exec(ctx, `UPDATE offices SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set office active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("office %d: %w", id, store.ErrNotFound)
	}
	return nil
}
