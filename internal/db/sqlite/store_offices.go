package sqlite

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/store"
)

func getOffice(ctx context.Context, q querier, id int64) (*models.Office, error) {
	var o models.Office
	err := q.QueryRowContext(ctx, `
		SELECT id, name, city, state, active
		FROM offices
		WHERE id = ?
	`, id).Scan(&o.ID, &o.Name, &o.City, &o.State, &o.Active)
	if err != nil {
		return nil, notFound(err, "office", id)
	}
	return &o, nil
}

// GetOffice returns an office by ID.
func (s *Store) GetOffice(ctx context.Context, id int64) (*models.Office, error) {
	return getOffice(ctx, s.db, id)
}

// ListActiveOffices returns all active offices ordered by name.
func (s *Store) ListActiveOffices(ctx context.Context) ([]*models.Office, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, city, state, active
		FROM offices
		WHERE active = 1
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

// GetOfficeForUpdate reads the office. The transaction already holds the
// database write lock (BEGIN IMMEDIATE), so no row lock is needed.
func (t *txStore) GetOfficeForUpdate(ctx context.Context, id int64) (*models.Office, error) {
	return getOffice(ctx, t.q, id)
}

func (t *txStore) CreateOffice(ctx context.Context, o *models.Office) error {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO offices (name, city, state, active)
		VALUES (?, ?, ?, ?)
	`, o.Name, o.City, o.State, o.Active)
	if err != nil {
		return fmt.Errorf("create office: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read office id: %w", err)
	}
	o.ID = id
	return nil
}

func (t *txStore) SetOfficeActive(ctx context.Context, id int64, active bool) error {
	res, err := t.q.ExecContext(ctx, `UPDATE offices SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set office active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set office active: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("office %d: %w", id, store.ErrNotFound)
	}
	return nil
}
