// Package store defines the persistence contract shared by the Postgres and
// SQLite backends.
//
// Backends return the sentinel errors below (optionally wrapped) so that the
// lifecycle and office services can translate them into typed outcomes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/models"
)

var (
	// ErrNotFound means the referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a conditional update lost an optimistic-concurrency race.
	ErrConflict = errors.New("concurrency conflict")
)

// Reader holds the read-only queries that run outside a transaction.
type Reader interface {
	Ping(ctx context.Context) error

	GetLicensee(ctx context.Context, id int64) (*models.Licensee, error)
	// ListExpiredCandidateIDs returns ids of licensees whose expiration date is
	// strictly before asOf and whose status is not already expired.
	ListExpiredCandidateIDs(ctx context.Context, asOf time.Time) ([]int64, error)
	// ListExpiringSoonIDs returns ids of active licensees whose expiration date
	// falls in [from, to] inclusive.
	ListExpiringSoonIDs(ctx context.Context, from, to time.Time) ([]int64, error)
	ListLicenseesByOffice(ctx context.Context, officeID int64) ([]*models.Licensee, error)
	ListStatusAudits(ctx context.Context, licenseeID int64) ([]*models.StatusAudit, error)

	GetOffice(ctx context.Context, id int64) (*models.Office, error)
	ListActiveOffices(ctx context.Context) ([]*models.Office, error)

	GetLicenseType(ctx context.Context, id int64) (*models.LicenseType, error)
	ListLicenseTypes(ctx context.Context) ([]*models.LicenseType, error)
}

// Tx is the set of operations available inside a single transaction. Every
// write the engine performs goes through a Tx.
type Tx interface {
	GetLicensee(ctx context.Context, id int64) (*models.Licensee, error)
	CreateLicensee(ctx context.Context, l *models.Licensee) error
	// UpdateLicenseeDetails writes the non-status fields of l if its stored
	// version still equals l.Version, then increments l.Version.
	UpdateLicenseeDetails(ctx context.Context, l *models.Licensee) error
	// UpdateLicenseeStatus sets the status if the stored version equals
	// expectedVersion. A nil updatedAt leaves updated_at untouched.
	UpdateLicenseeStatus(ctx context.Context, id, expectedVersion int64, status models.LicenseeStatus, updatedAt *time.Time) error
	// ReassignLicensees re-points every licensee of fromOfficeID to toOfficeID
	// and returns the number of rows changed.
	ReassignLicensees(ctx context.Context, fromOfficeID, toOfficeID int64, at time.Time) (int64, error)
	CountLicenseesByOffice(ctx context.Context, officeID int64) (int64, error)

	CreateStatusAudit(ctx context.Context, a *models.StatusAudit) error

	// GetOfficeForUpdate reads an office and, where the backend supports it,
	// locks the row until the transaction ends.
	GetOfficeForUpdate(ctx context.Context, id int64) (*models.Office, error)
	CreateOffice(ctx context.Context, o *models.Office) error
	SetOfficeActive(ctx context.Context, id int64, active bool) error

	GetLicenseType(ctx context.Context, id int64) (*models.LicenseType, error)
	CreateLicenseType(ctx context.Context, lt *models.LicenseType) error
}

// Store is a Reader that can also run a function inside a transaction. The
// transaction commits if fn returns nil and rolls back otherwise.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
