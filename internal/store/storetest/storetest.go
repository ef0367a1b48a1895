// Package storetest provides an in-memory store and seeding helpers for
// package tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/db/sqlite"
	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/rs/zerolog"
)

// New opens an in-memory SQLite store that is closed when the test ends.
func New(t testing.TB) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(sqlite.MemoryPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Date returns a pointer to midnight UTC of the given day.
func Date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// Office creates an office and returns it.
func Office(t testing.TB, s store.Store, name string, active bool) *models.Office {
	t.Helper()
	o := models.NewOffice(name, "Springfield", "IL")
	o.Active = active
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateOffice(context.Background(), o)
	})
	if err != nil {
		t.Fatalf("create office %q: %v", name, err)
	}
	return o
}

// LicenseType creates a license type and returns it.
func LicenseType(t testing.TB, s store.Store, name string) *models.LicenseType {
	t.Helper()
	lt := &models.LicenseType{Name: name}
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateLicenseType(context.Background(), lt)
	})
	if err != nil {
		t.Fatalf("create license type %q: %v", name, err)
	}
	return lt
}

// Licensee creates a licensee with the given status and expiration date.
func Licensee(t testing.TB, s store.Store, licenseTypeID, officeID int64, status models.LicenseeStatus, expires *time.Time) *models.Licensee {
	t.Helper()
	l := models.NewLicensee("Pat", "Doe", "pat@example.com", "LIC-100", licenseTypeID, officeID, status)
	l.ExpirationDate = expires
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateLicensee(context.Background(), l)
	})
	if err != nil {
		t.Fatalf("create licensee: %v", err)
	}
	return l
}

// Reload reads a licensee back from the store.
func Reload(t testing.TB, s store.Reader, id int64) *models.Licensee {
	t.Helper()
	l, err := s.GetLicensee(context.Background(), id)
	if err != nil {
		t.Fatalf("reload licensee %d: %v", id, err)
	}
	return l
}

// Audits returns the audit trail of a licensee.
func Audits(t testing.TB, s store.Reader, id int64) []*models.StatusAudit {
	t.Helper()
	audits, err := s.ListStatusAudits(context.Background(), id)
	if err != nil {
		t.Fatalf("list audits for %d: %v", id, err)
	}
	return audits
}

// FailingTx wraps a store.Tx and fails selected writes.
type FailingTx struct {
	store.Tx
	FailAudit    error
	FailStatus   error
	FailReassign error
	FailOffice   error
}

func (f *FailingTx) CreateStatusAudit(ctx context.Context, a *models.StatusAudit) error {
	if f.FailAudit != nil {
		return f.FailAudit
	}
	return f.Tx.CreateStatusAudit(ctx, a)
}

func (f *FailingTx) UpdateLicenseeStatus(ctx context.Context, id, expectedVersion int64, status models.LicenseeStatus, updatedAt *time.Time) error {
	if f.FailStatus != nil {
		return f.FailStatus
	}
	return f.Tx.UpdateLicenseeStatus(ctx, id, expectedVersion, status, updatedAt)
}

func (f *FailingTx) ReassignLicensees(ctx context.Context, fromOfficeID, toOfficeID int64, at time.Time) (int64, error) {
	if f.FailReassign != nil {
		return 0, f.FailReassign
	}
	return f.Tx.ReassignLicensees(ctx, fromOfficeID, toOfficeID, at)
}

func (f *FailingTx) SetOfficeActive(ctx context.Context, id int64, active bool) error {
	if f.FailOffice != nil {
		return f.FailOffice
	}
	return f.Tx.SetOfficeActive(ctx, id, active)
}

// FailingStore wraps a store.Store so every transaction runs against a
// FailingTx built from Tx.
type FailingStore struct {
	store.Store
	Tx FailingTx
}

func (f *FailingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.WithTx(ctx, func(tx store.Tx) error {
		wrapped := f.Tx
		wrapped.Tx = tx
		return fn(&wrapped)
	})
}
