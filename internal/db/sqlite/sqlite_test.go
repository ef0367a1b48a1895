package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

type fixture struct {
	licenseType *models.LicenseType
	office      *models.Office
}

func seed(t *testing.T, s *Store) fixture {
	t.Helper()
	f := fixture{
		licenseType: &models.LicenseType{Name: "Broker"},
		office:      models.NewOffice("Downtown", "Austin", "TX"),
	}
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateLicenseType(context.Background(), f.licenseType); err != nil {
			return err
		}
		return tx.CreateOffice(context.Background(), f.office)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return f
}

func createLicensee(t *testing.T, s *Store, f fixture, status models.LicenseeStatus, expires *time.Time) *models.Licensee {
	t.Helper()
	l := models.NewLicensee("Ada", "Lovelace", "ada@example.com", "RE-1", f.licenseType.ID, f.office.ID, status)
	l.IssueDate = date(2024, time.January, 1)
	l.ExpirationDate = expires
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateLicensee(context.Background(), l)
	})
	if err != nil {
		t.Fatalf("create licensee: %v", err)
	}
	return l
}

func TestOpenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "licensees.db")

	s, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	// Reopening applies the schema again without error.
	s, err = Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	if _, ok := s.Health()["open_conns"]; !ok {
		t.Error("Health() missing open_conns")
	}
}

func TestLicenseeRoundTrip(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	created := createLicensee(t, s, f, models.LicenseeStatusActive, date(2026, time.March, 15))
	if created.ID == 0 {
		t.Fatal("expected licensee ID to be assigned")
	}

	got, err := s.GetLicensee(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetLicensee() error: %v", err)
	}
	if got.Status != models.LicenseeStatusActive {
		t.Errorf("Status = %s, want active", got.Status)
	}
	if got.ExpirationDate == nil || !got.ExpirationDate.Equal(*date(2026, time.March, 15)) {
		t.Errorf("ExpirationDate = %v, want 2026-03-15", got.ExpirationDate)
	}
	if got.UpdatedAt != nil {
		t.Errorf("UpdatedAt = %v, want nil", got.UpdatedAt)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created.CreatedAt)
	}

	_, err = s.GetLicensee(ctx, 9999)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetLicensee(9999) error = %v, want ErrNotFound", err)
	}
}

func TestExpirationQueries(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	pastActive := createLicensee(t, s, f, models.LicenseeStatusActive, date(2025, time.May, 31))
	pastInactive := createLicensee(t, s, f, models.LicenseeStatusInactive, date(2025, time.January, 1))
	today := createLicensee(t, s, f, models.LicenseeStatusActive, date(2025, time.June, 1))
	edge := createLicensee(t, s, f, models.LicenseeStatusActive, date(2025, time.July, 1))
	createLicensee(t, s, f, models.LicenseeStatusInactive, date(2025, time.June, 10))
	createLicensee(t, s, f, models.LicenseeStatusActive, date(2025, time.July, 2))
	createLicensee(t, s, f, models.LicenseeStatusActive, nil)

	asOf := *date(2025, time.June, 1)

	expired, err := s.ListExpiredCandidateIDs(ctx, asOf)
	if err != nil {
		t.Fatalf("ListExpiredCandidateIDs() error: %v", err)
	}
	assertIDs(t, expired, pastActive.ID, pastInactive.ID)

	soon, err := s.ListExpiringSoonIDs(ctx, asOf, asOf.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("ListExpiringSoonIDs() error: %v", err)
	}
	assertIDs(t, soon, today.ID, edge.ID)
}

func TestUpdateLicenseeStatusVersionCheck(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	l := createLicensee(t, s, f, models.LicenseeStatusInactive, date(2030, time.January, 1))
	at := time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateLicenseeStatus(ctx, l.ID, l.Version, models.LicenseeStatusActive, &at)
	})
	if err != nil {
		t.Fatalf("UpdateLicenseeStatus() error: %v", err)
	}

	got, err := s.GetLicensee(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetLicensee() error: %v", err)
	}
	if got.Status != models.LicenseeStatusActive {
		t.Errorf("Status = %s, want active", got.Status)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, at)
	}

	// Stale version loses.
	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateLicenseeStatus(ctx, l.ID, 1, models.LicenseeStatusInactive, nil)
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("stale update error = %v, want ErrConflict", err)
	}

	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateLicenseeStatus(ctx, 9999, 1, models.LicenseeStatusInactive, nil)
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing row error = %v, want ErrNotFound", err)
	}

	// A nil timestamp keeps the previous updated_at.
	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateLicenseeStatus(ctx, l.ID, 2, models.LicenseeStatusExpired, nil)
	})
	if err != nil {
		t.Fatalf("UpdateLicenseeStatus() error: %v", err)
	}
	got, _ = s.GetLicensee(ctx, l.ID)
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want unchanged %v", got.UpdatedAt, at)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	l := createLicensee(t, s, f, models.LicenseeStatusActive, date(2030, time.January, 1))
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.UpdateLicenseeStatus(ctx, l.ID, l.Version, models.LicenseeStatusInactive, nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	got, err := s.GetLicensee(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetLicensee() error: %v", err)
	}
	if got.Status != models.LicenseeStatusActive || got.Version != 1 {
		t.Errorf("rolled back licensee = %s v%d, want active v1", got.Status, got.Version)
	}
}

func TestStatusAuditsAreAppendOnly(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	l := createLicensee(t, s, f, models.LicenseeStatusActive, date(2030, time.January, 1))
	first := models.NewStatusAudit(l.ID, models.LicenseeStatusActive, models.LicenseeStatusInactive,
		time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC), models.AuditSourceManual)
	second := models.NewStatusAudit(l.ID, models.LicenseeStatusInactive, models.LicenseeStatusActive,
		time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC), models.AuditSourceManual)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateStatusAudit(ctx, first); err != nil {
			return err
		}
		return tx.CreateStatusAudit(ctx, second)
	})
	if err != nil {
		t.Fatalf("CreateStatusAudit() error: %v", err)
	}

	audits, err := s.ListStatusAudits(ctx, l.ID)
	if err != nil {
		t.Fatalf("ListStatusAudits() error: %v", err)
	}
	if len(audits) != 2 {
		t.Fatalf("len(audits) = %d, want 2", len(audits))
	}
	if audits[0].ID != first.ID || audits[1].ID != second.ID {
		t.Errorf("audits out of order: %d, %d", audits[0].ID, audits[1].ID)
	}
	if audits[0].Source != models.AuditSourceManual {
		t.Errorf("Source = %s, want manual", audits[0].Source)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE licensee_status_audits SET new_status = 3`); err == nil {
		t.Error("expected update of audit rows to fail")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM licensee_status_audits`); err == nil {
		t.Error("expected delete of audit rows to fail")
	}
}

func TestOfficeReassignment(t *testing.T) {
	s := openTestStore(t)
	f := seed(t, s)
	ctx := context.Background()

	a := createLicensee(t, s, f, models.LicenseeStatusActive, date(2030, time.January, 1))
	b := createLicensee(t, s, f, models.LicenseeStatusInactive, date(2030, time.January, 1))
	replacement := models.NewOffice("Uptown", "Austin", "TX")
	at := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)

	var moved, remaining int64
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateOffice(ctx, replacement); err != nil {
			return err
		}
		var err error
		if moved, err = tx.ReassignLicensees(ctx, f.office.ID, replacement.ID, at); err != nil {
			return err
		}
		if err := tx.SetOfficeActive(ctx, f.office.ID, false); err != nil {
			return err
		}
		remaining, err = tx.CountLicenseesByOffice(ctx, f.office.ID)
		return err
	})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if moved != 2 || remaining != 0 {
		t.Errorf("moved=%d remaining=%d, want 2 and 0", moved, remaining)
	}

	for _, id := range []int64{a.ID, b.ID} {
		got, err := s.GetLicensee(ctx, id)
		if err != nil {
			t.Fatalf("GetLicensee(%d) error: %v", id, err)
		}
		if got.OfficeID != replacement.ID {
			t.Errorf("licensee %d OfficeID = %d, want %d", id, got.OfficeID, replacement.ID)
		}
		if got.Version != 2 {
			t.Errorf("licensee %d Version = %d, want 2", id, got.Version)
		}
	}

	old, err := s.GetOffice(ctx, f.office.ID)
	if err != nil {
		t.Fatalf("GetOffice() error: %v", err)
	}
	if old.Active {
		t.Error("expected office to be inactive")
	}

	active, err := s.ListActiveOffices(ctx)
	if err != nil {
		t.Fatalf("ListActiveOffices() error: %v", err)
	}
	if len(active) != 1 || active[0].ID != replacement.ID {
		t.Errorf("active offices = %v, want only %d", active, replacement.ID)
	}

	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.SetOfficeActive(ctx, 9999, false)
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetOfficeActive(9999) error = %v, want ErrNotFound", err)
	}
}

func TestLicenseTypes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		for _, name := range []string{"Salesperson", "Broker"} {
			if err := tx.CreateLicenseType(ctx, &models.LicenseType{Name: name}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("CreateLicenseType() error: %v", err)
	}

	types, err := s.ListLicenseTypes(ctx)
	if err != nil {
		t.Fatalf("ListLicenseTypes() error: %v", err)
	}
	if len(types) != 2 || types[0].Name != "Broker" {
		t.Errorf("types = %+v, want Broker first", types)
	}

	if _, err := s.GetLicenseType(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetLicenseType(9999) error = %v, want ErrNotFound", err)
	}
}

func assertIDs(t *testing.T, got []int64, want ...int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ids = %v, want %v", got, want)
			return
		}
	}
}
