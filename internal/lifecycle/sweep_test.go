package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/store"
	"github.com/MacJediWizard/licensee-manager/internal/store/storetest"
)

func TestSweep_ExpiresYesterday(t *testing.T) {
	e := newEngine(t)
	l := e.licensee(t, models.LicenseeStatusActive, -1)

	report, err := e.sweep.Run(context.Background(), today, 30)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.ExpiredCount != 1 {
		t.Errorf("ExpiredCount = %d, want 1", report.ExpiredCount)
	}
	if len(report.Failures) != 0 {
		t.Errorf("Failures = %+v, want none", report.Failures)
	}

	if got := storetest.Reload(t, e.store, l.ID); got.Status != models.LicenseeStatusExpired {
		t.Errorf("Status = %s, want expired", got.Status)
	}
	audits := storetest.Audits(t, e.store, l.ID)
	if len(audits) != 1 {
		t.Fatalf("expected 1 audit, got %d", len(audits))
	}
	if audits[0].OldStatus != models.LicenseeStatusActive || audits[0].NewStatus != models.LicenseeStatusExpired {
		t.Errorf("audit = %s -> %s, want active -> expired", audits[0].OldStatus, audits[0].NewStatus)
	}
}

func TestSweep_Idempotent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := e.licensee(t, models.LicenseeStatusActive, -3)
	b := e.licensee(t, models.LicenseeStatusInactive, -40)
	e.licensee(t, models.LicenseeStatusActive, 12)

	first, err := e.sweep.Run(ctx, today, 30)
	if err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	if first.ExpiredCount != 2 || first.ExpiringSoonCount != 1 {
		t.Errorf("first run = %d expired, %d soon; want 2, 1", first.ExpiredCount, first.ExpiringSoonCount)
	}

	second, err := e.sweep.Run(ctx, today, 30)
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	if second.ExpiredCount != 0 {
		t.Errorf("second ExpiredCount = %d, want 0", second.ExpiredCount)
	}
	if second.RunID == first.RunID {
		t.Error("expected a new run id")
	}
	for _, id := range []int64{a.ID, b.ID} {
		if audits := storetest.Audits(t, e.store, id); len(audits) != 1 {
			t.Errorf("licensee %d has %d audits, want 1", id, len(audits))
		}
	}
}

func TestSweep_ExpiringSoonIsReportOnly(t *testing.T) {
	e := newEngine(t)
	l := e.licensee(t, models.LicenseeStatusActive, 5)

	report, err := e.sweep.Run(context.Background(), today, 30)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.ExpiringSoonCount != 1 || report.ExpiredCount != 0 {
		t.Errorf("report = %+v", report)
	}
	got := storetest.Reload(t, e.store, l.ID)
	if got.Status != models.LicenseeStatusActive || got.Version != l.Version {
		t.Errorf("expiring-soon licensee was modified: %s v%d", got.Status, got.Version)
	}
	if audits := storetest.Audits(t, e.store, l.ID); len(audits) != 0 {
		t.Errorf("expected no audits, got %d", len(audits))
	}
}

func TestSweep_InvalidHorizonAborts(t *testing.T) {
	e := newEngine(t)
	l := e.licensee(t, models.LicenseeStatusActive, -1)

	report, err := e.sweep.Run(context.Background(), today, 0)
	if !errors.Is(err, ErrInvalidHorizon) {
		t.Fatalf("Run() error = %v, want ErrInvalidHorizon", err)
	}
	if report != nil {
		t.Errorf("expected nil report, got %+v", report)
	}
	if got := storetest.Reload(t, e.store, l.ID); got.Status != models.LicenseeStatusActive {
		t.Errorf("Status = %s, want active", got.Status)
	}
}

// flakyStore fails status updates for one licensee.
type flakyStore struct {
	store.Store
	failID int64
}

type flakyTx struct {
	store.Tx
	failID int64
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(&flakyTx{Tx: tx, failID: f.failID})
	})
}

func (f *flakyTx) UpdateLicenseeStatus(ctx context.Context, id, expectedVersion int64, status models.LicenseeStatus, updatedAt *time.Time) error {
	if id == f.failID {
		return errors.New("connection reset")
	}
	return f.Tx.UpdateLicenseeStatus(ctx, id, expectedVersion, status, updatedAt)
}

func TestSweep_IsolatesFailures(t *testing.T) {
	base := storetest.New(t)
	flaky := &flakyStore{Store: base}
	e := newEngineWithStore(t, flaky)

	first := e.licensee(t, models.LicenseeStatusActive, -2)
	broken := e.licensee(t, models.LicenseeStatusActive, -2)
	last := e.licensee(t, models.LicenseeStatusInactive, -2)
	flaky.failID = broken.ID

	report, err := e.sweep.Run(context.Background(), today, 30)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.ExpiredCount != 2 {
		t.Errorf("ExpiredCount = %d, want 2", report.ExpiredCount)
	}
	if len(report.Failures) != 1 || report.Failures[0].LicenseeID != broken.ID || report.Failures[0].Error == "" {
		t.Fatalf("Failures = %+v, want one error for %d", report.Failures, broken.ID)
	}

	for _, id := range []int64{first.ID, last.ID} {
		if got := storetest.Reload(t, base, id); got.Status != models.LicenseeStatusExpired {
			t.Errorf("licensee %d status = %s, want expired", id, got.Status)
		}
	}
	if got := storetest.Reload(t, base, broken.ID); got.Status != models.LicenseeStatusActive {
		t.Errorf("failed licensee status = %s, want active", got.Status)
	}
	if audits := storetest.Audits(t, base, broken.ID); len(audits) != 0 {
		t.Errorf("failed licensee has %d audits, want 0", len(audits))
	}
}

func TestSweep_CanceledContext(t *testing.T) {
	e := newEngine(t)
	e.licensee(t, models.LicenseeStatusActive, -1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.sweep.Run(ctx, today, 30); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestSweepReport_Duration(t *testing.T) {
	r := &SweepReport{StartedAt: today, FinishedAt: today.Add(1500 * time.Millisecond)}
	if r.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v", r.Duration())
	}
}
