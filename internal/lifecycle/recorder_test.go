package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MacJediWizard/licensee-manager/internal/models"
	"github.com/MacJediWizard/licensee-manager/internal/store"
)

func TestTrail_UnknownLicensee(t *testing.T) {
	e := newEngine(t)

	_, err := e.recorder.Trail(context.Background(), 9999)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Trail() error = %v, want ErrNotFound", err)
	}
}

func TestTrail_OrderedOldestFirst(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	l := e.licensee(t, models.LicenseeStatusActive, 60)

	empty, err := e.recorder.Trail(ctx, l.ID)
	if err != nil {
		t.Fatalf("Trail() error: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Trail() = %v, want empty slice", empty)
	}

	steps := []models.LicenseeStatus{models.LicenseeStatusInactive, models.LicenseeStatusActive, models.LicenseeStatusInactive}
	for _, s := range steps {
		e.clock.Advance(time.Minute)
		if _, err := e.guard.Transition(ctx, l.ID, s, CallerManual); err != nil {
			t.Fatalf("Transition(%s) error: %v", s, err)
		}
	}

	trail, err := e.recorder.Trail(ctx, l.ID)
	if err != nil {
		t.Fatalf("Trail() error: %v", err)
	}
	if len(trail) != len(steps) {
		t.Fatalf("len(trail) = %d, want %d", len(trail), len(steps))
	}
	prev := models.LicenseeStatusActive
	for i, a := range trail {
		if a.OldStatus != prev || a.NewStatus != steps[i] {
			t.Errorf("trail[%d] = %s -> %s, want %s -> %s", i, a.OldStatus, a.NewStatus, prev, steps[i])
		}
		if i > 0 && a.ChangedAt.Before(trail[i-1].ChangedAt) {
			t.Errorf("trail[%d] is older than trail[%d]", i, i-1)
		}
		prev = a.NewStatus
	}
}

func TestAppend_RejectsNonChanges(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	l := e.licensee(t, models.LicenseeStatusActive, 60)

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := e.recorder.Append(ctx, tx, l.ID, models.LicenseeStatusActive, models.LicenseeStatusActive, today, models.AuditSourceManual)
		return err
	})
	if err == nil {
		t.Error("expected error for unchanged status")
	}

	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := e.recorder.Append(ctx, tx, l.ID, models.LicenseeStatusActive, models.LicenseeStatus("bogus"), today, models.AuditSourceManual)
		return err
	})
	if err == nil {
		t.Error("expected error for invalid status")
	}
}
