package clock

import (
	"testing"
	"time"
)

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"midnight", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"late evening", time.Date(2025, 3, 1, 23, 59, 59, 999, time.UTC), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"keeps local calendar date", time.Date(2025, 3, 1, 22, 0, 0, 0, loc), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DateOf(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("DateOf(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFixed(t *testing.T) {
	start := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c := NewFixed(start)

	if !c.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, c.Now())
	}

	c.Advance(36 * time.Hour)
	want := time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC)
	if got := Today(c); !got.Equal(want) {
		t.Errorf("expected today %v, got %v", want, got)
	}

	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("expected clock reset to %v, got %v", start, c.Now())
	}
}

func TestSystem(t *testing.T) {
	before := time.Now()
	got := System{}.Now()
	if got.Before(before) {
		t.Errorf("system clock went backwards: %v < %v", got, before)
	}
}
