package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestMetrics(t *testing.T) *PrometheusMetrics {
	t.Helper()
	m, err := NewPrometheusMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m
}

func TestPrometheus_RecordSweep(t *testing.T) {
	m := newTestMetrics(t)

	t.Run("counts runs by result", func(t *testing.T) {
		m.RecordSweep("success", 2*time.Second, 3, 1)
		m.RecordSweep("success", time.Second, 0, 0)
		m.RecordSweep("error", 0, 0, 0)

		if val := getCounterVecValue(t, m.SweepRuns, "success"); val != 2 {
			t.Errorf("expected 2 successful runs, got %f", val)
		}
		if val := getCounterVecValue(t, m.SweepRuns, "error"); val != 1 {
			t.Errorf("expected 1 failed run, got %f", val)
		}
	})

	t.Run("accumulates expired and failures", func(t *testing.T) {
		if val := getCounterValue(t, m.LicenseesExpired); val != 3 {
			t.Errorf("expected 3 expired, got %f", val)
		}
		if val := getCounterValue(t, m.SweepFailures); val != 1 {
			t.Errorf("expected 1 failure, got %f", val)
		}
	})

	t.Run("observes duration", func(t *testing.T) {
		count, sum := getHistogramValues(t, m.SweepDuration)
		if count != 3 {
			t.Errorf("expected count 3, got %d", count)
		}
		if sum != 3 {
			t.Errorf("expected sum 3, got %f", sum)
		}
	})
}

func TestPrometheus_Transitions(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordTransition("manual", "changed")
	m.RecordTransition("manual", "manual_expiration_forbidden")
	m.RecordTransition("manual", "changed")
	m.RecordTransition("system", "changed")

	if val := getCounterVecValue(t, m.Transitions, "manual", "changed"); val != 2 {
		t.Errorf("expected 2 manual changes, got %f", val)
	}
	if val := getCounterVecValue(t, m.Transitions, "manual", "manual_expiration_forbidden"); val != 1 {
		t.Errorf("expected 1 rejection, got %f", val)
	}
	if val := getCounterVecValue(t, m.Transitions, "system", "changed"); val != 1 {
		t.Errorf("expected 1 system change, got %f", val)
	}
}

func TestPrometheus_AlertGauge(t *testing.T) {
	m := newTestMetrics(t)

	m.SetAlertCounts(4, 7)
	if val := getGaugeValue(t, m.AlertGauge, "past_due"); val != 4 {
		t.Errorf("expected 4, got %f", val)
	}
	if val := getGaugeValue(t, m.AlertGauge, "expiring_soon"); val != 7 {
		t.Errorf("expected 7, got %f", val)
	}

	m.SetAlertCounts(0, 2)
	if val := getGaugeValue(t, m.AlertGauge, "past_due"); val != 0 {
		t.Errorf("expected 0 after update, got %f", val)
	}
}

func TestPrometheus_Deactivations(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDeactivation("deactivated", 3)
	m.RecordDeactivation("replacement_not_active", 0)

	if val := getCounterVecValue(t, m.OfficeDeactivations, "deactivated"); val != 1 {
		t.Errorf("expected 1, got %f", val)
	}
	if val := getCounterValue(t, m.LicenseesReassigned); val != 3 {
		t.Errorf("expected 3 reassigned, got %f", val)
	}
}

func TestPrometheus_Registration(t *testing.T) {
	t.Run("creates metrics successfully", func(t *testing.T) {
		m := newTestMetrics(t)
		if m.SweepRuns == nil || m.Transitions == nil || m.AlertGauge == nil || m.OfficeDeactivations == nil {
			t.Error("expected all metrics to be non-nil")
		}
	})

	t.Run("fails on duplicate registration", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if _, err := NewPrometheusMetrics(reg); err != nil {
			t.Fatalf("first registration failed: %v", err)
		}
		if _, err := NewPrometheusMetrics(reg); err == nil {
			t.Fatal("expected error on duplicate registration")
		}
	})
}

// Helper functions for extracting Prometheus metric values.

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := counter.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func getCounterVecValue(t *testing.T, counter *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := counter.WithLabelValues(labels...).(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func getGaugeValue(t *testing.T, gauge *prometheus.GaugeVec, label string) float64 {
	t.Helper()
	var m dto.Metric
	if err := gauge.WithLabelValues(label).(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func getHistogramValues(t *testing.T, hist prometheus.Histogram) (uint64, float64) {
	t.Helper()
	var m dto.Metric
	if err := hist.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
}
