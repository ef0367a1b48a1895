// Package metrics exposes Prometheus metrics for the licensee lifecycle.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "licensee_manager"

// PrometheusMetrics holds the registered lifecycle metrics.
type PrometheusMetrics struct {
	SweepRuns           *prometheus.CounterVec
	SweepDuration       prometheus.Histogram
	LicenseesExpired    prometheus.Counter
	SweepFailures       prometheus.Counter
	Transitions         *prometheus.CounterVec
	AlertGauge          *prometheus.GaugeVec
	OfficeDeactivations *prometheus.CounterVec
	LicenseesReassigned prometheus.Counter
}

// NewPrometheusMetrics creates the metrics and registers them with reg. It
// fails if any metric is already registered.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		SweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Expiration sweep runs by result.",
		}, []string{"result"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiration sweep runs.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		LicenseesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "licensees_expired_total",
			Help:      "Licensees moved to expired by the sweep.",
		}),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failures_total",
			Help:      "Licensees the sweep could not expire.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Status transition requests by caller and outcome.",
		}, []string{"caller", "outcome"}),
		AlertGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "licensees_alerting",
			Help:      "Licensees past due but not yet marked expired (past_due) and active licensees expiring within the horizon (expiring_soon), from the last evaluation.",
		}, []string{"class"}),
		OfficeDeactivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "office_deactivations_total",
			Help:      "Office deactivation requests by outcome.",
		}, []string{"outcome"}),
		LicenseesReassigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "licensees_reassigned_total",
			Help:      "Licensees moved to a replacement office.",
		}),
	}

	collectors := []prometheus.Collector{
		m.SweepRuns,
		m.SweepDuration,
		m.LicenseesExpired,
		m.SweepFailures,
		m.Transitions,
		m.AlertGauge,
		m.OfficeDeactivations,
		m.LicenseesReassigned,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	return m, nil
}

// RecordSweep records one sweep run.
func (m *PrometheusMetrics) RecordSweep(result string, duration time.Duration, expired, failures int) {
	m.SweepRuns.WithLabelValues(result).Inc()
	m.SweepDuration.Observe(duration.Seconds())
	m.LicenseesExpired.Add(float64(expired))
	m.SweepFailures.Add(float64(failures))
}

// RecordTransition records the outcome of a status transition request.
func (m *PrometheusMetrics) RecordTransition(caller, outcome string) {
	m.Transitions.WithLabelValues(caller, outcome).Inc()
}

// SetAlertCounts sets the alert gauges from an evaluation's candidate lists.
func (m *PrometheusMetrics) SetAlertCounts(pastDue, expiringSoon int) {
	m.AlertGauge.WithLabelValues("past_due").Set(float64(pastDue))
	m.AlertGauge.WithLabelValues("expiring_soon").Set(float64(expiringSoon))
}

// RecordDeactivation records the outcome of an office deactivation.
func (m *PrometheusMetrics) RecordDeactivation(outcome string, reassigned int64) {
	m.OfficeDeactivations.WithLabelValues(outcome).Inc()
	m.LicenseesReassigned.Add(float64(reassigned))
}
