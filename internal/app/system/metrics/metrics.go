// Package metrics exposes Prometheus instrumentation for derivation,
// enrollment, and reconciliation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Derivation outcomes
const (
	OutcomeDerived  = "derived"
	OutcomeSkipped  = "skipped" // no assigned agencies
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

// Metrics provides observability for the compliance services.
type Metrics struct {
	// Derivation runs by outcome
	DerivationRuns *prometheus.CounterVec

	// Duration of a single derivation including its read and write
	DerivationLatency prometheus.Histogram

	// Derivation failures swallowed after a committed write, by trigger
	DerivationSwallowed *prometheus.CounterVec

	// Enrollment attempts by operation and result
	EnrollmentOutcome *prometheus.CounterVec

	// One-sided references left behind by a failed volunteer-side write
	EnrollmentInconsistencies *prometheus.CounterVec

	// Repairs applied by reconciliation, by kind
	ReconcileRepairs *prometheus.CounterVec

	// Duration of a full reconciliation pass
	ReconcileLatency prometheus.Histogram

	// Submissions deleted because attachment processing failed
	SubmissionRollbacks prometheus.Counter

	// Standards by cached status, refreshed after reconciliation passes
	StandardsByStatus *prometheus.GaugeVec
}

// New creates a Metrics instance with every collector registered on reg.
// Passing prometheus.DefaultRegisterer exposes them on the default
// /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DerivationRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliancehub_derivation_runs_total",
			Help: "Total standard derivations by outcome",
		}, []string{"outcome"}), // outcome: "derived", "skipped", "not_found", "failed"

		DerivationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliancehub_derivation_duration_seconds",
			Help:    "Duration of a single standard derivation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		DerivationSwallowed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliancehub_derivation_swallowed_total",
			Help: "Derivation failures logged after the triggering write committed",
		}, []string{"trigger"}),

		EnrollmentOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliancehub_enrollment_outcomes_total",
			Help: "Enrollment and withdrawal attempts by result",
		}, []string{"operation", "result"}),

		EnrollmentInconsistencies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliancehub_enrollment_inconsistencies_total",
			Help: "Roster changes whose volunteer-side write failed",
		}, []string{"operation"}),

		ReconcileRepairs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliancehub_reconcile_repairs_total",
			Help: "Repairs applied by the reconciliation pass by kind",
		}, []string{"kind"}),

		ReconcileLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliancehub_reconcile_duration_seconds",
			Help:    "Duration of a full reconciliation pass",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		SubmissionRollbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "compliancehub_submission_rollbacks_total",
			Help: "Submissions removed after attachment processing failed",
		}),

		StandardsByStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "compliancehub_standards",
			Help: "Number of standards by cached status",
		}, []string{"status"}),
	}
}

// ObserveDerivation records one derivation run.
func (m *Metrics) ObserveDerivation(outcome string, d time.Duration) {
	if m != nil {
		m.DerivationRuns.WithLabelValues(outcome).Inc()
		m.DerivationLatency.Observe(d.Seconds())
	}
}

// IncrementDerivationSwallowed records a derivation error that was logged
// instead of returned.
func (m *Metrics) IncrementDerivationSwallowed(trigger string) {
	if m != nil {
		m.DerivationSwallowed.WithLabelValues(trigger).Inc()
	}
}

// IncrementEnrollment records an enroll or withdraw result. result is
// "ok" or an error kind.
func (m *Metrics) IncrementEnrollment(operation, result string) {
	if m != nil {
		m.EnrollmentOutcome.WithLabelValues(operation, result).Inc()
	}
}

// IncrementInconsistency records a one-sided reference left for repair.
func (m *Metrics) IncrementInconsistency(operation string) {
	if m != nil {
		m.EnrollmentInconsistencies.WithLabelValues(operation).Inc()
	}
}

// AddRepairs records n repairs of one kind.
func (m *Metrics) AddRepairs(kind string, n int) {
	if m != nil && n > 0 {
		m.ReconcileRepairs.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveReconcile records the duration of a reconciliation pass.
func (m *Metrics) ObserveReconcile(d time.Duration) {
	if m != nil {
		m.ReconcileLatency.Observe(d.Seconds())
	}
}

// IncrementRollback records a submission rollback.
func (m *Metrics) IncrementRollback() {
	if m != nil {
		m.SubmissionRollbacks.Inc()
	}
}

// SetStandardsByStatus replaces the per-status standard gauges.
func (m *Metrics) SetStandardsByStatus(counts map[string]int64) {
	if m == nil {
		return
	}
	m.StandardsByStatus.Reset()
	for status, n := range counts {
		m.StandardsByStatus.WithLabelValues(status).Set(float64(n))
	}
}
