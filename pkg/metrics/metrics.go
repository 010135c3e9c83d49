package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records metadata for scheduled worker jobs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewJobMetrics registers the worker job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of worker jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful worker job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed worker job executions.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure)
	return &JobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named job.
func (j *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if j == nil || j.duration == nil {
		return
	}
	j.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (j *JobMetrics) IncSuccess(job string) {
	if j == nil || j.success == nil {
		return
	}
	j.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (j *JobMetrics) IncFailure(job string) {
	if j == nil || j.failure == nil {
		return
	}
	j.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// BillingMetrics tracks the billing-specific counters surfaced on /metrics.
type BillingMetrics struct {
	driftDetected    *prometheus.CounterVec
	paymentsRecorded *prometheus.CounterVec
	overdueMarked    prometheus.Counter
}

// NewBillingMetrics registers the billing counters on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_drift_detected_total",
		Help: "Quote/invoice drift detections by status.",
	}, []string{"status"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Recorded payment transactions by outcome.",
	}, []string{"outcome"})
	overdue := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "milestones_marked_overdue_total",
		Help: "Payment milestones flagged overdue by the sweep job.",
	})
	reg.MustRegister(drift, payments, overdue)
	return &BillingMetrics{
		driftDetected:    drift,
		paymentsRecorded: payments,
		overdueMarked:    overdue,
	}
}

// IncDrift counts a drift detection with the given status label.
func (b *BillingMetrics) IncDrift(status string) {
	if b == nil || b.driftDetected == nil {
		return
	}
	b.driftDetected.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncPayment counts a recorded payment outcome (completed/failed/duplicate).
func (b *BillingMetrics) IncPayment(outcome string) {
	if b == nil || b.paymentsRecorded == nil {
		return
	}
	b.paymentsRecorded.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncOverdue counts a milestone flagged overdue.
func (b *BillingMetrics) IncOverdue() {
	if b == nil || b.overdueMarked == nil {
		return
	}
	b.overdueMarked.Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, " ", "_")
}
