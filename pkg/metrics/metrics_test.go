package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)

	m.IncSuccess("milestone overdue")
	m.IncFailure("drift review")
	m.ObserveDuration("drift review", 250*time.Millisecond)

	if got := testutil.ToFloat64(m.success.WithLabelValues("milestone_overdue")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues("drift_review")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestNilReceiversAreSafe(t *testing.T) {
	var j *JobMetrics
	j.IncSuccess("x")
	j.IncFailure("x")
	j.ObserveDuration("x", time.Second)

	var b *BillingMetrics
	b.IncDrift("needs_review")
	b.IncPayment("completed")
	b.IncOverdue()
}

func TestBillingMetricsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewBillingMetrics(reg)

	b.IncDrift("Needs Review")
	if got := testutil.ToFloat64(b.driftDetected.WithLabelValues("needs_review")); got != 1 {
		t.Fatalf("expected normalized label count 1, got %v", got)
	}
}
