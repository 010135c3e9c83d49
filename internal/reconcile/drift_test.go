package reconcile

import (
	"testing"
	"time"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
)

func strptr(s string) *string { return &s }

func TestDetectDrift_NoChanges(t *testing.T) {
	sync := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	d := DetectDrift(sync, sync, nil)
	if d.Status != enums.DriftStatusNone {
		t.Fatalf("status %s, want none", d.Status)
	}
	if len(d.Changes) != 0 {
		t.Fatalf("expected no changes, got %d", len(d.Changes))
	}
}

func TestDetectDrift_HighImpactNeedsReview(t *testing.T) {
	sync := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	later := sync.Add(2 * time.Hour)

	history := []models.QuoteFieldChange{
		{Field: "sides", OldValue: strptr("mac and cheese"), NewValue: strptr("rice"), RecordedAt: later},
		{Field: "guest_count", OldValue: strptr("80"), NewValue: strptr("120"), RecordedAt: later},
	}

	d := DetectDrift(sync, later, history)
	if d.Status != enums.DriftStatusNeedsReview {
		t.Fatalf("status %s, want needs_review", d.Status)
	}
	if len(d.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(d.Changes))
	}
}

func TestDetectDrift_OnlyLowAndMediumAutoResolves(t *testing.T) {
	sync := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	later := sync.Add(time.Hour)

	history := []models.QuoteFieldChange{
		{Field: "special_requests", NewValue: strptr("extra napkins"), RecordedAt: later},
		{Field: "primary_protein", OldValue: strptr("chicken"), NewValue: strptr("brisket"), RecordedAt: later},
	}

	d := DetectDrift(sync, later, history)
	if d.Status != enums.DriftStatusAutoResolvable {
		t.Fatalf("status %s, want auto_resolvable", d.Status)
	}
}

func TestDetectDrift_IgnoresChangesBeforeSync(t *testing.T) {
	sync := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	history := []models.QuoteFieldChange{
		{Field: "guest_count", OldValue: strptr("50"), NewValue: strptr("90"), RecordedAt: sync.Add(-time.Hour)},
		{Field: "event_date", RecordedAt: sync}, // exactly at sync point does not count
	}

	d := DetectDrift(sync, sync, history)
	if d.Status != enums.DriftStatusNone {
		t.Fatalf("status %s, want none", d.Status)
	}
}

func TestDetectDrift_UntrackedEditStillFlags(t *testing.T) {
	sync := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	quoteUpdated := sync.Add(30 * time.Minute)

	d := DetectDrift(sync, quoteUpdated, nil)
	if d.Status != enums.DriftStatusAutoResolvable {
		t.Fatalf("status %s, want auto_resolvable for untracked edit", d.Status)
	}
	if d.NeedsReview() {
		t.Fatal("untracked edit should not force review")
	}
}

func TestFieldImpact(t *testing.T) {
	tests := map[string]enums.ChangeImpact{
		"guest_count":      enums.ChangeImpactHigh,
		"event_date":       enums.ChangeImpactHigh,
		"service_type":     enums.ChangeImpactHigh,
		"primary_protein":  enums.ChangeImpactMedium,
		"appetizers":       enums.ChangeImpactMedium,
		"sides":            enums.ChangeImpactLow,
		"special_requests": enums.ChangeImpactLow,
		"never_heard_of":   enums.ChangeImpactLow,
	}
	for field, want := range tests {
		if got := FieldImpact(field); got != want {
			t.Fatalf("FieldImpact(%q) = %s, want %s", field, got, want)
		}
	}

	if !TrackedField("guest_count") {
		t.Fatal("guest_count should be tracked")
	}
	if TrackedField("contact_phone") {
		t.Fatal("contact_phone should not be tracked")
	}
}
