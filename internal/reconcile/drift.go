package reconcile

import (
	"time"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
)

// fieldImpact ranks tracked quote fields by how much a change invalidates a
// previously generated invoice. High-impact fields change headcount, date, or
// the shape of service; medium ones change menu composition; low ones are
// cosmetic from a pricing standpoint.
var fieldImpact = map[string]enums.ChangeImpact{
	"guest_count":  enums.ChangeImpactHigh,
	"event_date":   enums.ChangeImpactHigh,
	"service_type": enums.ChangeImpactHigh,

	"primary_protein":      enums.ChangeImpactMedium,
	"secondary_protein":    enums.ChangeImpactMedium,
	"appetizers":           enums.ChangeImpactMedium,
	"dietary_restrictions": enums.ChangeImpactMedium,

	"sides":            enums.ChangeImpactLow,
	"desserts":         enums.ChangeImpactLow,
	"drinks":           enums.ChangeImpactLow,
	"special_requests": enums.ChangeImpactLow,
}

// FieldImpact returns the drift impact of a tracked quote field. Unknown
// fields rank low: they exist in history for auditing but should not block a
// resync on their own.
func FieldImpact(field string) enums.ChangeImpact {
	if impact, ok := fieldImpact[field]; ok {
		return impact
	}
	return enums.ChangeImpactLow
}

// TrackedField reports whether edits to the field are recorded as quote
// field changes.
func TrackedField(field string) bool {
	_, ok := fieldImpact[field]
	return ok
}

// FieldChange is one drifted field with its ranked impact.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
	Impact   enums.ChangeImpact
}

// Drift describes divergence between a quote and its derived invoice.
type Drift struct {
	Status  enums.DriftStatus
	Changes []FieldChange
}

// NeedsReview reports whether the drift requires explicit admin sign-off
// before the invoice can be resynced.
func (d Drift) NeedsReview() bool {
	return d.Status == enums.DriftStatusNeedsReview
}

// DetectDrift compares an invoice's last sync point against the quote's edit
// history. Changes recorded after lastSync count; any high-impact change
// forces needs_review, otherwise the drift is auto-resolvable. A quote
// updated_at beyond lastSync with no recorded tracked change still ranks as
// auto_resolvable drift (an untracked edit happened).
func DetectDrift(lastSync time.Time, quoteUpdatedAt time.Time, history []models.QuoteFieldChange) Drift {
	var changes []FieldChange
	status := enums.DriftStatusNone

	for _, change := range history {
		if !change.RecordedAt.After(lastSync) {
			continue
		}
		impact := FieldImpact(change.Field)
		changes = append(changes, FieldChange{
			Field:    change.Field,
			OldValue: deref(change.OldValue),
			NewValue: deref(change.NewValue),
			Impact:   impact,
		})
		if impact == enums.ChangeImpactHigh {
			status = enums.DriftStatusNeedsReview
		} else if status == enums.DriftStatusNone {
			status = enums.DriftStatusAutoResolvable
		}
	}

	if status == enums.DriftStatusNone && quoteUpdatedAt.After(lastSync) {
		status = enums.DriftStatusAutoResolvable
	}

	return Drift{Status: status, Changes: changes}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
