package reconcile

import (
	"fmt"
	"strings"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/errors"
)

// DefaultApprovalThresholdCents is the total drift beyond which sending
// requires an explicit approval annotation ($500).
const DefaultApprovalThresholdCents = 50000

// ApprovalPrefix marks an annotation as an explicit sign-off.
const ApprovalPrefix = "APPROVED:"

// GateInput is everything the send gate inspects before an invoice leaves
// draft.
type GateInput struct {
	Items               []models.InvoiceLineItem
	Totals              Totals
	LastKnownTotalCents int64
	OverrideReason      string
	Annotation          string
	ThresholdCents      int64
}

// CheckSendGate enforces the pre-send invariants:
//
//   - an invoice with no line items or a zero/negative total cannot be sent
//   - any overridden line item requires an override reason on the invoice
//   - when an override exists, or the recomputed total moved more than the
//     approval threshold from the last known total, the annotation must carry
//     the APPROVED: prefix
//
// Returns nil when the invoice may be sent.
func CheckSendGate(in GateInput) error {
	if len(in.Items) == 0 {
		return errors.New(errors.CodeValidation, "invoice has no line items")
	}
	if in.Totals.TotalCents <= 0 {
		return errors.New(errors.CodeValidation, fmt.Sprintf("invoice total must be positive to send, got %d cents", in.Totals.TotalCents))
	}

	threshold := in.ThresholdCents
	if threshold <= 0 {
		threshold = DefaultApprovalThresholdCents
	}

	hasOverride := false
	for _, item := range in.Items {
		if item.IsOverride {
			hasOverride = true
			break
		}
	}

	if hasOverride && strings.TrimSpace(in.OverrideReason) == "" {
		return errors.New(errors.CodeValidation, "override reason required: invoice contains price overrides")
	}

	delta := in.Totals.TotalCents - in.LastKnownTotalCents
	if delta < 0 {
		delta = -delta
	}

	if hasOverride || delta > threshold {
		if !strings.HasPrefix(strings.TrimSpace(in.Annotation), ApprovalPrefix) {
			return errors.New(errors.CodeValidation, fmt.Sprintf("annotation with %q prefix required: total moved %d cents or invoice carries overrides", ApprovalPrefix, delta))
		}
	}

	return nil
}
