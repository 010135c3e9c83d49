package reconcile

import (
	"testing"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/errors"
)

func gateItems(overrides ...bool) []models.InvoiceLineItem {
	out := make([]models.InvoiceLineItem, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, models.InvoiceLineItem{Title: "item", TotalPriceCents: 10000, IsOverride: o})
	}
	return out
}

func TestCheckSendGate_CleanInvoicePasses(t *testing.T) {
	err := CheckSendGate(GateInput{
		Items:               gateItems(false, false),
		Totals:              Totals{SubtotalCents: 20000, TotalCents: 21600},
		LastKnownTotalCents: 21600,
	})
	if err != nil {
		t.Fatalf("expected gate to pass, got %v", err)
	}
}

func TestCheckSendGate_EmptyInvoice(t *testing.T) {
	err := CheckSendGate(GateInput{Items: nil, Totals: Totals{}})
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for empty invoice, got %v", err)
	}

	err = CheckSendGate(GateInput{
		Items:  gateItems(false),
		Totals: Totals{TotalCents: 0},
	})
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for zero total, got %v", err)
	}
}

func TestCheckSendGate_OverrideRequiresReason(t *testing.T) {
	in := GateInput{
		Items:               gateItems(true),
		Totals:              Totals{SubtotalCents: 10000, TotalCents: 10800},
		LastKnownTotalCents: 10800,
		Annotation:          "APPROVED: price match for repeat client",
	}
	if err := CheckSendGate(in); !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error without override reason, got %v", err)
	}

	in.OverrideReason = "negotiated discount on brisket"
	if err := CheckSendGate(in); err != nil {
		t.Fatalf("expected gate to pass with reason + annotation, got %v", err)
	}
}

func TestCheckSendGate_OverrideRequiresAnnotation(t *testing.T) {
	in := GateInput{
		Items:               gateItems(true),
		Totals:              Totals{SubtotalCents: 10000, TotalCents: 10800},
		LastKnownTotalCents: 10800,
		OverrideReason:      "negotiated discount",
	}
	if err := CheckSendGate(in); !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error without annotation, got %v", err)
	}

	in.Annotation = "looks good"
	if err := CheckSendGate(in); !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("annotation without prefix must not pass, got %v", err)
	}

	in.Annotation = "  APPROVED: reviewed with owner"
	if err := CheckSendGate(in); err != nil {
		t.Fatalf("expected gate to pass, got %v", err)
	}
}

func TestCheckSendGate_LargeDeltaRequiresAnnotation(t *testing.T) {
	in := GateInput{
		Items:               gateItems(false),
		Totals:              Totals{SubtotalCents: 100000, TotalCents: 108000},
		LastKnownTotalCents: 50000, // moved $580
	}
	if err := CheckSendGate(in); !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for large delta, got %v", err)
	}

	in.Annotation = "APPROVED: guest count doubled"
	if err := CheckSendGate(in); err != nil {
		t.Fatalf("expected gate to pass with annotation, got %v", err)
	}
}

func TestCheckSendGate_DeltaAtThresholdPasses(t *testing.T) {
	// Exactly $500 of movement does not require sign-off.
	err := CheckSendGate(GateInput{
		Items:               gateItems(false),
		Totals:              Totals{SubtotalCents: 100000, TotalCents: 100000},
		LastKnownTotalCents: 50000,
		ThresholdCents:      50000,
	})
	if err != nil {
		t.Fatalf("delta equal to threshold should pass, got %v", err)
	}
}

func TestCheckSendGate_CustomThreshold(t *testing.T) {
	err := CheckSendGate(GateInput{
		Items:               gateItems(false),
		Totals:              Totals{SubtotalCents: 10000, TotalCents: 10200},
		LastKnownTotalCents: 10000,
		ThresholdCents:      100,
	})
	if !errors.IsCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error with tightened threshold, got %v", err)
	}
}
