package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jmorales/caterflow-backend/internal/reconcile"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	"github.com/jmorales/caterflow-backend/pkg/logger"
	"github.com/jmorales/caterflow-backend/pkg/outbox"
)

type fakeInvoiceLister struct {
	invoices []models.Invoice
	err      error
}

func (f *fakeInvoiceLister) FindByQuoteID(ctx context.Context, quoteID uuid.UUID) ([]models.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.invoices, nil
}

type fakeDriftChecker struct {
	drifts map[uuid.UUID]reconcile.Drift
	err    error
	calls  []uuid.UUID
}

func (f *fakeDriftChecker) CheckDrift(ctx context.Context, invoiceID uuid.UUID) (reconcile.Drift, error) {
	f.calls = append(f.calls, invoiceID)
	if f.err != nil {
		return reconcile.Drift{}, f.err
	}
	return f.drifts[invoiceID], nil
}

type fakeManager struct {
	already bool
	marked  []uuid.UUID
	deleted []uuid.UUID
}

func (f *fakeManager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if f.already {
		return true, nil
	}
	f.marked = append(f.marked, eventID)
	return false, nil
}

func (f *fakeManager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	f.deleted = append(f.deleted, eventID)
	return nil
}

func envelopeFor(t *testing.T, quoteID uuid.UUID) outbox.PayloadEnvelope {
	t.Helper()
	data, err := json.Marshal(map[string]any{"quote_id": quoteID})
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       data,
	}
}

func newConsumer(t *testing.T, lister *fakeInvoiceLister, drift *fakeDriftChecker, manager *fakeManager) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(lister, drift, manager, logger.New(logger.Options{ServiceName: "test"}), nil)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return consumer
}

func TestConsumerChecksDriftForLinkedInvoices(t *testing.T) {
	quoteID := uuid.New()
	draft := models.Invoice{ID: uuid.New(), QuoteID: quoteID, WorkflowStatus: enums.InvoiceStatusDraft}
	paid := models.Invoice{ID: uuid.New(), QuoteID: quoteID, WorkflowStatus: enums.InvoiceStatusPaid}
	drift := &fakeDriftChecker{drifts: map[uuid.UUID]reconcile.Drift{
		draft.ID: {Status: enums.DriftStatusNeedsReview},
	}}
	manager := &fakeManager{}
	consumer := newConsumer(t, &fakeInvoiceLister{invoices: []models.Invoice{draft, paid}}, drift, manager)

	err := consumer.Process(context.Background(), enums.OutboxEventQuoteUpdated, envelopeFor(t, quoteID))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(drift.calls) != 1 || drift.calls[0] != draft.ID {
		t.Fatalf("expected drift check only for the draft invoice, got %v", drift.calls)
	}
	if len(manager.marked) != 1 {
		t.Fatalf("expected event marked processed, got %v", manager.marked)
	}
}

func TestConsumerIgnoresUnrelatedEvents(t *testing.T) {
	lister := &fakeInvoiceLister{err: errors.New("must not be called")}
	drift := &fakeDriftChecker{}
	consumer := newConsumer(t, lister, drift, &fakeManager{})

	err := consumer.Process(context.Background(), enums.OutboxEventInvoiceSent, envelopeFor(t, uuid.New()))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(drift.calls) != 0 {
		t.Fatal("unrelated event must not trigger drift checks")
	}
}

func TestConsumerSkipsAlreadyProcessed(t *testing.T) {
	drift := &fakeDriftChecker{}
	consumer := newConsumer(t, &fakeInvoiceLister{}, drift, &fakeManager{already: true})

	err := consumer.Process(context.Background(), enums.OutboxEventQuoteUpdated, envelopeFor(t, uuid.New()))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(drift.calls) != 0 {
		t.Fatal("duplicate event must not trigger drift checks")
	}
}

func TestConsumerReleasesMarkerOnFailure(t *testing.T) {
	quoteID := uuid.New()
	invoice := models.Invoice{ID: uuid.New(), QuoteID: quoteID, WorkflowStatus: enums.InvoiceStatusDraft}
	drift := &fakeDriftChecker{err: errors.New("boom")}
	manager := &fakeManager{}
	consumer := newConsumer(t, &fakeInvoiceLister{invoices: []models.Invoice{invoice}}, drift, manager)

	err := consumer.Process(context.Background(), enums.OutboxEventQuoteUpdated, envelopeFor(t, quoteID))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(manager.deleted) != 1 {
		t.Fatal("failed event must release the idempotency marker for retry")
	}
}

func TestConsumerRejectsMissingQuoteID(t *testing.T) {
	consumer := newConsumer(t, &fakeInvoiceLister{}, &fakeDriftChecker{}, &fakeManager{})
	envelope := envelopeFor(t, uuid.Nil)

	if err := consumer.Process(context.Background(), enums.OutboxEventQuoteUpdated, envelope); err == nil {
		t.Fatal("expected error for missing quote id")
	}
}
