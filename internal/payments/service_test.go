package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmorales/caterflow-backend/internal/invoices"
	"github.com/jmorales/caterflow-backend/internal/schedule"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	pkgerrors "github.com/jmorales/caterflow-backend/pkg/errors"
	"github.com/jmorales/caterflow-backend/pkg/outbox"
	"github.com/jmorales/caterflow-backend/pkg/pagination"
)

type memoryRepository struct {
	milestones map[uuid.UUID]*models.PaymentMilestone
	txns       map[uuid.UUID]*models.PaymentTransaction
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		milestones: map[uuid.UUID]*models.PaymentMilestone{},
		txns:       map[uuid.UUID]*models.PaymentTransaction{},
	}
}

func (m *memoryRepository) WithTx(tx *gorm.DB) Repository { return m }

func (m *memoryRepository) CreateMilestones(ctx context.Context, milestones []models.PaymentMilestone) error {
	for i := range milestones {
		if milestones[i].ID == uuid.Nil {
			milestones[i].ID = uuid.New()
		}
		milestones[i].CreatedAt = time.Now()
		copied := milestones[i]
		m.milestones[copied.ID] = &copied
	}
	return nil
}

func (m *memoryRepository) FindMilestone(ctx context.Context, id uuid.UUID) (*models.PaymentMilestone, error) {
	milestone, ok := m.milestones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *milestone
	return &out, nil
}

func (m *memoryRepository) ListMilestones(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentMilestone, error) {
	var out []models.PaymentMilestone
	for _, milestone := range m.milestones {
		if milestone.InvoiceID == invoiceID {
			out = append(out, *milestone)
		}
	}
	return out, nil
}

func (m *memoryRepository) UpdateMilestone(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	milestone, ok := m.milestones[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range updates {
		switch key {
		case "status":
			milestone.Status = value.(enums.MilestoneStatus)
		case "voided_at":
			t := value.(time.Time)
			milestone.VoidedAt = &t
		case "paid_at":
			t := value.(time.Time)
			milestone.PaidAt = &t
		}
	}
	return nil
}

func (m *memoryRepository) ListOverdueInvoiceIDs(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, milestone := range m.milestones {
		if milestone.DueDate == nil || !milestone.DueDate.Before(asOf) {
			continue
		}
		if milestone.Status == enums.MilestoneStatusPaid || milestone.Status == enums.MilestoneStatusVoided {
			continue
		}
		if !seen[milestone.InvoiceID] {
			seen[milestone.InvoiceID] = true
			ids = append(ids, milestone.InvoiceID)
		}
	}
	return ids, nil
}

func (m *memoryRepository) CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	if txn.ProcessorIntentID != nil && txn.Status == enums.TransactionStatusCompleted {
		for _, existing := range m.txns {
			if existing.Status == enums.TransactionStatusCompleted &&
				existing.ProcessorIntentID != nil && *existing.ProcessorIntentID == *txn.ProcessorIntentID {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	txn.CreatedAt = time.Now()
	copied := *txn
	m.txns[txn.ID] = &copied
	return nil
}

func (m *memoryRepository) FindCompletedByIntentID(ctx context.Context, intentID string) (*models.PaymentTransaction, error) {
	for _, txn := range m.txns {
		if txn.Status == enums.TransactionStatusCompleted &&
			txn.ProcessorIntentID != nil && *txn.ProcessorIntentID == intentID {
			out := *txn
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepository) ListTransactions(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentTransaction, error) {
	var out []models.PaymentTransaction
	for _, txn := range m.txns {
		if txn.InvoiceID == invoiceID {
			out = append(out, *txn)
		}
	}
	return out, nil
}

func (m *memoryRepository) SumCompleted(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var sum int64
	for _, txn := range m.txns {
		if txn.InvoiceID == invoiceID && txn.Status == enums.TransactionStatusCompleted {
			sum += txn.AmountCents
		}
	}
	return sum, nil
}

// fakeInvoiceRepo implements the slice of invoices.Repository the payments
// service touches; the remaining methods are unused here.
type fakeInvoiceRepo struct {
	byID map[uuid.UUID]*models.Invoice
}

func (f *fakeInvoiceRepo) WithTx(tx *gorm.DB) invoices.Repository { return f }

func (f *fakeInvoiceRepo) Create(ctx context.Context, invoice *models.Invoice) error { return nil }

func (f *fakeInvoiceRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *invoice
	return &out, nil
}

func (f *fakeInvoiceRepo) FindByQuoteID(ctx context.Context, quoteID uuid.UUID) ([]models.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoiceRepo) List(ctx context.Context, filter invoices.ListFilter, params pagination.Params) ([]models.Invoice, error) {
	return nil, nil
}

func (f *fakeInvoiceRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	invoice, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["workflow_status"]; ok {
		invoice.WorkflowStatus = status.(enums.InvoiceWorkflowStatus)
	}
	return nil
}

func (f *fakeInvoiceRepo) CreateLineItem(ctx context.Context, item *models.InvoiceLineItem) error {
	return nil
}

func (f *fakeInvoiceRepo) FindLineItem(ctx context.Context, id uuid.UUID) (*models.InvoiceLineItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeInvoiceRepo) ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceLineItem, error) {
	return nil, nil
}

func (f *fakeInvoiceRepo) UpdateLineItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return nil
}

func (f *fakeInvoiceRepo) DeleteLineItem(ctx context.Context, id uuid.UUID) error { return nil }

type fakeQuoteStore struct {
	quote *models.Quote
}

func (f *fakeQuoteStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	if f.quote == nil || f.quote.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	out := *f.quote
	return &out, nil
}

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fixture struct {
	svc     Service
	repo    *memoryRepository
	invRepo *fakeInvoiceRepo
	quotes  *fakeQuoteStore
	outbox  *fakeOutbox
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng, err := schedule.NewEngine(schedule.DefaultPolicy())
	if err != nil {
		t.Fatalf("engine error: %v", err)
	}
	f := &fixture{
		repo:    newMemoryRepository(),
		invRepo: &fakeInvoiceRepo{byID: map[uuid.UUID]*models.Invoice{}},
		quotes:  &fakeQuoteStore{},
		outbox:  &fakeOutbox{},
		now:     time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		Repo:              f.repo,
		Invoices:          f.invRepo,
		Quotes:            f.quotes,
		Engine:            eng,
		TransactionRunner: &fakeTxRunner{},
		Outbox:            f.outbox,
		Now:               func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seed(totalCents int64, status enums.InvoiceWorkflowStatus) *models.Invoice {
	quote := &models.Quote{
		ID:           uuid.New(),
		ContactEmail: "dana@example.com",
		EventDate:    time.Date(2026, time.May, 31, 0, 0, 0, 0, time.UTC),
		GuestCount:   60,
	}
	f.quotes.quote = quote
	invoice := &models.Invoice{
		ID:             uuid.New(),
		QuoteID:        quote.ID,
		WorkflowStatus: status,
		TotalCents:     totalCents,
	}
	f.invRepo.byID[invoice.ID] = invoice
	return invoice
}

func TestService_GenerateMilestonesStandard(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(100000, enums.InvoiceStatusSent)

	milestones, err := f.svc.GenerateMilestones(context.Background(), GenerateMilestonesInput{InvoiceID: invoice.ID})
	if err != nil {
		t.Fatalf("GenerateMilestones error: %v", err)
	}
	if len(milestones) != 3 {
		t.Fatalf("expected 3 milestones, got %d", len(milestones))
	}
	var sum int64
	for _, m := range milestones {
		if m.Status != enums.MilestoneStatusPending {
			t.Fatalf("new milestones should be pending: %+v", m)
		}
		sum += m.AmountCents
	}
	if sum != 100000 {
		t.Fatalf("milestone sum %d, want 100000", sum)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.OutboxEventMilestonesGenerated {
		t.Fatalf("expected milestones.generated event, got %+v", f.outbox.events)
	}
}

func TestService_GenerateMilestonesGovernment(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(50000, enums.InvoiceStatusSent)
	gov := "government"
	f.quotes.quote.ComplianceLevel = &gov

	milestones, err := f.svc.GenerateMilestones(context.Background(), GenerateMilestonesInput{InvoiceID: invoice.ID})
	if err != nil {
		t.Fatalf("GenerateMilestones error: %v", err)
	}
	if len(milestones) != 1 {
		t.Fatalf("expected single milestone, got %d", len(milestones))
	}
	if !milestones[0].IsNet30 || milestones[0].AmountCents != 50000 {
		t.Fatalf("unexpected government milestone: %+v", milestones[0])
	}
}

func TestService_GenerateMilestonesIdempotent(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(100000, enums.InvoiceStatusSent)

	first, err := f.svc.GenerateMilestones(context.Background(), GenerateMilestonesInput{InvoiceID: invoice.ID})
	if err != nil {
		t.Fatalf("first generate error: %v", err)
	}
	second, err := f.svc.GenerateMilestones(context.Background(), GenerateMilestonesInput{InvoiceID: invoice.ID})
	if err != nil {
		t.Fatalf("second generate error: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("regenerate must be a no-op, got %d milestones", len(second))
	}
	if len(f.repo.milestones) != 3 {
		t.Fatalf("milestones duplicated: %d rows", len(f.repo.milestones))
	}
}

func TestService_GenerateMilestonesReplaceVoids(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(100000, enums.InvoiceStatusSent)

	if _, err := f.svc.GenerateMilestones(context.Background(), GenerateMilestonesInput{InvoiceID: invoice.ID}); err != nil {
		t.Fatalf("first generate error: %v", err)
	}
	// Total changed; replace the schedule.
	f.invRepo.byID[invoice.ID].TotalCents = 120000

	replaced, err := f.svc.GenerateMilestones(context.Background(), GenerateMilestonesInput{
		InvoiceID: invoice.ID,
		Replace:   true,
	})
	if err != nil {
		t.Fatalf("replace error: %v", err)
	}

	var sum int64
	for _, m := range replaced {
		sum += m.AmountCents
	}
	if sum != 120000 {
		t.Fatalf("replaced sum %d, want 120000", sum)
	}

	voided := 0
	for _, m := range f.repo.milestones {
		if m.Status == enums.MilestoneStatusVoided {
			voided++
			if m.VoidedAt == nil {
				t.Fatal("voided milestone missing voided_at")
			}
		}
	}
	if voided != 3 {
		t.Fatalf("expected 3 voided milestones, got %d", voided)
	}
}

func TestService_GenerateMilestonesReplaceBlockedWhenPaid(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(100000, enums.InvoiceStatusSent)

	milestones, err := f.svc.GenerateMilestones(context.Background(), GenerateMilestonesInput{InvoiceID: invoice.ID})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	f.repo.milestones[milestones[0].ID].Status = enums.MilestoneStatusPaid

	_, err = f.svc.GenerateMilestones(context.Background(), GenerateMilestonesInput{InvoiceID: invoice.ID, Replace: true})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_RecordPaymentAdvancesStatus(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(100000, enums.InvoiceStatusSent)
	milestones, err := f.svc.GenerateMilestones(context.Background(), GenerateMilestonesInput{InvoiceID: invoice.ID})
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	deposit := milestones[0]

	result, err := f.svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:      invoice.ID,
		MilestoneID:    &deposit.ID,
		AmountCents:    deposit.AmountCents,
		Method:         enums.PaymentMethodCard,
		IdempotencyKey: "pi_deposit_1",
	})
	if err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}
	if result.Duplicate {
		t.Fatal("first payment must not be a duplicate")
	}
	if result.NewInvoiceStatus != enums.InvoiceStatusPartiallyPaid {
		t.Fatalf("status %s, want partially_paid", result.NewInvoiceStatus)
	}
	stored, _ := f.repo.FindMilestone(context.Background(), deposit.ID)
	if stored.Status != enums.MilestoneStatusPaid || stored.PaidAt == nil {
		t.Fatalf("covered milestone should be paid: %+v", stored)
	}

	// Pay the rest without targeting a milestone.
	result, err = f.svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:      invoice.ID,
		AmountCents:    75000,
		Method:         enums.PaymentMethodACH,
		IdempotencyKey: "pi_balance_1",
	})
	if err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}
	if result.NewInvoiceStatus != enums.InvoiceStatusPaid {
		t.Fatalf("status %s, want paid once sum reaches total", result.NewInvoiceStatus)
	}
}

func TestService_RecordPaymentDuplicateKey(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(100000, enums.InvoiceStatusSent)

	input := RecordPaymentInput{
		InvoiceID:      invoice.ID,
		AmountCents:    25000,
		IdempotencyKey: "pi_once",
	}
	first, err := f.svc.RecordPayment(context.Background(), input)
	if err != nil {
		t.Fatalf("first RecordPayment error: %v", err)
	}

	second, err := f.svc.RecordPayment(context.Background(), input)
	if err != nil {
		t.Fatalf("duplicate RecordPayment error: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("second call with same key must report duplicate")
	}
	if second.Transaction.ID != first.Transaction.ID {
		t.Fatal("duplicate must return the original transaction")
	}
	if len(f.repo.txns) != 1 {
		t.Fatalf("duplicate created a second transaction: %d rows", len(f.repo.txns))
	}
	sum, _ := f.repo.SumCompleted(context.Background(), invoice.ID)
	if sum != 25000 {
		t.Fatalf("completed sum %d, want 25000 (no double count)", sum)
	}
}

func TestService_RecordPaymentAfterFailedAttempt(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(100000, enums.InvoiceStatusSent)

	// A declined charge and its retry share the processor intent id.
	if _, err := f.svc.RecordFailure(context.Background(), RecordFailureInput{
		InvoiceID:      invoice.ID,
		AmountCents:    100000,
		IdempotencyKey: "pi_retry",
		Reason:         "card_declined",
	}); err != nil {
		t.Fatalf("RecordFailure error: %v", err)
	}

	result, err := f.svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:      invoice.ID,
		AmountCents:    100000,
		IdempotencyKey: "pi_retry",
	})
	if err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}
	if result.Duplicate {
		t.Fatal("retry after a failed attempt must not be treated as a duplicate")
	}
	if result.NewInvoiceStatus != enums.InvoiceStatusPaid {
		t.Fatalf("status %s, want paid", result.NewInvoiceStatus)
	}
	sum, _ := f.repo.SumCompleted(context.Background(), invoice.ID)
	if sum != 100000 {
		t.Fatalf("completed sum %d, want 100000", sum)
	}

	// A second successful attempt for the same intent still dedupes.
	again, err := f.svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:      invoice.ID,
		AmountCents:    100000,
		IdempotencyKey: "pi_retry",
	})
	if err != nil {
		t.Fatalf("repeat RecordPayment error: %v", err)
	}
	if !again.Duplicate {
		t.Fatal("completed intent must dedupe on replay")
	}
}

func TestService_RecordPaymentOverpayRejected(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(100000, enums.InvoiceStatusSent)

	if _, err := f.svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:      invoice.ID,
		AmountCents:    90000,
		IdempotencyKey: "pi_1",
	}); err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}

	_, err := f.svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:      invoice.ID,
		AmountCents:    20000,
		IdempotencyKey: "pi_2",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for overpayment, got %v", err)
	}
}

func TestService_RecordPaymentValidation(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(100000, enums.InvoiceStatusSent)

	tests := []struct {
		name  string
		input RecordPaymentInput
	}{
		{name: "zero amount", input: RecordPaymentInput{InvoiceID: invoice.ID, IdempotencyKey: "pi_x"}},
		{name: "missing key", input: RecordPaymentInput{InvoiceID: invoice.ID, AmountCents: 100}},
		{name: "missing invoice", input: RecordPaymentInput{AmountCents: 100, IdempotencyKey: "pi_x"}},
		{name: "bad method", input: RecordPaymentInput{InvoiceID: invoice.ID, AmountCents: 100, IdempotencyKey: "pi_x", Method: enums.PaymentMethod("barter")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.RecordPayment(context.Background(), tc.input); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_RecordFailureNeverAdvancesStatus(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(100000, enums.InvoiceStatusSent)

	txn, err := f.svc.RecordFailure(context.Background(), RecordFailureInput{
		InvoiceID:      invoice.ID,
		AmountCents:    25000,
		IdempotencyKey: "pi_failed",
		Reason:         "card_declined",
	})
	if err != nil {
		t.Fatalf("RecordFailure error: %v", err)
	}
	if txn.Status != enums.TransactionStatusFailed {
		t.Fatalf("status %s, want failed", txn.Status)
	}
	if txn.FailureReason == nil || *txn.FailureReason != "card_declined" {
		t.Fatalf("failure reason not stored: %+v", txn.FailureReason)
	}
	if f.invRepo.byID[invoice.ID].WorkflowStatus != enums.InvoiceStatusSent {
		t.Fatal("failed payment must not change invoice status")
	}
	sum, _ := f.repo.SumCompleted(context.Background(), invoice.ID)
	if sum != 0 {
		t.Fatal("failed payment must not count toward the balance")
	}
}

func TestService_SweepOverdue(t *testing.T) {
	f := newFixture(t)
	invoice := f.seed(100000, enums.InvoiceStatusSent)
	if _, err := f.svc.GenerateMilestones(context.Background(), GenerateMilestonesInput{InvoiceID: invoice.ID}); err != nil {
		t.Fatalf("generate error: %v", err)
	}

	// Nothing due yet.
	flipped, err := f.svc.SweepOverdue(context.Background(), f.now)
	if err != nil {
		t.Fatalf("SweepOverdue error: %v", err)
	}
	if flipped != 0 {
		t.Fatalf("flipped %d, want 0", flipped)
	}

	// Past the balance due date everything unpaid is overdue.
	flipped, err = f.svc.SweepOverdue(context.Background(), f.now.AddDate(0, 2, 0))
	if err != nil {
		t.Fatalf("SweepOverdue error: %v", err)
	}
	if flipped != 1 {
		t.Fatalf("flipped %d, want 1", flipped)
	}
	if f.invRepo.byID[invoice.ID].WorkflowStatus != enums.InvoiceStatusOverdue {
		t.Fatalf("invoice not marked overdue: %s", f.invRepo.byID[invoice.ID].WorkflowStatus)
	}

	// Draft invoices are never flipped.
	draft := f.seed(50000, enums.InvoiceStatusDraft)
	due := f.now.AddDate(0, 0, -1)
	f.repo.milestones[uuid.New()] = &models.PaymentMilestone{
		ID:        uuid.New(),
		InvoiceID: draft.ID,
		Status:    enums.MilestoneStatusPending,
		DueDate:   &due,
	}
	flipped, err = f.svc.SweepOverdue(context.Background(), f.now)
	if err != nil {
		t.Fatalf("SweepOverdue error: %v", err)
	}
	if flipped != 0 {
		t.Fatalf("flipped %d, want 0", flipped)
	}
	if f.invRepo.byID[draft.ID].WorkflowStatus != enums.InvoiceStatusDraft {
		t.Fatal("draft invoice must not be flipped to overdue")
	}
}
