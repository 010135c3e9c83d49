package changerequests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmorales/caterflow-backend/internal/quotes"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	pkgerrors "github.com/jmorales/caterflow-backend/pkg/errors"
	"github.com/jmorales/caterflow-backend/pkg/outbox"
	"github.com/jmorales/caterflow-backend/pkg/pagination"
)

type memoryRepository struct {
	requests map[uuid.UUID]*models.ChangeRequest
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{requests: map[uuid.UUID]*models.ChangeRequest{}}
}

func (m *memoryRepository) WithTx(tx *gorm.DB) Repository { return m }

func (m *memoryRepository) Create(ctx context.Context, request *models.ChangeRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	request.CreatedAt = time.Now()
	copied := *request
	m.requests[request.ID] = &copied
	return nil
}

func (m *memoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error) {
	request, ok := m.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *request
	return &out, nil
}

func (m *memoryRepository) ListByQuote(ctx context.Context, quoteID uuid.UUID) ([]models.ChangeRequest, error) {
	var out []models.ChangeRequest
	for _, request := range m.requests {
		if request.QuoteID == quoteID {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (m *memoryRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	request, ok := m.requests[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range updates {
		switch key {
		case "status":
			request.Status = value.(enums.ChangeRequestStatus)
		case "resolved_at":
			t := value.(time.Time)
			request.ResolvedAt = &t
		case "admin_response":
			s := value.(string)
			request.AdminResponse = &s
		}
	}
	return nil
}

type fakeQuoteRepo struct {
	quote        *models.Quote
	updates      map[string]any
	fieldChanges []models.QuoteFieldChange
}

func (f *fakeQuoteRepo) WithTx(tx *gorm.DB) quotes.Repository { return f }

func (f *fakeQuoteRepo) Create(ctx context.Context, quote *models.Quote) error { return nil }

func (f *fakeQuoteRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	if f.quote == nil || f.quote.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	out := *f.quote
	return &out, nil
}

func (f *fakeQuoteRepo) List(ctx context.Context, filter quotes.ListFilter, params pagination.Params) ([]models.Quote, error) {
	return nil, nil
}

func (f *fakeQuoteRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	f.updates = updates
	return nil
}

func (f *fakeQuoteRepo) RecordFieldChanges(ctx context.Context, changes []models.QuoteFieldChange) error {
	f.fieldChanges = append(f.fieldChanges, changes...)
	return nil
}

func (f *fakeQuoteRepo) FieldChangesSince(ctx context.Context, quoteID uuid.UUID, since time.Time) ([]models.QuoteFieldChange, error) {
	return nil, nil
}

type fakeAdjuster struct {
	calls []adjustment
	err   error
}

type adjustment struct {
	quoteID     uuid.UUID
	amountCents int64
	title       string
}

func (f *fakeAdjuster) ApplyAdjustment(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID, amountCents int64, title string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, adjustment{quoteID: quoteID, amountCents: amountCents, title: title})
	return nil
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
	svc      Service
	repo     *memoryRepository
	quotes   *fakeQuoteRepo
	adjuster *fakeAdjuster
	outbox   *fakeOutbox
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMemoryRepository(),
		quotes:   &fakeQuoteRepo{},
		adjuster: &fakeAdjuster{},
		outbox:   &fakeOutbox{},
		now:      time.Date(2026, time.April, 10, 15, 0, 0, 0, time.UTC),
	}
	f.quotes.quote = &models.Quote{
		ID:             uuid.New(),
		ContactEmail:   "dana@example.com",
		EventDate:      time.Date(2026, time.June, 20, 0, 0, 0, 0, time.UTC),
		GuestCount:     80,
		Location:       "Riverside Pavilion",
		WorkflowStatus: enums.QuoteStatusEstimated,
	}
	svc, err := NewService(ServiceParams{
		Repo:              f.repo,
		Quotes:            f.quotes,
		Invoices:          f.adjuster,
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

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func datePtr(v time.Time) *time.Time { return &v }

func TestService_Create(t *testing.T) {
	f := newFixture(t)

	request, err := f.svc.Create(context.Background(), CreateInput{
		QuoteID:                  f.quotes.quote.ID,
		RequestedGuestCount:      intPtr(100),
		MenuChanges:              strPtr("swap brisket for pulled pork"),
		EstimatedCostChangeCents: 25000,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if request.Status != enums.ChangeRequestStatusPending {
		t.Fatalf("status %s, want pending", request.Status)
	}
	if request.ID == uuid.Nil {
		t.Fatal("request id not assigned")
	}
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input CreateInput
		code  pkgerrors.Code
	}{
		{name: "missing quote", input: CreateInput{RequestedGuestCount: intPtr(10)}, code: pkgerrors.CodeValidation},
		{name: "empty request", input: CreateInput{QuoteID: f.quotes.quote.ID}, code: pkgerrors.CodeValidation},
		{name: "bad guest count", input: CreateInput{QuoteID: f.quotes.quote.ID, RequestedGuestCount: intPtr(0)}, code: pkgerrors.CodeValidation},
		{name: "unknown quote", input: CreateInput{QuoteID: uuid.New(), RequestedGuestCount: intPtr(10)}, code: pkgerrors.CodeNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Create(context.Background(), tc.input); !pkgerrors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestService_CreateTerminalQuote(t *testing.T) {
	f := newFixture(t)
	f.quotes.quote.WorkflowStatus = enums.QuoteStatusCancelled

	_, err := f.svc.Create(context.Background(), CreateInput{
		QuoteID:             f.quotes.quote.ID,
		RequestedGuestCount: intPtr(100),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_Approve(t *testing.T) {
	f := newFixture(t)
	newDate := time.Date(2026, time.June, 27, 0, 0, 0, 0, time.UTC)
	request, err := f.svc.Create(context.Background(), CreateInput{
		QuoteID:                  f.quotes.quote.ID,
		RequestedEventDate:       datePtr(newDate),
		RequestedGuestCount:      intPtr(100),
		RequestedLocation:        strPtr("Harbor View Hall"),
		EstimatedCostChangeCents: 30000,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	approved, err := f.svc.Approve(context.Background(), ResolveInput{
		RequestID:     request.ID,
		AdminResponse: "Approved with updated headcount pricing.",
	})
	if err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if approved.Status != enums.ChangeRequestStatusApproved {
		t.Fatalf("status %s, want approved", approved.Status)
	}
	if approved.ResolvedAt == nil || !approved.ResolvedAt.Equal(f.now) {
		t.Fatalf("resolved_at %v, want %v", approved.ResolvedAt, f.now)
	}
	if approved.AdminResponse == nil || *approved.AdminResponse == "" {
		t.Fatal("admin response not stored")
	}

	if f.quotes.updates["guest_count"] != 100 {
		t.Fatalf("guest_count update missing: %+v", f.quotes.updates)
	}
	if got := f.quotes.updates["event_date"]; got != newDate {
		t.Fatalf("event_date update %v, want %v", got, newDate)
	}
	if f.quotes.updates["location"] != "Harbor View Hall" {
		t.Fatalf("location update missing: %+v", f.quotes.updates)
	}

	// Only tracked fields land in drift history.
	fields := map[string]bool{}
	for _, change := range f.quotes.fieldChanges {
		fields[change.Field] = true
	}
	if !fields["event_date"] || !fields["guest_count"] {
		t.Fatalf("tracked field changes missing: %v", fields)
	}
	if fields["location"] {
		t.Fatal("location must not be recorded as a tracked change")
	}

	if len(f.adjuster.calls) != 1 {
		t.Fatalf("adjuster calls %d, want 1", len(f.adjuster.calls))
	}
	call := f.adjuster.calls[0]
	if call.quoteID != f.quotes.quote.ID || call.amountCents != 30000 {
		t.Fatalf("unexpected adjustment: %+v", call)
	}

	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.OutboxEventChangeRequestApproved {
		t.Fatalf("expected change_request.approved event, got %+v", f.outbox.events)
	}
}

func TestService_ApproveZeroCostSkipsAdjustment(t *testing.T) {
	f := newFixture(t)
	request, err := f.svc.Create(context.Background(), CreateInput{
		QuoteID:             f.quotes.quote.ID,
		RequestedGuestCount: intPtr(90),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := f.svc.Approve(context.Background(), ResolveInput{RequestID: request.ID}); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if len(f.adjuster.calls) != 0 {
		t.Fatalf("zero cost change must not touch the invoice, got %+v", f.adjuster.calls)
	}
}

func TestService_ApproveNonPending(t *testing.T) {
	f := newFixture(t)
	request, err := f.svc.Create(context.Background(), CreateInput{
		QuoteID:             f.quotes.quote.ID,
		RequestedGuestCount: intPtr(90),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := f.svc.Approve(context.Background(), ResolveInput{RequestID: request.ID}); err != nil {
		t.Fatalf("first Approve error: %v", err)
	}

	if _, err := f.svc.Approve(context.Background(), ResolveInput{RequestID: request.ID}); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on re-approve, got %v", err)
	}
	if _, err := f.svc.Reject(context.Background(), ResolveInput{RequestID: request.ID}); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on reject after approve, got %v", err)
	}
}

func TestService_Reject(t *testing.T) {
	f := newFixture(t)
	request, err := f.svc.Create(context.Background(), CreateInput{
		QuoteID:                  f.quotes.quote.ID,
		RequestedGuestCount:      intPtr(150),
		EstimatedCostChangeCents: 90000,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	rejected, err := f.svc.Reject(context.Background(), ResolveInput{
		RequestID:     request.ID,
		AdminResponse: "Venue capacity is 120.",
	})
	if err != nil {
		t.Fatalf("Reject error: %v", err)
	}
	if rejected.Status != enums.ChangeRequestStatusRejected {
		t.Fatalf("status %s, want rejected", rejected.Status)
	}
	if f.quotes.updates != nil {
		t.Fatalf("reject must not touch the quote: %+v", f.quotes.updates)
	}
	if len(f.adjuster.calls) != 0 {
		t.Fatal("reject must not adjust the invoice")
	}
	if len(f.outbox.events) != 0 {
		t.Fatalf("reject must not emit events, got %+v", f.outbox.events)
	}
}
