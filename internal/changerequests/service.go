package changerequests

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmorales/caterflow-backend/internal/quotes"
	"github.com/jmorales/caterflow-backend/internal/reconcile"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	pkgerrors "github.com/jmorales/caterflow-backend/pkg/errors"
	"github.com/jmorales/caterflow-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InvoiceAdjuster applies a signed cost adjustment to the invoice linked to a
// quote, inside the caller's transaction.
type InvoiceAdjuster interface {
	ApplyAdjustment(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID, amountCents int64, title string) error
}

// Service defines change-request operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.ChangeRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error)
	ListByQuote(ctx context.Context, quoteID uuid.UUID) ([]models.ChangeRequest, error)
	Approve(ctx context.Context, input ResolveInput) (*models.ChangeRequest, error)
	Reject(ctx context.Context, input ResolveInput) (*models.ChangeRequest, error)
}

// ServiceParams groups dependencies for the change-request service.
type ServiceParams struct {
	Repo              Repository
	Quotes            quotes.Repository
	Invoices          InvoiceAdjuster
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Now               func() time.Time
}

type service struct {
	repo     Repository
	quotes   quotes.Repository
	invoices InvoiceAdjuster
	tx       txRunner
	outbox   outboxPublisher
	now      func() time.Time
}

// CreateInput is a customer-submitted modification to an existing quote.
type CreateInput struct {
	QuoteID uuid.UUID

	RequestedEventDate  *time.Time
	RequestedGuestCount *int
	RequestedLocation   *string
	RequestedStartTime  *string

	MenuChanges    *string
	ServiceChanges *string
	DietaryChanges *string

	EstimatedCostChangeCents int64
}

// ResolveInput approves or rejects a pending change request.
type ResolveInput struct {
	RequestID     uuid.UUID
	AdminResponse string
	ActorID       uuid.UUID
}

// ChangeRequestApprovedEvent is emitted when an approval lands.
type ChangeRequestApprovedEvent struct {
	ChangeRequestID uuid.UUID `json:"change_request_id"`
	QuoteID         uuid.UUID `json:"quote_id"`
	ChangedFields   []string  `json:"changed_fields"`
	CostChangeCents int64     `json:"cost_change_cents"`
}

// NewService builds a change-request service from its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("change request repository required")
	}
	if params.Quotes == nil {
		return nil, fmt.Errorf("quote repository required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice adjuster required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		quotes:   params.Quotes,
		invoices: params.Invoices,
		tx:       params.TransactionRunner,
		outbox:   params.Outbox,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.ChangeRequest, error) {
	if input.QuoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}
	if input.RequestedGuestCount != nil && *input.RequestedGuestCount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested guest count must be positive")
	}
	if !hasRequestedChanges(input) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "change request is empty")
	}

	quote, err := s.quotes.FindByID(ctx, input.QuoteID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}
	if quote.WorkflowStatus.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "quote is in a terminal state")
	}

	request := &models.ChangeRequest{
		QuoteID:                  quote.ID,
		RequestedEventDate:       input.RequestedEventDate,
		RequestedGuestCount:      input.RequestedGuestCount,
		RequestedLocation:        input.RequestedLocation,
		RequestedStartTime:       input.RequestedStartTime,
		MenuChanges:              input.MenuChanges,
		ServiceChanges:           input.ServiceChanges,
		DietaryChanges:           input.DietaryChanges,
		EstimatedCostChangeCents: input.EstimatedCostChangeCents,
		Status:                   enums.ChangeRequestStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create change request")
	}
	return request, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ChangeRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "change request id required")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "change request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load change request")
	}
	return request, nil
}

func (s *service) ListByQuote(ctx context.Context, quoteID uuid.UUID) ([]models.ChangeRequest, error) {
	if quoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}
	requests, err := s.repo.ListByQuote(ctx, quoteID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list change requests")
	}
	return requests, nil
}

// Approve applies the request's structured fields to the quote, adjusts the
// linked invoice by the estimated cost change, and marks the request approved.
// Everything commits in a single transaction.
func (s *service) Approve(ctx context.Context, input ResolveInput) (*models.ChangeRequest, error) {
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "change request id required")
	}

	var approved *models.ChangeRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		quoteRepo := s.quotes.WithTx(tx)

		request, err := repo.FindByID(ctx, input.RequestID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "change request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load change request")
		}
		if request.Status != enums.ChangeRequestStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("change request already %s", request.Status))
		}

		quote, err := quoteRepo.FindByID(ctx, request.QuoteID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
		}

		updates, changes := quoteUpdates(quote, request)
		if len(updates) > 0 {
			if err := quoteRepo.Update(ctx, quote.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply quote changes")
			}
			if err := quoteRepo.RecordFieldChanges(ctx, changes); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record field changes")
			}
		}

		if request.EstimatedCostChangeCents != 0 {
			title := fmt.Sprintf("Change request adjustment (%s)", request.ID)
			if err := s.invoices.ApplyAdjustment(ctx, tx, quote.ID, request.EstimatedCostChangeCents, title); err != nil {
				return err
			}
		}

		resolvedAt := s.now()
		resolution := map[string]any{
			"status":      enums.ChangeRequestStatusApproved,
			"resolved_at": resolvedAt,
		}
		if response := strings.TrimSpace(input.AdminResponse); response != "" {
			resolution["admin_response"] = response
		}
		if err := repo.Update(ctx, request.ID, resolution); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve change request")
		}

		request.Status = enums.ChangeRequestStatusApproved
		request.ResolvedAt = &resolvedAt
		if response := strings.TrimSpace(input.AdminResponse); response != "" {
			request.AdminResponse = &response
		}
		approved = request

		changed := make([]string, 0, len(changes))
		for _, c := range changes {
			changed = append(changed, c.Field)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventChangeRequestApproved,
			AggregateType: enums.OutboxAggregateQuote,
			AggregateID:   quote.ID,
			Actor:         actorRef(input.ActorID),
			Data: ChangeRequestApprovedEvent{
				ChangeRequestID: request.ID,
				QuoteID:         quote.ID,
				ChangedFields:   changed,
				CostChangeCents: request.EstimatedCostChangeCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

func (s *service) Reject(ctx context.Context, input ResolveInput) (*models.ChangeRequest, error) {
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "change request id required")
	}

	var rejected *models.ChangeRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		request, err := repo.FindByID(ctx, input.RequestID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "change request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load change request")
		}
		if request.Status != enums.ChangeRequestStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("change request already %s", request.Status))
		}

		resolvedAt := s.now()
		resolution := map[string]any{
			"status":      enums.ChangeRequestStatusRejected,
			"resolved_at": resolvedAt,
		}
		if response := strings.TrimSpace(input.AdminResponse); response != "" {
			resolution["admin_response"] = response
		}
		if err := repo.Update(ctx, request.ID, resolution); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve change request")
		}

		request.Status = enums.ChangeRequestStatusRejected
		request.ResolvedAt = &resolvedAt
		if response := strings.TrimSpace(input.AdminResponse); response != "" {
			request.AdminResponse = &response
		}
		rejected = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// quoteUpdates maps a request's structured fields onto quote column updates,
// recording tracked fields for drift history the same way admin edits do.
func quoteUpdates(quote *models.Quote, request *models.ChangeRequest) (map[string]any, []models.QuoteFieldChange) {
	updates := map[string]any{}
	var changes []models.QuoteFieldChange

	record := func(field, oldVal, newVal string) {
		if !reconcile.TrackedField(field) {
			return
		}
		changes = append(changes, models.QuoteFieldChange{
			QuoteID:  quote.ID,
			Field:    field,
			OldValue: &oldVal,
			NewValue: &newVal,
		})
	}

	if request.RequestedEventDate != nil && !request.RequestedEventDate.Equal(quote.EventDate) {
		updates["event_date"] = *request.RequestedEventDate
		record("event_date", quote.EventDate.Format("2006-01-02"), request.RequestedEventDate.Format("2006-01-02"))
	}
	if request.RequestedGuestCount != nil && *request.RequestedGuestCount != quote.GuestCount {
		updates["guest_count"] = *request.RequestedGuestCount
		record("guest_count", strconv.Itoa(quote.GuestCount), strconv.Itoa(*request.RequestedGuestCount))
	}
	if request.RequestedLocation != nil && *request.RequestedLocation != quote.Location {
		updates["location"] = *request.RequestedLocation
	}
	if request.RequestedStartTime != nil && deref(request.RequestedStartTime) != deref(quote.StartTime) {
		updates["start_time"] = *request.RequestedStartTime
	}
	return updates, changes
}

func hasRequestedChanges(input CreateInput) bool {
	if input.RequestedEventDate != nil || input.RequestedGuestCount != nil ||
		input.RequestedLocation != nil || input.RequestedStartTime != nil {
		return true
	}
	if deref(input.MenuChanges) != "" || deref(input.ServiceChanges) != "" || deref(input.DietaryChanges) != "" {
		return true
	}
	return input.EstimatedCostChangeCents != 0
}

func actorRef(actorID uuid.UUID) *outbox.ActorRef {
	if actorID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actorID, Role: "admin"}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
