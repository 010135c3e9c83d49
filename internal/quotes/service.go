package quotes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmorales/caterflow-backend/internal/reconcile"
	"github.com/jmorales/caterflow-backend/internal/schedule"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	dbtypes "github.com/jmorales/caterflow-backend/pkg/db/types"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	pkgerrors "github.com/jmorales/caterflow-backend/pkg/errors"
	"github.com/jmorales/caterflow-backend/pkg/outbox"
	"github.com/jmorales/caterflow-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines quote-level operations.
type Service interface {
	Create(ctx context.Context, input CreateQuoteInput) (*models.Quote, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Quote, error)
	AdminUpdate(ctx context.Context, input UpdateQuoteInput) (*models.Quote, error)
	Transition(ctx context.Context, id uuid.UUID, target enums.QuoteWorkflowStatus, actorID uuid.UUID) (*models.Quote, error)
	FieldChangesSince(ctx context.Context, quoteID uuid.UUID, since time.Time) ([]models.QuoteFieldChange, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// CreateQuoteInput captures an inbound event request.
type CreateQuoteInput struct {
	ContactName         string
	ContactEmail        string
	ContactPhone        *string
	Organization        *string
	EventDate           time.Time
	StartTime           *string
	GuestCount          int
	Location            string
	ServiceType         string
	PrimaryProtein      *string
	SecondaryProtein    *string
	Appetizers          []string
	Sides               []string
	Desserts            []string
	Drinks              []string
	DietaryRestrictions *string
	SpecialRequests     *string
	NeedsEquipment      bool
	NeedsServiceStaff   bool
	ComplianceLevel     *string
}

// UpdateQuoteInput carries admin edits. Nil pointers leave fields untouched;
// tracked fields produce quote_field_changes rows feeding drift detection.
type UpdateQuoteInput struct {
	QuoteID             uuid.UUID
	ActorID             uuid.UUID
	EventDate           *time.Time
	StartTime           *string
	GuestCount          *int
	Location            *string
	ServiceType         *string
	PrimaryProtein      *string
	SecondaryProtein    *string
	Appetizers          []string
	Sides               []string
	Desserts            []string
	Drinks              []string
	DietaryRestrictions *string
	SpecialRequests     *string
	NeedsEquipment      *bool
	NeedsServiceStaff   *bool
}

// QuoteUpdatedEvent is emitted whenever tracked quote fields change.
type QuoteUpdatedEvent struct {
	QuoteID       uuid.UUID `json:"quote_id"`
	ChangedFields []string  `json:"changed_fields"`
}

// QuoteTransitionedEvent is emitted on workflow status changes.
type QuoteTransitionedEvent struct {
	QuoteID uuid.UUID                 `json:"quote_id"`
	From    enums.QuoteWorkflowStatus `json:"from"`
	To      enums.QuoteWorkflowStatus `json:"to"`
}

// NewService wires a quote service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("quotes repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) Create(ctx context.Context, input CreateQuoteInput) (*models.Quote, error) {
	if strings.TrimSpace(input.ContactName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact name required")
	}
	if strings.TrimSpace(input.ContactEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact email required")
	}
	if input.EventDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event date required")
	}
	if input.GuestCount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest count must be positive")
	}

	quote := &models.Quote{
		ContactName:         input.ContactName,
		ContactEmail:        strings.ToLower(strings.TrimSpace(input.ContactEmail)),
		ContactPhone:        input.ContactPhone,
		Organization:        input.Organization,
		EventDate:           input.EventDate,
		StartTime:           input.StartTime,
		GuestCount:          input.GuestCount,
		Location:            input.Location,
		ServiceType:         input.ServiceType,
		PrimaryProtein:      input.PrimaryProtein,
		SecondaryProtein:    input.SecondaryProtein,
		Appetizers:          dbtypes.StringList(input.Appetizers),
		Sides:               dbtypes.StringList(input.Sides),
		Desserts:            dbtypes.StringList(input.Desserts),
		Drinks:              dbtypes.StringList(input.Drinks),
		DietaryRestrictions: input.DietaryRestrictions,
		SpecialRequests:     input.SpecialRequests,
		NeedsEquipment:      input.NeedsEquipment,
		NeedsServiceStaff:   input.NeedsServiceStaff,
		ComplianceLevel:     input.ComplianceLevel,
		WorkflowStatus:      enums.QuoteStatusPending,
	}
	if quote.ServiceType == "" {
		quote.ServiceType = "drop_off"
	}

	if err := s.repo.Create(ctx, quote); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create quote")
	}
	return quote, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}
	quote, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}
	return quote, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Quote, error) {
	quotes, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	return quotes, nil
}

func (s *service) FieldChangesSince(ctx context.Context, quoteID uuid.UUID, since time.Time) ([]models.QuoteFieldChange, error) {
	if quoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}
	changes, err := s.repo.FieldChangesSince(ctx, quoteID, since)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote field changes")
	}
	return changes, nil
}

// Classification derives the billing customer type for a quote.
func Classification(quote *models.Quote) enums.CustomerType {
	if quote == nil {
		return enums.CustomerTypePerson
	}
	return schedule.ClassifyCustomer(quote.ContactEmail, deref(quote.Organization), deref(quote.ComplianceLevel))
}

func (s *service) AdminUpdate(ctx context.Context, input UpdateQuoteInput) (*models.Quote, error) {
	if input.QuoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}
	if input.GuestCount != nil && *input.GuestCount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest count must be positive")
	}

	var updated *models.Quote
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		quote, err := repo.FindByID(ctx, input.QuoteID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
		}
		if quote.WorkflowStatus.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "quote is in a terminal state")
		}

		updates, changes := buildUpdates(quote, input)
		if len(updates) == 0 {
			updated = quote
			return nil
		}

		if err := repo.Update(ctx, quote.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quote")
		}
		if err := repo.RecordFieldChanges(ctx, changes); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record field changes")
		}

		applyUpdates(quote, input)
		updated = quote

		changed := make([]string, 0, len(changes))
		for _, c := range changes {
			changed = append(changed, c.Field)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventQuoteUpdated,
			AggregateType: enums.OutboxAggregateQuote,
			AggregateID:   quote.ID,
			Actor:         actorRef(input.ActorID),
			Data: QuoteUpdatedEvent{
				QuoteID:       quote.ID,
				ChangedFields: changed,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Transition(ctx context.Context, id uuid.UUID, target enums.QuoteWorkflowStatus, actorID uuid.UUID) (*models.Quote, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid workflow status %q", target))
	}

	var updated *models.Quote
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		quote, err := repo.FindByID(ctx, id)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
		}
		if quote.WorkflowStatus == target {
			updated = quote
			return nil
		}
		if !CanTransition(quote.WorkflowStatus, target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot transition quote from %s to %s", quote.WorkflowStatus, target))
		}

		if err := repo.Update(ctx, quote.ID, map[string]any{"workflow_status": target}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update workflow status")
		}

		from := quote.WorkflowStatus
		quote.WorkflowStatus = target
		updated = quote

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventQuoteUpdated,
			AggregateType: enums.OutboxAggregateQuote,
			AggregateID:   quote.ID,
			Actor:         actorRef(actorID),
			Data: QuoteTransitionedEvent{
				QuoteID: quote.ID,
				From:    from,
				To:      target,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// buildUpdates diffs the input against the stored quote. It returns the gorm
// update map and the field-change rows for every tracked field that moved.
func buildUpdates(quote *models.Quote, input UpdateQuoteInput) (map[string]any, []models.QuoteFieldChange) {
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

	if input.EventDate != nil && !input.EventDate.Equal(quote.EventDate) {
		updates["event_date"] = *input.EventDate
		record("event_date", quote.EventDate.Format("2006-01-02"), input.EventDate.Format("2006-01-02"))
	}
	if input.StartTime != nil && deref(input.StartTime) != deref(quote.StartTime) {
		updates["start_time"] = *input.StartTime
	}
	if input.GuestCount != nil && *input.GuestCount != quote.GuestCount {
		updates["guest_count"] = *input.GuestCount
		record("guest_count", strconv.Itoa(quote.GuestCount), strconv.Itoa(*input.GuestCount))
	}
	if input.Location != nil && *input.Location != quote.Location {
		updates["location"] = *input.Location
	}
	if input.ServiceType != nil && *input.ServiceType != quote.ServiceType {
		updates["service_type"] = *input.ServiceType
		record("service_type", quote.ServiceType, *input.ServiceType)
	}
	if input.PrimaryProtein != nil && deref(input.PrimaryProtein) != deref(quote.PrimaryProtein) {
		updates["primary_protein"] = *input.PrimaryProtein
		record("primary_protein", deref(quote.PrimaryProtein), *input.PrimaryProtein)
	}
	if input.SecondaryProtein != nil && deref(input.SecondaryProtein) != deref(quote.SecondaryProtein) {
		updates["secondary_protein"] = *input.SecondaryProtein
		record("secondary_protein", deref(quote.SecondaryProtein), *input.SecondaryProtein)
	}
	if input.Appetizers != nil && !sameList(input.Appetizers, quote.Appetizers) {
		updates["appetizers"] = dbtypes.StringList(input.Appetizers)
		record("appetizers", joinList(quote.Appetizers), joinList(input.Appetizers))
	}
	if input.Sides != nil && !sameList(input.Sides, quote.Sides) {
		updates["sides"] = dbtypes.StringList(input.Sides)
		record("sides", joinList(quote.Sides), joinList(input.Sides))
	}
	if input.Desserts != nil && !sameList(input.Desserts, quote.Desserts) {
		updates["desserts"] = dbtypes.StringList(input.Desserts)
		record("desserts", joinList(quote.Desserts), joinList(input.Desserts))
	}
	if input.Drinks != nil && !sameList(input.Drinks, quote.Drinks) {
		updates["drinks"] = dbtypes.StringList(input.Drinks)
		record("drinks", joinList(quote.Drinks), joinList(input.Drinks))
	}
	if input.DietaryRestrictions != nil && deref(input.DietaryRestrictions) != deref(quote.DietaryRestrictions) {
		updates["dietary_restrictions"] = *input.DietaryRestrictions
		record("dietary_restrictions", deref(quote.DietaryRestrictions), *input.DietaryRestrictions)
	}
	if input.SpecialRequests != nil && deref(input.SpecialRequests) != deref(quote.SpecialRequests) {
		updates["special_requests"] = *input.SpecialRequests
		record("special_requests", deref(quote.SpecialRequests), *input.SpecialRequests)
	}
	if input.NeedsEquipment != nil && *input.NeedsEquipment != quote.NeedsEquipment {
		updates["needs_equipment"] = *input.NeedsEquipment
	}
	if input.NeedsServiceStaff != nil && *input.NeedsServiceStaff != quote.NeedsServiceStaff {
		updates["needs_service_staff"] = *input.NeedsServiceStaff
	}

	return updates, changes
}

func applyUpdates(quote *models.Quote, input UpdateQuoteInput) {
	if input.EventDate != nil {
		quote.EventDate = *input.EventDate
	}
	if input.StartTime != nil {
		quote.StartTime = input.StartTime
	}
	if input.GuestCount != nil {
		quote.GuestCount = *input.GuestCount
	}
	if input.Location != nil {
		quote.Location = *input.Location
	}
	if input.ServiceType != nil {
		quote.ServiceType = *input.ServiceType
	}
	if input.PrimaryProtein != nil {
		quote.PrimaryProtein = input.PrimaryProtein
	}
	if input.SecondaryProtein != nil {
		quote.SecondaryProtein = input.SecondaryProtein
	}
	if input.Appetizers != nil {
		quote.Appetizers = dbtypes.StringList(input.Appetizers)
	}
	if input.Sides != nil {
		quote.Sides = dbtypes.StringList(input.Sides)
	}
	if input.Desserts != nil {
		quote.Desserts = dbtypes.StringList(input.Desserts)
	}
	if input.Drinks != nil {
		quote.Drinks = dbtypes.StringList(input.Drinks)
	}
	if input.DietaryRestrictions != nil {
		quote.DietaryRestrictions = input.DietaryRestrictions
	}
	if input.SpecialRequests != nil {
		quote.SpecialRequests = input.SpecialRequests
	}
	if input.NeedsEquipment != nil {
		quote.NeedsEquipment = *input.NeedsEquipment
	}
	if input.NeedsServiceStaff != nil {
		quote.NeedsServiceStaff = *input.NeedsServiceStaff
	}
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

func sameList(a []string, b dbtypes.StringList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinList(values []string) string {
	return strings.Join(values, ", ")
}
