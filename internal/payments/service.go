package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmorales/caterflow-backend/internal/invoices"
	"github.com/jmorales/caterflow-backend/internal/quotes"
	"github.com/jmorales/caterflow-backend/internal/schedule"
	"github.com/jmorales/caterflow-backend/pkg/db"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	pkgerrors "github.com/jmorales/caterflow-backend/pkg/errors"
	"github.com/jmorales/caterflow-backend/pkg/metrics"
	"github.com/jmorales/caterflow-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// QuoteStore reads the quote backing an invoice.
type QuoteStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
}

// Service defines payment-schedule and payment-recording operations.
type Service interface {
	GenerateMilestones(ctx context.Context, input GenerateMilestonesInput) ([]models.PaymentMilestone, error)
	ListMilestones(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentMilestone, error)
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*PaymentResult, error)
	RecordFailure(ctx context.Context, input RecordFailureInput) (*models.PaymentTransaction, error)
	ListTransactions(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentTransaction, error)
	SweepOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// ServiceParams groups dependencies for the payments service.
type ServiceParams struct {
	Repo              Repository
	Invoices          invoices.Repository
	Quotes            QuoteStore
	Engine            *schedule.Engine
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Metrics           *metrics.BillingMetrics
	Now               func() time.Time
}

type service struct {
	repo     Repository
	invoices invoices.Repository
	quotes   QuoteStore
	engine   *schedule.Engine
	tx       txRunner
	outbox   outboxPublisher
	metrics  *metrics.BillingMetrics
	now      func() time.Time
}

// GenerateMilestonesInput controls schedule persistence. Regenerating for an
// invoice with active milestones is a no-op unless Replace is set, in which
// case the old milestones are voided first.
type GenerateMilestonesInput struct {
	InvoiceID uuid.UUID
	ActorID   uuid.UUID
	Replace   bool
}

// RecordPaymentInput captures a completed (or completing) payment.
// IdempotencyKey is the processor's payment-intent id: recording the same key
// twice returns success without changing state.
type RecordPaymentInput struct {
	InvoiceID      uuid.UUID
	MilestoneID    *uuid.UUID
	AmountCents    int64
	Method         enums.PaymentMethod
	IdempotencyKey string
	ActorID        uuid.UUID
}

// RecordFailureInput records a failed payment attempt. Failures never advance
// milestone or invoice status.
type RecordFailureInput struct {
	InvoiceID      uuid.UUID
	MilestoneID    *uuid.UUID
	AmountCents    int64
	Method         enums.PaymentMethod
	IdempotencyKey string
	Reason         string
}

// PaymentResult reports the state after a recorded payment.
type PaymentResult struct {
	Transaction      *models.PaymentTransaction
	NewInvoiceStatus enums.InvoiceWorkflowStatus
	Duplicate        bool
}

// MilestonesGeneratedEvent is emitted when a schedule is persisted.
type MilestonesGeneratedEvent struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Count     int       `json:"count"`
	Replaced  bool      `json:"replaced"`
}

// PaymentRecordedEvent is emitted for every non-duplicate completed payment.
type PaymentRecordedEvent struct {
	InvoiceID     uuid.UUID                   `json:"invoice_id"`
	TransactionID uuid.UUID                   `json:"transaction_id"`
	AmountCents   int64                       `json:"amount_cents"`
	InvoiceStatus enums.InvoiceWorkflowStatus `json:"invoice_status"`
}

// NewService builds a payments service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice store required")
	}
	if params.Quotes == nil {
		return nil, fmt.Errorf("quote store required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("schedule engine required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	svc := &service{
		repo:     params.Repo,
		invoices: params.Invoices,
		quotes:   params.Quotes,
		engine:   params.Engine,
		tx:       params.TransactionRunner,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		now:      params.Now,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) GenerateMilestones(ctx context.Context, input GenerateMilestonesInput) ([]models.PaymentMilestone, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}

	var result []models.PaymentMilestone
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoiceRepo := s.invoices.WithTx(tx)

		invoice, err := invoiceRepo.FindByID(ctx, input.InvoiceID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		if invoice.TotalCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "invoice total must be positive before scheduling")
		}

		existing, err := repo.ListMilestones(ctx, invoice.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list milestones")
		}
		active := activeMilestones(existing)
		if len(active) > 0 {
			if !input.Replace {
				result = active
				return nil
			}
			voidedAt := s.now()
			for _, m := range active {
				if m.Status == enums.MilestoneStatusPaid {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot replace a schedule with paid milestones")
				}
				if err := repo.UpdateMilestone(ctx, m.ID, map[string]any{
					"status":    enums.MilestoneStatusVoided,
					"voided_at": voidedAt,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void milestone")
				}
			}
		}

		quote, err := s.quotes.FindByID(ctx, invoice.QuoteID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
		}

		specs, err := s.engine.Generate(schedule.Input{
			TotalCents:   invoice.TotalCents,
			CustomerType: quotes.Classification(quote),
			EventDate:    quote.EventDate,
			ApprovalDate: s.now(),
		})
		if err != nil {
			return err
		}

		rows := make([]models.PaymentMilestone, 0, len(specs))
		for _, spec := range specs {
			rows = append(rows, models.PaymentMilestone{
				InvoiceID:     invoice.ID,
				MilestoneType: spec.Type,
				Status:        enums.MilestoneStatusPending,
				Percentage:    spec.Percentage,
				AmountCents:   spec.AmountCents,
				DueDate:       spec.DueDate,
				IsDueNow:      spec.IsDueNow,
				IsNet30:       spec.IsNet30,
				Description:   spec.Description,
			})
		}
		if err := repo.CreateMilestones(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist milestones")
		}

		result = rows
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventMilestonesGenerated,
			AggregateType: enums.OutboxAggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         actorRef(input.ActorID),
			Data: MilestonesGeneratedEvent{
				InvoiceID: invoice.ID,
				Count:     len(rows),
				Replaced:  input.Replace && len(active) > 0,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ListMilestones(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentMilestone, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	milestones, err := s.repo.ListMilestones(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list milestones")
	}
	return milestones, nil
}

func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*PaymentResult, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	method := input.Method
	if method == "" {
		method = enums.PaymentMethodCard
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}

	// Fast path: the same payment intent already completed. Failed attempts
	// for the intent do not count as duplicates.
	if existing, err := s.repo.FindCompletedByIntentID(ctx, key); err == nil {
		return s.duplicateResult(ctx, existing)
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	}

	var result *PaymentResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoiceRepo := s.invoices.WithTx(tx)

		invoice, err := invoiceRepo.FindByID(ctx, input.InvoiceID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}

		paidSoFar, err := repo.SumCompleted(ctx, invoice.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum completed payments")
		}
		if paidSoFar+input.AmountCents > invoice.TotalCents {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("payment of %d cents would exceed invoice total (%d of %d already paid)",
					input.AmountCents, paidSoFar, invoice.TotalCents))
		}

		var milestone *models.PaymentMilestone
		if input.MilestoneID != nil {
			milestone, err = repo.FindMilestone(ctx, *input.MilestoneID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
			}
			if milestone.InvoiceID != invoice.ID {
				return pkgerrors.New(pkgerrors.CodeValidation, "milestone does not belong to invoice")
			}
			if milestone.Status == enums.MilestoneStatusVoided {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "milestone is voided")
			}
		}

		processedAt := s.now()
		txn := &models.PaymentTransaction{
			InvoiceID:         invoice.ID,
			MilestoneID:       input.MilestoneID,
			AmountCents:       input.AmountCents,
			PaymentMethod:     method,
			Status:            enums.TransactionStatusCompleted,
			ProcessorIntentID: &key,
			ProcessedAt:       &processedAt,
		}
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			// A concurrent webhook retry can win the unique-index race.
			if db.IsUniqueViolation(err, "") {
				return errDuplicateIntent
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
		}

		if milestone != nil {
			covered, err := s.milestoneCovered(ctx, repo, milestone)
			if err != nil {
				return err
			}
			if covered {
				if err := repo.UpdateMilestone(ctx, milestone.ID, map[string]any{
					"status":  enums.MilestoneStatusPaid,
					"paid_at": processedAt,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark milestone paid")
				}
			}
		}

		newStatus := invoice.WorkflowStatus
		totalPaid := paidSoFar + input.AmountCents
		if totalPaid >= invoice.TotalCents {
			newStatus = enums.InvoiceStatusPaid
		} else {
			newStatus = enums.InvoiceStatusPartiallyPaid
		}
		if newStatus != invoice.WorkflowStatus {
			if err := invoiceRepo.Update(ctx, invoice.ID, map[string]any{"workflow_status": newStatus}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice status")
			}
		}

		result = &PaymentResult{Transaction: txn, NewInvoiceStatus: newStatus}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventPaymentRecorded,
			AggregateType: enums.OutboxAggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         actorRef(input.ActorID),
			Data: PaymentRecordedEvent{
				InvoiceID:     invoice.ID,
				TransactionID: txn.ID,
				AmountCents:   txn.AmountCents,
				InvoiceStatus: newStatus,
			},
		})
	})
	if err == errDuplicateIntent {
		existing, findErr := s.repo.FindCompletedByIntentID(ctx, key)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load duplicate transaction")
		}
		return s.duplicateResult(ctx, existing)
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncPayment("error")
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncPayment("recorded")
	}
	return result, nil
}

func (s *service) RecordFailure(ctx context.Context, input RecordFailureInput) (*models.PaymentTransaction, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	method := input.Method
	if method == "" {
		method = enums.PaymentMethodCard
	}

	txn := &models.PaymentTransaction{
		InvoiceID:     input.InvoiceID,
		MilestoneID:   input.MilestoneID,
		AmountCents:   input.AmountCents,
		PaymentMethod: method,
		Status:        enums.TransactionStatusFailed,
	}
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		txn.ProcessorIntentID = &key
	}
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		txn.FailureReason = &reason
	}

	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failed payment")
	}
	if s.metrics != nil {
		s.metrics.IncPayment("failed")
	}
	return txn, nil
}

func (s *service) ListTransactions(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentTransaction, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	txns, err := s.repo.ListTransactions(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return txns, nil
}

// SweepOverdue flips invoices with past-due unpaid milestones to overdue.
// Returns the number of invoices transitioned.
func (s *service) SweepOverdue(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.repo.ListOverdueInvoiceIDs(ctx, asOf)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list overdue invoices")
	}

	flipped := 0
	for _, id := range ids {
		invoice, err := s.invoices.FindByID(ctx, id)
		if err != nil {
			return flipped, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		switch invoice.WorkflowStatus {
		case enums.InvoiceStatusPaid, enums.InvoiceStatusOverdue, enums.InvoiceStatusCancelled, enums.InvoiceStatusDraft:
			continue
		}
		if err := s.invoices.Update(ctx, id, map[string]any{"workflow_status": enums.InvoiceStatusOverdue}); err != nil {
			return flipped, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark invoice overdue")
		}
		flipped++
		if s.metrics != nil {
			s.metrics.IncOverdue()
		}
	}
	return flipped, nil
}

// errDuplicateIntent signals a lost race on the intent-id unique index.
var errDuplicateIntent = fmt.Errorf("duplicate payment intent")

func (s *service) duplicateResult(ctx context.Context, txn *models.PaymentTransaction) (*PaymentResult, error) {
	invoice, err := s.invoices.FindByID(ctx, txn.InvoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if s.metrics != nil {
		s.metrics.IncPayment("duplicate")
	}
	return &PaymentResult{
		Transaction:      txn,
		NewInvoiceStatus: invoice.WorkflowStatus,
		Duplicate:        true,
	}, nil
}

// milestoneCovered reports whether completed transactions targeting the
// milestone reach its amount.
func (s *service) milestoneCovered(ctx context.Context, repo Repository, milestone *models.PaymentMilestone) (bool, error) {
	txns, err := repo.ListTransactions(ctx, milestone.InvoiceID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	var sum int64
	for _, txn := range txns {
		if txn.Status != enums.TransactionStatusCompleted {
			continue
		}
		if txn.MilestoneID != nil && *txn.MilestoneID == milestone.ID {
			sum += txn.AmountCents
		}
	}
	return sum >= milestone.AmountCents, nil
}

func activeMilestones(milestones []models.PaymentMilestone) []models.PaymentMilestone {
	var active []models.PaymentMilestone
	for _, m := range milestones {
		if m.Status != enums.MilestoneStatusVoided {
			active = append(active, m)
		}
	}
	return active
}

func actorRef(actorID uuid.UUID) *outbox.ActorRef {
	if actorID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actorID, Role: "admin"}
}
