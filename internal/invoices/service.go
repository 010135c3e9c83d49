package invoices

import (
	"context"
	"fmt"
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
	"github.com/jmorales/caterflow-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// QuoteStore is the slice of the quote repository the invoice service reads.
type QuoteStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	FieldChangesSince(ctx context.Context, quoteID uuid.UUID, since time.Time) ([]models.QuoteFieldChange, error)
}

// Notifier delivers a generated invoice document to the customer.
type Notifier interface {
	SendInvoice(ctx context.Context, invoice *models.Invoice, annotation string) error
}

// Service defines invoice-level operations.
type Service interface {
	GenerateFromQuote(ctx context.Context, input GenerateInput) (*models.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Invoice, error)
	AddLineItem(ctx context.Context, input AddLineItemInput) (*models.Invoice, error)
	UpdateLineItem(ctx context.Context, input UpdateLineItemInput) (*models.Invoice, error)
	RemoveLineItem(ctx context.Context, invoiceID, itemID uuid.UUID, actorID uuid.UUID) (*models.Invoice, error)
	SetDiscount(ctx context.Context, input SetDiscountInput) (*models.Invoice, error)
	CheckDrift(ctx context.Context, invoiceID uuid.UUID) (reconcile.Drift, error)
	Resync(ctx context.Context, input ResyncInput) (*models.Invoice, error)
	Send(ctx context.Context, input SendInput) (*models.Invoice, error)
	ApplyAdjustment(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID, amountCents int64, title string) error
}

// ServiceParams groups dependencies for the invoice service.
type ServiceParams struct {
	Repo                   Repository
	Quotes                 QuoteStore
	TransactionRunner      txRunner
	Outbox                 outboxPublisher
	Notifier               Notifier
	TaxRateBps             int64
	ApprovalThresholdCents int64
	Now                    func() time.Time
}

type service struct {
	repo       Repository
	quotes     QuoteStore
	tx         txRunner
	outbox     outboxPublisher
	notifier   Notifier
	taxRateBps int64
	threshold  int64
	now        func() time.Time
}

// GenerateInput controls invoice generation from a quote.
type GenerateInput struct {
	QuoteID      uuid.UUID
	DocumentType enums.DocumentType
	ActorID      uuid.UUID
}

// AddLineItemInput appends a priced line to an invoice.
type AddLineItemInput struct {
	InvoiceID      uuid.UUID
	ActorID        uuid.UUID
	Title          string
	Description    *string
	Category       enums.LineItemCategory
	Quantity       int
	UnitPriceCents int64
}

// UpdateLineItemInput edits a single line. A price change on a generated item
// is an override and requires ChangeReason.
type UpdateLineItemInput struct {
	InvoiceID      uuid.UUID
	LineItemID     uuid.UUID
	ActorID        uuid.UUID
	Quantity       *int
	UnitPriceCents *int64
	Description    *string
	ChangeReason   *string
}

// SetDiscountInput reconfigures the invoice discount.
type SetDiscountInput struct {
	InvoiceID  uuid.UUID
	ActorID    uuid.UUID
	Type       enums.DiscountType
	PercentBps int64
	FixedCents int64
	TaxExempt  *bool
}

// ResyncInput re-derives invoice line items from the quote.
type ResyncInput struct {
	InvoiceID         uuid.UUID
	ActorID           uuid.UUID
	AcknowledgeReview bool
}

// SendInput moves an invoice out of draft.
type SendInput struct {
	InvoiceID  uuid.UUID
	ActorID    uuid.UUID
	Annotation string
}

// InvoiceGeneratedEvent is emitted when a draft invoice is created.
type InvoiceGeneratedEvent struct {
	InvoiceID uuid.UUID          `json:"invoice_id"`
	QuoteID   uuid.UUID          `json:"quote_id"`
	Document  enums.DocumentType `json:"document_type"`
	ItemCount int                `json:"item_count"`
}

// InvoiceResyncedEvent is emitted after a successful resync.
type InvoiceResyncedEvent struct {
	InvoiceID  uuid.UUID         `json:"invoice_id"`
	QuoteID    uuid.UUID         `json:"quote_id"`
	Drift      enums.DriftStatus `json:"drift_status"`
	TotalCents int64             `json:"total_cents"`
}

// InvoiceSentEvent is emitted when an invoice leaves draft.
type InvoiceSentEvent struct {
	InvoiceID  uuid.UUID `json:"invoice_id"`
	QuoteID    uuid.UUID `json:"quote_id"`
	TotalCents int64     `json:"total_cents"`
}

// NewService builds an invoice service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("invoices repository required")
	}
	if params.Quotes == nil {
		return nil, fmt.Errorf("quote store required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.TaxRateBps < 0 {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	svc := &service{
		repo:       params.Repo,
		quotes:     params.Quotes,
		tx:         params.TransactionRunner,
		outbox:     params.Outbox,
		notifier:   params.Notifier,
		taxRateBps: params.TaxRateBps,
		threshold:  params.ApprovalThresholdCents,
		now:        params.Now,
	}
	if svc.taxRateBps == 0 {
		svc.taxRateBps = reconcile.DefaultTaxRateBps
	}
	if svc.threshold == 0 {
		svc.threshold = reconcile.DefaultApprovalThresholdCents
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) GenerateFromQuote(ctx context.Context, input GenerateInput) (*models.Invoice, error) {
	if input.QuoteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}
	docType := input.DocumentType
	if docType == "" {
		docType = enums.DocumentTypeEstimate
	}
	if !docType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid document type %q", docType))
	}

	var created *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		quote, err := s.quotes.FindByID(ctx, input.QuoteID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
		}
		if quote.WorkflowStatus != enums.QuoteStatusQuoted && quote.WorkflowStatus != enums.QuoteStatusEstimated {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot generate an invoice for a quote in %s", quote.WorkflowStatus))
		}

		invoice := &models.Invoice{
			QuoteID:        quote.ID,
			DocumentType:   docType,
			WorkflowStatus: enums.InvoiceStatusDraft,
			IsDraft:        true,
			DiscountType:   enums.DiscountTypeNone,
			// Government customers invoice tax-free; an admin can still
			// override per invoice.
			TaxExempt:     quotes.Classification(quote) == enums.CustomerTypeGovernment,
			LastQuoteSync: s.now(),
			LineItems:     buildLineItems(quote),
		}
		if err := repo.Create(ctx, invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
		}

		created = invoice
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventInvoiceGenerated,
			AggregateType: enums.OutboxAggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         actorRef(input.ActorID),
			Data: InvoiceGeneratedEvent{
				InvoiceID: invoice.ID,
				QuoteID:   quote.ID,
				Document:  docType,
				ItemCount: len(invoice.LineItems),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return invoice, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Invoice, error) {
	invoices, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return invoices, nil
}

func (s *service) AddLineItem(ctx context.Context, input AddLineItemInput) (*models.Invoice, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item title required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.UnitPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	category := input.Category
	if category == "" {
		category = enums.LineItemCategoryCustom
	}
	if !category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid line item category %q", category))
	}

	var updated *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := s.mutableInvoice(ctx, repo, input.InvoiceID)
		if err != nil {
			return err
		}

		item := &models.InvoiceLineItem{
			InvoiceID:       invoice.ID,
			Title:           input.Title,
			Description:     input.Description,
			Category:        category,
			Quantity:        input.Quantity,
			UnitPriceCents:  input.UnitPriceCents,
			TotalPriceCents: int64(input.Quantity) * input.UnitPriceCents,
			SortOrder:       len(invoice.LineItems),
		}
		if err := repo.CreateLineItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line item")
		}

		updated, err = s.recomputeTotals(ctx, repo, invoice.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) UpdateLineItem(ctx context.Context, input UpdateLineItemInput) (*models.Invoice, error) {
	if input.InvoiceID == uuid.Nil || input.LineItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id and line item id required")
	}
	if input.Quantity != nil && *input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.UnitPriceCents != nil && *input.UnitPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}

	var updated *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := s.mutableInvoice(ctx, repo, input.InvoiceID)
		if err != nil {
			return err
		}

		item, err := repo.FindLineItem(ctx, input.LineItemID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line item")
		}
		if item.InvoiceID != invoice.ID {
			return pkgerrors.New(pkgerrors.CodeValidation, "line item does not belong to invoice")
		}

		updates := map[string]any{}
		qty := item.Quantity
		price := item.UnitPriceCents

		if input.Quantity != nil && *input.Quantity != item.Quantity {
			qty = *input.Quantity
			updates["quantity"] = qty
		}
		if input.Description != nil {
			updates["description"] = *input.Description
		}
		if input.UnitPriceCents != nil && *input.UnitPriceCents != item.UnitPriceCents {
			// A manual price edit is an override. The pre-edit derived price
			// is kept so drift resolution never silently recalculates it.
			if input.ChangeReason == nil || strings.TrimSpace(*input.ChangeReason) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "change reason required for price override")
			}
			price = *input.UnitPriceCents
			updates["unit_price_cents"] = price
			updates["is_override"] = true
			updates["change_reason"] = *input.ChangeReason
			if !item.IsOverride {
				original := item.UnitPriceCents
				updates["original_price_cents"] = original
			}
		}

		if len(updates) == 0 {
			updated = invoice
			return nil
		}
		updates["total_price_cents"] = int64(qty) * price

		if err := repo.UpdateLineItem(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line item")
		}

		// The latest override reason doubles as the invoice-level override
		// reason the send gate checks.
		if _, overrode := updates["is_override"]; overrode {
			if err := repo.Update(ctx, invoice.ID, map[string]any{"override_reason": *input.ChangeReason}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record override reason")
			}
		}

		updated, err = s.recomputeTotals(ctx, repo, invoice.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) RemoveLineItem(ctx context.Context, invoiceID, itemID uuid.UUID, actorID uuid.UUID) (*models.Invoice, error) {
	if invoiceID == uuid.Nil || itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id and line item id required")
	}

	var updated *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := s.mutableInvoice(ctx, repo, invoiceID)
		if err != nil {
			return err
		}

		item, err := repo.FindLineItem(ctx, itemID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line item")
		}
		if item.InvoiceID != invoice.ID {
			return pkgerrors.New(pkgerrors.CodeValidation, "line item does not belong to invoice")
		}

		if err := repo.DeleteLineItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete line item")
		}

		updated, err = s.recomputeTotals(ctx, repo, invoice.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) SetDiscount(ctx context.Context, input SetDiscountInput) (*models.Invoice, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	if input.Type != "" && !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid discount type %q", input.Type))
	}

	var updated *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := s.mutableInvoice(ctx, repo, input.InvoiceID)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if input.Type != "" {
			updates["discount_type"] = input.Type
			updates["discount_percent_bps"] = input.PercentBps
			updates["discount_fixed_cents"] = input.FixedCents
		}
		if input.TaxExempt != nil {
			updates["tax_exempt"] = *input.TaxExempt
		}
		if len(updates) == 0 {
			updated = invoice
			return nil
		}

		if err := repo.Update(ctx, invoice.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update discount")
		}

		updated, err = s.recomputeTotals(ctx, repo, invoice.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) CheckDrift(ctx context.Context, invoiceID uuid.UUID) (reconcile.Drift, error) {
	if invoiceID == uuid.Nil {
		return reconcile.Drift{}, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}

	invoice, err := s.Get(ctx, invoiceID)
	if err != nil {
		return reconcile.Drift{}, err
	}
	quote, err := s.quotes.FindByID(ctx, invoice.QuoteID)
	if err != nil {
		return reconcile.Drift{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}
	history, err := s.quotes.FieldChangesSince(ctx, quote.ID, invoice.LastQuoteSync)
	if err != nil {
		return reconcile.Drift{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load field changes")
	}
	return reconcile.DetectDrift(invoice.LastQuoteSync, quote.UpdatedAt, history), nil
}

func (s *service) Resync(ctx context.Context, input ResyncInput) (*models.Invoice, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}

	var updated *models.Invoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := s.mutableInvoice(ctx, repo, input.InvoiceID)
		if err != nil {
			return err
		}

		quote, err := s.quotes.FindByID(ctx, invoice.QuoteID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
		}
		history, err := s.quotes.FieldChangesSince(ctx, quote.ID, invoice.LastQuoteSync)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load field changes")
		}

		drift := reconcile.DetectDrift(invoice.LastQuoteSync, quote.UpdatedAt, history)
		if drift.NeedsReview() && !input.AcknowledgeReview {
			return pkgerrors.New(pkgerrors.CodeConflict,
				"quote changes require review before resync").WithDetails(drift.Changes)
		}

		// Regenerate non-overridden items from the quote. Overridden items
		// are preserved untouched; non-overridden items with a matching
		// title keep their admin-set pricing.
		existing := invoice.LineItems
		priced := map[string]models.InvoiceLineItem{}
		overridden := map[string]bool{}
		for _, item := range existing {
			if item.IsOverride {
				overridden[itemKey(item.Category, item.Title)] = true
				continue
			}
			priced[itemKey(item.Category, item.Title)] = item
		}

		desired := buildLineItems(quote)
		keep := map[uuid.UUID]bool{}
		sort := overrideCount(existing)
		for i := range desired {
			d := &desired[i]
			if overridden[itemKey(d.Category, d.Title)] {
				continue
			}
			if prev, ok := priced[itemKey(d.Category, d.Title)]; ok {
				d.UnitPriceCents = prev.UnitPriceCents
				d.Quantity = prev.Quantity
				d.TotalPriceCents = int64(prev.Quantity) * prev.UnitPriceCents
				keep[prev.ID] = true
				if err := repo.UpdateLineItem(ctx, prev.ID, map[string]any{"sort_order": sort + i}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reorder line item")
				}
				continue
			}
			d.InvoiceID = invoice.ID
			d.SortOrder = sort + i
			if err := repo.CreateLineItem(ctx, d); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line item")
			}
		}
		for _, item := range existing {
			if item.IsOverride || keep[item.ID] {
				continue
			}
			if err := repo.DeleteLineItem(ctx, item.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete stale line item")
			}
		}

		if err := repo.Update(ctx, invoice.ID, map[string]any{"last_quote_sync": s.now()}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump last quote sync")
		}

		updated, err = s.recomputeTotals(ctx, repo, invoice.ID)
		if err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventInvoiceResynced,
			AggregateType: enums.OutboxAggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         actorRef(input.ActorID),
			Data: InvoiceResyncedEvent{
				InvoiceID:  invoice.ID,
				QuoteID:    quote.ID,
				Drift:      drift.Status,
				TotalCents: updated.TotalCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Send(ctx context.Context, input SendInput) (*models.Invoice, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}

	invoice, err := s.Get(ctx, input.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.WorkflowStatus != enums.InvoiceStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot send an invoice in %s", invoice.WorkflowStatus))
	}

	totals, err := reconcile.ComputeTotals(invoice.LineItems, reconcile.DiscountFromInvoice(invoice), s.taxRateBps, invoice.TaxExempt)
	if err != nil {
		return nil, err
	}
	if err := reconcile.CheckSendGate(reconcile.GateInput{
		Items:               invoice.LineItems,
		Totals:              totals,
		LastKnownTotalCents: invoice.TotalCents,
		OverrideReason:      deref(invoice.OverrideReason),
		Annotation:          input.Annotation,
		ThresholdCents:      s.threshold,
	}); err != nil {
		return nil, err
	}

	// Delivery happens before the status write: a failed notification must
	// leave the invoice in draft.
	if err := s.notifier.SendInvoice(ctx, invoice, input.Annotation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deliver invoice")
	}

	sentAt := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, invoice.ID, map[string]any{
			"workflow_status": enums.InvoiceStatusSent,
			"is_draft":        false,
			"sent_at":         sentAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark invoice sent")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventInvoiceSent,
			AggregateType: enums.OutboxAggregateInvoice,
			AggregateID:   invoice.ID,
			Actor:         actorRef(input.ActorID),
			Data: InvoiceSentEvent{
				InvoiceID:  invoice.ID,
				QuoteID:    invoice.QuoteID,
				TotalCents: totals.TotalCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	invoice.WorkflowStatus = enums.InvoiceStatusSent
	invoice.IsDraft = false
	invoice.SentAt = &sentAt
	return invoice, nil
}

// ApplyAdjustment appends an adjustment line item to the latest invoice of a
// quote and recomputes totals. It is meant to run inside the caller's
// transaction (change request approval).
func (s *service) ApplyAdjustment(ctx context.Context, tx *gorm.DB, quoteID uuid.UUID, amountCents int64, title string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if quoteID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "quote id required")
	}
	if amountCents == 0 {
		return nil
	}

	repo := s.repo.WithTx(tx)
	invoices, err := repo.FindByQuoteID(ctx, quoteID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoices for quote")
	}
	if len(invoices) == 0 {
		return nil
	}
	invoice := invoices[0]
	if invoice.WorkflowStatus.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "linked invoice is in a terminal state")
	}

	items, err := repo.ListLineItems(ctx, invoice.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list line items")
	}
	item := &models.InvoiceLineItem{
		InvoiceID:       invoice.ID,
		Title:           title,
		Category:        enums.LineItemCategoryCustom,
		Quantity:        1,
		UnitPriceCents:  amountCents,
		TotalPriceCents: amountCents,
		SortOrder:       len(items),
	}
	if err := repo.CreateLineItem(ctx, item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create adjustment item")
	}

	_, err = s.recomputeTotals(ctx, repo, invoice.ID)
	return err
}

// mutableInvoice loads an invoice and rejects edits once it has left draft.
func (s *service) mutableInvoice(ctx context.Context, repo Repository, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice.WorkflowStatus != enums.InvoiceStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("invoice in %s can no longer be edited", invoice.WorkflowStatus))
	}
	return invoice, nil
}

// recomputeTotals re-reads line items inside the current transaction and
// writes the derived totals back in the same transaction, so totals can never
// drift from items under concurrent edits.
func (s *service) recomputeTotals(ctx context.Context, repo Repository, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := repo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload invoice")
	}

	totals, err := reconcile.ComputeTotals(invoice.LineItems, reconcile.DiscountFromInvoice(invoice), s.taxRateBps, invoice.TaxExempt)
	if err != nil {
		return nil, err
	}

	if err := repo.Update(ctx, invoice.ID, map[string]any{
		"subtotal_cents": totals.SubtotalCents,
		"discount_cents": totals.DiscountCents,
		"tax_cents":      totals.TaxCents,
		"total_cents":    totals.TotalCents,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write totals")
	}

	invoice.SubtotalCents = totals.SubtotalCents
	invoice.DiscountCents = totals.DiscountCents
	invoice.TaxCents = totals.TaxCents
	invoice.TotalCents = totals.TotalCents
	return invoice, nil
}

// buildLineItems maps quote menu selections to zero-priced draft items.
func buildLineItems(quote *models.Quote) []models.InvoiceLineItem {
	var items []models.InvoiceLineItem
	add := func(category enums.LineItemCategory, title string, qty int) {
		if strings.TrimSpace(title) == "" {
			return
		}
		items = append(items, models.InvoiceLineItem{
			Title:     title,
			Category:  category,
			Quantity:  qty,
			SortOrder: len(items),
		})
	}

	guests := quote.GuestCount
	if guests <= 0 {
		guests = 1
	}

	add(enums.LineItemCategoryMeal, deref(quote.PrimaryProtein), guests)
	add(enums.LineItemCategoryMeal, deref(quote.SecondaryProtein), guests)
	for _, name := range quote.Appetizers {
		add(enums.LineItemCategoryAppetizer, name, guests)
	}
	for _, name := range quote.Sides {
		add(enums.LineItemCategorySide, name, guests)
	}
	for _, name := range quote.Desserts {
		add(enums.LineItemCategoryDessert, name, guests)
	}
	for _, name := range quote.Drinks {
		add(enums.LineItemCategoryDrink, name, guests)
	}
	if deref(quote.DietaryRestrictions) != "" {
		add(enums.LineItemCategoryDietary, "Dietary accommodations", 1)
	}
	if quote.NeedsEquipment {
		add(enums.LineItemCategoryEquipment, "Equipment rental", 1)
	}
	if quote.NeedsServiceStaff {
		add(enums.LineItemCategoryService, "Service staff", 1)
	}
	return items
}

func itemKey(category enums.LineItemCategory, title string) string {
	return string(category) + "|" + strings.ToLower(title)
}

func overrideCount(items []models.InvoiceLineItem) int {
	n := 0
	for _, item := range items {
		if item.IsOverride {
			n++
		}
	}
	return n
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
