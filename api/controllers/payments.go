package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmorales/caterflow-backend/api/responses"
	"github.com/jmorales/caterflow-backend/api/validators"
	"github.com/jmorales/caterflow-backend/internal/payments"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	pkgerrors "github.com/jmorales/caterflow-backend/pkg/errors"
	"github.com/jmorales/caterflow-backend/pkg/logger"
)

type milestoneGenerateRequest struct {
	Replace bool `json:"replace"`
}

// MilestonesGenerate persists the payment schedule for an invoice. A second
// call is a no-op unless replace is set.
func MilestonesGenerate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		actorID, err := actorFromRequest(r, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoiceID, err := validators.ParseUUIDParam(chi.URLParam(r, "invoiceID"), "invoice id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload milestoneGenerateRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		milestones, err := svc.GenerateMilestones(r.Context(), payments.GenerateMilestonesInput{
			InvoiceID: invoiceID,
			ActorID:   actorID,
			Replace:   payload.Replace,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, milestoneResponsesFromModels(milestones))
	}
}

func MilestonesList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		invoiceID, err := validators.ParseUUIDParam(chi.URLParam(r, "invoiceID"), "invoice id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		milestones, err := svc.ListMilestones(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, milestoneResponsesFromModels(milestones))
	}
}

type paymentRecordRequest struct {
	MilestoneID    *string `json:"milestone_id"`
	AmountCents    int64   `json:"amount_cents" validate:"required,gt=0"`
	Method         string  `json:"method"`
	IdempotencyKey string  `json:"idempotency_key" validate:"required"`
}

// PaymentRecord records a manual payment against an invoice. Duplicate
// idempotency keys return the original transaction unchanged.
func PaymentRecord(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		actorID, err := actorFromRequest(r, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoiceID, err := validators.ParseUUIDParam(chi.URLParam(r, "invoiceID"), "invoice id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentRecordRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := payments.RecordPaymentInput{
			InvoiceID:      invoiceID,
			AmountCents:    payload.AmountCents,
			IdempotencyKey: strings.TrimSpace(payload.IdempotencyKey),
			ActorID:        actorID,
		}
		if payload.MilestoneID != nil {
			milestoneID, parseErr := validators.ParseUUIDParam(*payload.MilestoneID, "milestone_id")
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			input.MilestoneID = &milestoneID
		}
		if raw := strings.TrimSpace(payload.Method); raw != "" {
			method, parseErr := enums.ParsePaymentMethod(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method"))
				return
			}
			input.Method = method
		}

		result, err := svc.RecordPayment(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, paymentResultResponse{
			Transaction:   transactionResponseFromModel(result.Transaction),
			InvoiceStatus: result.NewInvoiceStatus,
			Duplicate:     result.Duplicate,
		})
	}
}

func TransactionsList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		invoiceID, err := validators.ParseUUIDParam(chi.URLParam(r, "invoiceID"), "invoice id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transactions, err := svc.ListTransactions(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]transactionResponse, 0, len(transactions))
		for i := range transactions {
			items = append(items, transactionResponseFromModel(&transactions[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

type milestoneResponse struct {
	ID            uuid.UUID             `json:"id"`
	InvoiceID     uuid.UUID             `json:"invoice_id"`
	MilestoneType enums.MilestoneType   `json:"milestone_type"`
	Status        enums.MilestoneStatus `json:"status"`
	Percentage    int                   `json:"percentage"`
	AmountCents   int64                 `json:"amount_cents"`
	DueDate       *time.Time            `json:"due_date"`
	IsDueNow      bool                  `json:"is_due_now"`
	IsNet30       bool                  `json:"is_net30"`
	Description   string                `json:"description"`
	PaidAt        *time.Time            `json:"paid_at"`
	VoidedAt      *time.Time            `json:"voided_at"`
}

func milestoneResponsesFromModels(milestones []models.PaymentMilestone) []milestoneResponse {
	items := make([]milestoneResponse, 0, len(milestones))
	for _, m := range milestones {
		items = append(items, milestoneResponse{
			ID:            m.ID,
			InvoiceID:     m.InvoiceID,
			MilestoneType: m.MilestoneType,
			Status:        m.Status,
			Percentage:    m.Percentage,
			AmountCents:   m.AmountCents,
			DueDate:       m.DueDate,
			IsDueNow:      m.IsDueNow,
			IsNet30:       m.IsNet30,
			Description:   m.Description,
			PaidAt:        m.PaidAt,
			VoidedAt:      m.VoidedAt,
		})
	}
	return items
}

type transactionResponse struct {
	ID                uuid.UUID               `json:"id"`
	InvoiceID         uuid.UUID               `json:"invoice_id"`
	MilestoneID       *uuid.UUID              `json:"milestone_id"`
	AmountCents       int64                   `json:"amount_cents"`
	PaymentMethod     enums.PaymentMethod     `json:"payment_method"`
	Status            enums.TransactionStatus `json:"status"`
	ProcessorIntentID *string                 `json:"processor_intent_id"`
	FailureReason     *string                 `json:"failure_reason"`
	ProcessedAt       *time.Time              `json:"processed_at"`
	CreatedAt         time.Time               `json:"created_at"`
}

func transactionResponseFromModel(m *models.PaymentTransaction) transactionResponse {
	return transactionResponse{
		ID:                m.ID,
		InvoiceID:         m.InvoiceID,
		MilestoneID:       m.MilestoneID,
		AmountCents:       m.AmountCents,
		PaymentMethod:     m.PaymentMethod,
		Status:            m.Status,
		ProcessorIntentID: m.ProcessorIntentID,
		FailureReason:     m.FailureReason,
		ProcessedAt:       m.ProcessedAt,
		CreatedAt:         m.CreatedAt,
	}
}

type paymentResultResponse struct {
	Transaction   transactionResponse         `json:"transaction"`
	InvoiceStatus enums.InvoiceWorkflowStatus `json:"invoice_status"`
	Duplicate     bool                        `json:"duplicate"`
}
