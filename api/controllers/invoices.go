package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmorales/caterflow-backend/api/responses"
	"github.com/jmorales/caterflow-backend/api/validators"
	"github.com/jmorales/caterflow-backend/internal/invoices"
	"github.com/jmorales/caterflow-backend/internal/reconcile"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	pkgerrors "github.com/jmorales/caterflow-backend/pkg/errors"
	"github.com/jmorales/caterflow-backend/pkg/logger"
	"github.com/jmorales/caterflow-backend/pkg/pagination"
)

func InvoiceGet(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		invoiceID, err := validators.ParseUUIDParam(chi.URLParam(r, "invoiceID"), "invoice id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.Get(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, invoiceResponseFromModel(invoice))
	}
}

func InvoiceList(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter invoices.ListFilter
		if rawQuote := strings.TrimSpace(r.URL.Query().Get("quote_id")); rawQuote != "" {
			quoteID, parseErr := validators.ParseUUIDParam(rawQuote, "quote_id")
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			filter.QuoteID = &quoteID
		}
		if rawStatus := strings.TrimSpace(r.URL.Query().Get("status")); rawStatus != "" {
			status, parseErr := enums.ParseInvoiceWorkflowStatus(rawStatus)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			filter.Status = &status
		}
		if rawDoc := strings.TrimSpace(r.URL.Query().Get("document_type")); rawDoc != "" {
			documentType, parseErr := enums.ParseDocumentType(rawDoc)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid document type filter"))
				return
			}
			filter.DocumentType = &documentType
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		list, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]invoiceResponse, 0, len(list))
		for i := range list {
			items = append(items, invoiceResponseFromModel(&list[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

type lineItemAddRequest struct {
	Title          string  `json:"title" validate:"required"`
	Description    *string `json:"description"`
	Category       string  `json:"category" validate:"required"`
	Quantity       int     `json:"quantity" validate:"required,gt=0"`
	UnitPriceCents int64   `json:"unit_price_cents" validate:"min=0"`
}

func InvoiceAddLineItem(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
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

		var payload lineItemAddRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := enums.ParseLineItemCategory(strings.TrimSpace(payload.Category))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid line item category"))
			return
		}

		updated, err := svc.AddLineItem(r.Context(), invoices.AddLineItemInput{
			InvoiceID:      invoiceID,
			ActorID:        actorID,
			Title:          strings.TrimSpace(payload.Title),
			Description:    payload.Description,
			Category:       category,
			Quantity:       payload.Quantity,
			UnitPriceCents: payload.UnitPriceCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, invoiceResponseFromModel(updated))
	}
}

type lineItemUpdateRequest struct {
	Quantity       *int    `json:"quantity" validate:"omitempty,gt=0"`
	UnitPriceCents *int64  `json:"unit_price_cents" validate:"omitempty,min=0"`
	Description    *string `json:"description"`
	ChangeReason   *string `json:"change_reason"`
}

// InvoiceUpdateLineItem edits one priced line. A price change on a generated
// item is an override and requires change_reason.
func InvoiceUpdateLineItem(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
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
		itemID, err := validators.ParseUUIDParam(chi.URLParam(r, "itemID"), "line item id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload lineItemUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateLineItem(r.Context(), invoices.UpdateLineItemInput{
			InvoiceID:      invoiceID,
			LineItemID:     itemID,
			ActorID:        actorID,
			Quantity:       payload.Quantity,
			UnitPriceCents: payload.UnitPriceCents,
			Description:    payload.Description,
			ChangeReason:   payload.ChangeReason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, invoiceResponseFromModel(updated))
	}
}

func InvoiceRemoveLineItem(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
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
		itemID, err := validators.ParseUUIDParam(chi.URLParam(r, "itemID"), "line item id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.RemoveLineItem(r.Context(), invoiceID, itemID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, invoiceResponseFromModel(updated))
	}
}

type discountRequest struct {
	Type       string `json:"type" validate:"required,oneof=none percentage fixed"`
	PercentBps int64  `json:"percent_bps" validate:"min=0,max=10000"`
	FixedCents int64  `json:"fixed_cents" validate:"min=0"`
	TaxExempt  *bool  `json:"tax_exempt"`
}

func InvoiceSetDiscount(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
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

		var payload discountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discountType, err := enums.ParseDiscountType(strings.TrimSpace(payload.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type"))
			return
		}

		updated, err := svc.SetDiscount(r.Context(), invoices.SetDiscountInput{
			InvoiceID:  invoiceID,
			ActorID:    actorID,
			Type:       discountType,
			PercentBps: payload.PercentBps,
			FixedCents: payload.FixedCents,
			TaxExempt:  payload.TaxExempt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, invoiceResponseFromModel(updated))
	}
}

func InvoiceDrift(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		invoiceID, err := validators.ParseUUIDParam(chi.URLParam(r, "invoiceID"), "invoice id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		drift, err := svc.CheckDrift(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, driftResponseFromResult(drift))
	}
}

type resyncRequest struct {
	AcknowledgeReview bool `json:"acknowledge_review"`
}

// InvoiceResync re-derives generated line items from the quote. Drift that
// needs review is rejected unless the caller acknowledges it.
func InvoiceResync(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
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

		var payload resyncRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Resync(r.Context(), invoices.ResyncInput{
			InvoiceID:         invoiceID,
			ActorID:           actorID,
			AcknowledgeReview: payload.AcknowledgeReview,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, invoiceResponseFromModel(updated))
	}
}

type sendRequest struct {
	Annotation string `json:"annotation"`
}

func InvoiceSend(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
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

		var payload sendRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Send(r.Context(), invoices.SendInput{
			InvoiceID:  invoiceID,
			ActorID:    actorID,
			Annotation: strings.TrimSpace(payload.Annotation),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, invoiceResponseFromModel(updated))
	}
}

type lineItemResponse struct {
	ID                 uuid.UUID              `json:"id"`
	Title              string                 `json:"title"`
	Description        *string                `json:"description"`
	Category           enums.LineItemCategory `json:"category"`
	Quantity           int                    `json:"quantity"`
	UnitPriceCents     int64                  `json:"unit_price_cents"`
	TotalPriceCents    int64                  `json:"total_price_cents"`
	IsOverride         bool                   `json:"is_override"`
	OriginalPriceCents *int64                 `json:"original_price_cents"`
	ChangeReason       *string                `json:"change_reason"`
	SortOrder          int                    `json:"sort_order"`
}

type invoiceResponse struct {
	ID                 uuid.UUID                   `json:"id"`
	QuoteID            uuid.UUID                   `json:"quote_id"`
	DocumentType       enums.DocumentType          `json:"document_type"`
	WorkflowStatus     enums.InvoiceWorkflowStatus `json:"workflow_status"`
	IsDraft            bool                        `json:"is_draft"`
	SubtotalCents      int64                       `json:"subtotal_cents"`
	DiscountCents      int64                       `json:"discount_cents"`
	TaxCents           int64                       `json:"tax_cents"`
	TotalCents         int64                       `json:"total_cents"`
	DiscountType       enums.DiscountType          `json:"discount_type"`
	DiscountPercentBps int64                       `json:"discount_percent_bps"`
	DiscountFixedCents int64                       `json:"discount_fixed_cents"`
	TaxExempt          bool                        `json:"tax_exempt"`
	LastQuoteSync      time.Time                   `json:"last_quote_sync"`
	OverrideReason     *string                     `json:"override_reason"`
	SentAt             *time.Time                  `json:"sent_at"`
	ViewedAt           *time.Time                  `json:"viewed_at"`
	LineItems          []lineItemResponse          `json:"line_items"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

func invoiceResponseFromModel(m *models.Invoice) invoiceResponse {
	items := make([]lineItemResponse, 0, len(m.LineItems))
	for _, item := range m.LineItems {
		items = append(items, lineItemResponse{
			ID:                 item.ID,
			Title:              item.Title,
			Description:        item.Description,
			Category:           item.Category,
			Quantity:           item.Quantity,
			UnitPriceCents:     item.UnitPriceCents,
			TotalPriceCents:    item.TotalPriceCents,
			IsOverride:         item.IsOverride,
			OriginalPriceCents: item.OriginalPriceCents,
			ChangeReason:       item.ChangeReason,
			SortOrder:          item.SortOrder,
		})
	}
	return invoiceResponse{
		ID:                 m.ID,
		QuoteID:            m.QuoteID,
		DocumentType:       m.DocumentType,
		WorkflowStatus:     m.WorkflowStatus,
		IsDraft:            m.IsDraft,
		SubtotalCents:      m.SubtotalCents,
		DiscountCents:      m.DiscountCents,
		TaxCents:           m.TaxCents,
		TotalCents:         m.TotalCents,
		DiscountType:       m.DiscountType,
		DiscountPercentBps: m.DiscountPercentBps,
		DiscountFixedCents: m.DiscountFixedCents,
		TaxExempt:          m.TaxExempt,
		LastQuoteSync:      m.LastQuoteSync,
		OverrideReason:     m.OverrideReason,
		SentAt:             m.SentAt,
		ViewedAt:           m.ViewedAt,
		LineItems:          items,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

type driftChangeResponse struct {
	Field    string             `json:"field"`
	OldValue string             `json:"old_value"`
	NewValue string             `json:"new_value"`
	Impact   enums.ChangeImpact `json:"impact"`
}

type driftResponse struct {
	Status  enums.DriftStatus     `json:"status"`
	Changes []driftChangeResponse `json:"changes"`
}

func driftResponseFromResult(drift reconcile.Drift) driftResponse {
	changes := make([]driftChangeResponse, 0, len(drift.Changes))
	for _, change := range drift.Changes {
		changes = append(changes, driftChangeResponse{
			Field:    change.Field,
			OldValue: change.OldValue,
			NewValue: change.NewValue,
			Impact:   change.Impact,
		})
	}
	return driftResponse{Status: drift.Status, Changes: changes}
}
