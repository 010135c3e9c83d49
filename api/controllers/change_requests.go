package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmorales/caterflow-backend/api/responses"
	"github.com/jmorales/caterflow-backend/api/validators"
	"github.com/jmorales/caterflow-backend/internal/changerequests"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	pkgerrors "github.com/jmorales/caterflow-backend/pkg/errors"
	"github.com/jmorales/caterflow-backend/pkg/logger"
)

type changeRequestCreateRequest struct {
	QuoteID                  string  `json:"quote_id" validate:"required"`
	RequestedEventDate       *string `json:"requested_event_date"`
	RequestedGuestCount      *int    `json:"requested_guest_count" validate:"omitempty,gt=0"`
	RequestedLocation        *string `json:"requested_location"`
	RequestedStartTime       *string `json:"requested_start_time"`
	MenuChanges              *string `json:"menu_changes"`
	ServiceChanges           *string `json:"service_changes"`
	DietaryChanges           *string `json:"dietary_changes"`
	EstimatedCostChangeCents int64   `json:"estimated_cost_change_cents"`
}

// ChangeRequestCreate accepts a customer modification to an estimated quote.
func ChangeRequestCreate(svc changerequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "change request service unavailable"))
			return
		}

		var payload changeRequestCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quoteID, err := validators.ParseUUIDParam(payload.QuoteID, "quote_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := changerequests.CreateInput{
			QuoteID:                  quoteID,
			RequestedGuestCount:      payload.RequestedGuestCount,
			RequestedLocation:        payload.RequestedLocation,
			RequestedStartTime:       payload.RequestedStartTime,
			MenuChanges:              payload.MenuChanges,
			ServiceChanges:           payload.ServiceChanges,
			DietaryChanges:           payload.DietaryChanges,
			EstimatedCostChangeCents: payload.EstimatedCostChangeCents,
		}
		if payload.RequestedEventDate != nil {
			eventDate, parseErr := time.Parse(dateLayout, strings.TrimSpace(*payload.RequestedEventDate))
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid requested_event_date"))
				return
			}
			input.RequestedEventDate = &eventDate
		}

		created, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, changeRequestResponseFromModel(created))
	}
}

func ChangeRequestGet(svc changerequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "change request service unavailable"))
			return
		}

		requestID, err := validators.ParseUUIDParam(chi.URLParam(r, "requestID"), "change request id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Get(r.Context(), requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, changeRequestResponseFromModel(request))
	}
}

func ChangeRequestListByQuote(svc changerequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "change request service unavailable"))
			return
		}

		quoteID, err := validators.ParseUUIDParam(r.URL.Query().Get("quote_id"), "quote_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByQuote(r.Context(), quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]changeRequestResponse, 0, len(list))
		for i := range list {
			items = append(items, changeRequestResponseFromModel(&list[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

type changeRequestResolveRequest struct {
	AdminResponse string `json:"admin_response"`
}

// ChangeRequestApprove applies the requested changes to the quote and adjusts
// the linked invoice inside one transaction.
func ChangeRequestApprove(svc changerequests.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveChangeRequest(svc, logg, svcApprove)
}

func ChangeRequestReject(svc changerequests.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveChangeRequest(svc, logg, svcReject)
}

type resolveAction int

const (
	svcApprove resolveAction = iota
	svcReject
)

func resolveChangeRequest(svc changerequests.Service, logg *logger.Logger, action resolveAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "change request service unavailable"))
			return
		}

		actorID, err := actorFromRequest(r, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := validators.ParseUUIDParam(chi.URLParam(r, "requestID"), "change request id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload changeRequestResolveRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := changerequests.ResolveInput{
			RequestID:     requestID,
			AdminResponse: strings.TrimSpace(payload.AdminResponse),
			ActorID:       actorID,
		}

		var resolved *models.ChangeRequest
		if action == svcApprove {
			resolved, err = svc.Approve(r.Context(), input)
		} else {
			resolved, err = svc.Reject(r.Context(), input)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, changeRequestResponseFromModel(resolved))
	}
}

type changeRequestResponse struct {
	ID                       uuid.UUID                 `json:"id"`
	QuoteID                  uuid.UUID                 `json:"quote_id"`
	RequestedEventDate       *string                   `json:"requested_event_date"`
	RequestedGuestCount      *int                      `json:"requested_guest_count"`
	RequestedLocation        *string                   `json:"requested_location"`
	RequestedStartTime       *string                   `json:"requested_start_time"`
	MenuChanges              *string                   `json:"menu_changes"`
	ServiceChanges           *string                   `json:"service_changes"`
	DietaryChanges           *string                   `json:"dietary_changes"`
	EstimatedCostChangeCents int64                     `json:"estimated_cost_change_cents"`
	Status                   enums.ChangeRequestStatus `json:"status"`
	AdminResponse            *string                   `json:"admin_response"`
	ResolvedAt               *time.Time                `json:"resolved_at"`
	CreatedAt                time.Time                 `json:"created_at"`
	UpdatedAt                time.Time                 `json:"updated_at"`
}

func changeRequestResponseFromModel(m *models.ChangeRequest) changeRequestResponse {
	resp := changeRequestResponse{
		ID:                       m.ID,
		QuoteID:                  m.QuoteID,
		RequestedGuestCount:      m.RequestedGuestCount,
		RequestedLocation:        m.RequestedLocation,
		RequestedStartTime:       m.RequestedStartTime,
		MenuChanges:              m.MenuChanges,
		ServiceChanges:           m.ServiceChanges,
		DietaryChanges:           m.DietaryChanges,
		EstimatedCostChangeCents: m.EstimatedCostChangeCents,
		Status:                   m.Status,
		AdminResponse:            m.AdminResponse,
		ResolvedAt:               m.ResolvedAt,
		CreatedAt:                m.CreatedAt,
		UpdatedAt:                m.UpdatedAt,
	}
	if m.RequestedEventDate != nil {
		formatted := m.RequestedEventDate.Format(dateLayout)
		resp.RequestedEventDate = &formatted
	}
	return resp
}
