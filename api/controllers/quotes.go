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
	"github.com/jmorales/caterflow-backend/internal/quotes"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	pkgerrors "github.com/jmorales/caterflow-backend/pkg/errors"
	"github.com/jmorales/caterflow-backend/pkg/logger"
	"github.com/jmorales/caterflow-backend/pkg/pagination"
)

const dateLayout = "2006-01-02"

type quoteCreateRequest struct {
	ContactName         string   `json:"contact_name" validate:"required"`
	ContactEmail        string   `json:"contact_email" validate:"required,email"`
	ContactPhone        *string  `json:"contact_phone"`
	Organization        *string  `json:"organization"`
	EventDate           string   `json:"event_date" validate:"required"`
	StartTime           *string  `json:"start_time"`
	GuestCount          int      `json:"guest_count" validate:"required,gt=0"`
	Location            string   `json:"location" validate:"required"`
	ServiceType         string   `json:"service_type" validate:"required,oneof=drop_off full_service pickup"`
	PrimaryProtein      *string  `json:"primary_protein"`
	SecondaryProtein    *string  `json:"secondary_protein"`
	Appetizers          []string `json:"appetizers"`
	Sides               []string `json:"sides"`
	Desserts            []string `json:"desserts"`
	Drinks              []string `json:"drinks"`
	DietaryRestrictions *string  `json:"dietary_restrictions"`
	SpecialRequests     *string  `json:"special_requests"`
	NeedsEquipment      bool     `json:"needs_equipment"`
	NeedsServiceStaff   bool     `json:"needs_service_staff"`
	ComplianceLevel     *string  `json:"compliance_level"`
}

func (r quoteCreateRequest) toInput() (quotes.CreateQuoteInput, error) {
	eventDate, err := time.Parse(dateLayout, strings.TrimSpace(r.EventDate))
	if err != nil {
		return quotes.CreateQuoteInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event_date")
	}
	return quotes.CreateQuoteInput{
		ContactName:         strings.TrimSpace(r.ContactName),
		ContactEmail:        strings.TrimSpace(r.ContactEmail),
		ContactPhone:        r.ContactPhone,
		Organization:        r.Organization,
		EventDate:           eventDate,
		StartTime:           r.StartTime,
		GuestCount:          r.GuestCount,
		Location:            strings.TrimSpace(r.Location),
		ServiceType:         strings.TrimSpace(r.ServiceType),
		PrimaryProtein:      r.PrimaryProtein,
		SecondaryProtein:    r.SecondaryProtein,
		Appetizers:          r.Appetizers,
		Sides:               r.Sides,
		Desserts:            r.Desserts,
		Drinks:              r.Drinks,
		DietaryRestrictions: r.DietaryRestrictions,
		SpecialRequests:     r.SpecialRequests,
		NeedsEquipment:      r.NeedsEquipment,
		NeedsServiceStaff:   r.NeedsServiceStaff,
		ComplianceLevel:     r.ComplianceLevel,
	}, nil
}

// QuoteCreate handles public event intake.
func QuoteCreate(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		var payload quoteCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, quoteResponseFromModel(created))
	}
}

func QuoteGet(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		quoteID, err := validators.ParseUUIDParam(chi.URLParam(r, "quoteID"), "quote id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Get(r.Context(), quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quoteResponseFromModel(quote))
	}
}

func QuoteList(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := quotes.ListFilter{
			ContactEmail: strings.TrimSpace(r.URL.Query().Get("contact_email")),
			SearchTerm:   strings.TrimSpace(r.URL.Query().Get("q")),
		}
		if rawStatus := strings.TrimSpace(r.URL.Query().Get("status")); rawStatus != "" {
			status, parseErr := enums.ParseQuoteWorkflowStatus(rawStatus)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			filter.Status = &status
		}
		if filter.EventDateFrom, err = validators.ParseQueryDate(r, "event_date_from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.EventDateTo, err = validators.ParseQueryDate(r, "event_date_to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
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

		items := make([]quoteResponse, 0, len(list))
		for i := range list {
			items = append(items, quoteResponseFromModel(&list[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

type quoteUpdateRequest struct {
	EventDate           *string  `json:"event_date"`
	StartTime           *string  `json:"start_time"`
	GuestCount          *int     `json:"guest_count" validate:"omitempty,gt=0"`
	Location            *string  `json:"location"`
	ServiceType         *string  `json:"service_type" validate:"omitempty,oneof=drop_off full_service pickup"`
	PrimaryProtein      *string  `json:"primary_protein"`
	SecondaryProtein    *string  `json:"secondary_protein"`
	Appetizers          []string `json:"appetizers"`
	Sides               []string `json:"sides"`
	Desserts            []string `json:"desserts"`
	Drinks              []string `json:"drinks"`
	DietaryRestrictions *string  `json:"dietary_restrictions"`
	SpecialRequests     *string  `json:"special_requests"`
	NeedsEquipment      *bool    `json:"needs_equipment"`
	NeedsServiceStaff   *bool    `json:"needs_service_staff"`
}

// QuoteUpdate applies admin edits; tracked field changes feed drift detection.
func QuoteUpdate(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		actorID, err := actorFromRequest(r, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quoteID, err := validators.ParseUUIDParam(chi.URLParam(r, "quoteID"), "quote id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quoteUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := quotes.UpdateQuoteInput{
			QuoteID:             quoteID,
			ActorID:             actorID,
			StartTime:           payload.StartTime,
			GuestCount:          payload.GuestCount,
			Location:            payload.Location,
			ServiceType:         payload.ServiceType,
			PrimaryProtein:      payload.PrimaryProtein,
			SecondaryProtein:    payload.SecondaryProtein,
			Appetizers:          payload.Appetizers,
			Sides:               payload.Sides,
			Desserts:            payload.Desserts,
			Drinks:              payload.Drinks,
			DietaryRestrictions: payload.DietaryRestrictions,
			SpecialRequests:     payload.SpecialRequests,
			NeedsEquipment:      payload.NeedsEquipment,
			NeedsServiceStaff:   payload.NeedsServiceStaff,
		}
		if payload.EventDate != nil {
			eventDate, parseErr := time.Parse(dateLayout, strings.TrimSpace(*payload.EventDate))
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid event_date"))
				return
			}
			input.EventDate = &eventDate
		}

		updated, err := svc.AdminUpdate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quoteResponseFromModel(updated))
	}
}

type quoteTransitionRequest struct {
	Target string `json:"target" validate:"required"`
}

func QuoteTransition(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		actorID, err := actorFromRequest(r, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quoteID, err := validators.ParseUUIDParam(chi.URLParam(r, "quoteID"), "quote id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quoteTransitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseQuoteWorkflowStatus(strings.TrimSpace(payload.Target))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status"))
			return
		}

		updated, err := svc.Transition(r.Context(), quoteID, target, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quoteResponseFromModel(updated))
	}
}

type invoiceGenerateRequest struct {
	DocumentType string `json:"document_type"`
}

// QuoteGenerateInvoice creates a draft invoice derived from the quote.
func QuoteGenerateInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
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

		quoteID, err := validators.ParseUUIDParam(chi.URLParam(r, "quoteID"), "quote id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload invoiceGenerateRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		documentType := enums.DocumentTypeEstimate
		if raw := strings.TrimSpace(payload.DocumentType); raw != "" {
			documentType, err = enums.ParseDocumentType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid document type"))
				return
			}
		}

		created, err := svc.GenerateFromQuote(r.Context(), invoices.GenerateInput{
			QuoteID:      quoteID,
			DocumentType: documentType,
			ActorID:      actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, invoiceResponseFromModel(created))
	}
}

type quoteResponse struct {
	ID                  uuid.UUID                 `json:"id"`
	ContactName         string                    `json:"contact_name"`
	ContactEmail        string                    `json:"contact_email"`
	ContactPhone        *string                   `json:"contact_phone"`
	Organization        *string                   `json:"organization"`
	EventDate           string                    `json:"event_date"`
	StartTime           *string                   `json:"start_time"`
	GuestCount          int                       `json:"guest_count"`
	Location            string                    `json:"location"`
	ServiceType         string                    `json:"service_type"`
	PrimaryProtein      *string                   `json:"primary_protein"`
	SecondaryProtein    *string                   `json:"secondary_protein"`
	Appetizers          []string                  `json:"appetizers"`
	Sides               []string                  `json:"sides"`
	Desserts            []string                  `json:"desserts"`
	Drinks              []string                  `json:"drinks"`
	DietaryRestrictions *string                   `json:"dietary_restrictions"`
	SpecialRequests     *string                   `json:"special_requests"`
	NeedsEquipment      bool                      `json:"needs_equipment"`
	NeedsServiceStaff   bool                      `json:"needs_service_staff"`
	ComplianceLevel     *string                   `json:"compliance_level"`
	WorkflowStatus      enums.QuoteWorkflowStatus `json:"workflow_status"`
	CreatedAt           time.Time                 `json:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

func quoteResponseFromModel(m *models.Quote) quoteResponse {
	return quoteResponse{
		ID:                  m.ID,
		ContactName:         m.ContactName,
		ContactEmail:        m.ContactEmail,
		ContactPhone:        m.ContactPhone,
		Organization:        m.Organization,
		EventDate:           m.EventDate.Format(dateLayout),
		StartTime:           m.StartTime,
		GuestCount:          m.GuestCount,
		Location:            m.Location,
		ServiceType:         m.ServiceType,
		PrimaryProtein:      m.PrimaryProtein,
		SecondaryProtein:    m.SecondaryProtein,
		Appetizers:          m.Appetizers,
		Sides:               m.Sides,
		Desserts:            m.Desserts,
		Drinks:              m.Drinks,
		DietaryRestrictions: m.DietaryRestrictions,
		SpecialRequests:     m.SpecialRequests,
		NeedsEquipment:      m.NeedsEquipment,
		NeedsServiceStaff:   m.NeedsServiceStaff,
		ComplianceLevel:     m.ComplianceLevel,
		WorkflowStatus:      m.WorkflowStatus,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}
