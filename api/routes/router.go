package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmorales/caterflow-backend/api/controllers"
	webhookcontrollers "github.com/jmorales/caterflow-backend/api/controllers/webhooks"
	"github.com/jmorales/caterflow-backend/api/middleware"
	"github.com/jmorales/caterflow-backend/internal/changerequests"
	"github.com/jmorales/caterflow-backend/internal/invoices"
	"github.com/jmorales/caterflow-backend/internal/payments"
	"github.com/jmorales/caterflow-backend/internal/quotes"
	stripewebhook "github.com/jmorales/caterflow-backend/internal/webhooks/stripe"
	"github.com/jmorales/caterflow-backend/pkg/config"
	"github.com/jmorales/caterflow-backend/pkg/logger"
	pkgredis "github.com/jmorales/caterflow-backend/pkg/redis"
	"github.com/jmorales/caterflow-backend/pkg/stripe"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             pinger
	Redis          *pkgredis.Client
	Quotes         quotes.Service
	Invoices       invoices.Service
	Payments       payments.Service
	ChangeRequests changerequests.Service
	StripeClient   *stripe.Client
	StripeWebhook  *stripewebhook.Service
	StripeGuard    *stripewebhook.IdempotencyGuard
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	var cache pinger
	var idemStore pkgredis.IdempotencyStore
	if params.Redis != nil {
		cache = params.Redis
		idemStore = params.Redis
	}

	// Assign interfaces only from non-nil pointers so the controller's nil
	// checks work.
	var webhookSvc webhookcontrollers.StripeWebhookService
	if params.StripeWebhook != nil {
		webhookSvc = params.StripeWebhook
	}
	var webhookClient webhookcontrollers.StripeSigner
	if params.StripeClient != nil {
		webhookClient = params.StripeClient
	}
	var webhookGuard webhookcontrollers.StripeEventGuard
	if params.StripeGuard != nil {
		webhookGuard = params.StripeGuard
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, params.DB, cache, logg))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(webhookSvc, webhookClient, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/quotes", func(r chi.Router) {
			r.Post("/", controllers.QuoteCreate(params.Quotes, logg))
			r.Get("/", controllers.QuoteList(params.Quotes, logg))
			r.Route("/{quoteID}", func(r chi.Router) {
				r.Get("/", controllers.QuoteGet(params.Quotes, logg))
				r.Patch("/", controllers.QuoteUpdate(params.Quotes, logg))
				r.Post("/transition", controllers.QuoteTransition(params.Quotes, logg))
				r.Post("/invoice", controllers.QuoteGenerateInvoice(params.Invoices, logg))
			})
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", controllers.InvoiceList(params.Invoices, logg))
			r.Route("/{invoiceID}", func(r chi.Router) {
				r.Get("/", controllers.InvoiceGet(params.Invoices, logg))
				r.Post("/line-items", controllers.InvoiceAddLineItem(params.Invoices, logg))
				r.Patch("/line-items/{itemID}", controllers.InvoiceUpdateLineItem(params.Invoices, logg))
				r.Delete("/line-items/{itemID}", controllers.InvoiceRemoveLineItem(params.Invoices, logg))
				r.Put("/discount", controllers.InvoiceSetDiscount(params.Invoices, logg))
				r.Get("/drift", controllers.InvoiceDrift(params.Invoices, logg))
				r.Post("/resync", controllers.InvoiceResync(params.Invoices, logg))
				r.Post("/send", controllers.InvoiceSend(params.Invoices, logg))
				r.Post("/milestones", controllers.MilestonesGenerate(params.Payments, logg))
				r.Get("/milestones", controllers.MilestonesList(params.Payments, logg))
				r.Post("/payments", controllers.PaymentRecord(params.Payments, logg))
				r.Get("/payments", controllers.TransactionsList(params.Payments, logg))
			})
		})

		r.Route("/change-requests", func(r chi.Router) {
			r.Post("/", controllers.ChangeRequestCreate(params.ChangeRequests, logg))
			r.Get("/", controllers.ChangeRequestListByQuote(params.ChangeRequests, logg))
			r.Route("/{requestID}", func(r chi.Router) {
				r.Get("/", controllers.ChangeRequestGet(params.ChangeRequests, logg))
				r.Post("/approve", controllers.ChangeRequestApprove(params.ChangeRequests, logg))
				r.Post("/reject", controllers.ChangeRequestReject(params.ChangeRequests, logg))
			})
		})
	})

	return r
}
