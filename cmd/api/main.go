package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmorales/caterflow-backend/api/routes"
	"github.com/jmorales/caterflow-backend/internal/changerequests"
	"github.com/jmorales/caterflow-backend/internal/invoices"
	"github.com/jmorales/caterflow-backend/internal/payments"
	"github.com/jmorales/caterflow-backend/internal/quotes"
	"github.com/jmorales/caterflow-backend/internal/schedule"
	stripewebhook "github.com/jmorales/caterflow-backend/internal/webhooks/stripe"
	"github.com/jmorales/caterflow-backend/pkg/config"
	"github.com/jmorales/caterflow-backend/pkg/db"
	"github.com/jmorales/caterflow-backend/pkg/env"
	"github.com/jmorales/caterflow-backend/pkg/logger"
	"github.com/jmorales/caterflow-backend/pkg/metrics"
	"github.com/jmorales/caterflow-backend/pkg/migrate"
	"github.com/jmorales/caterflow-backend/pkg/outbox"
	"github.com/jmorales/caterflow-backend/pkg/redis"
	"github.com/jmorales/caterflow-backend/pkg/stripe"
)

const webhookGuardTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)

	quoteRepo := quotes.NewRepository(dbClient.DB())
	invoiceRepo := invoices.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())
	changeRepo := changerequests.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	engine, err := schedule.NewEngine(schedule.PolicyFromConfig(cfg.Billing))
	if err != nil {
		logg.Error(context.Background(), "invalid payment schedule policy", err)
		os.Exit(1)
	}

	notifier, err := invoices.NewLogNotifier(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	quoteSvc, err := quotes.NewService(quoteRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create quote service", err)
		os.Exit(1)
	}

	invoiceSvc, err := invoices.NewService(invoices.ServiceParams{
		Repo:                   invoiceRepo,
		Quotes:                 quoteRepo,
		TransactionRunner:      dbClient,
		Outbox:                 outboxSvc,
		Notifier:               notifier,
		TaxRateBps:             int64(cfg.Billing.TaxRateBps),
		ApprovalThresholdCents: cfg.Billing.ApprovalThresholdCents,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}

	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repo:              paymentRepo,
		Invoices:          invoiceRepo,
		Quotes:            quoteRepo,
		Engine:            engine,
		TransactionRunner: dbClient,
		Outbox:            outboxSvc,
		Metrics:           billingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	changeSvc, err := changerequests.NewService(changerequests.ServiceParams{
		Repo:              changeRepo,
		Quotes:            quoteRepo,
		Invoices:          invoiceSvc,
		TransactionRunner: dbClient,
		Outbox:            outboxSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create change request service", err)
		os.Exit(1)
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Payments: paymentSvc})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookGuardTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	addr := ":" + env.Prefixed("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Quotes:         quoteSvc,
			Invoices:       invoiceSvc,
			Payments:       paymentSvc,
			ChangeRequests: changeSvc,
			StripeClient:   stripeClient,
			StripeWebhook:  webhookSvc,
			StripeGuard:    webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
