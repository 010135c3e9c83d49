package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	consumerbilling "github.com/jmorales/caterflow-backend/internal/consumers/billing"
	"github.com/jmorales/caterflow-backend/internal/cron"
	"github.com/jmorales/caterflow-backend/internal/invoices"
	"github.com/jmorales/caterflow-backend/internal/payments"
	"github.com/jmorales/caterflow-backend/internal/quotes"
	"github.com/jmorales/caterflow-backend/internal/schedule"
	"github.com/jmorales/caterflow-backend/pkg/config"
	"github.com/jmorales/caterflow-backend/pkg/db"
	"github.com/jmorales/caterflow-backend/pkg/logger"
	"github.com/jmorales/caterflow-backend/pkg/metrics"
	"github.com/jmorales/caterflow-backend/pkg/migrate"
	"github.com/jmorales/caterflow-backend/pkg/outbox"
	"github.com/jmorales/caterflow-backend/pkg/outbox/idempotency"
	"github.com/jmorales/caterflow-backend/pkg/redis"
)

const idempotencyTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)

	quoteRepo := quotes.NewRepository(dbClient.DB())
	invoiceRepo := invoices.NewRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

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

	idemManager, err := idempotency.NewManager(redisClient, idempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	driftConsumer, err := consumerbilling.NewConsumer(invoiceRepo, invoiceSvc, idemManager, logg, billingMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create drift consumer", err)
		os.Exit(1)
	}

	dispatcher, err := NewDispatcher(DispatcherParams{
		Logger:      logg,
		Repository:  outboxRepo,
		Consumers:   []eventConsumer{driftConsumer},
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox dispatcher", err)
		os.Exit(1)
	}

	overdueJob, err := cron.NewMilestoneOverdueJob(cron.MilestoneOverdueJobParams{
		Logger:   logg,
		Payments: paymentSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create overdue job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Worker.OutboxKeepDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("worker"), cfg.Worker.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}
	cronSvc, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(overdueJob, retentionJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Worker.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting worker")

	errCh := make(chan error, 2)
	go func() { errCh <- dispatcher.Run(ctx) }()
	go func() { errCh <- cronSvc.Run(ctx) }()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		stop()
		<-errCh
		os.Exit(1)
	}
	stop()
	<-errCh

	logg.Info(ctx, "worker shutting down gracefully")
}
