package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	"github.com/jmorales/caterflow-backend/pkg/logger"
	"github.com/jmorales/caterflow-backend/pkg/outbox"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type outboxRepository interface {
	FetchUnprocessed(limit int) ([]models.OutboxEvent, error)
	MarkProcessed(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type eventConsumer interface {
	Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error
}

// DispatcherParams configure the outbox dispatch loop.
type DispatcherParams struct {
	Logger       *logger.Logger
	Repository   outboxRepository
	Consumers    []eventConsumer
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
}

// Dispatcher drains the outbox and hands each event to the registered
// consumers. Events are marked processed only after every consumer succeeds.
type Dispatcher struct {
	logg         *logger.Logger
	repo         outboxRepository
	consumers    []eventConsumer
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

// NewDispatcher builds the worker's outbox dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = time.Duration(defaultPollMs) * time.Millisecond
	}
	return &Dispatcher{
		logg:         params.Logger,
		repo:         params.Repository,
		consumers:    params.Consumers,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: interval,
	}, nil
}

// Run polls the outbox until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	backoff := d.pollInterval

	for {
		select {
		case <-ctx.Done():
			d.logg.Info(ctx, "outbox dispatcher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := d.processBatch(ctx)
		if err != nil {
			d.logg.Error(ctx, "outbox dispatch batch error", err)
			backoff = nextBackoff(backoff, d.pollInterval, maxBackoff)
			if err := d.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = d.pollInterval

		if processed {
			continue
		}

		if err := d.sleep(ctx, withJitter(d.pollInterval)); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context) (bool, error) {
	events, err := d.repo.FetchUnprocessed(d.batchSize)
	if err != nil {
		return false, fmt.Errorf("fetch unprocessed: %w", err)
	}
	if len(events) == 0 {
		return false, nil
	}

	for _, event := range events {
		d.dispatch(ctx, event)
	}
	return true, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, event models.OutboxEvent) {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		// Malformed payloads never become processable: mark processed so
		// they stop blocking the queue, keep the error for the audit trail.
		d.logg.Error(logCtx, "outbox payload is not a valid envelope", err)
		if markErr := d.repo.MarkFailed(event.ID, err); markErr != nil {
			d.logg.Error(logCtx, "failed to record payload error", markErr)
		}
		if markErr := d.repo.MarkProcessed(event.ID); markErr != nil {
			d.logg.Error(logCtx, "failed to mark malformed event processed", markErr)
		}
		return
	}

	for _, consumer := range d.consumers {
		if err := consumer.Process(ctx, event.EventType, envelope); err != nil {
			nextAttempt := event.AttemptCount + 1
			if nextAttempt >= d.maxAttempts {
				d.logg.Error(logCtx, "outbox event exhausted retries", err)
				if markErr := d.repo.MarkFailed(event.ID, err); markErr != nil {
					d.logg.Error(logCtx, "failed to mark event failed", markErr)
					return
				}
				if markErr := d.repo.MarkProcessed(event.ID); markErr != nil {
					d.logg.Error(logCtx, "failed to retire exhausted event", markErr)
				}
				return
			}
			d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "outbox consumer failed; will retry")
			if markErr := d.repo.MarkFailed(event.ID, err); markErr != nil {
				d.logg.Error(logCtx, "failed to mark event failed", markErr)
			}
			return
		}
	}

	if err := d.repo.MarkProcessed(event.ID); err != nil {
		d.logg.Error(logCtx, "failed to mark event processed", err)
		return
	}
	d.logg.Info(logCtx, "outbox event dispatched")
}

func (d *Dispatcher) sleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
