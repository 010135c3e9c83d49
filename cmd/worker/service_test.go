package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	"github.com/jmorales/caterflow-backend/pkg/logger"
	"github.com/jmorales/caterflow-backend/pkg/outbox"
)

type fakeOutboxRepo struct {
	events    []models.OutboxEvent
	processed []uuid.UUID
	failed    []uuid.UUID
	fetchErr  error
}

func (f *fakeOutboxRepo) FetchUnprocessed(limit int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	events := f.events
	f.events = nil
	return events, nil
}

func (f *fakeOutboxRepo) MarkProcessed(id uuid.UUID) error {
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeConsumer struct {
	err    error
	events []enums.OutboxEventType
}

func (f *fakeConsumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	f.events = append(f.events, eventType)
	return f.err
}

func outboxEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{"quote_id":"` + uuid.NewString() + `"}`),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.OutboxEventQuoteUpdated,
		AggregateType: enums.OutboxAggregateQuote,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func newDispatcher(t *testing.T, repo *fakeOutboxRepo, consumer *fakeConsumer) *Dispatcher {
	t.Helper()
	dispatcher, err := NewDispatcher(DispatcherParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
		Consumers:  []eventConsumer{consumer},
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return dispatcher
}

func TestDispatcherMarksProcessedOnSuccess(t *testing.T) {
	event := outboxEvent(t, 0)
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{event}}
	consumer := &fakeConsumer{}
	dispatcher := newDispatcher(t, repo, consumer)

	processed, err := dispatcher.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report progress")
	}
	if len(consumer.events) != 1 || consumer.events[0] != enums.OutboxEventQuoteUpdated {
		t.Fatalf("consumer not invoked: %v", consumer.events)
	}
	if len(repo.processed) != 1 || repo.processed[0] != event.ID {
		t.Fatalf("event not marked processed: %v", repo.processed)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("no failure expected, got %v", repo.failed)
	}
}

func TestDispatcherMarksFailedForRetry(t *testing.T) {
	event := outboxEvent(t, 0)
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{event}}
	consumer := &fakeConsumer{err: errors.New("boom")}
	dispatcher := newDispatcher(t, repo, consumer)

	if _, err := dispatcher.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if len(repo.failed) != 1 || repo.failed[0] != event.ID {
		t.Fatalf("event not marked failed: %v", repo.failed)
	}
	if len(repo.processed) != 0 {
		t.Fatal("failed event must stay unprocessed for retry")
	}
}

func TestDispatcherRetiresExhaustedEvents(t *testing.T) {
	event := outboxEvent(t, defaultMaxAttempts-1)
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{event}}
	consumer := &fakeConsumer{err: errors.New("boom")}
	dispatcher := newDispatcher(t, repo, consumer)

	if _, err := dispatcher.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected failure recorded, got %v", repo.failed)
	}
	if len(repo.processed) != 1 {
		t.Fatal("exhausted event must be retired from the queue")
	}
}

func TestDispatcherRetiresMalformedPayloads(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.OutboxEventQuoteUpdated,
		AggregateType: enums.OutboxAggregateQuote,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{not json`),
	}
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{event}}
	consumer := &fakeConsumer{}
	dispatcher := newDispatcher(t, repo, consumer)

	if _, err := dispatcher.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if len(consumer.events) != 0 {
		t.Fatal("malformed payload must not reach consumers")
	}
	if len(repo.processed) != 1 {
		t.Fatal("malformed event must be retired from the queue")
	}
}

func TestDispatcherEmptyBatch(t *testing.T) {
	repo := &fakeOutboxRepo{}
	dispatcher := newDispatcher(t, repo, &fakeConsumer{})

	processed, err := dispatcher.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if processed {
		t.Fatal("empty batch must not report progress")
	}
}
