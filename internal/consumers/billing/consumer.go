package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/jmorales/caterflow-backend/internal/reconcile"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	"github.com/jmorales/caterflow-backend/pkg/logger"
	"github.com/jmorales/caterflow-backend/pkg/metrics"
	"github.com/jmorales/caterflow-backend/pkg/outbox"
)

const billingConsumerName = "billing-drift"

type driftChecker interface {
	CheckDrift(ctx context.Context, invoiceID uuid.UUID) (reconcile.Drift, error)
}

type invoiceLister interface {
	FindByQuoteID(ctx context.Context, quoteID uuid.UUID) ([]models.Invoice, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer recomputes drift for invoices whose backing quote changed, so
// stale drafts get flagged before an admin tries to send them.
type Consumer struct {
	invoices    invoiceLister
	drift       driftChecker
	manager     idempotencyChecker
	logg        *logger.Logger
	metrics     *metrics.BillingMetrics
	eventFilter map[enums.OutboxEventType]struct{}
}

// NewConsumer builds the drift-review consumer.
func NewConsumer(invoices invoiceLister, drift driftChecker, manager idempotencyChecker, logg *logger.Logger, billingMetrics *metrics.BillingMetrics) (*Consumer, error) {
	if invoices == nil {
		return nil, fmt.Errorf("invoice lister required")
	}
	if drift == nil {
		return nil, fmt.Errorf("drift checker required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		invoices: invoices,
		drift:    drift,
		manager:  manager,
		logg:     logg,
		metrics:  billingMetrics,
		eventFilter: map[enums.OutboxEventType]struct{}{
			enums.OutboxEventQuoteUpdated:          {},
			enums.OutboxEventChangeRequestApproved: {},
		},
	}, nil
}

type quoteEventData struct {
	QuoteID uuid.UUID `json:"quote_id"`
}

// Process re-checks drift for every invoice linked to the changed quote.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if _, ok := c.eventFilter[eventType]; !ok {
		return nil
	}

	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, billingConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	var data quoteEventData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		c.logg.Error(logCtx, "failed to decode quote event", err)
		_ = c.manager.Delete(ctx, billingConsumerName, eventID)
		return err
	}
	if data.QuoteID == uuid.Nil {
		return fmt.Errorf("quote id missing from event payload")
	}

	if err := c.reviewQuote(logCtx, data.QuoteID); err != nil {
		_ = c.manager.Delete(ctx, billingConsumerName, eventID)
		return err
	}
	return nil
}

func (c *Consumer) reviewQuote(ctx context.Context, quoteID uuid.UUID) error {
	invoices, err := c.invoices.FindByQuoteID(ctx, quoteID)
	if err != nil {
		return fmt.Errorf("list invoices for quote %s: %w", quoteID, err)
	}

	var errs error
	for _, invoice := range invoices {
		if invoice.WorkflowStatus.IsTerminal() {
			continue
		}
		drift, err := c.drift.CheckDrift(ctx, invoice.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("check drift for invoice %s: %w", invoice.ID, err))
			continue
		}
		if drift.Status == enums.DriftStatusNone {
			continue
		}
		if c.metrics != nil {
			c.metrics.IncDrift(string(drift.Status))
		}
		invCtx := c.logg.WithFields(ctx, map[string]any{
			"invoice_id":     invoice.ID.String(),
			"quote_id":       quoteID.String(),
			"drift_status":   drift.Status,
			"changed_fields": len(drift.Changes),
		})
		if drift.NeedsReview() {
			c.logg.Warn(invCtx, "invoice needs drift review before send")
			continue
		}
		c.logg.Info(invCtx, "invoice drift is auto-resolvable")
	}
	return errs
}
