package invoices

import (
	"context"
	"fmt"

	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/logger"
)

// LogNotifier records the send in the structured log. Actual delivery (email,
// PDF rendering) happens in the provider integration outside this service;
// the send flow only needs a terminal success/failure signal.
type LogNotifier struct {
	logg *logger.Logger
}

// NewLogNotifier builds the default notifier.
func NewLogNotifier(logg *logger.Logger) (*LogNotifier, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogNotifier{logg: logg}, nil
}

// SendInvoice implements Notifier.
func (n *LogNotifier) SendInvoice(ctx context.Context, invoice *models.Invoice, annotation string) error {
	if invoice == nil {
		return fmt.Errorf("invoice required")
	}
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"invoice_id":    invoice.ID.String(),
		"quote_id":      invoice.QuoteID.String(),
		"document_type": invoice.DocumentType,
		"total_cents":   invoice.TotalCents,
	})
	if annotation != "" {
		logCtx = n.logg.WithField(logCtx, "annotation", annotation)
	}
	n.logg.Info(logCtx, "invoice dispatched to customer")
	return nil
}
