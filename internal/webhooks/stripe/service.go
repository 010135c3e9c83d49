package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/jmorales/caterflow-backend/internal/payments"
	"github.com/jmorales/caterflow-backend/pkg/db/models"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	pkgerrors "github.com/jmorales/caterflow-backend/pkg/errors"
)

type paymentRecorder interface {
	RecordPayment(ctx context.Context, input payments.RecordPaymentInput) (*payments.PaymentResult, error)
	RecordFailure(ctx context.Context, input payments.RecordFailureInput) (*models.PaymentTransaction, error)
}

type ServiceParams struct {
	Payments paymentRecorder
}

// Service translates Stripe payment-intent events into payment records.
// Payment intents carry the target invoice in metadata; intents without an
// invoice_id are not ours and are skipped.
type Service struct {
	payments paymentRecorder
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	return &Service{payments: params.Payments}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
	default:
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
	}
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	invoiceID, milestoneID, err := targetFromMetadata(intent.Metadata)
	if err != nil {
		return err
	}
	if invoiceID == uuid.Nil {
		return nil
	}

	if event.Type == stripe.EventTypePaymentIntentPaymentFailed {
		_, err := s.payments.RecordFailure(ctx, payments.RecordFailureInput{
			InvoiceID:      invoiceID,
			MilestoneID:    milestoneID,
			AmountCents:    intent.Amount,
			Method:         enums.PaymentMethodCard,
			IdempotencyKey: intent.ID,
			Reason:         failureReason(&intent),
		})
		return err
	}

	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}

	_, err = s.payments.RecordPayment(ctx, payments.RecordPaymentInput{
		InvoiceID:      invoiceID,
		MilestoneID:    milestoneID,
		AmountCents:    amount,
		Method:         enums.PaymentMethodCard,
		IdempotencyKey: intent.ID,
	})
	return err
}

func targetFromMetadata(metadata map[string]string) (uuid.UUID, *uuid.UUID, error) {
	raw := strings.TrimSpace(metadata["invoice_id"])
	if raw == "" {
		return uuid.Nil, nil, nil
	}
	invoiceID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invoice_id metadata")
	}

	var milestoneID *uuid.UUID
	if rawMilestone := strings.TrimSpace(metadata["milestone_id"]); rawMilestone != "" {
		parsed, parseErr := uuid.Parse(rawMilestone)
		if parseErr != nil {
			return uuid.Nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid milestone_id metadata")
		}
		milestoneID = &parsed
	}
	return invoiceID, milestoneID, nil
}

func failureReason(intent *stripe.PaymentIntent) string {
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		return intent.LastPaymentError.Msg
	}
	return "payment failed"
}
