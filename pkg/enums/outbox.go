package enums

import "fmt"

// OutboxEventType enumerates domain events recorded through the outbox.
type OutboxEventType string

const (
	OutboxEventQuoteUpdated          OutboxEventType = "quote.updated"
	OutboxEventInvoiceGenerated      OutboxEventType = "invoice.generated"
	OutboxEventInvoiceResynced       OutboxEventType = "invoice.resynced"
	OutboxEventInvoiceSent           OutboxEventType = "invoice.sent"
	OutboxEventMilestonesGenerated   OutboxEventType = "milestones.generated"
	OutboxEventPaymentRecorded       OutboxEventType = "payment.recorded"
	OutboxEventChangeRequestApproved OutboxEventType = "change_request.approved"
)

var validOutboxEventTypes = []OutboxEventType{
	OutboxEventQuoteUpdated,
	OutboxEventInvoiceGenerated,
	OutboxEventInvoiceResynced,
	OutboxEventInvoiceSent,
	OutboxEventMilestonesGenerated,
	OutboxEventPaymentRecorded,
	OutboxEventChangeRequestApproved,
}

// String implements fmt.Stringer.
func (o OutboxEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is known.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregateQuote   OutboxAggregateType = "quote"
	OutboxAggregateInvoice OutboxAggregateType = "invoice"
)

// String implements fmt.Stringer.
func (o OutboxAggregateType) String() string {
	return string(o)
}

// IsValid reports whether the value is known.
func (o OutboxAggregateType) IsValid() bool {
	return o == OutboxAggregateQuote || o == OutboxAggregateInvoice
}
