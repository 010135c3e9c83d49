package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jmorales/caterflow-backend/pkg/enums"
)

// PaymentTransaction is an immutable record of money received or attempted.
// ProcessorIntentID is the dedup key for webhook retries: recording the same
// payment intent twice must not double-count against the invoice balance.
type PaymentTransaction struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID   uuid.UUID  `gorm:"column:invoice_id;type:uuid;not null;index"`
	MilestoneID *uuid.UUID `gorm:"column:milestone_id;type:uuid"`

	AmountCents   int64                   `gorm:"column:amount_cents;not null"`
	PaymentMethod enums.PaymentMethod     `gorm:"column:payment_method;type:payment_method;not null;default:'card'"`
	Status        enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`

	ProcessorIntentID *string `gorm:"column:processor_intent_id;uniqueIndex"`
	FailureReason     *string `gorm:"column:failure_reason"`

	ProcessedAt *time.Time `gorm:"column:processed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
