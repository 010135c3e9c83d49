package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jmorales/caterflow-backend/pkg/enums"
)

// Invoice is the estimate/contract document derived from exactly one Quote.
// Totals are derived fields: total_cents == subtotal - discount + tax after
// every recompute, and they are never written independently of line items.
type Invoice struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuoteID uuid.UUID `gorm:"column:quote_id;type:uuid;not null;index"`

	DocumentType   enums.DocumentType          `gorm:"column:document_type;type:document_type;not null;default:'estimate'"`
	WorkflowStatus enums.InvoiceWorkflowStatus `gorm:"column:workflow_status;type:invoice_workflow_status;not null;default:'draft'"`
	IsDraft        bool                        `gorm:"column:is_draft;not null;default:true"`

	SubtotalCents int64 `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents int64 `gorm:"column:discount_cents;not null;default:0"`
	TaxCents      int64 `gorm:"column:tax_cents;not null;default:0"`
	TotalCents    int64 `gorm:"column:total_cents;not null;default:0"`

	DiscountType       enums.DiscountType `gorm:"column:discount_type;type:discount_type;not null;default:'none'"`
	DiscountPercentBps int64              `gorm:"column:discount_percent_bps;not null;default:0"`
	DiscountFixedCents int64              `gorm:"column:discount_fixed_cents;not null;default:0"`
	TaxExempt          bool               `gorm:"column:tax_exempt;not null;default:false"`

	LastQuoteSync  time.Time `gorm:"column:last_quote_sync;not null"`
	OverrideReason *string   `gorm:"column:override_reason"`

	SentAt   *time.Time `gorm:"column:sent_at"`
	ViewedAt *time.Time `gorm:"column:viewed_at"`

	LineItems []InvoiceLineItem `gorm:"foreignKey:InvoiceID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
