package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jmorales/caterflow-backend/pkg/enums"
)

// PaymentMilestone is one tier of an invoice's payment schedule. Percentages
// across an invoice's active milestones sum to 100 and amounts sum to the
// invoice total exactly. Rows are voided, never deleted.
type PaymentMilestone struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID uuid.UUID `gorm:"column:invoice_id;type:uuid;not null;index"`

	MilestoneType enums.MilestoneType   `gorm:"column:milestone_type;type:milestone_type;not null"`
	Status        enums.MilestoneStatus `gorm:"column:status;type:milestone_status;not null;default:'pending'"`

	Percentage  int   `gorm:"column:percentage;not null"`
	AmountCents int64 `gorm:"column:amount_cents;not null"`

	// DueDate is mutually exclusive with IsDueNow. Net-30 milestones carry
	// neither until the event occurs and the invoice is finalized.
	DueDate  *time.Time `gorm:"column:due_date"`
	IsDueNow bool       `gorm:"column:is_due_now;not null;default:false"`
	IsNet30  bool       `gorm:"column:is_net30;not null;default:false"`

	Description string `gorm:"column:description;not null;default:''"`

	PaidAt   *time.Time `gorm:"column:paid_at"`
	VoidedAt *time.Time `gorm:"column:voided_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
