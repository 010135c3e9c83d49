package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jmorales/caterflow-backend/pkg/enums"
)

// ChangeRequest is a customer-submitted modification to an already-estimated
// quote. Structured fields overwrite the quote on approval; free-text fields
// are advisory and resolved by the admin.
type ChangeRequest struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuoteID uuid.UUID `gorm:"column:quote_id;type:uuid;not null;index"`

	RequestedEventDate  *time.Time `gorm:"column:requested_event_date"`
	RequestedGuestCount *int       `gorm:"column:requested_guest_count"`
	RequestedLocation   *string    `gorm:"column:requested_location"`
	RequestedStartTime  *string    `gorm:"column:requested_start_time"`

	MenuChanges    *string `gorm:"column:menu_changes"`
	ServiceChanges *string `gorm:"column:service_changes"`
	DietaryChanges *string `gorm:"column:dietary_changes"`

	EstimatedCostChangeCents int64 `gorm:"column:estimated_cost_change_cents;not null;default:0"`

	Status        enums.ChangeRequestStatus `gorm:"column:status;type:change_request_status;not null;default:'pending'"`
	AdminResponse *string                   `gorm:"column:admin_response"`
	ResolvedAt    *time.Time                `gorm:"column:resolved_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
