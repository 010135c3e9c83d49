package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/jmorales/caterflow-backend/pkg/db/types"
	"github.com/jmorales/caterflow-backend/pkg/enums"
)

// Quote is a customer's event request. It is mutated by admin edits and by
// approved change requests, and read by invoice generation.
type Quote struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContactName  string    `gorm:"column:contact_name;not null"`
	ContactEmail string    `gorm:"column:contact_email;not null;index"`
	ContactPhone *string   `gorm:"column:contact_phone"`
	Organization *string   `gorm:"column:organization"`

	EventDate  time.Time `gorm:"column:event_date;not null;index"`
	StartTime  *string   `gorm:"column:start_time"`
	GuestCount int       `gorm:"column:guest_count;not null"`
	Location   string    `gorm:"column:location;not null"`

	ServiceType         string             `gorm:"column:service_type;not null;default:'drop_off'"`
	PrimaryProtein      *string            `gorm:"column:primary_protein"`
	SecondaryProtein    *string            `gorm:"column:secondary_protein"`
	Appetizers          dbtypes.StringList `gorm:"column:appetizers;type:text[]"`
	Sides               dbtypes.StringList `gorm:"column:sides;type:text[]"`
	Desserts            dbtypes.StringList `gorm:"column:desserts;type:text[]"`
	Drinks              dbtypes.StringList `gorm:"column:drinks;type:text[]"`
	DietaryRestrictions *string            `gorm:"column:dietary_restrictions"`
	SpecialRequests     *string            `gorm:"column:special_requests"`

	NeedsEquipment    bool `gorm:"column:needs_equipment;not null;default:false"`
	NeedsServiceStaff bool `gorm:"column:needs_service_staff;not null;default:false"`

	ComplianceLevel *string                   `gorm:"column:compliance_level"`
	WorkflowStatus  enums.QuoteWorkflowStatus `gorm:"column:workflow_status;type:quote_workflow_status;not null;default:'pending'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
