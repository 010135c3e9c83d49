package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jmorales/caterflow-backend/pkg/enums"
)

// InvoiceLineItem belongs to exactly one Invoice. Items are created at
// generation time from quote menu selections, priced at zero until an admin
// sets real prices. total_price_cents == qty * unit_price_cents unless the
// row carries an explicit override, in which case the derived value is kept
// in original_price_cents and never silently recalculated.
type InvoiceLineItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID uuid.UUID `gorm:"column:invoice_id;type:uuid;not null;index"`

	Title       string                 `gorm:"column:title;not null"`
	Description *string                `gorm:"column:description"`
	Category    enums.LineItemCategory `gorm:"column:category;type:line_item_category;not null"`

	Quantity        int   `gorm:"column:quantity;not null;default:1"`
	UnitPriceCents  int64 `gorm:"column:unit_price_cents;not null;default:0"`
	TotalPriceCents int64 `gorm:"column:total_price_cents;not null;default:0"`

	IsOverride         bool    `gorm:"column:is_override;not null;default:false"`
	OriginalPriceCents *int64  `gorm:"column:original_price_cents"`
	ChangeReason       *string `gorm:"column:change_reason"`

	SortOrder int `gorm:"column:sort_order;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
