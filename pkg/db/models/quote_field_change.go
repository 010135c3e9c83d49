package models

import (
	"time"

	"github.com/google/uuid"
)

// QuoteFieldChange is an append-only record of a tracked quote field edit.
// Drift detection walks these rows relative to an invoice's last_quote_sync.
type QuoteFieldChange struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuoteID    uuid.UUID `gorm:"column:quote_id;type:uuid;not null;index"`
	Field      string    `gorm:"column:field;not null"`
	OldValue   *string   `gorm:"column:old_value"`
	NewValue   *string   `gorm:"column:new_value"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null;index;autoCreateTime"`
}
