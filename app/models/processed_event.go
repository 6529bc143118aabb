package models

import "time"

const ProviderStripe = "stripe"

// ProcessedEvent is the durable identity of a provider event that has been
// applied to the ledger. The unique event id makes redelivery a no-op.
type ProcessedEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Provider  string    `gorm:"type:varchar(20);not null;index" json:"provider"`
	EventID   string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_processed_events_event" json:"event_id"`
	EventType string    `gorm:"type:varchar(100);not null;index" json:"event_type"`
	OrgID     string    `gorm:"type:varchar(191);not null;default:''" json:"org_id"`
	InvoiceID string    `gorm:"type:varchar(191);not null;default:''" json:"invoice_id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
