package models

import "time"

// UnknownEventID marks dead letters whose event identity could not be trusted.
const UnknownEventID = "unknown"

// DeadLetter keeps an inbound event that could not be verified or applied.
type DeadLetter struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    string    `gorm:"type:varchar(191);not null;default:'unknown';index" json:"event_id"`
	Payload    []byte    `gorm:"type:longblob" json:"payload"`
	Reason     string    `gorm:"type:text;not null" json:"reason"`
	ArchiveKey string    `gorm:"type:varchar(255);not null;default:''" json:"archive_key,omitempty"`
	FailedAt   time.Time `gorm:"autoCreateTime;index" json:"failed_at"`
}
