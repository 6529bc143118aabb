package models

import "time"

const (
	RunStatusStarted   = "started"
	RunStatusRecovered = "recovered"
	RunStatusFailed    = "failed"
)

// Run is the recovery-attempt lifecycle of one invoice within an organization.
// Only Status changes after creation.
type Run struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	OrgID      string    `gorm:"type:varchar(191);not null;index:ux_runs_org_invoice,unique,priority:1" json:"org_id"`
	CustomerID string    `gorm:"type:varchar(191);not null;default:''" json:"customer_id"`
	InvoiceID  string    `gorm:"type:varchar(191);not null;index:ux_runs_org_invoice,unique,priority:2" json:"invoice_id"`
	Status     string    `gorm:"type:varchar(20);not null;default:'started';index" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Receipts   []Receipt `gorm:"foreignKey:RunID;references:ID" json:"receipts,omitempty"`
}

// IsValidRunStatus reports whether s is a known run status.
func IsValidRunStatus(s string) bool {
	switch s {
	case RunStatusStarted, RunStatusRecovered, RunStatusFailed:
		return true
	default:
		return false
	}
}
