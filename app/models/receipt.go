package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	ReceiptStatusRecovered = "recovered"
	ReceiptStatusPending   = "pending"
)

// Receipt is the financial outcome record of a recovery attempt. Amounts are
// integer minor units. Rows are never deleted.
type Receipt struct {
	ID              string    `gorm:"type:char(36);primaryKey" json:"id"`
	RunID           string    `gorm:"type:char(36);not null;uniqueIndex:ux_receipts_run" json:"run_id"`
	OrgID           string    `gorm:"type:varchar(191);not null;index:idx_receipts_org_created,priority:1;index:idx_receipts_org_amount,priority:1" json:"org_id"`
	InvoiceID       string    `gorm:"type:varchar(191);not null;index" json:"invoice_id"`
	EventID         string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_receipts_event" json:"event_id"`
	AmountCents     int64     `gorm:"not null;default:0;index:idx_receipts_org_amount,priority:2" json:"amount_cents"`
	Currency        string    `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Recovered       bool      `gorm:"not null;default:false;index" json:"recovered"`
	ReasonCode      string    `gorm:"type:varchar(100);not null;default:''" json:"reason_code"`
	ActionSource    string    `gorm:"type:varchar(100);not null;default:''" json:"action_source"`
	AttributionHash string    `gorm:"type:char(64);not null;default:''" json:"attribution_hash"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index:idx_receipts_org_created,priority:2" json:"created_at"`
}

// Status is the business status shown in listings and exports.
func (r *Receipt) Status() string {
	if r.Recovered {
		return ReceiptStatusRecovered
	}
	return ReceiptStatusPending
}

// AttachTo binds the receipt to its run and seals the attribution hash.
func (r *Receipt) AttachTo(run *Run) {
	r.RunID = run.ID
	r.OrgID = run.OrgID
	r.InvoiceID = run.InvoiceID
	r.AttributionHash = AttributionHash(run.ID, run.InvoiceID, r.AmountCents)
}

// AttributionHash fingerprints run, invoice and amount for audit purposes.
func AttributionHash(runID, invoiceID string, amountCents int64) string {
	sum := sha256.Sum256([]byte(runID + "|" + invoiceID + "|" + strconv.FormatInt(amountCents, 10)))
	return hex.EncodeToString(sum[:])
}

// FormatCents renders minor units as a decimal major-unit string ("25.00").
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
