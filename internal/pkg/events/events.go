package events

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Ledger topics. Consumers may subscribe to "ledger.>" for everything.
const (
	TopicRunStarted        = "ledger.run.started"
	TopicReceiptRecorded   = "ledger.receipt.recorded"
	TopicEventDeadLettered = "ledger.event.dead_lettered"
)

type RunStarted struct {
	OrgID     string    `json:"org_id"`
	RunID     string    `json:"run_id"`
	InvoiceID string    `json:"invoice_id"`
	EventID   string    `json:"event_id"`
	At        time.Time `json:"at"`
}

type ReceiptRecorded struct {
	OrgID       string    `json:"org_id"`
	RunID       string    `json:"run_id"`
	ReceiptID   string    `json:"receipt_id"`
	InvoiceID   string    `json:"invoice_id"`
	EventID     string    `json:"event_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	At          time.Time `json:"at"`
}

type EventDeadLettered struct {
	EventID string    `json:"event_id"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

// Publisher emits ledger notifications after the ledger has committed.
// Delivery is best effort; the ledger tables stay the source of truth.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// New connects to NATS when url is set and falls back to a NoopPublisher.
func New(url string) Publisher {
	if url == "" {
		return &NoopPublisher{}
	}
	pub, err := NewNATSPublisher(url)
	if err != nil {
		log.Warnf("[Events] NATS unavailable, notifications disabled: %v", err)
		return &NoopPublisher{}
	}
	log.Infof("[Events] Publishing ledger events to %s", url)
	return pub
}
