package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
)

// EventType is the provider-neutral classification of an inbound event.
type EventType string

const (
	EventPaymentFailed    EventType = "payment_failed"
	EventPaymentSucceeded EventType = "payment_succeeded"
	EventOther            EventType = "other"
)

const (
	ReasonPaymentRecovered = "payment_recovered"
	ActionSourceStripeHook = "stripe_webhook"
	defaultCurrency        = "usd"
)

// Event is a verified provider event reduced to what the ledger needs.
type Event struct {
	EventID      string
	Type         EventType
	ProviderType string
	OrgID        string
	CustomerID   string
	InvoiceID    string
	AmountCents  int64
	Currency     string
	ReasonCode   string
	ActionSource string
	RawPayload   []byte
	ReceivedAt   time.Time
}

// ClassifyStripeType maps a Stripe event type onto an EventType.
func ClassifyStripeType(t string) EventType {
	switch t {
	case "invoice.payment_failed":
		return EventPaymentFailed
	case "invoice.payment_succeeded", "invoice.paid":
		return EventPaymentSucceeded
	default:
		return EventOther
	}
}

type stripeInvoice struct {
	ID            string            `json:"id"`
	Customer      json.RawMessage   `json:"customer"`
	AmountPaid    int64             `json:"amount_paid"`
	AmountDue     int64             `json:"amount_due"`
	Currency      string            `json:"currency"`
	BillingReason string            `json:"billing_reason"`
	Metadata      map[string]string `json:"metadata"`
}

// customerID accepts both the collapsed ("cus_123") and expanded form.
func (inv stripeInvoice) customerID() string {
	if len(inv.Customer) == 0 || string(inv.Customer) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(inv.Customer, &id); err == nil {
		return id
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(inv.Customer, &expanded); err == nil {
		return expanded.ID
	}
	return ""
}

// ParseEvent converts a verified Stripe envelope into an Event. Invoice events
// without an invoice id or with negative amounts are malformed.
func ParseEvent(evt stripe.Event, raw []byte, defaultOrgID string) (*Event, error) {
	id := strings.TrimSpace(evt.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrMalformedPayload)
	}

	out := &Event{
		EventID:      id,
		Type:         ClassifyStripeType(string(evt.Type)),
		ProviderType: string(evt.Type),
		OrgID:        defaultOrgID,
		Currency:     defaultCurrency,
		ActionSource: ActionSourceStripeHook,
		RawPayload:   raw,
		ReceivedAt:   time.Now().UTC(),
	}
	if out.Type == EventOther {
		return out, nil
	}

	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: %s has no data object", ErrMalformedPayload, out.ProviderType)
	}
	var inv stripeInvoice
	if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
		return nil, fmt.Errorf("%w: decode invoice: %v", ErrMalformedPayload, err)
	}
	inv.ID = strings.TrimSpace(inv.ID)
	if inv.ID == "" {
		return nil, fmt.Errorf("%w: invoice id missing", ErrMalformedPayload)
	}
	if inv.AmountPaid < 0 || inv.AmountDue < 0 {
		return nil, fmt.Errorf("%w: negative invoice amount", ErrMalformedPayload)
	}

	out.InvoiceID = inv.ID
	out.CustomerID = inv.customerID()
	if org := strings.TrimSpace(inv.Metadata["org_id"]); org != "" {
		out.OrgID = org
	}
	if c := strings.ToLower(strings.TrimSpace(inv.Currency)); c != "" {
		out.Currency = c
	}

	switch out.Type {
	case EventPaymentSucceeded:
		out.AmountCents = inv.AmountPaid
		if out.AmountCents == 0 {
			out.AmountCents = inv.AmountDue
		}
		out.ReasonCode = ReasonPaymentRecovered
	case EventPaymentFailed:
		out.AmountCents = inv.AmountDue
		out.ReasonCode = inv.BillingReason
	}
	if r := strings.TrimSpace(inv.Metadata["reason_code"]); r != "" {
		out.ReasonCode = r
	}
	if a := strings.TrimSpace(inv.Metadata["action_source"]); a != "" {
		out.ActionSource = a
	}
	return out, nil
}
