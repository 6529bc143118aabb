package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/ledger"
)

// WebhookProcessor runs one provider delivery to a terminal state.
type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signatureHeader string) ledger.Result
}

// SummaryInvalidator drops cached dashboard totals after the ledger changed.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, orgID string)
}

type WebhookController struct {
	processor WebhookProcessor
	summaries SummaryInvalidator
}

func NewWebhookController(processor WebhookProcessor, summaries SummaryInvalidator) *WebhookController {
	return &WebhookController{processor: processor, summaries: summaries}
}

// HandleStripeWebhook verifies and applies a Stripe delivery. The body must
// be read raw; re-encoded JSON would not match the signature.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	// fasthttp reuses the request buffer after the handler returns.
	payload := append([]byte(nil), c.BodyRaw()...)

	res := wc.processor.Process(c.UserContext(), payload, c.Get("Stripe-Signature"))

	switch res.State {
	case ledger.StateRejected:
		if errors.Is(res.Err, ledger.ErrMalformedPayload) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"ok":      false,
				"error":   "malformed_payload",
				"message": "Event payload could not be parsed",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":      false,
			"error":   "invalid_signature",
			"message": "Webhook signature verification failed",
		})
	case ledger.StateDuplicate:
		return c.JSON(fiber.Map{"ok": true, "duplicate": true, "event_id": res.EventID})
	case ledger.StateApplied:
		if wc.summaries != nil && res.OrgID != "" {
			wc.summaries.Invalidate(c.UserContext(), res.OrgID)
		}
		return c.JSON(fiber.Map{
			"ok":         true,
			"event_id":   res.EventID,
			"run_id":     res.RunID,
			"receipt_id": res.ReceiptID,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":      false,
			"error":   "ledger_write_failed",
			"message": "Event could not be recorded, please retry",
		})
	}
}
