package controllers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/ledger"
)

func TestWebhookFailedThenRecoveredThenReplay(t *testing.T) {
	a := newLedgerApp(t)

	status, body := a.deliver(t, invoiceEvent("evt_fail_1", "invoice.payment_failed", "acme", "in_1", 3500))
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "evt_fail_1", body["event_id"])
	runID, _ := body["run_id"].(string)
	require.NotEmpty(t, runID)
	assert.Equal(t, "", body["receipt_id"])

	success := invoiceEvent("evt_paid_1", "invoice.payment_succeeded", "acme", "in_1", 3500)
	status, body = a.deliver(t, success)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, runID, body["run_id"])
	assert.NotEmpty(t, body["receipt_id"])

	status, body = a.deliver(t, success)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["duplicate"])
	assert.Equal(t, "evt_paid_1", body["event_id"])

	var receipts int64
	require.NoError(t, a.db.Model(&models.Receipt{}).Count(&receipts).Error)
	assert.Equal(t, int64(1), receipts)

	var run models.Run
	require.NoError(t, a.db.First(&run, "id = ?", runID).Error)
	assert.Equal(t, models.RunStatusRecovered, run.Status)
}

func TestWebhookInvalidSignature(t *testing.T) {
	a := newLedgerApp(t)
	payload := invoiceEvent("evt_forged", "invoice.payment_succeeded", "acme", "in_1", 3500)

	req, err := http.NewRequest(fiber.MethodPost, "/api/webhooks/stripe", strings.NewReader(string(payload)))
	require.NoError(t, err)
	req.Header.Set("Stripe-Signature", signPayload("whsec_someoneelsesecret000000", payload, time.Now()))

	status, body := doJSON(t, a.app, req)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "invalid_signature", body["error"])

	var count int64
	require.NoError(t, a.db.Model(&models.ProcessedEvent{}).Count(&count).Error)
	assert.Zero(t, count)

	var dl models.DeadLetter
	require.NoError(t, a.db.First(&dl).Error)
	assert.Equal(t, models.UnknownEventID, dl.EventID)
	assert.Equal(t, ledger.ReasonSignatureInvalid, dl.Reason)
	assert.Equal(t, payload, dl.Payload)
}

func TestWebhookMissingSignature(t *testing.T) {
	a := newLedgerApp(t)
	req, err := http.NewRequest(fiber.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	require.NoError(t, err)

	status, body := doJSON(t, a.app, req)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_signature", body["error"])
}

func TestWebhookMalformedPayload(t *testing.T) {
	a := newLedgerApp(t)
	payload := []byte(`{"id":"evt_no_invoice","object":"event","type":"invoice.payment_failed","api_version":"2020-08-27","data":{"object":{"object":"invoice"}}}`)

	status, body := a.deliver(t, payload)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "malformed_payload", body["error"])

	var dl models.DeadLetter
	require.NoError(t, a.db.First(&dl).Error)
	assert.Equal(t, ledger.ReasonMalformedPayload, dl.Reason)
	assert.Equal(t, payload, dl.Payload)
}

func TestWebhookIgnoredEventIsAcknowledged(t *testing.T) {
	a := newLedgerApp(t)
	payload := []byte(`{"id":"evt_customer","object":"event","type":"customer.created","api_version":"2020-08-27","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	status, body := a.deliver(t, payload)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "", body["run_id"])

	status, body = a.deliver(t, payload)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["duplicate"])
}

type stubProcessor struct {
	res ledger.Result

	gotPayload   []byte
	gotSignature string
}

func (s *stubProcessor) Process(ctx context.Context, payload []byte, signatureHeader string) ledger.Result {
	s.gotPayload = payload
	s.gotSignature = signatureHeader
	return s.res
}

type spyInvalidator struct {
	orgs []string
}

func (s *spyInvalidator) Invalidate(ctx context.Context, orgID string) {
	s.orgs = append(s.orgs, orgID)
}

func newStubWebhookApp(p WebhookProcessor, inv SummaryInvalidator) *fiber.App {
	app := fiber.New()
	app.Post("/api/webhooks/stripe", NewWebhookController(p, inv).HandleStripeWebhook)
	return app
}

func TestWebhookLedgerFailureReturns500(t *testing.T) {
	p := &stubProcessor{res: ledger.Result{State: ledger.StateFailed, EventID: "evt_1", Err: ledger.ErrLedgerWriteFailed}}
	inv := &spyInvalidator{}
	app := newStubWebhookApp(p, inv)

	req, err := http.NewRequest(fiber.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	require.NoError(t, err)
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")

	status, body := doJSON(t, app, req)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "ledger_write_failed", body["error"])
	assert.Equal(t, `{"id":"evt_1"}`, string(p.gotPayload))
	assert.Equal(t, "t=1,v1=abc", p.gotSignature)
	assert.Empty(t, inv.orgs)
}

func TestWebhookAppliedInvalidatesSummary(t *testing.T) {
	p := &stubProcessor{res: ledger.Result{
		State:     ledger.StateApplied,
		Outcome:   ledger.OutcomeApplied,
		EventID:   "evt_1",
		OrgID:     "acme",
		RunID:     "run_1",
		ReceiptID: "rcpt_1",
	}}
	inv := &spyInvalidator{}
	app := newStubWebhookApp(p, inv)

	req, err := http.NewRequest(fiber.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{}`))
	require.NoError(t, err)

	status, body := doJSON(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "run_1", body["run_id"])
	assert.Equal(t, "rcpt_1", body["receipt_id"])
	assert.Equal(t, []string{"acme"}, inv.orgs)
}

func TestWebhookDuplicateDoesNotInvalidate(t *testing.T) {
	p := &stubProcessor{res: ledger.Result{State: ledger.StateDuplicate, Outcome: ledger.OutcomeDuplicate, EventID: "evt_1"}}
	inv := &spyInvalidator{}
	app := newStubWebhookApp(p, inv)

	req, err := http.NewRequest(fiber.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{}`))
	require.NoError(t, err)

	status, body := doJSON(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])
	assert.Empty(t, inv.orgs)
}
