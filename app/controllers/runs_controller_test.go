package controllers

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRunIncludesReceipts(t *testing.T) {
	a := newLedgerApp(t)

	_, body := a.deliver(t, invoiceEvent("evt_f", "invoice.payment_failed", "acme", "in_9", 4200))
	runID := body["run_id"].(string)
	_, _ = a.deliver(t, invoiceEvent("evt_s", "invoice.payment_succeeded", "acme", "in_9", 4200))

	status, body := doJSON(t, a.app, getRequest(t, "/api/v1/runs/"+runID, "acme"))
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, runID, body["id"])
	assert.Equal(t, "recovered", body["status"])
	rcpts, ok := body["receipts"].([]any)
	require.True(t, ok)
	require.Len(t, rcpts, 1)
	assert.Equal(t, float64(4200), rcpts[0].(map[string]any)["amount_cents"])
}

func TestGetRunOfOtherOrgIsNotFound(t *testing.T) {
	a := newLedgerApp(t)

	_, body := a.deliver(t, invoiceEvent("evt_f", "invoice.payment_failed", "acme", "in_9", 4200))
	runID := body["run_id"].(string)

	status, body := doJSON(t, a.app, getRequest(t, "/api/v1/runs/"+runID, "globex"))
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])

	status, _ = doJSON(t, a.app, getRequest(t, "/api/v1/runs/does-not-exist", "acme"))
	assert.Equal(t, fiber.StatusNotFound, status)
}
