package controllers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/deadletter"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/ledger"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 200
)

// DeadLetterLister returns the most recent dead letters first.
type DeadLetterLister interface {
	List(ctx context.Context, limit int) ([]models.DeadLetter, error)
}

// DeadLetterReplayer re-applies a dead letter, queued or inline.
type DeadLetterReplayer interface {
	Schedule(ctx context.Context, id uint) (deadletter.ReplayTicket, error)
}

type DeadLetterController struct {
	deadLetters DeadLetterLister
	replayer    DeadLetterReplayer
}

// NewDeadLetterController creates the controller. replayer may be nil, which
// disables the replay endpoint.
func NewDeadLetterController(deadLetters DeadLetterLister, replayer DeadLetterReplayer) *DeadLetterController {
	return &DeadLetterController{deadLetters: deadLetters, replayer: replayer}
}

// HandleList serves GET /api/v1/dead-letters?limit=N.
func (dc *DeadLetterController) HandleList(c *fiber.Ctx) error {
	limit := defaultDeadLetterLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxDeadLetterLimit {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"ok":      false,
				"error":   "invalid_filter",
				"field":   "limit",
				"message": "limit must be between 1 and " + strconv.Itoa(maxDeadLetterLimit),
			})
		}
		limit = n
	}

	items, err := dc.deadLetters.List(c.UserContext(), limit)
	if err != nil {
		log.Errorf("[DeadLetter] Listing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":      false,
			"error":   "internal_server_error",
			"message": "Dead letters could not be loaded",
		})
	}
	if items == nil {
		items = []models.DeadLetter{}
	}
	return c.JSON(fiber.Map{"ok": true, "items": items})
}

// HandleReplay serves POST /api/v1/dead-letters/:id/replay.
func (dc *DeadLetterController) HandleReplay(c *fiber.Ctx) error {
	if dc.replayer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"ok":      false,
			"error":   "replay_unavailable",
			"message": "Dead letter replay is not configured",
		})
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":      false,
			"error":   "invalid_id",
			"field":   "id",
			"message": "id must be a positive integer",
		})
	}

	ticket, err := dc.replayer.Schedule(c.UserContext(), uint(id))
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"ok":      false,
			"error":   "not_found",
			"message": "Dead letter not found",
		})
	case errors.Is(err, deadletter.ErrNotReplayable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"ok":      false,
			"error":   "not_replayable",
			"message": "Only events that failed the ledger write can be replayed",
		})
	case errors.Is(err, ledger.ErrLedgerWriteFailed):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":      false,
			"error":   "ledger_write_failed",
			"message": "Event could not be recorded, please retry",
		})
	default:
		log.Errorf("[DeadLetter] Replay of %d failed: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":      false,
			"error":   "internal_server_error",
			"message": "Dead letter could not be replayed",
		})
	}

	if ticket.JobID != "" {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"ok":             true,
			"dead_letter_id": id,
			"job_id":         ticket.JobID,
		})
	}
	body := fiber.Map{"ok": true, "dead_letter_id": id}
	if ticket.Result != nil {
		body["outcome"] = ticket.Result.Outcome
		body["run_id"] = ticket.Result.RunID
		body["receipt_id"] = ticket.Result.ReceiptID
	}
	return c.JSON(body)
}
