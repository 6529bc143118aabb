package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RecoveryLedger/app/repository"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/middleware"
)

// SummaryProvider returns dashboard totals for an organization.
type SummaryProvider interface {
	Summary(ctx context.Context, orgID string) (*repository.LedgerSummary, error)
}

type SummaryController struct {
	summaries SummaryProvider
}

func NewSummaryController(summaries SummaryProvider) *SummaryController {
	return &SummaryController{summaries: summaries}
}

// HandleSummary serves GET /api/v1/summary.
func (sc *SummaryController) HandleSummary(c *fiber.Ctx) error {
	orgID := middleware.OrgID(c)
	summary, err := sc.summaries.Summary(c.UserContext(), orgID)
	if err != nil {
		log.Errorf("[Summary] Failed for org %s: %v", orgID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":      false,
			"error":   "internal_server_error",
			"message": "Summary could not be loaded",
		})
	}
	return c.JSON(fiber.Map{
		"ok":                 true,
		"org_id":             orgID,
		"runs":               summary.Runs,
		"receipts":           summary.Receipts,
		"recovered_7d_cents": summary.Recovered7dCents,
		"last_event_at":      summary.LastEventAt,
	})
}
