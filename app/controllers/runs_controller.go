package controllers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/middleware"
)

// RunFinder loads a run with its receipts, scoped to an organization.
type RunFinder interface {
	GetRun(ctx context.Context, orgID, runID string) (*models.Run, error)
}

type RunsController struct {
	runs RunFinder
}

func NewRunsController(runs RunFinder) *RunsController {
	return &RunsController{runs: runs}
}

// HandleGetRun serves GET /api/v1/runs/:id. Runs of other organizations are
// reported as not found.
func (rc *RunsController) HandleGetRun(c *fiber.Ctx) error {
	runID := strings.TrimSpace(c.Params("id"))
	orgID := middleware.OrgID(c)

	run, err := rc.runs.GetRun(c.UserContext(), orgID, runID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"ok":      false,
				"error":   "not_found",
				"message": "Run not found",
			})
		}
		log.Errorf("[Runs] Lookup of run %s for org %s failed: %v", runID, orgID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":      false,
			"error":   "internal_server_error",
			"message": "Run could not be loaded",
		})
	}
	return c.JSON(run)
}
