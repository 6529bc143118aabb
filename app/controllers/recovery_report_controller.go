package controllers

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/report"
)

// ReportRenderer produces the recovery report document for an organization.
type ReportRenderer interface {
	Render(ctx context.Context, orgID string) ([]byte, error)
}

type RecoveryReportController struct {
	renderer ReportRenderer
}

func NewRecoveryReportController(renderer ReportRenderer) *RecoveryReportController {
	return &RecoveryReportController{renderer: renderer}
}

// HandleRecoveryReport serves GET /api/v1/recovery-report/:org. The org
// segment may carry a ".pdf" suffix.
func (rc *RecoveryReportController) HandleRecoveryReport(c *fiber.Ctx) error {
	orgID := reportOrgParam(c.Params("org"))
	if orgID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok":      false,
			"error":   "missing_org",
			"message": "Organization is required",
		})
	}

	doc, err := rc.renderer.Render(c.UserContext(), orgID)
	if err != nil {
		code := "report_render_failed"
		if errors.Is(err, report.ErrReportAggregationFailed) {
			code = "report_aggregation_failed"
		}
		log.Errorf("[Report] Recovery report for org %s failed: %v", orgID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":      false,
			"error":   code,
			"message": "Recovery report could not be generated",
		})
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+reportFilename(orgID)+`.pdf"`)
	return c.Send(doc)
}

func reportOrgParam(raw string) string {
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return strings.TrimSpace(strings.TrimSuffix(raw, ".pdf"))
}

// reportFilename keeps the Content-Disposition header well formed.
func reportFilename(orgID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, orgID)
}
