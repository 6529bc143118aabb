package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/middleware"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/receipts"
)

const receiptsExportFilename = "receipts_export.csv"

// ReceiptQuerier lists and exports receipts for a validated filter.
type ReceiptQuerier interface {
	List(ctx context.Context, f receipts.Filter) (*receipts.Page, error)
	Export(ctx context.Context, f receipts.Filter) ([]receipts.ExportRow, error)
}

type ReceiptsController struct {
	engine ReceiptQuerier
}

func NewReceiptsController(engine ReceiptQuerier) *ReceiptsController {
	return &ReceiptsController{engine: engine}
}

// HandleList serves GET /api/v1/receipts.
func (rc *ReceiptsController) HandleList(c *fiber.Ctx) error {
	filter, err := parseReceiptsFilter(c)
	if err != nil {
		return filterErrorResponse(c, err)
	}

	page, err := rc.engine.List(c.UserContext(), filter)
	if err != nil {
		log.Errorf("[Receipts] List failed for org %s: %v", filter.OrgID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":      false,
			"error":   "internal_server_error",
			"message": "Receipts could not be loaded",
		})
	}
	return c.JSON(page)
}

// HandleExport serves GET /api/v1/receipts/export.csv.
func (rc *ReceiptsController) HandleExport(c *fiber.Ctx) error {
	filter, err := parseReceiptsFilter(c)
	if err != nil {
		return filterErrorResponse(c, err)
	}

	rows, err := rc.engine.Export(c.UserContext(), filter)
	if err != nil {
		log.Errorf("[Receipts] Export failed for org %s: %v", filter.OrgID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":      false,
			"error":   "internal_server_error",
			"message": "Receipts could not be exported",
		})
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+receiptsExportFilename+`"`)
	return c.Send(receipts.RenderCSV(rows))
}

func parseReceiptsFilter(c *fiber.Ctx) (receipts.Filter, error) {
	var params receipts.Params
	if err := c.QueryParser(&params); err != nil {
		return receipts.Filter{}, &receipts.FilterError{Field: "query", Message: err.Error()}
	}
	if orgID := middleware.OrgID(c); orgID != "" {
		params.OrgID = orgID
	}
	return receipts.ParseFilter(params)
}

func filterErrorResponse(c *fiber.Ctx, err error) error {
	body := fiber.Map{
		"ok":      false,
		"error":   "invalid_filter",
		"message": err.Error(),
	}
	var fe *receipts.FilterError
	if errors.As(err, &fe) {
		body["field"] = fe.Field
		body["message"] = fe.Message
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}
