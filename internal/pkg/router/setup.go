package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/RecoveryLedger/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Controllers bundles the handlers the routers mount.
type Controllers struct {
	Webhook        *controllers.WebhookController
	Receipts       *controllers.ReceiptsController
	RecoveryReport *controllers.RecoveryReportController
	Summary        *controllers.SummaryController
	Runs           *controllers.RunsController
	DeadLetters    *controllers.DeadLetterController
	Jobs           *controllers.JobsController
	Health         *controllers.HealthController
}

func InstallRouter(app *fiber.App, ctrl Controllers, api ApiConfig) {
	// The webhook router goes first so provider retries never hit the API
	// rate limiter; the not-found handler must come last.
	setup(app, NewHttpRouter(ctrl), NewApiRouter(ctrl, api))
	app.Use(notFound)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"ok":      false,
		"code":    "RVC-404",
		"error":   "not_found",
		"message": "Route not found",
	})
}
