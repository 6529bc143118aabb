package router

import (
	"github.com/gofiber/fiber/v2"
)

// HttpRouter mounts the unauthenticated endpoints: health checks and the provider
// webhook, whose authenticity comes from its signature.
type HttpRouter struct {
	ctrl Controllers
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", h.ctrl.Health.HandleHealth)
	app.Get("/ready", h.ctrl.Health.HandleReady)

	app.Post("/api/webhooks/stripe", h.ctrl.Webhook.HandleStripeWebhook)
}

func NewHttpRouter(ctrl Controllers) *HttpRouter {
	return &HttpRouter{ctrl: ctrl}
}
