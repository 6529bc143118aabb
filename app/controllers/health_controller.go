package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const healthPingTimeout = 2 * time.Second

// PingFunc reports whether the database answers.
type PingFunc func(ctx context.Context) error

type HealthController struct {
	ping    PingFunc
	started time.Time
	now     func() time.Time
}

func NewHealthController(ping PingFunc, started time.Time) *HealthController {
	return &HealthController{ping: ping, started: started, now: time.Now}
}

// HandleHealth is the liveness check. It always answers 200 and reports the
// database state as a field.
func (hc *HealthController) HandleHealth(c *fiber.Ctx) error {
	now := hc.now()
	return c.JSON(fiber.Map{
		"ok":       true,
		"uptime_s": int64(now.Sub(hc.started).Seconds()),
		"db_ok":    hc.dbOK(c.UserContext()),
		"ts":       now.UTC().Format(time.RFC3339),
	})
}

// HandleReady is the readiness check; it fails while the database is down.
func (hc *HealthController) HandleReady(c *fiber.Ctx) error {
	if !hc.dbOK(c.UserContext()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"ok":    false,
			"error": "database_unavailable",
		})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (hc *HealthController) dbOK(ctx context.Context) bool {
	if hc.ping == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return hc.ping(ctx) == nil
}
