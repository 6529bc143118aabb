package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/env"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/middleware"
)

// ApiConfig controls access to the read API.
type ApiConfig struct {
	RateLimitMax    int
	RateLimitWindow time.Duration
	// Storage backs the limiter counters; nil keeps them in memory.
	Storage fiber.Storage
	APIKeys []string
	// CORSOrigins is a comma separated origin list or "*"; empty disables CORS.
	CORSOrigins string
}

// LoadApiConfig reads API_RATE_LIMIT_MAX, API_RATE_LIMIT_WINDOW, API_KEYS and
// API_CORS_ORIGINS.
func LoadApiConfig() ApiConfig {
	origins := env.GetEnv("API_CORS_ORIGINS", "*")
	if strings.EqualFold(origins, "off") {
		origins = ""
	}
	return ApiConfig{
		RateLimitMax:    env.GetEnvInt("API_RATE_LIMIT_MAX", 120),
		RateLimitWindow: env.GetEnvDuration("API_RATE_LIMIT_WINDOW", time.Minute),
		APIKeys:         middleware.ParseAPIKeys(env.GetEnv("API_KEYS", "")),
		CORSOrigins:     origins,
	}
}

type ApiRouter struct {
	ctrl Controllers
	cfg  ApiConfig
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	limiterCfg := limiter.Config{
		Max:        h.cfg.RateLimitMax,
		Expiration: h.cfg.RateLimitWindow,
		Storage:    h.cfg.Storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"ok":      false,
				"error":   "rate_limited",
				"message": "Too many requests",
			})
		},
	}
	handlers := []fiber.Handler{limiter.New(limiterCfg), middleware.APIKeyAuthMiddleware(h.cfg.APIKeys)}
	// Preflight requests carry no API key, so CORS answers them first.
	if h.cfg.CORSOrigins != "" {
		handlers = append([]fiber.Handler{cors.New(cors.Config{
			AllowOrigins: h.cfg.CORSOrigins,
			AllowMethods: "GET,POST,HEAD,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key, " + middleware.HeaderOrgID,
		})}, handlers...)
	}
	api := app.Group("/api/v1", handlers...)

	scoped := middleware.OrgScope()
	api.Get("/receipts", scoped, h.ctrl.Receipts.HandleList)
	api.Get("/receipts/export.csv", scoped, h.ctrl.Receipts.HandleExport)
	api.Get("/summary", scoped, h.ctrl.Summary.HandleSummary)
	api.Get("/runs/:id", scoped, h.ctrl.Runs.HandleGetRun)
	api.Get("/recovery-report/:org", h.ctrl.RecoveryReport.HandleRecoveryReport)
	api.Get("/dead-letters", h.ctrl.DeadLetters.HandleList)
	api.Post("/dead-letters/:id/replay", h.ctrl.DeadLetters.HandleReplay)
	api.Get("/jobs/stats", h.ctrl.Jobs.HandleStats)
	api.Get("/jobs/:id", h.ctrl.Jobs.HandleGetJob)
}

func NewApiRouter(ctrl Controllers, cfg ApiConfig) *ApiRouter {
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 120
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	return &ApiRouter{ctrl: ctrl, cfg: cfg}
}
