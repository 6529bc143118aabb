package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/ManuelReschke/RecoveryLedger/app/controllers"
	"github.com/ManuelReschke/RecoveryLedger/app/repository"
	apiv1 "github.com/ManuelReschke/RecoveryLedger/internal/api/v1"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/cache"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/database"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/deadletter"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/env"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/events"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/jobqueue"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/ledger"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/receipts"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/report"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/router"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/s3archive"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/statistics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app, cleanup := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Errorf("Shutdown failed: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	cleanup()
	if err != nil {
		log.Fatal(err)
	}
}

// NewApplication wires the server. The returned cleanup stops background
// workers and closes the event publisher.
func NewApplication() (*fiber.App, func()) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	started := time.Now()
	db := database.GetDB()
	repos := repository.NewFactory(db).GetRepositories()
	publisher := events.New(env.GetEnv("NATS_URL", ""))

	ledgerCfg := ledger.LoadConfig()
	if !ledger.ValidWebhookSecret(ledgerCfg.WebhookSecret) {
		log.Warn("[Webhook] STRIPE_WEBHOOK_SECRET is missing or not a whsec_ secret; every delivery will be rejected")
	}

	recorder := deadletter.NewRecorder(repos.DeadLetter, newArchiver(), publisher)
	service := ledger.NewService(repos.Ledger, publisher, ledgerCfg.WriteTimeout)
	processor := ledger.NewProcessor(
		ledger.NewStripeVerifier(ledgerCfg.WebhookSecret, ledgerCfg.DefaultOrgID),
		service,
		recorder,
		ledgerCfg.DeadLetterRejected,
	)

	var store cache.Store
	apiCfg := router.LoadApiConfig()
	if cache.IsAvailable() {
		store = cache.NewRedisStore(cache.GetClient())
		apiCfg.Storage = router.NewLimiterStorage(cache.GetClient())
	}
	summaries := statistics.NewSummaryService(repos.Report, store, env.GetEnvDuration("SUMMARY_CACHE_TTL", statistics.DefaultSummaryCacheTTL))

	// Replays run on the Redis queue when available, inline otherwise.
	var queue *jobqueue.Queue
	var enqueuer deadletter.JobEnqueuer
	var inspector controllers.JobInspector
	if cache.IsAvailable() {
		queue = jobqueue.NewQueue(cache.GetClient(), env.GetEnvInt("REPLAY_WORKERS", jobqueue.DefaultWorkers))
		enqueuer = queue
		inspector = queue
	}
	replayer := deadletter.NewReplayer(repos.DeadLetter, service, ledgerCfg.DefaultOrgID, enqueuer, summaries)
	if queue != nil {
		queue.Register(jobqueue.JobTypeLedgerReplay, replayer.JobHandler())
		queue.Start()
	}

	receiptEngine := receipts.NewEngine(repos.Receipt, receipts.MaxExportRows).
		WithQueryTimeout(env.GetEnvDuration("RECEIPTS_QUERY_TIMEOUT", receipts.DefaultQueryTimeout))

	ctrl := router.Controllers{
		Webhook:        controllers.NewWebhookController(processor, summaries),
		Receipts:       controllers.NewReceiptsController(receiptEngine),
		RecoveryReport: controllers.NewRecoveryReportController(report.NewRenderer(repos.Report, nil, report.LoadConfig())),
		Summary:        controllers.NewSummaryController(summaries),
		Runs:           controllers.NewRunsController(repos.Ledger),
		DeadLetters:    controllers.NewDeadLetterController(recorder, replayer),
		Jobs:           controllers.NewJobsController(inspector),
		Health: controllers.NewHealthController(func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}, started),
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // provider events are small
	})

	// request ids, recovery and logging
	app.Use(requestid.New(), recover.New(), logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${locals:requestid} | ${method} ${path}\n",
	}))

	// fiber metrics
	if pw := env.GetEnv("METRICS_PASSWORD", ""); pw != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				env.GetEnv("METRICS_USER", "admin"): pw,
			},
		}), monitor.New())
	}

	// SWAGGER / OPENAPI
	if docs := findOpenAPIDocument(); docs != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: docs,
			Path:     "v1",
		}))
	}

	// ROUTER
	router.InstallRouter(app, ctrl, apiCfg)

	cleanup := func() {
		if queue != nil {
			queue.Stop()
		}
		if err := publisher.Close(); err != nil {
			log.Warnf("[Events] Close failed: %v", err)
		}
	}
	return app, cleanup
}

// newArchiver returns nil unless S3 archiving is enabled and reachable.
func newArchiver() s3archive.Archiver {
	cfg, err := s3archive.LoadConfig()
	if err != nil {
		log.Warnf("[S3Archive] Invalid configuration, archiving disabled: %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := s3archive.NewClient(ctx, cfg)
	if err != nil {
		log.Warnf("[S3Archive] Bucket unavailable, archiving disabled: %v", err)
		return nil
	}
	return client
}

func findOpenAPIDocument() string {
	// Define possible base paths
	for _, base := range []string{"./", "../../", "../../../"} {
		path := base + "public/docs/v1/openapi.yml"
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if _, err := apiv1.LoadSpec(context.Background(), path); err != nil {
			log.Warnf("OpenAPI document %s is invalid: %v", path, err)
		}
		return path
	}
	log.Warn("OpenAPI document not found, /docs/api disabled")
	return ""
}
