package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/RecoveryLedger/app/repository"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/database"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/deadletter"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/ledger"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/middleware"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/receipts"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/report"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/statistics"
)

const testSecret = "whsec_0123456789abcdefABCDEF"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := database.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

type ledgerApp struct {
	app  *fiber.App
	db   *gorm.DB
	repo *repository.Repositories
}

// newLedgerApp wires the real ledger stack over SQLite behind the same routes
// the server registers.
func newLedgerApp(t *testing.T) *ledgerApp {
	t.Helper()

	db := newTestDB(t)
	repos := repository.NewRepositories(db)

	service := ledger.NewService(repos.Ledger, nil, 5*time.Second)
	recorder := deadletter.NewRecorder(repos.DeadLetter, nil, nil)
	processor := ledger.NewProcessor(ledger.NewStripeVerifier(testSecret, "demo-org"), service, recorder, true)
	summaries := statistics.NewSummaryService(repos.Report, nil, time.Minute)
	renderer := report.NewRenderer(repos.Report, nil, report.Config{RecentLimit: 10, RenderTimeout: 10 * time.Second})

	webhook := NewWebhookController(processor, summaries)
	receiptsCtrl := NewReceiptsController(receipts.NewEngine(repos.Receipt, 0))
	reportCtrl := NewRecoveryReportController(renderer)
	summaryCtrl := NewSummaryController(summaries)
	runsCtrl := NewRunsController(repos.Ledger)
	replayer := deadletter.NewReplayer(repos.DeadLetter, service, "demo-org", nil, summaries)
	deadLetters := NewDeadLetterController(recorder, replayer)

	app := fiber.New()
	app.Post("/api/webhooks/stripe", webhook.HandleStripeWebhook)
	v1 := app.Group("/api/v1")
	v1.Get("/receipts", middleware.OrgScope(), receiptsCtrl.HandleList)
	v1.Get("/receipts/export.csv", middleware.OrgScope(), receiptsCtrl.HandleExport)
	v1.Get("/recovery-report/:org", reportCtrl.HandleRecoveryReport)
	v1.Get("/summary", middleware.OrgScope(), summaryCtrl.HandleSummary)
	v1.Get("/runs/:id", middleware.OrgScope(), runsCtrl.HandleGetRun)
	v1.Get("/dead-letters", deadLetters.HandleList)
	v1.Post("/dead-letters/:id/replay", deadLetters.HandleReplay)

	return &ledgerApp{app: app, db: db, repo: repos}
}

func signPayload(secret string, payload []byte, ts time.Time) string {
	unix := ts.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", unix)))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", unix, hex.EncodeToString(mac.Sum(nil)))
}

// invoiceEvent builds a Stripe invoice event. org is carried in metadata.
func invoiceEvent(eventID, eventType, org, invoiceID string, amountCents int64) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"api_version":"2020-08-27","data":{"object":{"id":%q,"object":"invoice","customer":"cus_1","currency":"usd","amount_due":%d,"amount_paid":%d,"metadata":{"org_id":%q}}}}`,
		eventID, eventType, invoiceID, amountCents, amountCents, org))
}

func (a *ledgerApp) deliver(t *testing.T, payload []byte) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(fiber.MethodPost, "/api/webhooks/stripe", strings.NewReader(string(payload)))
	require.NoError(t, err)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("Stripe-Signature", signPayload(testSecret, payload, time.Now()))
	return doJSON(t, a.app, req)
}

func doJSON(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return resp.StatusCode, out
}

func getRequest(t *testing.T, target, orgID string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(fiber.MethodGet, target, nil)
	require.NoError(t, err)
	if orgID != "" {
		req.Header.Set(middleware.HeaderOrgID, orgID)
	}
	return req
}
