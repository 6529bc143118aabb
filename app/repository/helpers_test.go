package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
	"github.com/ManuelReschke/RecoveryLedger/internal/pkg/database"
)

// newTestDB opens an in-memory SQLite database with the ledger schema. A single
// connection serializes concurrent transactions the way row locks would.
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

type seedOpts struct {
	org       string
	invoice   string
	cents     int64
	recovered bool
	at        time.Time
}

// seedReceipt inserts a run and its receipt directly, bypassing ApplyEvent.
func seedReceipt(t *testing.T, db *gorm.DB, o seedOpts) models.Receipt {
	t.Helper()

	status := models.RunStatusStarted
	if o.recovered {
		status = models.RunStatusRecovered
	}
	run := models.Run{
		ID:        uuid.NewString(),
		OrgID:     o.org,
		InvoiceID: o.invoice,
		Status:    status,
		CreatedAt: o.at,
		UpdatedAt: o.at,
	}
	require.NoError(t, db.Create(&run).Error)

	receipt := models.Receipt{
		ID:          uuid.NewString(),
		EventID:     "evt_" + uuid.NewString(),
		AmountCents: o.cents,
		Currency:    "usd",
		Recovered:   o.recovered,
		ReasonCode:  "payment_recovered",
		CreatedAt:   o.at,
	}
	receipt.AttachTo(&run)
	require.NoError(t, db.Create(&receipt).Error)
	return receipt
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func day(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}
