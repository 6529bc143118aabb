package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
	"gorm.io/gorm"
)

// LedgerWrite describes the full effect of one provider event. Event is always
// recorded; Run and Receipt are optional and applied in that order.
type LedgerWrite struct {
	Event   models.ProcessedEvent
	Run     *models.Run
	Receipt *models.Receipt
}

// LedgerWriteResult reports what ApplyEvent did. Created is false when the
// event (or the invoice's terminal receipt) was already applied; in that case
// nothing was written.
type LedgerWriteResult struct {
	Created bool
	Run     *models.Run
	Receipt *models.Receipt
}

// LedgerRepository applies provider events to runs and receipts atomically.
type LedgerRepository interface {
	ApplyEvent(ctx context.Context, w LedgerWrite) (*LedgerWriteResult, error)
	GetRun(ctx context.Context, orgID, runID string) (*models.Run, error)
}

// Receipt sort keys and directions understood by ReceiptRepository.
const (
	SortByDate   = "date"
	SortByAmount = "amount"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// ReceiptQuery is an already validated receipts filter. Zero values mean "no
// constraint"; Recovered nil matches both states. Limit 0 means unbounded.
type ReceiptQuery struct {
	OrgID     string
	Recovered *bool
	From      *time.Time
	To        *time.Time
	Search    string
	Sort      string
	Direction string
	Offset    int
	Limit     int
}

// ReceiptRepository reads receipts for listing and export.
type ReceiptRepository interface {
	List(ctx context.Context, q ReceiptQuery) ([]models.Receipt, int64, error)
	Find(ctx context.Context, q ReceiptQuery) ([]models.Receipt, error)
}

// RecoveryAggregate holds the figures shown on a recovery report.
type RecoveryAggregate struct {
	RunCount       int64
	RecoveredCount int64
	RecoveredCents int64
	Recent         []models.Receipt
}

// LedgerSummary holds dashboard totals for an organization.
type LedgerSummary struct {
	Runs             int64      `json:"runs"`
	Receipts         int64      `json:"receipts"`
	Recovered7dCents int64      `json:"recovered_7d_cents"`
	LastEventAt      *time.Time `json:"last_event_at"`
}

// ReportRepository runs read-only aggregation queries over the ledger.
type ReportRepository interface {
	Aggregate(ctx context.Context, orgID string, since *time.Time, recentLimit int) (*RecoveryAggregate, error)
	Summary(ctx context.Context, orgID string, now time.Time) (*LedgerSummary, error)
}

// DeadLetterRepository persists and lists dead-lettered events.
type DeadLetterRepository interface {
	Create(ctx context.Context, dl *models.DeadLetter) error
	ListRecent(ctx context.Context, limit int) ([]models.DeadLetter, error)
	Get(ctx context.Context, id uint) (*models.DeadLetter, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Ledger     LedgerRepository
	Receipt    ReceiptRepository
	Report     ReportRepository
	DeadLetter DeadLetterRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Ledger:     NewLedgerRepository(db),
		Receipt:    NewReceiptRepository(db),
		Report:     NewReportRepository(db),
		DeadLetter: NewDeadLetterRepository(db),
	}
}
