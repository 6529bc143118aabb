package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
)

// errAlreadyApplied aborts the ledger transaction without surfacing an error.
var errAlreadyApplied = errors.New("ledger: event already applied")

// ledgerRepository implements the LedgerRepository interface
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository instance
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// ApplyEvent records the event identity and applies its run/receipt effect in
// a single transaction. Uniqueness on the event id, on (org_id, invoice_id)
// and on the receipt's run decides duplicates; no in-process locking is used.
func (r *ledgerRepository) ApplyEvent(ctx context.Context, w LedgerWrite) (*LedgerWriteResult, error) {
	result := &LedgerWriteResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := w.Event
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(&event)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyApplied
		}

		if w.Run == nil {
			return nil
		}

		run, err := upsertRun(tx, w.Run)
		if err != nil {
			return err
		}
		result.Run = run

		if w.Receipt == nil {
			return nil
		}

		receipt := *w.Receipt
		if receipt.ID == "" {
			receipt.ID = uuid.NewString()
		}
		receipt.EventID = event.EventID
		receipt.AttachTo(run)

		res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// The invoice already has its terminal receipt.
			return errAlreadyApplied
		}
		result.Receipt = &receipt

		if run.Status != models.RunStatusRecovered {
			if err := tx.Model(&models.Run{}).
				Where("id = ?", run.ID).
				Update("status", models.RunStatusRecovered).Error; err != nil {
				return err
			}
			run.Status = models.RunStatusRecovered
		}
		return nil
	})

	switch {
	case err == nil:
		result.Created = true
		return result, nil
	case errors.Is(err, errAlreadyApplied), errors.Is(err, gorm.ErrDuplicatedKey):
		return &LedgerWriteResult{Created: false}, nil
	default:
		return nil, err
	}
}

// upsertRun creates the run for (org_id, invoice_id) when absent and returns
// the stored row. The read is a locking read so a concurrent creator's row is
// observed once its transaction commits.
func upsertRun(tx *gorm.DB, in *models.Run) (*models.Run, error) {
	candidate := *in
	candidate.Receipts = nil
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	if candidate.Status == "" {
		candidate.Status = models.RunStatusStarted
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "org_id"},
			{Name: "invoice_id"},
		},
		DoNothing: true,
	}).Create(&candidate).Error; err != nil {
		return nil, err
	}

	var stored models.Run
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("org_id = ? AND invoice_id = ?", candidate.OrgID, candidate.InvoiceID).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetRun retrieves a run and its receipts, scoped to the organization
func (r *ledgerRepository) GetRun(ctx context.Context, orgID, runID string) (*models.Run, error) {
	var run models.Run
	err := r.db.WithContext(ctx).
		Preload("Receipts", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC")
		}).
		Where("org_id = ? AND id = ?", orgID, runID).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}
