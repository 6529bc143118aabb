package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
)

// reportRepository implements the ReportRepository interface
type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository instance
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

type recoveredTotals struct {
	RecoveredCount int64
	RecoveredCents int64
}

// Aggregate computes run/recovery totals for an organization. since bounds
// the lookback window; nil means the full history.
func (r *reportRepository) Aggregate(ctx context.Context, orgID string, since *time.Time, recentLimit int) (*RecoveryAggregate, error) {
	db := r.db.WithContext(ctx)
	agg := &RecoveryAggregate{Recent: []models.Receipt{}}

	runs := db.Model(&models.Run{}).Where("org_id = ?", orgID)
	if since != nil {
		runs = runs.Where("created_at >= ?", since.UTC())
	}
	if err := runs.Count(&agg.RunCount).Error; err != nil {
		return nil, err
	}

	recovered := func() *gorm.DB {
		tx := db.Model(&models.Receipt{}).Where("org_id = ? AND recovered = ?", orgID, true)
		if since != nil {
			tx = tx.Where("created_at >= ?", since.UTC())
		}
		return tx
	}

	var totals recoveredTotals
	if err := recovered().
		Select("COUNT(*) AS recovered_count, COALESCE(SUM(amount_cents), 0) AS recovered_cents").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	agg.RecoveredCount = totals.RecoveredCount
	agg.RecoveredCents = totals.RecoveredCents

	if recentLimit > 0 && agg.RecoveredCount > 0 {
		if err := recovered().
			Order("created_at DESC, id DESC").
			Limit(recentLimit).
			Find(&agg.Recent).Error; err != nil {
			return nil, err
		}
	}
	return agg, nil
}

// Summary returns dashboard totals; recovered amount covers the 7 days before now.
func (r *reportRepository) Summary(ctx context.Context, orgID string, now time.Time) (*LedgerSummary, error) {
	db := r.db.WithContext(ctx)
	s := &LedgerSummary{}

	if err := db.Model(&models.Run{}).Where("org_id = ?", orgID).Count(&s.Runs).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Receipt{}).Where("org_id = ?", orgID).Count(&s.Receipts).Error; err != nil {
		return nil, err
	}

	var totals recoveredTotals
	if err := db.Model(&models.Receipt{}).
		Where("org_id = ? AND recovered = ? AND created_at >= ?", orgID, true, now.UTC().Add(-7*24*time.Hour)).
		Select("COUNT(*) AS recovered_count, COALESCE(SUM(amount_cents), 0) AS recovered_cents").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	s.Recovered7dCents = totals.RecoveredCents

	var latest []models.Receipt
	if err := db.Where("org_id = ?", orgID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&latest).Error; err != nil {
		return nil, err
	}
	if len(latest) == 1 {
		t := latest[0].CreatedAt
		s.LastEventAt = &t
	}
	return s, nil
}
