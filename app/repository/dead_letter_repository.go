package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
)

// deadLetterRepository implements the DeadLetterRepository interface
type deadLetterRepository struct {
	db *gorm.DB
}

// NewDeadLetterRepository creates a new dead-letter repository instance
func NewDeadLetterRepository(db *gorm.DB) DeadLetterRepository {
	return &deadLetterRepository{db: db}
}

// Create stores a dead-letter record
func (r *deadLetterRepository) Create(ctx context.Context, dl *models.DeadLetter) error {
	return r.db.WithContext(ctx).Create(dl).Error
}

// ListRecent returns the newest dead-letter records first
func (r *deadLetterRepository) ListRecent(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []models.DeadLetter
	err := r.db.WithContext(ctx).Order("failed_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// Get loads a dead-letter record by id
func (r *deadLetterRepository) Get(ctx context.Context, id uint) (*models.DeadLetter, error) {
	var dl models.DeadLetter
	if err := r.db.WithContext(ctx).First(&dl, id).Error; err != nil {
		return nil, err
	}
	return &dl, nil
}
