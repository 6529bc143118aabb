package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
)

// likeEscape is the escape character used for invoice search patterns. It is
// not a backslash so the same SQL works on MySQL and SQLite.
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(
	likeEscape, likeEscape+likeEscape,
	"%", likeEscape+"%",
	"_", likeEscape+"_",
)

// receiptRepository implements the ReceiptRepository interface
type receiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository creates a new receipt repository instance
func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

// List returns one page of receipts and the total number of matches
func (r *receiptRepository) List(ctx context.Context, q ReceiptQuery) ([]models.Receipt, int64, error) {
	var total int64
	if err := r.scoped(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	receipts := []models.Receipt{}
	if total == 0 {
		return receipts, 0, nil
	}

	err := r.scoped(ctx, q).
		Order(orderClause(q.Sort, q.Direction)).
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&receipts).Error
	return receipts, total, err
}

// Find returns all matching receipts in filter order, capped at q.Limit
func (r *receiptRepository) Find(ctx context.Context, q ReceiptQuery) ([]models.Receipt, error) {
	receipts := []models.Receipt{}
	tx := r.scoped(ctx, q).Order(orderClause(q.Sort, q.Direction))
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	err := tx.Find(&receipts).Error
	return receipts, err
}

// scoped builds a fresh query confined to the organization and filters.
func (r *receiptRepository) scoped(ctx context.Context, q ReceiptQuery) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&models.Receipt{}).Where("org_id = ?", q.OrgID)
	if q.Recovered != nil {
		tx = tx.Where("recovered = ?", *q.Recovered)
	}
	if q.From != nil {
		tx = tx.Where("created_at >= ?", q.From.UTC())
	}
	if q.To != nil {
		tx = tx.Where("created_at <= ?", q.To.UTC())
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
		tx = tx.Where("LOWER(invoice_id) LIKE ? ESCAPE '"+likeEscape+"'", pattern)
	}
	return tx
}

// orderClause maps whitelisted sort keys to a total order. The id tie-breaker
// keeps pages stable when several receipts share a timestamp or amount.
func orderClause(sort, direction string) string {
	dir := "DESC"
	if strings.EqualFold(direction, SortAsc) {
		dir = "ASC"
	}
	column := "created_at"
	if sort == SortByAmount {
		column = "amount_cents"
	}
	return column + " " + dir + ", id " + dir
}
