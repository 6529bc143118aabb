package receipts

import (
	"context"
	"time"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
	"github.com/ManuelReschke/RecoveryLedger/app/repository"
)

// Row is the JSON shape of a receipt in listings.
type Row struct {
	ID              string    `json:"id"`
	RunID           string    `json:"run_id"`
	CreatedAt       time.Time `json:"created_at"`
	InvoiceID       string    `json:"invoice_id"`
	Status          string    `json:"status"`
	AmountCents     int64     `json:"amount_cents"`
	RecoveredAmount string    `json:"recovered_amount"`
	Currency        string    `json:"currency"`
	AttributionHash string    `json:"attribution_hash"`
	ReasonCode      string    `json:"reason_code"`
	ActionSource    string    `json:"action_source"`
}

// Page is one page of a receipts listing plus the total match count.
type Page struct {
	Rows     []Row `json:"rows"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// DefaultQueryTimeout bounds a single listing or export query.
const DefaultQueryTimeout = 10 * time.Second

// Engine answers receipts listings and exports.
type Engine struct {
	repo         repository.ReceiptRepository
	exportLimit  int
	queryTimeout time.Duration
}

// NewEngine creates a query engine. exportLimit <= 0 uses MaxExportRows.
func NewEngine(repo repository.ReceiptRepository, exportLimit int) *Engine {
	if exportLimit <= 0 {
		exportLimit = MaxExportRows
	}
	return &Engine{repo: repo, exportLimit: exportLimit, queryTimeout: DefaultQueryTimeout}
}

// WithQueryTimeout overrides the per-query deadline. d <= 0 keeps the current one.
func (e *Engine) WithQueryTimeout(d time.Duration) *Engine {
	if d > 0 {
		e.queryTimeout = d
	}
	return e
}

// List returns the requested page of receipts for the filter's organization.
func (e *Engine) List(ctx context.Context, f Filter) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	receipts, total, err := e.repo.List(ctx, f.Query())
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(receipts))
	for i := range receipts {
		rows = append(rows, toRow(&receipts[i]))
	}
	return &Page{Rows: rows, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// Export returns every matching receipt in filter order, up to the export limit.
func (e *Engine) Export(ctx context.Context, f Filter) ([]ExportRow, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	receipts, err := e.repo.Find(ctx, f.ExportQuery(e.exportLimit))
	if err != nil {
		return nil, err
	}
	rows := make([]ExportRow, 0, len(receipts))
	for i := range receipts {
		rows = append(rows, ToExportRow(&receipts[i]))
	}
	return rows, nil
}

func toRow(r *models.Receipt) Row {
	row := Row{
		ID:              r.ID,
		RunID:           r.RunID,
		CreatedAt:       r.CreatedAt.UTC(),
		InvoiceID:       r.InvoiceID,
		Status:          r.Status(),
		AmountCents:     r.AmountCents,
		Currency:        r.Currency,
		AttributionHash: r.AttributionHash,
		ReasonCode:      r.ReasonCode,
		ActionSource:    r.ActionSource,
	}
	if r.Recovered {
		row.RecoveredAmount = models.FormatCents(r.AmountCents)
	}
	return row
}

// ToExportRow maps a stored receipt onto the export columns.
func ToExportRow(r *models.Receipt) ExportRow {
	row := ExportRow{
		ID:              r.ID,
		CreatedAt:       r.CreatedAt,
		InvoiceID:       r.InvoiceID,
		Status:          r.Status(),
		AttributionHash: r.AttributionHash,
		ReasonCode:      r.ReasonCode,
		ActionSource:    r.ActionSource,
	}
	if r.Recovered {
		cents := r.AmountCents
		row.RecoveredCents = &cents
	}
	return row
}
