package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
	"github.com/ManuelReschke/RecoveryLedger/app/repository"
)

var (
	// ErrReportAggregationFailed means the ledger could not be read.
	ErrReportAggregationFailed = errors.New("report: aggregation failed")
	// ErrRenderFailed means no document could be produced at all.
	ErrRenderFailed = errors.New("report: render failed")
)

// Summary is the aggregated content of a recovery report.
type Summary struct {
	OrgID          string
	RunCount       int64
	RecoveredCount int64
	RecoveredCents int64
	Currency       string
	Since          *time.Time
	GeneratedAt    time.Time
	Recent         []models.Receipt
}

// KPI is one labelled figure on the page.
type KPI struct {
	Label string
	Value string
}

// Table is a simple header plus rows grid.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Page is everything a DocumentWriter needs to draw the report.
type Page struct {
	Title       string
	Subtitle    string
	Period      string
	GeneratedAt time.Time
	KPIs        []KPI
	Table       Table
	Notice      string
}

// DocumentWriter draws a Page into document bytes.
type DocumentWriter interface {
	Write(ctx context.Context, page Page) ([]byte, error)
}

// Renderer aggregates ledger data and hands page content to a DocumentWriter.
type Renderer struct {
	repo   repository.ReportRepository
	writer DocumentWriter
	cfg    Config
	now    func() time.Time
}

// NewRenderer creates a report renderer. A nil writer uses FPDFWriter.
func NewRenderer(repo repository.ReportRepository, writer DocumentWriter, cfg Config) *Renderer {
	if writer == nil {
		writer = NewFPDFWriter()
	}
	return &Renderer{
		repo:   repo,
		writer: writer,
		cfg:    cfg.normalized(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Summarize runs the aggregation queries for orgID.
func (r *Renderer) Summarize(ctx context.Context, orgID string) (*Summary, error) {
	now := r.now()
	var since *time.Time
	if r.cfg.LookbackDays > 0 {
		s := now.AddDate(0, 0, -r.cfg.LookbackDays)
		since = &s
	}

	agg, err := r.aggregate(ctx, orgID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReportAggregationFailed, err)
	}

	currency := "usd"
	if len(agg.Recent) > 0 && agg.Recent[0].Currency != "" {
		currency = agg.Recent[0].Currency
	}
	return &Summary{
		OrgID:          orgID,
		RunCount:       agg.RunCount,
		RecoveredCount: agg.RecoveredCount,
		RecoveredCents: agg.RecoveredCents,
		Currency:       currency,
		Since:          since,
		GeneratedAt:    now,
		Recent:         agg.Recent,
	}, nil
}

// aggregate bounds the aggregation queries by the query timeout even if the
// repository ignores ctx.
func (r *Renderer) aggregate(ctx context.Context, orgID string, since *time.Time) (*repository.RecoveryAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	type result struct {
		agg *repository.RecoveryAggregate
		err error
	}
	done := make(chan result, 1)
	go func() {
		agg, err := r.repo.Aggregate(ctx, orgID, since, r.cfg.RecentLimit)
		done <- result{agg: agg, err: err}
	}()

	select {
	case res := <-done:
		return res.agg, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BuildPage decides what goes on the report. Zero recoveries produce a
// zero-state notice instead of an empty table.
func BuildPage(s *Summary) Page {
	cur := strings.ToUpper(s.Currency)
	period := "All time"
	if s.Since != nil {
		period = "Since " + s.Since.Format("2006-01-02")
	}

	page := Page{
		Title:       "Recovery Report",
		Subtitle:    "Organization: " + s.OrgID,
		Period:      period,
		GeneratedAt: s.GeneratedAt,
		KPIs: []KPI{
			{Label: "Recovery runs", Value: fmt.Sprintf("%d", s.RunCount)},
			{Label: "Recovered invoices", Value: fmt.Sprintf("%d", s.RecoveredCount)},
			{Label: "Recovered amount", Value: models.FormatCents(s.RecoveredCents) + " " + cur},
		},
		Table: Table{Columns: []string{"Date", "Invoice", "Amount", "Reason"}},
	}

	// Only all-time reports carry a rate: windowed runs and receipts are
	// dated independently.
	if s.Since == nil {
		rate := "n/a"
		if s.RunCount > 0 {
			rate = fmt.Sprintf("%d%%", s.RecoveredCount*100/s.RunCount)
		}
		page.KPIs = append(page.KPIs, KPI{Label: "Recovery rate", Value: rate})
	}

	if s.RecoveredCount == 0 {
		page.Notice = "No recoveries recorded for this organization yet."
		return page
	}
	for _, rc := range s.Recent {
		page.Table.Rows = append(page.Table.Rows, []string{
			rc.CreatedAt.UTC().Format("2006-01-02 15:04"),
			rc.InvoiceID,
			models.FormatCents(rc.AmountCents) + " " + strings.ToUpper(rc.Currency),
			rc.ReasonCode,
		})
	}
	return page
}

// Render produces the report document for orgID. Aggregation failures are
// returned; a failing or slow writer degrades to a minimal zero-state
// document so the caller still gets a usable file.
func (r *Renderer) Render(ctx context.Context, orgID string) ([]byte, error) {
	summary, err := r.Summarize(ctx, orgID)
	if err != nil {
		return nil, err
	}

	page := BuildPage(summary)
	doc, err := r.write(ctx, r.writer, page)
	if err == nil && len(doc) > 0 {
		return doc, nil
	}
	log.Warnf("[Report] Rendering failed for org %s, serving fallback document: %v", orgID, err)

	fallback := Page{
		Title:       page.Title,
		Subtitle:    page.Subtitle,
		Period:      page.Period,
		GeneratedAt: page.GeneratedAt,
		KPIs:        page.KPIs,
		Notice:      "The detailed report could not be rendered. Please retry later.",
	}
	doc, err = r.write(ctx, NewFPDFWriter(), fallback)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return doc, nil
}

// write bounds the collaborator by the render timeout even if it ignores ctx.
func (r *Renderer) write(ctx context.Context, w DocumentWriter, page Page) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RenderTimeout)
	defer cancel()

	type result struct {
		doc []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		doc, err := w.Write(ctx, page)
		done <- result{doc: doc, err: err}
	}()

	select {
	case res := <-done:
		return res.doc, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
