package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// FPDFWriter draws report pages with fpdf's core fonts.
type FPDFWriter struct{}

func NewFPDFWriter() *FPDFWriter {
	return &FPDFWriter{}
}

func (w *FPDFWriter) Write(ctx context.Context, page Page) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; translate UTF-8 input instead of emitting mojibake.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(page.Title, true)
	pdf.SetCreator("RecoveryLedger", true)
	if !page.GeneratedAt.IsZero() {
		pdf.SetCreationDate(page.GeneratedAt)
	}
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(page.Title), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, tr(page.Subtitle), "", 1, "L", false, 0, "")
	meta := page.Period
	if !page.GeneratedAt.IsZero() {
		meta = fmt.Sprintf("%s - generated %s UTC", page.Period, page.GeneratedAt.UTC().Format("2006-01-02 15:04"))
	}
	pdf.CellFormat(0, 6, tr(meta), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	for _, kpi := range page.KPIs {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(70, 8, tr(kpi.Label), "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, tr(kpi.Value), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	if page.Notice != "" {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.MultiCell(0, 6, tr(page.Notice), "", "L", false)
		pdf.Ln(2)
	}

	if len(page.Table.Rows) > 0 {
		widths := columnWidths(len(page.Table.Columns))
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(235, 235, 235)
		for i, col := range page.Table.Columns {
			pdf.CellFormat(widths[i], 7, tr(col), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 9)
		for _, row := range page.Table.Rows {
			for i := range page.Table.Columns {
				cell := ""
				if i < len(row) {
					cell = row[i]
				}
				align := "L"
				if page.Table.Columns[i] == "Amount" {
					align = "R"
				}
				pdf.CellFormat(widths[i], 6, tr(cell), "1", 0, align, false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("fpdf output: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths splits the 180mm body width, giving the invoice column more room.
func columnWidths(n int) []float64 {
	if n == 4 {
		return []float64{38, 62, 35, 45}
	}
	widths := make([]float64, n)
	for i := range widths {
		widths[i] = 180 / float64(n)
	}
	return widths
}
