package receipts

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/ManuelReschke/RecoveryLedger/app/models"
)

// CSVHeader lists the export columns in order.
var CSVHeader = []string{
	"id",
	"created_at",
	"invoice_id",
	"status",
	"recovered_amount",
	"attribution_hash",
	"reason_code",
	"action_source",
}

// utf8BOM lets spreadsheet programs detect the encoding.
const utf8BOM = "\ufeff"

// ExportRow is one exported receipt. Zero values render as empty cells; a nil
// RecoveredCents means nothing was recovered.
type ExportRow struct {
	ID              string
	CreatedAt       time.Time
	InvoiceID       string
	Status          string
	RecoveredCents  *int64
	AttributionHash string
	ReasonCode      string
	ActionSource    string
}

func (r ExportRow) cells() []string {
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	amount := ""
	if r.RecoveredCents != nil {
		amount = models.FormatCents(*r.RecoveredCents)
	}
	return []string{r.ID, created, r.InvoiceID, r.Status, amount, r.AttributionHash, r.ReasonCode, r.ActionSource}
}

// EscapeCell neutralises spreadsheet formulas and quotes the value.
func EscapeCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@", rune(v[0])) {
		v = "'" + v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// EncodeCSV writes the BOM, the header and one line per row.
func EncodeCSV(w io.Writer, rows []ExportRow) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(utf8BOM + strings.Join(CSVHeader, ",") + "\n"); err != nil {
		return err
	}
	for _, row := range rows {
		for i, cell := range row.cells() {
			if i > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(EscapeCell(cell)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// RenderCSV returns the complete export payload.
func RenderCSV(rows []ExportRow) []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail.
	_ = EncodeCSV(&buf, rows)
	return buf.Bytes()
}
