package infra

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// RenderStockCountPDF renders the report as an A4 document: one section per area with
// its comparison and, when present, the discrepancy table.
func RenderStockCountPDF(r StockCountReport) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, tr(r.StockCount.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("%s  |  %s  |  %s",
		r.StockCount.Date.Format("2006-01-02"), tr(r.StockCount.Type), r.StockCount.Status), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Generated "+r.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	for _, a := range r.Areas {
		writeAreaPDF(pdf, tr, contentW, a)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderComparisonPDF renders a single area section, used as a notification attachment.
func RenderComparisonPDF(a AreaReport) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()

	writeAreaPDF(pdf, tr, pageW-24, a)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAreaPDF(pdf *fpdf.Fpdf, tr func(string) string, contentW float64, a AreaReport) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 7, tr(a.Area.Name)+"  ("+string(a.Area.Status)+")", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)

	if a.Comparison == nil {
		pdf.CellFormat(contentW, 5, "Not reconciled yet", "", 1, "L", false, 0, "")
		pdf.Ln(3)
		return
	}
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Comparison %s, variance rate %.2f%%",
		a.Comparison.Status, a.Comparison.VarianceRate*100), "", 1, "L", false, 0, "")

	if len(a.Discrepancies) == 0 {
		pdf.Ln(3)
		return
	}

	cols := []struct {
		title string
		w     float64
		align string
	}{
		{"SKU", 0.16, "L"},
		{"Item", 0.14, "L"},
		{"Description", 0.28, "L"},
		{"First", 0.09, "R"},
		{"Second", 0.09, "R"},
		{"Var", 0.08, "R"},
		{"Var %", 0.08, "R"},
		{"Status", 0.08, "C"},
	}
	pdf.SetFont("Helvetica", "B", 7)
	for i, c := range cols {
		ln := 0
		if i == len(cols)-1 {
			ln = 1
		}
		pdf.CellFormat(contentW*c.w, 5, c.title, "B", ln, c.align, false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 7)
	for _, d := range a.Discrepancies {
		desc := d.Description
		if r := []rune(desc); len(r) > 40 {
			desc = string(r[:39]) + "..."
		}
		values := []string{
			d.SKU, d.ItemNumber, desc,
			fmt.Sprintf("%d", d.FirstCount), fmt.Sprintf("%d", d.SecondCount),
			fmt.Sprintf("%d", d.Variance), fmt.Sprintf("%.2f", d.VariancePercentage),
			string(d.Status),
		}
		for i, c := range cols {
			ln := 0
			if i == len(cols)-1 {
				ln = 1
			}
			pdf.CellFormat(contentW*c.w, 5, tr(values[i]), "", ln, c.align, false, 0, "")
		}
	}
	pdf.Ln(4)
}
