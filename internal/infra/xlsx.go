package infra

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const summarySheet = "Summary"

// RenderStockCountXLSX writes a workbook with a summary sheet and one sheet per area.
func RenderStockCountXLSX(r StockCountReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	rows := [][]any{
		{"Stock count", r.StockCount.Name},
		{"Date", r.StockCount.Date.Format("2006-01-02")},
		{"Type", r.StockCount.Type},
		{"Status", string(r.StockCount.Status)},
		{"Generated at", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST")},
		{},
		{"Area", "Status", "Comparison", "Variance rate", "Discrepancies"},
	}
	for _, a := range r.Areas {
		cmpStatus, rate, open := "-", "-", "-"
		if a.Comparison != nil {
			cmpStatus = string(a.Comparison.Status)
			rate = fmt.Sprintf("%.4f", a.Comparison.VarianceRate)
		}
		if a.Discrepancies != nil {
			open = fmt.Sprintf("%d", len(a.Discrepancies))
		}
		rows = append(rows, []any{a.Area.Name, string(a.Area.Status), cmpStatus, rate, open})
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return nil, err
	}

	used := map[string]bool{summarySheet: true}
	for _, a := range r.Areas {
		name := sheetName(a.Area.Name, used)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("xlsx: new sheet %q: %w", name, err)
		}
		if err := writeRows(f, name, areaRows(a)); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("xlsx: write: %w", err)
	}
	return buf.Bytes(), nil
}

func areaRows(a AreaReport) [][]any {
	rows := [][]any{
		{"Area", a.Area.Name},
		{"Description", a.Area.Description},
		{"Status", string(a.Area.Status)},
		{},
		{"Assignment", "User", "Status", "Assigned at", "Completed at"},
	}
	for _, asg := range a.Assignments {
		completed := ""
		if asg.CompletedAt != nil {
			completed = asg.CompletedAt.UTC().Format("2006-01-02 15:04")
		}
		rows = append(rows, []any{asg.ID.String(), asg.UserID.String(), string(asg.Status), asg.AssignedAt.UTC().Format("2006-01-02 15:04"), completed})
	}
	if a.Comparison == nil {
		return append(rows, []any{}, []any{"Not reconciled yet"})
	}
	rows = append(rows, []any{},
		[]any{"Comparison", string(a.Comparison.Status)},
		[]any{"Variance rate", a.Comparison.VarianceRate},
	)
	if a.Discrepancies == nil {
		return rows
	}
	rows = append(rows, []any{}, []any{"SKU", "Item number", "Description", "First count", "Second count", "Variance", "Variance %", "Status", "Notes"})
	for _, d := range a.Discrepancies {
		rows = append(rows, []any{d.SKU, d.ItemNumber, d.Description, d.FirstCount, d.SecondCount, d.Variance, d.VariancePercentage, string(d.Status), d.Notes})
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx: write row %d of %q: %w", i+1, sheet, err)
		}
	}
	return nil
}

// sheetName makes a unique, valid worksheet name (max 31 chars, no []:*?/\).
func sheetName(name string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if clean == "" {
		clean = "Area"
	}
	if r := []rune(clean); len(r) > 31 {
		clean = string(r[:31])
	}
	candidate := clean
	for n := 2; used[candidate]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		base := []rune(clean)
		if len(base)+len(suffix) > 31 {
			base = base[:31-len(suffix)]
		}
		candidate = string(base) + suffix
	}
	used[candidate] = true
	return candidate
}
