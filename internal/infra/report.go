package infra

import (
	"time"

	"github.com/maninjwa/stock-count-backend/internal/model"
)

// AreaReport is the per-area section of a stock count report. Comparison is nil while
// the area has not been reconciled; Discrepancies is nil when the reader may not see them.
type AreaReport struct {
	Area          model.Area
	Assignments   []model.Assignment
	Comparison    *model.Comparison
	Discrepancies []model.Discrepancy
}

type StockCountReport struct {
	StockCount  model.StockCount
	Areas       []AreaReport
	GeneratedAt time.Time
}

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)
