package infra

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/maninjwa/stock-count-backend/internal/model"
)

func sampleReport() StockCountReport {
	cmpID := uuid.New()
	return StockCountReport{
		StockCount:  model.StockCount{ID: uuid.New(), Name: "Warehouse A Q1", Type: "FULL", Status: model.StockCountInProgress, Date: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)},
		GeneratedAt: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
		Areas: []AreaReport{
			{
				Area:       model.Area{ID: uuid.New(), Name: "Zone 1", Status: model.AreaPendingApproval},
				Comparison: &model.Comparison{ID: cmpID, Status: model.ComparisonDiscrepancy, VarianceRate: 1},
				Discrepancies: []model.Discrepancy{
					{ComparisonID: cmpID, SKU: "X1", ItemNumber: "1001", FirstCount: 10, SecondCount: 8, Variance: 2, VariancePercentage: 20, Status: model.DiscrepancyOpen},
				},
			},
			{Area: model.Area{ID: uuid.New(), Name: "Cold room [B]", Status: model.AreaInProgress}},
		},
	}
}

func TestRenderStockCountXLSX(t *testing.T) {
	data, err := RenderStockCountXLSX(sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Zone 1", "Cold room _B_"}, f.GetSheetList())

	name, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "Warehouse A Q1", name)

	rows, err := f.GetRows("Zone 1")
	require.NoError(t, err)
	var found bool
	for _, r := range rows {
		if len(r) > 5 && r[0] == "X1" {
			found = true
			assert.Equal(t, "10", r[3])
			assert.Equal(t, "8", r[4])
			assert.Equal(t, "2", r[5])
		}
	}
	assert.True(t, found, "discrepancy row for X1")
}

func TestRenderStockCountPDF(t *testing.T) {
	data, err := RenderStockCountPDF(sampleReport())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	single, err := RenderComparisonPDF(sampleReport().Areas[0])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(single, []byte("%PDF")))
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{"Summary": true}
	assert.Equal(t, "Summary (2)", sheetName("Summary", used))
	long := strings.Repeat("z", 40)
	first := sheetName(long, used)
	assert.Len(t, first, 31)
	second := sheetName(long, used)
	assert.Len(t, second, 31)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "Area", sheetName("  ", used))
}
