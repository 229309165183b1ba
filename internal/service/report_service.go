package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/infra"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/policy"
	"github.com/maninjwa/stock-count-backend/internal/repository"
)

const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// reportConcurrency bounds the areas loaded in parallel.
const reportConcurrency = 4

// Report is a rendered document ready to be streamed.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ReportService interface {
	StockCountReport(ctx context.Context, actor policy.Actor, id uuid.UUID, format string) (*Report, error)
}

type reportService struct{ Deps }

func NewReportService(deps Deps) ReportService {
	return &reportService{Deps: deps}
}

// StockCountReport renders every area of a stock count with its latest comparison.
// Discrepancies are included only for readers allowed to see them.
func (s *reportService) StockCountReport(ctx context.Context, actor policy.Actor, id uuid.UUID, format string) (*Report, error) {
	format = strings.ToLower(format)
	if format == "" {
		format = FormatXLSX
	}
	if format != FormatXLSX && format != FormatPDF {
		return nil, apierror.Validation("unsupported report format", map[string]string{"format": "oneof"})
	}
	if err := s.Policy.Authorize(actor, policy.StockCount, policy.Read, uuid.Nil); err != nil {
		return nil, err
	}
	if _, err := s.Policy.ListScope(actor, policy.Comparison); err != nil {
		return nil, err
	}
	withDiscrepancies := s.Policy.GroupAllows(actor, policy.Discrepancy, policy.Read)

	sc, err := s.Store.StockCounts().FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "stock count", id)
	}
	areas, err := s.Store.Areas().ListByStockCount(ctx, id)
	if err != nil {
		return nil, err
	}

	sections := make([]infra.AreaReport, len(areas))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reportConcurrency)
	for i := range areas {
		g.Go(func() error {
			section, err := loadAreaReport(gctx, s.Store, areas[i], withDiscrepancies)
			if err != nil {
				return err
			}
			sections[i] = section
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := infra.StockCountReport{StockCount: *sc, Areas: sections, GeneratedAt: s.now()}
	out := &Report{Filename: fmt.Sprintf("stock-count-%s.%s", sc.ID, format)}
	switch format {
	case FormatPDF:
		out.ContentType = infra.ContentTypePDF
		out.Data, err = infra.RenderStockCountPDF(r)
	default:
		out.ContentType = infra.ContentTypeXLSX
		out.Data, err = infra.RenderStockCountXLSX(r)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadAreaReport(ctx context.Context, store repository.Store, area model.Area, withDiscrepancies bool) (infra.AreaReport, error) {
	section := infra.AreaReport{Area: area}
	asgs, err := store.Assignments().ListByArea(ctx, area.ID)
	if err != nil {
		return section, err
	}
	section.Assignments = asgs
	cmps, err := store.Comparisons().ListByArea(ctx, area.ID)
	if err != nil {
		return section, err
	}
	if len(cmps) == 0 {
		return section, nil
	}
	latest := cmps[len(cmps)-1]
	section.Comparison = &latest
	if !withDiscrepancies {
		return section, nil
	}
	section.Discrepancies, err = store.Discrepancies().ListByComparison(ctx, latest.ID)
	if err != nil {
		return section, err
	}
	return section, nil
}
