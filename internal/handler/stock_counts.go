package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/middleware"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/service"
)

type StockCountsHandler struct {
	svc     service.StockCountService
	areas   service.AreaService
	reports service.ReportService
}

func NewStockCountsHandler(svc service.StockCountService, areas service.AreaService, reports service.ReportService) *StockCountsHandler {
	return &StockCountsHandler{svc: svc, areas: areas, reports: reports}
}

func (h *StockCountsHandler) Create(c *gin.Context) {
	var req dto.CreateStockCountRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *StockCountsHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockCountsHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockCountsHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateStockCountRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), middleware.Actor(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Transition moves a stock count to the requested status.
// POST /v1/stock-counts/:id/transition {"status": "IN_PROGRESS"}
func (h *StockCountsHandler) Transition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Transition(c.Request.Context(), middleware.Actor(c), id, model.StockCountStatus(req.Status))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockCountsHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.Actor(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Areas lists the areas of a stock count.
// GET /v1/stock-counts/:id/areas
func (h *StockCountsHandler) Areas(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.areas.ListByStockCount(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Report downloads the stock count report.
// GET /v1/stock-counts/:id/report?format=xlsx|pdf
func (h *StockCountsHandler) Report(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	report, err := h.reports.StockCountReport(c.Request.Context(), middleware.Actor(c), id, c.Query("format"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	c.Data(http.StatusOK, report.ContentType, report.Data)
}
