package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/middleware"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/service"
)

// ComparisonsHandler serves comparisons and their discrepancies.
type ComparisonsHandler struct {
	svc           service.ComparisonService
	discrepancies service.DiscrepancyService
}

func NewComparisonsHandler(svc service.ComparisonService, discrepancies service.DiscrepancyService) *ComparisonsHandler {
	return &ComparisonsHandler{svc: svc, discrepancies: discrepancies}
}

func (h *ComparisonsHandler) Get(c *gin.Context) {
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

func (h *ComparisonsHandler) Delete(c *gin.Context) {
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

// GET /v1/comparisons/:id/discrepancies
func (h *ComparisonsHandler) Discrepancies(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.discrepancies.ListByComparison(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ComparisonsHandler) GetDiscrepancy(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.discrepancies.Get(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ResolveDiscrepancy records the supervisor's resolution.
// POST /v1/discrepancies/:id/resolve {"notes": "..."}
func (h *ComparisonsHandler) ResolveDiscrepancy(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ResolveDiscrepancyRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	resp, err := h.discrepancies.Resolve(c.Request.Context(), middleware.Actor(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /v1/discrepancies/:id/approve
func (h *ComparisonsHandler) ApproveDiscrepancy(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.discrepancies.Approve(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ComparisonsHandler) TransitionDiscrepancy(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.discrepancies.Transition(c.Request.Context(), middleware.Actor(c), id, model.DiscrepancyStatus(req.Status))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
