package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/middleware"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/service"
)

type AreasHandler struct {
	svc         service.AreaService
	assignments service.AssignmentService
	comparisons service.ComparisonService
}

func NewAreasHandler(svc service.AreaService, assignments service.AssignmentService, comparisons service.ComparisonService) *AreasHandler {
	return &AreasHandler{svc: svc, assignments: assignments, comparisons: comparisons}
}

func (h *AreasHandler) Create(c *gin.Context) {
	var req dto.CreateAreaRequest
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

func (h *AreasHandler) Get(c *gin.Context) {
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

func (h *AreasHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateAreaRequest
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

func (h *AreasHandler) Transition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Transition(c.Request.Context(), middleware.Actor(c), id, model.AreaStatus(req.Status))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AreasHandler) Delete(c *gin.Context) {
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

// GET /v1/areas/:id/assignments
func (h *AreasHandler) Assignments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.assignments.ListByArea(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /v1/areas/:id/comparisons
func (h *AreasHandler) Comparisons(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.comparisons.ListByArea(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reconcile compares the two submitted counts of the area now. Repeating it for the
// same pair of assignments returns the existing comparison.
// POST /v1/areas/:id/reconcile
func (h *AreasHandler) Reconcile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.comparisons.Reconcile(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
