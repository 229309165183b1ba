package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/middleware"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/service"
)

type AssignmentsHandler struct {
	svc      service.AssignmentService
	sessions service.SessionService
}

func NewAssignmentsHandler(svc service.AssignmentService, sessions service.SessionService) *AssignmentsHandler {
	return &AssignmentsHandler{svc: svc, sessions: sessions}
}

func (h *AssignmentsHandler) Create(c *gin.Context) {
	var req dto.CreateAssignmentRequest
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

func (h *AssignmentsHandler) Get(c *gin.Context) {
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

// Mine lists the caller's own assignments.
func (h *AssignmentsHandler) Mine(c *gin.Context) {
	actor := middleware.Actor(c)
	resp, err := h.svc.ListByUser(c.Request.Context(), actor, actor.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AssignmentsHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateAssignmentRequest
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

func (h *AssignmentsHandler) Transition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Transition(c.Request.Context(), middleware.Actor(c), id, model.AssignmentStatus(req.Status))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Submit hands in the count. When it completes the second count of the area,
// reconciliation is triggered.
// POST /v1/assignments/:id/submit
func (h *AssignmentsHandler) Submit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Submit(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AssignmentsHandler) Delete(c *gin.Context) {
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

// GET /v1/assignments/:id/sessions
func (h *AssignmentsHandler) Sessions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.sessions.ListByAssignment(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
