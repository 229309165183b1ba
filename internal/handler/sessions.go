package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/middleware"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/policy"
	"github.com/maninjwa/stock-count-backend/internal/service"
)

// SessionsHandler serves count sessions and the items counted in them.
type SessionsHandler struct{ svc service.SessionService }

func NewSessionsHandler(svc service.SessionService) *SessionsHandler {
	return &SessionsHandler{svc: svc}
}

// Start opens a session on one of the caller's assignments. Clients that retry may
// send the same "id" to get the session created by the first attempt.
// POST /v1/sessions
func (h *SessionsHandler) Start(c *gin.Context) {
	var req dto.StartSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Start(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *SessionsHandler) Get(c *gin.Context) {
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

func (h *SessionsHandler) Pause(c *gin.Context) { h.move(c, h.svc.Pause) }
func (h *SessionsHandler) Resume(c *gin.Context) { h.move(c, h.svc.Resume) }

func (h *SessionsHandler) move(c *gin.Context, fn func(context.Context, policy.Actor, uuid.UUID) (*model.CountSession, error)) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := fn(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Complete closes the session; {"submit": true} also submits the assignment.
// An empty body is accepted.
// POST /v1/sessions/:id/complete
func (h *SessionsHandler) Complete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.CompleteSessionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Complete(c.Request.Context(), middleware.Actor(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionsHandler) Delete(c *gin.Context) {
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

// POST /v1/sessions/:id/items
func (h *SessionsHandler) AddItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AddItemRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.AddItem(c.Request.Context(), middleware.Actor(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GET /v1/sessions/:id/items
func (h *SessionsHandler) ListItems(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListItems(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FindItems searches counted items by ?sku= or ?item_number=.
// GET /v1/items
func (h *SessionsHandler) FindItems(c *gin.Context) {
	var (
		resp []model.CountItem
		err  error
	)
	switch {
	case c.Query("sku") != "":
		resp, err = h.svc.FindItemsBySKU(c.Request.Context(), middleware.Actor(c), c.Query("sku"))
	case c.Query("item_number") != "":
		resp, err = h.svc.FindItemsByItemNumber(c.Request.Context(), middleware.Actor(c), c.Query("item_number"))
	default:
		err = apierror.Validation("sku or item_number is required", map[string]string{"sku": "required"})
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionsHandler) GetItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetItem(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionsHandler) UpdateItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.UpdateItem(c.Request.Context(), middleware.Actor(c), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionsHandler) DeleteItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteItem(c.Request.Context(), middleware.Actor(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
