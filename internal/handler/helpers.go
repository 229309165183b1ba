package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
)

// bindJSON decodes the request body. Field rules are checked by the services, which
// own validation; here only malformed JSON is rejected.
// Returns false after recording the error; the caller should return immediately.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(apierror.Validation("invalid JSON: "+err.Error(), nil))
		return false
	}
	return true
}

// paramID parses the uuid path parameter name.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		_ = c.Error(apierror.Validation("invalid id", map[string]string{name: "uuid"}))
		return uuid.Nil, false
	}
	return id, true
}

// fail records err for middleware.ErrorHandler, which renders it.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}
