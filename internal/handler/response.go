package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "focusbeat/backend/internal/errors"
	"focusbeat/backend/internal/middleware"
)

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	body := apiErr.Body()
	c.JSON(body.Error.Status, body)
}

// bindJSON decodes the body into req or writes a 400 and returns false.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
		return false
	}
	return true
}

// profileID returns the authenticated profile or writes a 401.
func profileID(c *gin.Context) (string, bool) {
	id := middleware.ProfileID(c)
	if id == "" {
		writeError(c, apperrors.Unauthorized(""))
		return "", false
	}
	return id, true
}
