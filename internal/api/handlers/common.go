package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/escrow-service/escrow_service/internal/domain/entities"
)

// getRequestID extracts request ID from context
func getRequestID(c *gin.Context) string {
	if reqID, exists := c.Get("request_id"); exists {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// respondError sends a standardized error response. Details carries only
// operator-safe text; raw driver errors and chain internals never leave the
// service through this path.
func respondError(c *gin.Context, status int, code, message string, details string) {
	c.JSON(status, entities.ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
		Details: details,
	})
}

func respondBadRequest(c *gin.Context, message string) {
	respondError(c, 400, ErrCodeInvalidRequest, message, "")
}

func respondNotFound(c *gin.Context, message string) {
	respondError(c, 404, ErrCodeNotFound, message, "")
}
