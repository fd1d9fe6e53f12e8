package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetSessionMessages returns a session's transcript, newest first.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	sessionID := c.Param("session_id")

	messages, err := h.service.SessionMessages(c.Request().Context(), sessionID)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id":    sessionID,
		"message_count": len(messages),
		"messages":      messages,
	})
}
