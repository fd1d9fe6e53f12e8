package v1

import (
	"net/http"

	"github.com/arpankumarde/havoc-machine/internal/domain"
	"github.com/labstack/echo/v4"
)

// StartGroup launches a group of parallel adversarial sessions.
// POST /v1/groups
func (h *Handler) StartGroup(c echo.Context) error {
	var req domain.StartGroupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	group, err := h.service.StartGroup(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"group_id":    group.GroupID,
		"session_ids": group.SessionIDs,
		"status":      "started",
	})
}

// ListGroups returns the IDs of all known groups.
// GET /v1/groups
func (h *Handler) ListGroups(c echo.Context) error {
	ids, err := h.service.ListGroups(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"groups": ids})
}

// GetGroup returns group metadata, status and report URLs.
// GET /v1/groups/:group_id
func (h *Handler) GetGroup(c echo.Context) error {
	group, err := h.service.GetGroup(c.Request().Context(), c.Param("group_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, group)
}

// GetGroupSessions returns the member sessions of a group.
// GET /v1/groups/:group_id/sessions
func (h *Handler) GetGroupSessions(c echo.Context) error {
	groupID := c.Param("group_id")
	sessions, err := h.service.GetGroupSessions(c.Request().Context(), groupID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"group_id": groupID,
		"sessions": sessions,
	})
}
