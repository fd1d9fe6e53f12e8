// Package v1 provides the public HTTP API.
package v1

import (
	"errors"
	"net/http"

	"github.com/arpankumarde/havoc-machine/internal/domain"
	"github.com/arpankumarde/havoc-machine/internal/service"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/groups", h.StartGroup)
	e.GET("/v1/groups", h.ListGroups)
	e.GET("/v1/groups/:group_id", h.GetGroup)
	e.GET("/v1/groups/:group_id/sessions", h.GetGroupSessions)

	e.GET("/v1/sessions/:session_id/messages", h.GetSessionMessages)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(errorStatus(err), map[string]string{"error": err.Error()})
}
