package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lukmanhidayah/siasn-sync/pkg/models"
)

// LastRunSource exposes the most recent cycle summary.
type LastRunSource interface {
	LastRun() *models.RunSummary
}

// StatusHandler serves the last-run summary from memory, independent of the
// optional run history database.
type StatusHandler struct {
	source LastRunSource
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(source LastRunSource) *StatusHandler {
	return &StatusHandler{source: source}
}

// LastRun returns the most recent run summary, or a pending marker before the
// first cycle finishes.
func (h *StatusHandler) LastRun(c echo.Context) error {
	summary := h.source.LastRun()
	if summary == nil {
		return c.JSON(http.StatusOK, map[string]any{"status": "pending"})
	}
	return c.JSON(http.StatusOK, summary)
}

// RegisterRoutes registers the status route under /api/v1
func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/status", h.LastRun)
}
