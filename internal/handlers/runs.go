// Package handlers exposes the operational HTTP API.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/lukmanhidayah/siasn-sync/internal/repositories/runlog"
)

// RunsHandler serves run history queries.
type RunsHandler struct {
	repo   *runlog.Repository
	logger ectologger.Logger
}

// NewRunsHandler creates a RunsHandler.
func NewRunsHandler(repo *runlog.Repository, logger ectologger.Logger) *RunsHandler {
	return &RunsHandler{repo: repo, logger: logger}
}

// List returns the most recent runs.
func (h *RunsHandler) List(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	runs, err := h.repo.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"runs": runs})
}

// Get returns one run by id.
func (h *RunsHandler) Get(c echo.Context) error {
	run, err := h.repo.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

// RegisterRoutes registers run history routes under /api/v1
func (h *RunsHandler) RegisterRoutes(e *echo.Echo) {
	runs := e.Group("/api/v1/runs")
	runs.GET("", h.List)
	runs.GET("/:id", h.Get)
}
