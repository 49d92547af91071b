package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/doubtsolver/internal/healthcheck"
)

// HealthHandler reports readiness of the bot's dependencies.
type HealthHandler struct {
	checkers []healthcheck.Checker
}

func NewHealthHandler(checkers ...healthcheck.Checker) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Ready)
}

func (h *HealthHandler) Ready(c echo.Context) error {
	report := healthcheck.Run(c.Request().Context(), h.checkers...)
	status := http.StatusOK
	if report.Status != healthcheck.StatusOK {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}
