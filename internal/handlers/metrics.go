package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// MetricsHandler exposes a Prometheus scrape endpoint.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler serves h on /metrics. A nil h disables the route.
func NewMetricsHandler(h http.Handler) *MetricsHandler {
	return &MetricsHandler{handler: h}
}

func (h *MetricsHandler) Register(e *echo.Echo) {
	if h.handler == nil {
		return
	}
	e.GET("/metrics", echo.WrapHandler(h.handler))
}
