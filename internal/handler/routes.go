package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the capture routes and the health check.
func RegisterRoutes(e *echo.Echo, h *CaptureHandler) {
	e.GET("/ping", h.Ping)
	e.GET("/screenshot", h.Screenshot)
	e.GET("/website", h.Website)
}
