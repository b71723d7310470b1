// Package http registers the operational endpoints every deployment of the
// service exposes: liveness, readiness and Prometheus metrics.
package http

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"

	"github.com/homelist/auth-service/internal/infrastructure/http/handlers"
)

// RegisterProbes mounts the probe and metrics routes on e. None of them
// require authentication.
func RegisterProbes(e *echo.Echo, deps ...handlers.Pinger) {
	healthHandler := handlers.NewHealthHandler()
	readinessHandler := handlers.NewReadinessHandler(deps...)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())
}
