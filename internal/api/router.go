package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/homelist/auth-service/docs"
	"github.com/homelist/auth-service/internal/api/handler"
	"github.com/homelist/auth-service/internal/api/middleware"
	"github.com/homelist/auth-service/internal/core/domain"
	"github.com/homelist/auth-service/internal/core/ports"
	infrahttp "github.com/homelist/auth-service/internal/infrastructure/http"
	"github.com/homelist/auth-service/internal/infrastructure/http/handlers"
)

// Deps is everything the router needs to serve requests.
type Deps struct {
	Auth     ports.AuthService
	Admin    ports.UserAdminService
	Resolver ports.PrincipalResolver
	Cookie   handler.CookieConfig
	Probes   []handlers.Pinger
	Logger   zerolog.Logger

	// Registerer receives the HTTP request metrics. Nil means the
	// default Prometheus registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "auth",
		Registerer: d.Registerer,
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Cookie)
	userHandler := handler.NewUserHandler(d.Admin)
	requireAuth := middleware.Auth(d.Resolver)
	requireAdmin := middleware.RBAC(d.Resolver, domain.RoleAdmin)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout, requireAuth)
	auth.POST("/logout-all", authHandler.LogoutAll, requireAuth)
	auth.GET("/me", authHandler.Me, requireAuth)

	// --- Administration ---
	admin := e.Group("/admin", requireAdmin)
	admin.GET("/users/:id", userHandler.Get)
	admin.PATCH("/users/:id/role", userHandler.UpdateRole)
	admin.PATCH("/users/:id/status", userHandler.UpdateStatus)
	admin.DELETE("/users/:id", userHandler.Delete)

	// --- Probes, metrics and API docs (no auth required) ---
	infrahttp.RegisterProbes(e, d.Probes...)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
