package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusgate/edu-gateway/internal/api/http/handlers"
	"github.com/campusgate/edu-gateway/internal/auth"
	"github.com/campusgate/edu-gateway/internal/domain"
	"github.com/campusgate/edu-gateway/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Auth       *handlers.AuthHandler
	OAuth      *handlers.OAuthHandler
	Dashboard  *handlers.DashboardHandler
	Users      *handlers.UsersHandler
	Authorizer auth.Authorizer
	Metrics    *observability.Metrics
	RateLimit  fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	limit := cfg.RateLimit
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}
	guard := func(req auth.Requirement) fiber.Handler {
		return auth.Guard(cfg.Authorizer, req)
	}

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if reg := cfg.Metrics.Registry(); reg != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/login", limit, cfg.Auth.Login)
	authGroup.Post("/refresh", limit, cfg.Auth.Refresh)
	authGroup.Post("/logout", guard(auth.Requirement{}), cfg.Auth.Logout)
	authGroup.Get("/me", guard(auth.Requirement{}), cfg.Auth.Me)

	google := authGroup.Group("/google", limit)
	google.Get("/login", cfg.OAuth.Start)
	google.Get("/callback", cfg.OAuth.Callback)
	google.Post("/token", cfg.OAuth.Token)

	api := app.Group("/api")
	api.Get("/admin/dashboard", guard(auth.RequireRole(domain.RoleAdmin)), cfg.Dashboard.Show(domain.RoleAdmin))
	api.Get("/admin/users", guard(auth.RequirePermission(auth.PermManageUsers)), cfg.Users.List)
	api.Get("/coordinator/dashboard", guard(auth.RequireRole(domain.RoleCoordinator)), cfg.Dashboard.Show(domain.RoleCoordinator))
	api.Get("/teacher/dashboard", guard(auth.RequireRole(domain.RoleTeacher)), cfg.Dashboard.Show(domain.RoleTeacher))
	api.Get("/student/dashboard", guard(auth.RequireRole(domain.RoleStudent)), cfg.Dashboard.Show(domain.RoleStudent))
	api.Get("/reports", guard(auth.RequirePermission(auth.PermReadReports)), cfg.Dashboard.Reports)
}
