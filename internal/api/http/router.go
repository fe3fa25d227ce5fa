package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/hostel-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/hostel-dispatch/internal/auth"
	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Escalations    *handlers.EscalationsHandler
	Mappings       *handlers.MappingsHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware fiber.Handler
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	staffOrAdmin := auth.RequireRole(domain.RoleStaff, domain.RoleAdmin)
	adminOnly := auth.RequireRole(domain.RoleAdmin)

	tickets := app.Group("/tickets", cfg.AuthMiddleware, auth.RequireAnyRole())
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Post("", auth.RequireRole(domain.RoleStudent, domain.RoleAdmin), cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/auto-assign", staffOrAdmin, cfg.Tickets.AutoAssign)
	tickets.Post("/:id/assign", adminOnly, cfg.Tickets.Assign)
	tickets.Post("/:id/transitions", cfg.Tickets.Transition)
	tickets.Get("/:id/escalations", cfg.Escalations.ListForTicket)
	tickets.Post("/:id/escalations", staffOrAdmin, cfg.Escalations.Create)

	escalations := app.Group("/escalations", cfg.AuthMiddleware, staffOrAdmin)
	escalations.Post("/:id/resolve", cfg.Escalations.Resolve)

	staff := app.Group("/staff", cfg.AuthMiddleware, auth.RequireAnyRole())
	staff.Get("", adminOnly, cfg.Staff.List)
	staff.Post("", adminOnly, cfg.Staff.Create)
	staff.Get("/:id", cfg.Staff.Get)
	staff.Get("/:id/workload", staffOrAdmin, cfg.Staff.Workload)

	admin := app.Group("/admin", cfg.AuthMiddleware, adminOnly)
	admin.Post("/escalations/scan", cfg.Escalations.Scan)
	admin.Get("/mappings", cfg.Mappings.List)
	admin.Post("/mappings", cfg.Mappings.Create)
	admin.Put("/mappings/:id", cfg.Mappings.Update)
	admin.Delete("/mappings/:id", cfg.Mappings.Deactivate)
}
