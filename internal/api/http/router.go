package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/assistenza/helpdesk-gateway/internal/api/http/handlers"
	"github.com/assistenza/helpdesk-gateway/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Sessions       *handlers.SessionsHandler
	Tickets        *handlers.TicketsHandler
	Catalog        *handlers.CatalogHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	sessions := api.Group("/sessions")
	sessions.Post("/", cfg.Sessions.Open)
	sessions.Get("/:id", cfg.Sessions.Get)
	sessions.Patch("/:id/fields", cfg.Sessions.SetField)
	sessions.Post("/:id/finalize", cfg.Sessions.Finalize)
	sessions.Delete("/:id", cfg.Sessions.Close)

	tickets := api.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/drafts", cfg.Tickets.ListDrafts)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/accept", auth.RequireStaff(), cfg.Tickets.Accept)
	tickets.Post("/:id/solve", auth.RequireStaff(), cfg.Tickets.Solve)
	tickets.Post("/:id/assign", auth.RequireStaff(), cfg.Tickets.Assign)
	tickets.Post("/:id/reject", auth.RequireStaff(), cfg.Tickets.Reject)
	tickets.Post("/:id/escalate", auth.RequireStaff(), cfg.Tickets.Escalate)
	tickets.Get("/:id/assignees", auth.RequireStaff(), cfg.Tickets.EligibleAssignees)

	catalog := api.Group("/catalog")
	catalog.Get("/categories", cfg.Catalog.ListCategories)
	catalog.Get("/categories/:id/services", cfg.Catalog.ListServices)
	catalog.Get("/staff", auth.RequireStaff(), cfg.Catalog.ListStaff)
}
