package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Archive        *handlers.ArchiveHandler
	Notifications  *handlers.NotificationsHandler
	Agents         *handlers.AgentsHandler
	Stream         *handlers.StreamHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	api.Get("/me", cfg.Agents.Me)
	api.Get("/me/export", cfg.Agents.Export)
	api.Get("/stream", cfg.Stream.Stream)
	api.Get("/presence", cfg.Agents.Presence)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/bulk-archive", auth.RequireStaff(), cfg.Archive.BulkArchive)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/sla", cfg.Tickets.GetSLA)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id/assign", auth.RequireStaff(), cfg.Tickets.Assign)
	tickets.Post("/:id/auto-assign", auth.RequireStaff(), cfg.Tickets.AutoAssign)
	tickets.Post("/:id/feedback", cfg.Tickets.SubmitFeedback)
	tickets.Post("/:id/archive", auth.RequireStaff(), cfg.Archive.Archive)

	archived := api.Group("/archived")
	archived.Get("/", cfg.Archive.ListArchived)
	archived.Post("/:id/restore", auth.RequireAdmin(), cfg.Archive.Restore)
	archived.Delete("/:id", auth.RequireAdmin(), cfg.Archive.PermanentDelete)
	archived.Delete("/", auth.RequireAdmin(), cfg.Archive.Purge)

	notifications := api.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Put("/:id/read", cfg.Notifications.MarkRead)

	api.Get("/agents/workload", auth.RequireStaff(), cfg.Agents.Workload)
	api.Get("/agents/leaderboard", auth.RequireStaff(), cfg.Agents.Leaderboard)
	api.Get("/stats/live", auth.RequireStaff(), cfg.Agents.LiveStats)
	api.Get("/stats/heatmap", auth.RequireStaff(), cfg.Agents.Heatmap)
}
