package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/threadwell/conversation-service/internal/api/http/handlers"
	"github.com/threadwell/conversation-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Intake         *handlers.IntakeHandler
	Tickets        *handlers.TicketsHandler
	Stream         *handlers.StreamHandler
	Tracking       *handlers.TrackingHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	// Shared-secret authenticated, not agent-token authenticated.
	app.Post("/intake/email", cfg.Intake.ProcessEmail)

	// Tracking pixels are fetched by customer mail clients; no auth.
	app.Get("/t/:token", cfg.Tracking.Open)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Delete("/tickets", cfg.Tickets.BulkDelete)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Patch("/tickets/:id", cfg.Tickets.UpdateTicket)
	protected.Post("/tickets/:id/reply", cfg.Tickets.Reply)
	protected.Delete("/tickets/:id/messages/:messageID", cfg.Tickets.DeleteMessage)
	protected.Post("/tickets/:id/tags", cfg.Tickets.AddTag)
	protected.Delete("/tickets/:id/tags/:tagID", cfg.Tickets.RemoveTag)

	protected.Get("/stream", cfg.Stream.Subscribe)
	protected.Post("/stream/presence", cfg.Stream.Presence)
}
