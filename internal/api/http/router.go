package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldserve/workflow-service/internal/api/http/handlers"
	"github.com/fieldserve/workflow-service/internal/auth"
	"github.com/fieldserve/workflow-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Workflow       *handlers.WorkflowHandler
	Notifications  *handlers.NotificationsHandler
	Ws             *handlers.WsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/ws/notifications", cfg.Ws.Upgrade, cfg.Ws.Stream())

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Post("/",
		auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleDispatcher),
		cfg.Workflow.CreateTicket)
	tickets.Get("/:id", cfg.Workflow.GetTicket)
	tickets.Get("/:id/history", cfg.Workflow.ListHistory)
	tickets.Post("/:id/transition",
		auth.RequireRole(domain.UserRoleAdmin, domain.UserRoleDispatcher, domain.UserRoleEngineer),
		cfg.Workflow.RequestTransition)

	notifications := api.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
	notifications.Post("/:id/archive", cfg.Notifications.Archive)
}
