package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Workflow       *handlers.WorkflowHandler
	SLA            *handlers.SLAHandler
	Tickets        *handlers.TicketsHandler
	Rules          *handlers.RulesHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
	AdminRole      string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	admin := auth.RequireRole(cfg.AdminRole)

	wf := api.Group("/workflow")
	wf.Post("/check", cfg.Workflow.Check)
	wf.Get("/transitions", cfg.Workflow.Transitions)
	wf.Get("/requires-note", cfg.Workflow.RequiresNote)

	slaGroup := api.Group("/sla")
	slaGroup.Post("/due-dates", cfg.SLA.DueDates)
	slaGroup.Get("/breached", cfg.SLA.Breached)
	slaGroup.Get("/approaching", cfg.SLA.Approaching)
	slaGroup.Get("/monitor/metrics", cfg.SLA.Metrics)
	slaGroup.Post("/monitor/scan", admin, cfg.SLA.Scan)
	slaGroup.Post("/monitor/metrics/reset", admin, cfg.SLA.ResetMetrics)

	api.Post("/rules/reload", admin, cfg.Rules.Reload)

	tickets := api.Group("/tickets/:id")
	tickets.Get("/sla", cfg.Tickets.SLA)
	tickets.Post("/sla/recalculate", cfg.Tickets.Recalculate)
	tickets.Post("/status", cfg.Tickets.ChangeStatus)
	tickets.Post("/priority", cfg.Tickets.ChangePriority)
	tickets.Get("/history", cfg.Tickets.History)
}
