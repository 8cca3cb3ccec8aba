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
	Schedules      *handlers.SchedulesHandler
	Policies       *handlers.PoliciesHandler
	Escalations    *handlers.EscalationsHandler
	Metrics        *handlers.MetricsHandler
	Clock          *handlers.TicketClockHandler
	AuthMiddleware *auth.AuthMiddleware
	Prometheus     *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Prometheus != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Prometheus.Handler()))
	}

	api := app.Group("/api/v1/sla", cfg.AuthMiddleware.Handle)
	admin := auth.RequireAdmin()
	agent := auth.RequireAgent()

	api.Get("/schedules", cfg.Schedules.ListSchedules)
	api.Get("/schedules/default", cfg.Schedules.GetDefaultSchedule)
	api.Get("/schedules/:id", cfg.Schedules.GetSchedule)
	api.Get("/schedules/:id/open", cfg.Schedules.IsOpen)
	api.Get("/schedules/:id/next-open", cfg.Schedules.NextOpen)
	api.Get("/schedules/:id/add-minutes", cfg.Schedules.AddMinutes)
	api.Get("/schedules/:id/minutes-between", cfg.Schedules.MinutesBetween)
	api.Post("/schedules", admin, cfg.Schedules.CreateSchedule)
	api.Put("/schedules/:id", admin, cfg.Schedules.UpdateSchedule)
	api.Put("/schedules/:id/entries", admin, cfg.Schedules.ReplaceEntries)
	api.Post("/schedules/:id/default", admin, cfg.Schedules.PromoteSchedule)
	api.Delete("/schedules/:id", admin, cfg.Schedules.DeleteSchedule)

	api.Get("/holidays", cfg.Schedules.ListHolidays)
	api.Post("/holidays", admin, cfg.Schedules.AddHoliday)
	api.Delete("/holidays/:id", admin, cfg.Schedules.DeleteHoliday)

	api.Get("/policies", cfg.Policies.ListPolicies)
	api.Get("/policies/default", cfg.Policies.GetDefaultPolicy)
	api.Get("/policies/resolve", cfg.Policies.ResolvePolicy)
	api.Get("/policies/:id", cfg.Policies.GetPolicy)
	api.Get("/policies/:id/targets", cfg.Policies.ListTargets)
	api.Get("/policies/:id/thresholds", cfg.Policies.ListThresholds)
	api.Post("/policies", admin, cfg.Policies.CreatePolicy)
	api.Put("/policies/:id", admin, cfg.Policies.UpdatePolicy)
	api.Delete("/policies/:id", admin, cfg.Policies.DeletePolicy)
	api.Post("/policies/:id/default", admin, cfg.Policies.PromotePolicy)
	api.Put("/policies/:id/targets", admin, cfg.Policies.UpsertTargets)
	api.Post("/policies/:id/thresholds", admin, cfg.Policies.CreateThreshold)
	api.Delete("/targets/:id", admin, cfg.Policies.DeleteTarget)
	api.Put("/thresholds/:id", admin, cfg.Policies.UpdateThreshold)
	api.Delete("/thresholds/:id", admin, cfg.Policies.DeleteThreshold)
	api.Put("/clients/:id/policy", admin, cfg.Policies.AssignClientPolicy)
	api.Put("/boards/:id/policy", admin, cfg.Policies.AssignBoardPolicy)

	api.Get("/boards/:id/escalation-managers", cfg.Escalations.GetManagers)
	api.Put("/boards/:id/escalation-managers", admin, cfg.Escalations.SetManagers)

	api.Get("/metrics/compliance", cfg.Metrics.Compliance)
	api.Get("/metrics/breach-rate", cfg.Metrics.BreachRate)
	api.Get("/metrics/at-risk", cfg.Metrics.AtRisk)
	api.Get("/metrics/overview", cfg.Metrics.Overview)
	api.Get("/metrics/trend", cfg.Metrics.Trend)

	api.Post("/deadlines", cfg.Clock.ComputeDeadlines)
	api.Get("/tickets/:id", cfg.Clock.GetTicket)
	api.Post("/tickets/:id/start", agent, cfg.Clock.StartClock)
	api.Post("/tickets/:id/response", agent, cfg.Clock.RecordResponse)
	api.Post("/tickets/:id/resolution", agent, cfg.Clock.RecordResolution)
	api.Post("/tickets/:id/pause", agent, cfg.Clock.Pause)
	api.Post("/tickets/:id/resume", agent, cfg.Clock.Resume)
	api.Post("/tickets/:id/evaluate", agent, cfg.Clock.Evaluate)
	api.Post("/sweep", admin, cfg.Clock.Sweep)
}
