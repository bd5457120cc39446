package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-queue/internal/api/http/handlers"
	"github.com/spec-kit/agency-queue/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Counters       *handlers.CountersHandler
	Appointments   *handlers.AppointmentsHandler
	Stats          *handlers.StatsHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/staff/login", cfg.Staff.Login)
	authGroup.Post("/password/change", cfg.AuthMiddleware.Handle, auth.RequireStaff(), cfg.Staff.ChangePassword)

	api := app.Group("/api/v1")

	// Public endpoints: kiosks, client phones and lobby monitors.
	agencies := api.Group("/agencies/:agencyID")
	agencies.Post("/tickets", cfg.Tickets.CreateTicket)
	agencies.Get("/queue", cfg.Tickets.Board)
	agencies.Get("/stats", cfg.Stats.Stats)
	agencies.Get("/slots", cfg.Appointments.ListSlots)
	agencies.Post("/appointments", cfg.Appointments.Book)

	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Get("/appointments/lookup", cfg.Appointments.Lookup)
	api.Post("/appointments/:id/cancel", cfg.Appointments.Cancel)
	api.Post("/checkin", cfg.Appointments.CheckIn)

	// Staff endpoints.
	staff := api.Group("", cfg.AuthMiddleware.Handle)
	staff.Post("/counters/:counterID/call-next", auth.RequireCapability(auth.CanCallNext), cfg.Counters.CallNext)
	staff.Post("/tickets/:id/start", auth.RequireCapability(auth.CanServe), cfg.Counters.StartServing)
	staff.Post("/tickets/:id/complete", auth.RequireCapability(auth.CanServe), cfg.Counters.Complete)
	staff.Post("/tickets/:id/cancel", auth.RequireCapability(auth.CanCancel), cfg.Counters.Cancel)
	staff.Post("/tickets/:id/no-show", auth.RequireCapability(auth.CanServe), cfg.Counters.MarkNoShow)
	staff.Post("/tickets/:id/transfer", auth.RequireCapability(auth.CanTransfer), cfg.Counters.Transfer)
	staff.Post("/appointments/:id/confirm", auth.RequireCapability(auth.CanServe), cfg.Appointments.Confirm)
}
