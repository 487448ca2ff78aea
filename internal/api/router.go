package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vaccicare/vaccination-scheduling/internal/appointment"
	"github.com/vaccicare/vaccination-scheduling/internal/catalog"
	"github.com/vaccicare/vaccination-scheduling/internal/ledger"
	"github.com/vaccicare/vaccination-scheduling/internal/order"
	"github.com/vaccicare/vaccination-scheduling/internal/schedule"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Schedules    *schedule.Service
	Orders       *order.Service
	Ledger       *ledger.Service
	Catalog      catalog.Repository
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       zerolog.Logger
	JWTSecret    string
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Unauthenticated surface: health probes and metrics.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Authenticator(cfg.JWTSecret))

		// Guardians book, view and cancel.
		r.Group(func(r chi.Router) {
			r.Use(RequireRoles(RoleMember, RoleStaff, RoleManager))
			r.Post("/appointments", bookAppointmentHandler(cfg.Appointments))
			r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
			r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
			r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
			r.Post("/appointments/{id}/rebook", rebookAppointmentHandler(cfg.Appointments))

			r.Get("/children/{childID}/history", childHistoryHandler(cfg.Ledger))
			r.Get("/children/{childID}/age", childAgeHandler(cfg.Catalog))
			r.Get("/children/{childID}/next-dose", nextDoseHandler(cfg.Ledger))

			r.Get("/orders/{id}", getOrderHandler(cfg.Orders))
			r.Post("/orders/{id}/adjust", adjustOrderHandler(cfg.Orders))

			r.Get("/slots", listSlotsHandler(cfg.Schedules))
			r.Get("/slots/{id}", getSlotHandler(cfg.Schedules))
		})

		// Clinical transitions are restricted to facility personnel.
		r.Group(func(r chi.Router) {
			r.Use(RequireRoles(RoleStaff, RoleDoctor))
			r.Post("/appointments/{id}/screening", submitScreeningHandler(cfg.Appointments))
			r.Post("/appointments/{id}/confirm-payment", confirmPaymentHandler(cfg.Appointments))
			r.Post("/appointments/{id}/complete", completeVaccinationHandler(cfg.Appointments))
			r.Post("/orders/{id}/pay", payOrderHandler(cfg.Orders))
		})

		// Schedule configuration is a manager concern.
		r.Group(func(r chi.Router) {
			r.Use(RequireRoles(RoleManager))
			r.Post("/schedules/templates", createTemplateHandler(cfg.Schedules))
			r.Post("/schedules/assign", bulkAssignHandler(cfg.Schedules))
		})
	})

	return r
}
