package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Appointments AppointmentService
	Availability AvailabilityService
	Checks       []Check
	Location     *time.Location
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	appts := &appointmentHandlers{svc: cfg.Appointments, validate: newRequestValidator(), log: cfg.Logger}
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", appts.book)
		r.Get("/patient/{patientId}", appts.listByPatient)
		r.Get("/{id}", appts.get)
		r.Put("/{id}", appts.update)
		r.Delete("/{id}", appts.delete)
		r.Post("/{id}/complete", appts.transition(cfg.Appointments.Complete))
		r.Post("/{id}/cancel", appts.transition(cfg.Appointments.Cancel))
		r.Post("/{id}/no-show", appts.transition(cfg.Appointments.MarkNoShow))
	})

	avail := &availabilityHandler{svc: cfg.Availability, loc: cfg.Location, log: cfg.Logger}
	r.Get("/availability", avail.get)

	return r
}
