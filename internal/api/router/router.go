package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/echannel-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/echannel-booking/internal/http/middleware"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger       *logging.Logger
	Appointments *handlers.AppointmentHandler
	Catalog      *handlers.CatalogHandler
	Admin        *handlers.AdminHandler

	Health         http.HandlerFunc
	MetricsHandler http.Handler

	// AgentJWTSecret verifies agent tokens. Empty treats every caller as a
	// guest and closes the admin routes.
	AgentJWTSecret     string
	CORSAllowedOrigins []string
	// RateLimiter is optional; nil disables per-client limiting.
	RateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		health := cfg.Health
		if health == nil {
			health = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			}
		}
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/v1", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		api.Use(httpmiddleware.AgentJWT(cfg.AgentJWTSecret))

		if cfg.Catalog != nil {
			api.Route("/doctors", func(r chi.Router) {
				r.Get("/", cfg.Catalog.ListDoctors)
				r.Get("/{doctorID}", cfg.Catalog.GetDoctor)
				r.Get("/{doctorID}/availability", cfg.Catalog.ListAvailability)
			})
		}

		if cfg.Appointments != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Post("/", cfg.Appointments.Create)
				r.Get("/", cfg.Appointments.List)
				r.Route("/{appointmentID}", func(appt chi.Router) {
					appt.Get("/", cfg.Appointments.Get)
					appt.Post("/cancel", cfg.Appointments.Cancel)
					appt.With(httpmiddleware.RequireAdmin).Post("/complete", cfg.Appointments.Complete)
				})
			})
		}

		// Admin routes (agent token with the admin role)
		if cfg.Admin != nil && cfg.AgentJWTSecret != "" {
			api.Route("/admin", func(admin chi.Router) {
				admin.Use(httpmiddleware.RequireAdmin)
				admin.Get("/stats", cfg.Admin.Stats)
				admin.Get("/audit", cfg.Admin.AuditLog)
				admin.Delete("/booking-limits/{phone}", cfg.Admin.ResetBookingLimit)
				admin.Delete("/doctors/{doctorID}/cache", cfg.Admin.EvictDoctor)
			})
		}
	})

	return r
}
