// Package router wires the HTTP surface: public health and metrics, then
// role-gated appointment, payment, and dashboard routes behind bearer auth.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medibook/clinic-platform/internal/appointments"
	"github.com/medibook/clinic-platform/internal/dashboard"
	httpmiddleware "github.com/medibook/clinic-platform/internal/http/middleware"
	"github.com/medibook/clinic-platform/internal/identity"
	"github.com/medibook/clinic-platform/internal/payments"
	"github.com/medibook/clinic-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	PaymentsHandler     *payments.Handler
	DashboardHandler    *dashboard.Handler
	MetricsHandler      http.Handler
	JWTSecret           string
	CORSAllowedOrigins  []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Authenticated API.
	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.Auth(cfg.JWTSecret))

		api.Route("/appointments", func(appts chi.Router) {
			appts.Get("/", cfg.AppointmentsHandler.List)
			appts.With(httpmiddleware.RequireRole(identity.RolePatient)).Post("/", cfg.AppointmentsHandler.Book)
			appts.Post("/{appointmentID}/cancel", cfg.AppointmentsHandler.Cancel)
			appts.With(httpmiddleware.RequireRole(identity.RoleDoctor)).Post("/{appointmentID}/complete", cfg.AppointmentsHandler.Complete)
		})

		if cfg.PaymentsHandler != nil {
			api.Route("/payments", func(pay chi.Router) {
				pay.Use(httpmiddleware.RequireRole(identity.RolePatient))
				pay.Post("/{provider}/initiate", cfg.PaymentsHandler.Initiate)
				pay.Post("/razorpay/confirm", cfg.PaymentsHandler.ConfirmRazorpay)
				pay.Post("/khalti/confirm", cfg.PaymentsHandler.ConfirmKhalti)
			})
		}

		if cfg.DashboardHandler != nil {
			api.Route("/dashboard", func(dash chi.Router) {
				dash.With(httpmiddleware.RequireRole(identity.RoleDoctor)).Get("/doctor", cfg.DashboardHandler.Doctor)
				dash.With(httpmiddleware.RequireRole(identity.RoleAdmin)).Get("/admin", cfg.DashboardHandler.Admin)
			})
		}
	})

	return r
}
