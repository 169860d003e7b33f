package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mindwell-health/practice-platform/internal/absence"
	httpmiddleware "github.com/mindwell-health/practice-platform/internal/http/middleware"
	"github.com/mindwell-health/practice-platform/internal/therapy"
	"github.com/mindwell-health/practice-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	TherapyHandler     *therapy.Handler
	AbsenceHandler     *absence.Handler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
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

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Tenant-scoped scheduling API
	if cfg.TherapyHandler != nil {
		r.Group(func(api chi.Router) {
			api.Use(requireTenantID)

			api.Route("/therapy-requests", func(tr chi.Router) {
				tr.Post("/", cfg.TherapyHandler.CreateRequest)
				tr.Get("/", cfg.TherapyHandler.ListRequests)
				tr.Get("/{requestID}", cfg.TherapyHandler.GetRequest)
				tr.Delete("/{requestID}", cfg.TherapyHandler.DeleteRequest)
			})
			api.Get("/counselors/{counselorID}/sessions", cfg.TherapyHandler.ListCounselorSessions)
			api.Route("/sessions/{sessionID}", func(sr chi.Router) {
				sr.Put("/", cfg.TherapyHandler.UpdateSession)
				sr.Post("/no-show", cfg.TherapyHandler.MarkNoShow)
				sr.Post("/cancel", cfg.TherapyHandler.CancelSession)
			})
		})
	}

	// Admin surface (JWT-protected)
	if cfg.AbsenceHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(requireTenantID)
			admin.Post("/absences", cfg.AbsenceHandler.Create)
			admin.Get("/counselors/{counselorID}/absences", cfg.AbsenceHandler.ListByCounselor)
		})
	}

	return r
}
