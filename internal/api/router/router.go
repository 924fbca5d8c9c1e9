package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/careconnect-platform/internal/appointments"
	"github.com/wolfman30/careconnect-platform/internal/dashboard"
	"github.com/wolfman30/careconnect-platform/internal/directory"
	"github.com/wolfman30/careconnect-platform/internal/documents"
	httpmiddleware "github.com/wolfman30/careconnect-platform/internal/http/middleware"
	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/internal/notifications"
	"github.com/wolfman30/careconnect-platform/internal/schedule"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes
// unregistered.
type Config struct {
	Logger             *logging.Logger
	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	MetricsHandler     http.Handler

	Schedule      *schedule.Handler
	Appointments  *appointments.Handler
	Notifications *notifications.Handler
	Directory     *directory.Handler
	Documents     *documents.Handler
	Dashboard     *dashboard.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimiter != nil {
		limit = cfg.RateLimiter.Middleware
	}

	r.Route("/api", func(api chi.Router) {
		// Anonymous browsing: search, profiles, hours and availability.
		api.Group(func(public chi.Router) {
			public.Use(limit)
			if cfg.Directory != nil {
				public.Get("/providers", cfg.Directory.SearchProviders)
				public.Get("/centers", cfg.Directory.SearchCenters)
				public.Get("/providers/{providerID}", cfg.Directory.GetProvider)
			}
			if cfg.Schedule != nil {
				public.Get("/providers/{providerID}/opening-hours", cfg.Schedule.GetProviderHours)
				public.Get("/centers/{centerID}/opening-hours", cfg.Schedule.GetCenterHours)
				public.Get("/centers/{centerID}/slots", cfg.Schedule.CenterSlots)
			}
			if cfg.Appointments != nil {
				public.Get("/providers/{providerID}/availability", cfg.Appointments.Availability)
			}
		})

		api.Group(func(authed chi.Router) {
			authed.Use(identity.Middleware(cfg.JWTSecret))
			authed.Use(limit)

			authed.Group(func(patient chi.Router) {
				patient.Use(identity.RequireRole(identity.RolePatient))
				if cfg.Appointments != nil {
					patient.Post("/providers/{providerID}/appointments", cfg.Appointments.Book)
					patient.Get("/patient/appointments", cfg.Appointments.ListForPatient)
				}
				if cfg.Directory != nil {
					patient.Post("/providers/{providerID}/reviews", cfg.Directory.AddReview)
				}
				if cfg.Documents != nil {
					patient.Get("/patient/documents", cfg.Documents.List)
					patient.Post("/patient/documents", cfg.Documents.Upload)
					patient.Get("/patient/documents/summary", cfg.Documents.Summary)
					patient.Delete("/patient/documents/{documentID}", cfg.Documents.Delete)
				}
			})

			if cfg.Appointments != nil {
				authed.With(identity.RequireRole(identity.RolePatient, identity.RoleProvider, identity.RoleAdmin)).
					Post("/appointments/{appointmentID}/cancel", cfg.Appointments.Cancel)
				authed.With(identity.RequireRole(identity.RolePatient, identity.RoleProvider, identity.RoleAdmin)).
					Post("/appointments/{appointmentID}/reschedule", cfg.Appointments.Reschedule)
				authed.With(identity.RequireRole(identity.RoleProvider)).
					Post("/appointments/{appointmentID}/confirm", cfg.Appointments.Confirm)
			}

			authed.Route("/hp", func(hp chi.Router) {
				hp.Use(identity.RequireRole(identity.RoleProvider))
				if cfg.Appointments != nil {
					hp.Get("/appointments", cfg.Appointments.ListForProvider)
				}
				if cfg.Schedule != nil {
					hp.Put("/opening-hours", cfg.Schedule.PutProviderHours)
					hp.Get("/absences", cfg.Schedule.ListAbsences)
					hp.Post("/absences", cfg.Schedule.CreateAbsence)
					hp.Delete("/absences/{absenceID}", cfg.Schedule.DeleteAbsence)
				}
				if cfg.Directory != nil {
					hp.Post("/invitations/{notificationID}/accept", cfg.Directory.AcceptInvitation)
					hp.Post("/credentials", cfg.Directory.SubmitCredential)
				}
			})

			authed.Route("/hc", func(hc chi.Router) {
				hc.Use(identity.RequireRole(identity.RoleCenter))
				if cfg.Schedule != nil {
					hc.Put("/opening-hours", cfg.Schedule.PutCenterHours)
				}
				if cfg.Directory != nil {
					hc.Post("/invitations", cfg.Directory.Invite)
					hc.Get("/team", cfg.Directory.Team)
				}
			})

			authed.Route("/admin", func(admin chi.Router) {
				admin.Use(identity.RequireRole(identity.RoleAdmin))
				if cfg.Dashboard != nil {
					admin.Get("/dashboard", cfg.Dashboard.Overview)
					admin.Get("/providers/pending", cfg.Dashboard.PendingProviders)
				}
				if cfg.Directory != nil {
					admin.Post("/providers/{providerID}/verification", cfg.Directory.SetVerification)
				}
			})

			if cfg.Notifications != nil {
				authed.Get("/notifications", cfg.Notifications.List)
				authed.Post("/notifications/{notificationID}/read", cfg.Notifications.MarkAsRead)
				authed.Post("/notifications/{notificationID}/archive", cfg.Notifications.Archive)
				authed.Get("/ws/notifications", cfg.Notifications.Socket)
			}
		})
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
