package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Health             *handlers.HealthHandler
	Slots              *handlers.SlotsHandler
	Bookings           *handlers.BookingHandler
	Services           *handlers.ServicesHandler
	AdminBookings      *handlers.AdminBookingsHandler
	AdminSchedule      *handlers.AdminScheduleHandler
	CalendarSync       *handlers.CalendarSyncHandler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// RateLimiter guards the public booking endpoints when set.
	RateLimiter *httpmiddleware.RateLimiter
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

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}
	r.Get("/health", health.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Public booking funnel
	r.Group(func(public chi.Router) {
		if cfg.RateLimiter != nil {
			public.Use(cfg.RateLimiter.Middleware)
		}
		if cfg.Services != nil {
			public.Get("/services", cfg.Services.ListServices)
		}
		if cfg.Slots != nil {
			public.Get("/slots", cfg.Slots.GetSlots)
		}
		if cfg.Bookings != nil {
			public.Post("/booking", cfg.Bookings.CreateBooking)
			public.Post("/booking/{id}/cancel", cfg.Bookings.CancelBooking)
		}
	})

	// Staff routes require an HMAC JWT with a staff role.
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.StaffJWT(cfg.AdminAuthSecret))
			if cfg.AdminBookings != nil {
				admin.Get("/bookings", cfg.AdminBookings.ListBookings)
				admin.Post("/bookings/{id}/confirm", cfg.AdminBookings.ConfirmBooking)
				admin.Post("/bookings/{id}/cancel", cfg.AdminBookings.CancelBooking)
				admin.Post("/bookings/{id}/resync", cfg.AdminBookings.ResyncBooking)
			}
			if cfg.AdminSchedule != nil {
				admin.Get("/schedule", cfg.AdminSchedule.GetSchedule)
				admin.Put("/schedule", cfg.AdminSchedule.PutWeekly)
				admin.Put("/schedule/overrides/{date}", cfg.AdminSchedule.PutOverride)
				admin.Delete("/schedule/overrides/{date}", cfg.AdminSchedule.DeleteOverride)
			}
			if cfg.Services != nil {
				admin.Get("/services", cfg.Services.ListAllServices)
				admin.Post("/services", cfg.Services.CreateService)
				admin.Put("/services/{id}", cfg.Services.UpdateService)
			}
			if cfg.CalendarSync != nil {
				admin.Get("/calendar-sync/summary", cfg.CalendarSync.GetSummary)
			}
		})
	}

	return r
}
