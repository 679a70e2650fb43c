package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/ridelink/identity/internal/auth"
	"github.com/ridelink/identity/internal/handlers"
	"github.com/ridelink/identity/internal/middleware"
	"github.com/ridelink/identity/internal/models"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	sessions *auth.SessionManager,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no session required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login/role", authHandler.LoginWithRole)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/register", authHandler.Register)

	// Protected routes - session required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(sessions))

		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Post("/admin/drivers", adminHandler.ProvisionDriver)
			r.Get("/admin/security/events", adminHandler.SecurityEvents)
			r.Get("/admin/security/statistics", adminHandler.SecurityStatistics)
		})
	})
}
