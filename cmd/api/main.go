package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ridelink/identity/internal/auth"
	"github.com/ridelink/identity/internal/background"
	"github.com/ridelink/identity/internal/config"
	"github.com/ridelink/identity/internal/database"
	"github.com/ridelink/identity/internal/handlers"
	middlewareCustom "github.com/ridelink/identity/internal/middleware"
	"github.com/ridelink/identity/internal/ratelimit"
	"github.com/ridelink/identity/internal/repositories"
	"github.com/ridelink/identity/internal/routes"
	"github.com/ridelink/identity/internal/security"
	"github.com/ridelink/identity/internal/services"
	pkgauth "github.com/ridelink/identity/pkg/auth"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_backend", cfg.Server.StoreBackend))

	// Account store: postgres in production, in-memory for local development
	var store services.AccountStore
	var db *database.DB
	if cfg.Server.StoreBackend == "postgres" {
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := database.Migrate(migrateCtx, cfg.Database.DSN()); err != nil {
			cancel()
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
		cancel()

		store = repositories.NewAccountRepository(db)
	} else {
		store = repositories.NewMemoryAccountStore()
	}

	// Core security services
	limiter := ratelimit.New(logger,
		ratelimit.WithActionConfig("login", ratelimit.Config{
			MaxRequests: cfg.Auth.LoginMaxAttempts,
			Window:      cfg.Auth.LoginWindow,
		}),
		ratelimit.WithActionConfig("login_role", ratelimit.Config{
			MaxRequests: cfg.Auth.LoginMaxAttempts,
			Window:      cfg.Auth.LoginWindow,
		}),
		ratelimit.WithActionConfig("register", ratelimit.Config{
			MaxRequests: cfg.Auth.RegisterMaxAttempts,
			Window:      cfg.Auth.RegisterWindow,
		}),
	)

	events := security.NewEventLog(logger, security.WithCapacity(cfg.Auth.EventLogCapacity))
	sessions := auth.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.SessionExpiry)

	identityService := services.NewIdentityService(
		store,
		pkgauth.BcryptVerifier{},
		limiter,
		events,
		sessions,
		logger,
		services.WithBruteForceDetection(cfg.Auth.BruteForceThreshold, cfg.Auth.BruteForceWindow),
	)

	// Handlers
	authHandler := handlers.NewAuthHandler(identityService)
	adminHandler := handlers.NewAdminHandler(identityService, events)

	// Background sweep of expired rate limit entries
	cleanupManager := background.NewCleanupManager(limiter, logger, cfg.Auth.CleanupInterval)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(cfg.Server.Env))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, adminHandler, sessions)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.HealthCheck(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped")
}
