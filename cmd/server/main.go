package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/visitreg/server/internal/config"
	"github.com/visitreg/server/internal/handlers"
	custommw "github.com/visitreg/server/internal/middleware"
	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/observability"
	"github.com/visitreg/server/internal/repository"
	"github.com/visitreg/server/internal/services"
)

const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize telemetry
	ctx := context.Background()
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("visitreg-server", serviceVersion))
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Telemetry shutdown error: %v", err)
		}
	}()

	// Initialize database
	var db *sql.DB
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
		}
	} else {
		log.Println("Using SQLite database")
		db, err = repository.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite database: %v", err)
		}
	}
	defer db.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	visitorRepo := repository.NewVisitorRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	shareRepo := repository.NewShareRepository(db)
	resetTokenRepo := repository.NewPasswordResetTokenRepository(db)

	// File storage
	visitorStorage, err := services.NewFileStorageService(
		cfg.VisitorStorage.BasePath,
		cfg.VisitorStorage.AllowedExtensions,
		cfg.VisitorStorage.MaxFileSizeMB,
	)
	if err != nil {
		log.Fatalf("Failed to initialize visitor storage: %v", err)
	}
	documentStorage, err := services.NewFileStorageService(
		cfg.DocumentStorage.BasePath,
		cfg.DocumentStorage.AllowedExtensions,
		cfg.DocumentStorage.MaxFileSizeMB,
	)
	if err != nil {
		log.Fatalf("Failed to initialize document storage: %v", err)
	}

	// WebSocket hub: session registry and notification channel in one
	hub := services.NewWebSocketHub()
	go hub.Run()

	// Services
	stores := map[models.SubjectKind]services.ArtifactStore{
		models.SubjectVisitor:  services.NewVisitorArtifactStore(visitorRepo, visitorStorage),
		models.SubjectDocument: services.NewDocumentArtifactStore(documentRepo, documentStorage),
	}
	shareService := services.NewShareService(shareRepo, userRepo, stores)
	visitorService := services.NewVisitorService(visitorRepo, shareService, visitorStorage)
	documentService := services.NewDocumentService(documentRepo, shareService, documentStorage)
	userService := services.NewUserService(userRepo)
	authService := services.NewAuthService(userRepo, sessionRepo, cfg.Security.SessionDurationHours)
	smtpService := services.NewSMTPService(cfg.SMTP)
	passwordResetService := services.NewPasswordResetService(userRepo, resetTokenRepo, smtpService)

	// Metrics
	businessMetrics, err := observability.NewBusinessMetrics()
	if err != nil {
		log.Printf("Failed to initialize business metrics: %v", err)
	}

	notifier := services.NewNotifierService(shareRepo, userRepo, hub, hub, cfg.Notifier.IntervalSeconds)
	notifier.SetMetrics(businessMetrics)
	if cfg.Notifier.Enabled && cfg.Notifier.AutoStart {
		notifier.Start()
		defer notifier.Stop()
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		log.Printf("Failed to initialize HTTP metrics: %v", err)
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, passwordResetService, businessMetrics)
	userHandler := handlers.NewUserHandler(userService)
	visitorHandler := handlers.NewVisitorHandler(visitorService, businessMetrics)
	documentHandler := handlers.NewDocumentHandler(documentService, businessMetrics)
	shareHandler := handlers.NewShareHandler(shareService, businessMetrics)
	wsHandler := handlers.NewWebSocketHandler(hub, notifier, businessMetrics)
	healthHandler := handlers.NewHealthHandler(db, notifier, hub)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.TracingMiddleware("visitreg-server"))
	if httpMetrics != nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	}

	// Public routes
	r.Get("/health", healthHandler.Health)
	r.Get("/api/health", healthHandler.Health)
	r.Post("/api/auth/register", authHandler.Register)
	r.Post("/api/auth/login", authHandler.Login)
	r.Post("/api/auth/password-reset/request", authHandler.RequestPasswordReset)
	r.Post("/api/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(custommw.SessionAuth(authService))

		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.List)
			r.Get("/{id}", userHandler.Get)
			r.Put("/{id}", userHandler.Update)
			r.Delete("/{id}", userHandler.Delete)
		})

		r.Route("/api/visitors", func(r chi.Router) {
			r.Post("/", visitorHandler.Create)
			r.Get("/", visitorHandler.List)
			r.Get("/export", visitorHandler.Export)
			r.Post("/import", visitorHandler.Import)
			r.Get("/{id}", visitorHandler.Get)
			r.Put("/{id}/exit", visitorHandler.RecordExit)
			r.Delete("/{id}", visitorHandler.Delete)
		})

		r.Route("/api/documents", func(r chi.Router) {
			r.Post("/", documentHandler.Upload)
			r.Get("/", documentHandler.List)
			r.Get("/{id}", documentHandler.Get)
			r.Get("/{id}/download", documentHandler.Download)
			r.Delete("/{id}", documentHandler.Delete)
		})

		r.Route("/api/shares", func(r chi.Router) {
			r.Post("/", shareHandler.Create)
			r.Get("/inbox", shareHandler.Inbox)
			r.Get("/history", shareHandler.History)
			r.Post("/{id}/accept", shareHandler.Accept)
			r.Post("/{id}/revoke", shareHandler.Revoke)
		})

		r.Get("/ws", wsHandler.HandleConnection)
	})

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Longer for uploads
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Visitor Register Server starting on %s", cfg.ServerAddress)
		log.Printf("Visitor photo storage: %s", cfg.VisitorStorage.BasePath)
		log.Printf("Document storage: %s", cfg.DocumentStorage.BasePath)
		if cfg.Notifier.Enabled {
			log.Printf("Share notifier polling every %ds", cfg.Notifier.IntervalSeconds)
		}

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
