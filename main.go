package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/bidmaster/bidmaster/app/db"
	appLogger "github.com/bidmaster/bidmaster/app/logger"
	mirrordb "github.com/bidmaster/bidmaster/app/mirror"
	"github.com/bidmaster/bidmaster/app/observability/metrics"
	"github.com/bidmaster/bidmaster/app/tracer"
	"github.com/bidmaster/bidmaster/config"
	"github.com/bidmaster/bidmaster/internal/api/admin"
	"github.com/bidmaster/bidmaster/internal/api/auth"
	"github.com/bidmaster/bidmaster/internal/api/notifications"
	"github.com/bidmaster/bidmaster/internal/api/products"
	"github.com/bidmaster/bidmaster/internal/mirror"
	"github.com/bidmaster/bidmaster/internal/push"
	"github.com/bidmaster/bidmaster/internal/router"
	"github.com/bidmaster/bidmaster/internal/scheduler"
	"github.com/bidmaster/bidmaster/internal/types"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger(cfg.Mode)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Relational store (authoritative) ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Document mirror (best-effort projection) ---
	mirrorStore, err := mirrordb.NewStore(ctx, cfg.Repositories.Mongo.URI, cfg.Repositories.Mongo.DB)
	if err != nil {
		logger.Error("Failed to connect to mirror store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mirrorStore.Close(context.Background()); err != nil {
			logger.Warn("Error disconnecting mirror store", slog.Any("error", err))
		}
	}()
	if err := mirrorStore.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to ensure mirror indexes", slog.Any("error", err))
	}

	// --- Observability ---
	tracer.InitMetrics(cfg.Server.MetricsPort)
	metrics.InitAppMetrics()

	// --- Dependency wiring ---
	syncer := mirror.NewSyncer(mirror.NewMongoStore(mirrorStore.Products()), logger)

	notificationRepo := notifications.NewPostgresNotificationRepo(pool, logger)
	dispatcher := notifications.NewDispatcher(notificationRepo, newPushSender(cfg.Push, logger), logger)

	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	otpStore := auth.NewOTPStore(cfg.OTP)
	authService := auth.NewServiceImpl(authRepo, otpStore, &auth.LogSMSSender{Logger: logger},
		cfg.JWT, cfg.Mode != "production", logger)
	authHandler := auth.NewHandlerImpl(authService, logger)

	productRepo := products.NewPostgresProductRepo(pool, logger)
	productService := products.NewServiceImpl(productRepo, syncer, dispatcher, logger)
	productHandler := products.NewHandlerImpl(productService, logger)

	adminRepo := admin.NewPostgresAdminRepo(pool, logger)
	adminService := admin.NewServiceImpl(adminRepo, syncer, dispatcher, logger)
	adminHandler := admin.NewHandlerImpl(adminService, logger)

	notificationHandler := notifications.NewHandlerImpl(notificationRepo, logger)

	closer := scheduler.NewCloser(scheduler.NewPostgresStoreRepo(pool, logger),
		syncer, dispatcher, cfg.Scheduler, logger)
	// Change-trigger: every mirror write rechecks the product for a
	// just-passed end time.
	syncer.SetOnWrite(closer.Recheck)
	go closer.Run(ctx)

	// --- Router ---
	mainRouter := router.SetupRouter(&router.Config{
		AuthHandler:         authHandler,
		ProductHandler:      productHandler,
		AdminHandler:        adminHandler,
		NotificationHandler: notificationHandler,
		Authenticate:        auth.Authenticate(logger, cfg.JWT),
		RequireSeller:       auth.RequireRole(logger, string(types.RoleSeller), string(types.RoleAdmin)),
		RequireAdmin:        auth.RequireRole(logger, string(types.RoleAdmin)),
	})

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", mainRouter)

	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// newPushSender returns the FCM-compatible sender when push delivery is
// enabled and the log-only sender otherwise.
func newPushSender(cfg config.PushConfig, logger *slog.Logger) push.Sender {
	if cfg.Enabled && cfg.ServerKey != "" {
		return push.NewFCMSender(cfg.Endpoint, cfg.ServerKey)
	}
	logger.Info("Push delivery disabled, using log sender")
	return &push.LogSender{Logger: logger}
}

// setupLogger configures the application logger: colored tint output in
// development, JSON in production.
func setupLogger(mode string) *slog.Logger {
	if mode == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))
}
