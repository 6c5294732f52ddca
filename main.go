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

	database "github.com/dmfonseca/go-task-hub/app/db"
	appLogger "github.com/dmfonseca/go-task-hub/app/logger"
	"github.com/dmfonseca/go-task-hub/app/observability/metrics"
	"github.com/dmfonseca/go-task-hub/config"
	"github.com/dmfonseca/go-task-hub/internal/api/admin"
	"github.com/dmfonseca/go-task-hub/internal/api/auth"
	"github.com/dmfonseca/go-task-hub/internal/api/task"
	"github.com/dmfonseca/go-task-hub/internal/api/user"
	"github.com/dmfonseca/go-task-hub/internal/router"
	"github.com/dmfonseca/go-task-hub/internal/types"
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

	// --- Database ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	// Migrations run before the main pool comes up.
	if err = database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
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

	// --- Metrics ---
	appMetrics, err := metrics.InitAppMetrics()
	if err != nil {
		logger.Error("Failed to initialize metrics", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Dependency Injection ---
	queryTimeout := cfg.Repositories.Postgres.QueryTimeout

	authRepo := auth.NewPostgresAuthRepo(pool, queryTimeout, logger)
	authService := auth.NewAuthService(authRepo, cfg.JWT, cfg.RateLimit.MaxFailedLogins, logger)
	authHandler := auth.NewAuthHandler(authService, appMetrics, logger)

	taskRepo := task.NewPostgresTaskRepo(pool, queryTimeout, logger)
	taskService := task.NewTaskService(taskRepo, logger)
	taskHandler := task.NewTaskHandler(taskService, logger)

	userRepo := user.NewPostgresUserRepo(pool, queryTimeout, logger)
	userService := user.NewUserService(userRepo, taskRepo, logger)
	userHandler := user.NewUserHandler(userService, logger)

	adminRepo := admin.NewPostgresAdminRepo(pool, queryTimeout, logger)
	adminService := admin.NewAdminService(adminRepo, taskRepo, logger)
	adminHandler := admin.NewAdminHandler(adminService, logger)

	// --- Router ---
	apiRouter := router.SetupRouter(&router.Config{
		AuthHandler:            authHandler,
		TaskHandler:            taskHandler,
		UserHandler:            userHandler,
		AdminHandler:           adminHandler,
		AuthenticateMiddleware: auth.Authenticate(authService, cfg.JWT, logger),
		RequireAdmin:           auth.RequireRole(logger, types.RoleAdmin),
		AuthRequestsPerMinute:  cfg.RateLimit.AuthRequestsPerMinute,
	})

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", apiRouter)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	// The scrape endpoint gets its own listener so it is never exposed on
	// the public port.
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.MetricsPort),
		Handler: metrics.Handler(),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	go func() {
		logger.Info("Starting metrics server", slog.String("address", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server ListenAndServe error", slog.Any("error", err))
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
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server graceful shutdown failed", slog.Any("error", err))
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger(mode string) *slog.Logger {
	if mode == "" {
		mode = os.Getenv("APP_ENV")
	}

	if mode == "development" || mode == "" {
		// Colored logs for development.
		logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}))
		log.Println("Initialized development logger (tint)")
		return logger
	}

	// JSON logs for production or other environments.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	log.Println("Initialized production logger (JSON)")
	return logger
}
