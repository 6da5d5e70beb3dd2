package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/aashishaacharya/IMUdb-web/internal/auth"
	"github.com/aashishaacharya/IMUdb-web/internal/config"
	"github.com/aashishaacharya/IMUdb-web/internal/db"
	"github.com/aashishaacharya/IMUdb-web/internal/edgefn"
	"github.com/aashishaacharya/IMUdb-web/internal/logging"
	"github.com/aashishaacharya/IMUdb-web/internal/middleware"
	"github.com/aashishaacharya/IMUdb-web/internal/repository"
	"github.com/aashishaacharya/IMUdb-web/internal/review"
	"github.com/aashishaacharya/IMUdb-web/internal/workflow"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := os.Getenv("IMUDB_CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "imudb-review")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	var (
		edits    repository.PendingEditRepository
		sites    repository.SiteRepository
		profiles repository.ProfileRepository
		applier  repository.EditApplier
	)

	switch cfg.Database.Driver {
	case config.DriverMemory:
		store := repository.NewMemoryStore()
		edits, sites, profiles, applier = store, store, store.Profiles(), store
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		conn, err := db.NewConnection(ctx, cfg.Database.Config, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer conn.Close()

		if err := db.RunMigrations(conn.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}

		edits = repository.NewPendingEditRepository(conn.Pool)
		sites = repository.NewSiteRepository(conn.Pool)
		profiles = repository.NewProfileRepository(conn.Pool)
		applier = repository.NewSQLEditApplier(conn)
	}

	if cfg.Apply.Mode == config.ApplyModeEdgeFunction {
		applier = edgefn.NewApplier(cfg.Apply.FunctionURL, cfg.Apply.ServiceKey, cfg.Apply.Timeout, logger)
	}

	service := workflow.NewService(edits, applier,
		workflow.WithLogger(logger),
		workflow.WithCallTimeout(cfg.Workflow.CallTimeout),
		workflow.WithSiteRepository(sites),
	)

	validator, err := auth.NewTokenValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		logger.Fatal("failed to create token validator", zap.Error(err))
	}
	authMiddleware := auth.NewMiddleware(validator, profiles, auth.SessionOptions{
		ProfileRetries: cfg.Auth.ProfileRetries,
		ProfileBackoff: cfg.Auth.ProfileBackoff,
		Logger:         logger,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
	})

	apiHandler := middleware.LoggingMiddleware(logger)(
		authMiddleware(
			middleware.DataLoaderMiddleware(profiles)(review.NewHTTPHandler(service, logger)),
		),
	)

	mux := http.NewServeMux()
	mux.Handle("/", corsHandler.Handler(apiHandler))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting review API",
			zap.String("addr", cfg.Server.Addr),
			zap.String("driver", cfg.Database.Driver),
			zap.String("apply_mode", cfg.Apply.Mode),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
