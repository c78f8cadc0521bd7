package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/sitequeue/internal/api"
	"github.com/timmy/sitequeue/internal/api/handler"
	"github.com/timmy/sitequeue/internal/config"
	"github.com/timmy/sitequeue/internal/logger"
	"github.com/timmy/sitequeue/internal/repository"
	"github.com/timmy/sitequeue/internal/service"
	"github.com/timmy/sitequeue/internal/storage"
)

func main() {
	// Initialize logger from LOG_* environment variables
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	requestRepo := repository.NewAIRequestRepository(db)
	sessionRepo := repository.NewSiteSessionRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Object storage is optional; without it asset uploads answer 503
	var objectStorage storage.ObjectStorage
	if cfg.Storage.Enabled() {
		objectStorage, err = storage.NewStorage(&cfg.Storage)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	} else {
		appLogger.Warn("Object storage not configured, asset uploads disabled")
	}

	// Initialize services
	workflowService := service.NewWorkflowService(requestRepo, appLogger)
	queueService := service.NewQueueService(requestRepo, workflowService, appLogger, &service.QueueConfig{
		RequestTTL: cfg.Queue.RequestTTL,
	})
	completionService := service.NewCompletionService(requestRepo, workflowService)
	pollingService := service.NewPollingService(requestRepo, sessionRepo, appLogger, &service.PollingConfig{
		Interval:    cfg.Polling.Interval,
		MaxDuration: cfg.Polling.MaxDuration,
	})
	sweeper := service.NewSweeper(requestRepo, workflowService, appLogger, &service.SweepConfig{
		RequestTTL: cfg.Queue.RequestTTL,
		StaleAfter: cfg.Queue.AssignmentStaleAfter,
		BatchSize:  cfg.Queue.SweepBatchSize,
		Schedule:   cfg.Queue.SweepSchedule,
	})
	generationService := service.NewGenerationService(requestRepo, &service.GenerationConfig{
		Enabled:         cfg.Generation.Enabled,
		Model:           cfg.Generation.Model,
		APIKey:          cfg.Generation.APIKey,
		BaseURL:         cfg.Generation.BaseURL,
		Timeout:         cfg.Generation.Timeout,
		MaxTokens:       cfg.Generation.MaxTokens,
		CostPer1KTokens: cfg.Generation.CostPer1KTokens,
	})
	if generationService.Enabled() {
		appLogger.WithField("model", cfg.Generation.Model).Info("AI draft generation enabled")
	}
	assetService := service.NewAssetService(objectStorage, requestRepo, cfg.Storage.MaxUploadBytes)

	if cfg.Queue.SweepEnabled {
		if err := sweeper.Start(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to start expiry sweep")
		}
	}

	// Setup router
	handlers := api.NewHandlers(db,
		handler.NewWizardHandler(queueService, pollingService),
		handler.NewAdminHandler(handler.AdminServices{
			Queue:      queueService,
			Workflow:   workflowService,
			Completion: completionService,
			Sweeper:    sweeper,
			Generation: generationService,
			Assets:     assetService,
		}),
	)
	router := api.SetupRouter(handlers, &cfg.Server, appLogger)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	appLogger.Info("Server exited")
}
