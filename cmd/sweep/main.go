package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/sitequeue/internal/config"
	"github.com/timmy/sitequeue/internal/logger"
	"github.com/timmy/sitequeue/internal/repository"
	"github.com/timmy/sitequeue/internal/service"
)

func main() {
	// Initialize logger from LOG_* environment variables
	logCfg := logger.LoadFromEnv()
	if logCfg.ServiceName == "sitequeue" {
		logCfg.ServiceName = "sitequeue-sweep"
	}
	appLogger := logger.NewFromEnv(logCfg)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	showStats := flag.Bool("stats", false, "Log queue depth per status after the sweep")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	requestRepo := repository.NewAIRequestRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	workflowService := service.NewWorkflowService(requestRepo, appLogger)
	sweeper := service.NewSweeper(requestRepo, workflowService, appLogger, &service.SweepConfig{
		RequestTTL: cfg.Queue.RequestTTL,
		StaleAfter: cfg.Queue.AssignmentStaleAfter,
		BatchSize:  cfg.Queue.SweepBatchSize,
	})

	stats, err := sweeper.RunOnce(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Sweep failed")
	}
	appLogger.WithFields(logger.Fields{
		"scanned":  stats.Scanned,
		"expired":  stats.Expired,
		"released": stats.Released,
		"skipped":  stats.Skipped,
		"errors":   stats.Errors,
	}).Info("Sweep completed")

	if *showStats {
		queueService := service.NewQueueService(requestRepo, workflowService, appLogger, &service.QueueConfig{
			RequestTTL: cfg.Queue.RequestTTL,
		})
		depth, err := queueService.Stats(ctx)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to read queue stats")
		}
		fields := logger.Fields{"total": depth.Total, "open": depth.Open}
		for status, n := range depth.ByStatus {
			fields[string(status)] = n
		}
		appLogger.WithFields(fields).Info("Queue depth")
	}
}
