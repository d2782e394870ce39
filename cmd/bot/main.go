package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/vslobodin/channel-mirror-bot/internal/config"
	"github.com/vslobodin/channel-mirror-bot/internal/models"
	"github.com/vslobodin/channel-mirror-bot/internal/orchestrator"
	"github.com/vslobodin/channel-mirror-bot/internal/publisher"
	"github.com/vslobodin/channel-mirror-bot/internal/scheduler"
	"github.com/vslobodin/channel-mirror-bot/internal/sources"
	"github.com/vslobodin/channel-mirror-bot/internal/storage"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting channel mirror bot")

	// Initialize the seen-posts store
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open store: %v", err)
	}

	// Initialize the destination publisher
	telegramPublisher := publisher.NewTelegramPublisher(cfg.TelegramBotToken, cfg.TelegramTargetChatID)

	// Build source adapters from the sources file
	adapters, err := buildAdapters(cfg)
	if err != nil {
		logrus.Fatalf("Failed to build sources: %v", err)
	}

	// Initialize the pipeline
	pipeline, err := orchestrator.NewService(cfg, store, telegramPublisher, adapters)
	if err != nil {
		logrus.Fatalf("Failed to create pipeline: %v", err)
	}

	// Initialize scheduler
	schedulerService := scheduler.NewService(store)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server for health checks and operations
	router := mux.NewRouter()

	// Health check endpoint
	router.HandleFunc("/health", healthCheckHandler(pipeline)).Methods("GET")

	// Metrics endpoint
	router.HandleFunc("/metrics", metricsHandler(pipeline)).Methods("GET")

	// Manual trigger endpoint (for testing)
	router.HandleFunc("/trigger", triggerHandler(pipeline)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Run the pipeline until an interrupt arrives
	ctx, cancel := context.WithCancel(context.Background())
	pipelineDone := make(chan struct{})
	go func() {
		if err := pipeline.Run(ctx); err != nil {
			logrus.Errorf("Pipeline stopped with error: %v", err)
		}
		close(pipelineDone)
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")
	cancel()

	// Create a deadline for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Wait for the pipeline to finish closing its components
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logrus.Error("Pipeline did not shut down in time")
	}

	logrus.Info("Exited")
}

// buildAdapters turns the sources file into ready adapters. Disabled and
// invalid entries are skipped with a log line; an empty result is an error
// handled by the pipeline constructor.
func buildAdapters(cfg *config.Config) ([]orchestrator.SourceAdapter, error) {
	entries, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}

	opts := sources.Options{
		RequestsPerMinute: cfg.RateLimitRequestsPerMinute,
		MaxRetries:        cfg.MaxRetries,
		BaseDelay:         cfg.BaseDelay,
		VKAccessToken:     cfg.VKAccessToken,
		VKAPIVersion:      cfg.VKAPIVersion,
	}

	var adapters []orchestrator.SourceAdapter
	for _, entry := range entries {
		if !entry.IsEnabled() {
			logrus.Infof("Skipping disabled source %s", entry.URL)
			continue
		}

		adapter, err := sources.New(models.Platform(entry.Platform), entry.URL, opts)
		if err != nil {
			logrus.Errorf("Skipping invalid source %s: %v", entry.URL, err)
			continue
		}
		adapters = append(adapters, adapter)
	}

	return adapters, nil
}

func healthCheckHandler(pipeline *orchestrator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","state":%q,"timestamp":%q}`,
			pipeline.GetState(), time.Now().Format(time.RFC3339))
	}
}

func metricsHandler(pipeline *orchestrator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(pipeline.GetMetrics()))
	}
}

func triggerHandler(pipeline *orchestrator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if err := pipeline.RunCycle(context.Background()); err != nil {
				logrus.Errorf("Manual cycle trigger failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Cycle triggered successfully"}`))
	}
}
