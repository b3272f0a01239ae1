package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"fredserve/internal/api"
	"fredserve/internal/api/handler"
	"fredserve/internal/app/service"
	"fredserve/internal/app/worker"
	"fredserve/internal/domain/repository"
	"fredserve/internal/fred"
	"fredserve/internal/output"
	"fredserve/internal/platform/config"
	"fredserve/internal/platform/logging"
)

func main() {
	// 1. Load Configuration
	config.Load()
	cfg := config.AppConfig

	// 2. Initialize Logging
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	logrus.Info("Configuration loaded.")

	if cfg.FREDAPIKey == "" {
		logrus.Warn("FRED_API_KEY is not set; upstream requests will be rejected.")
	}

	// 3. Initialize Storage
	resolver := output.NewPathResolver(cfg.StorageDir)
	if err := os.MkdirAll(resolver.Root(), 0o755); err != nil {
		logrus.Fatalf("Could not create storage directory %s: %v", resolver.Root(), err)
	}
	logrus.Infof("Storage rooted at %s", resolver.Root())

	// 4. Initialize FRED Client & Endpoint APIs
	client := fred.NewClient(fred.ClientConfig{
		APIKey:               cfg.FREDAPIKey,
		BaseURL:              cfg.FREDBaseURL,
		Timeout:              cfg.ClientTimeout,
		MaxRequestsPerMinute: cfg.MaxRequestsPerMinute,
		MaxRetries:           cfg.ClientMaxRetries,
		BaseDelay:            cfg.ClientBaseDelay,
		BackoffFactor:        cfg.ClientBackoffFactor,
		Jitter:               cfg.ClientRetryJitter,
	})
	categories := fred.NewCategoryAPI(client)
	series := fred.NewSeriesAPI(client)
	releases := fred.NewReleaseAPI(client)
	sources := fred.NewSourceAPI(client)
	tags := fred.NewTagAPI(client)
	maps := fred.NewMapsAPI(client)

	// 5. Initialize Jobs & Worker
	jobRepo := repository.NewInMemoryJobRepository()
	jobs := service.NewJobManager(jobRepo, cfg.JobRetention)
	backgroundWorker := worker.NewBackgroundWorker(jobs, cfg.JobMaxRetries, cfg.JobInitialRetryDelay, cfg.JobBackoffFactor)
	backgroundWorker.Start()
	logrus.Info("Background worker started.")

	// 6. Initialize Output Routing
	estimator := output.NewTokenEstimator(cfg.AssumeContextUsed, cfg.SafeTokenLimit)
	flattener := output.NewFlattener()
	writer := output.NewFileWriter()
	router := service.NewOutputRouter(cfg, estimator, flattener, resolver, writer, jobs)

	// 7. Initialize Services & Registry
	dataService := service.NewDataService(cfg, series, jobs, backgroundWorker, router)
	registry := api.NewRegistry(api.ToolDeps{
		Categories: categories,
		Series:     series,
		Releases:   releases,
		Sources:    sources,
		Tags:       tags,
		Maps:       maps,
		Router:     router,
		Data:       dataService,
	})

	// 8. Initialize Router & HTTP Server
	httpHandler := api.NewRouter(api.RouterDeps{
		Tools:    handler.NewToolsHandler(registry),
		Jobs:     handler.NewJobHandler(jobs),
		Projects: handler.NewProjectHandler(resolver),
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      httpHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logrus.Infof("Server starting on port %s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Could not listen on %s: %v", cfg.APIPort, err)
		}
	}()
	logrus.Info("Server started successfully.")

	<-stop // Wait for interrupt signal

	logrus.Info("Shutting down server...")
	backgroundWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	logrus.Info("Server and worker stopped gracefully.")
}
