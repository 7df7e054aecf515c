package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/giygas/snomed-normalform/config"
	"github.com/giygas/snomed-normalform/data"
	"github.com/giygas/snomed-normalform/handlers"
	"github.com/giygas/snomed-normalform/health"
	"github.com/giygas/snomed-normalform/logging"
	"github.com/giygas/snomed-normalform/rf2parser"
	"github.com/giygas/snomed-normalform/scheduler"
	"github.com/giygas/snomed-normalform/server"
	"github.com/giygas/snomed-normalform/validation"
)

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.InitLoggerWithOptions("logs", logging.Options{
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer logging.Shutdown()

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())

	loaderOptions := []rf2parser.Option{rf2parser.WithAncestorCacheSize(cfg.AncestorCacheSize)}
	if cfg.ReleaseURL != "" {
		loaderOptions = append(loaderOptions, rf2parser.WithDownload(cfg.ReleaseURL, cfg.DownloadRetries))
	}
	loader := rf2parser.NewLoader(cfg.ReleaseDir, loaderOptions...)

	validator := validation.NewDataValidator(cfg.MaxExpressionDepth)

	reloads := scheduler.NewScheduler(dataContainer, loader, validator, cfg.ReloadTimes)
	if err := reloads.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		logging.Shutdown()
		os.Exit(1)
	}
	defer reloads.Stop()

	healthChecker := health.NewHealthChecker(dataContainer, cfg.ReloadTimes)
	httpHandler := handlers.NewHTTPHandler(dataContainer, validator, healthChecker)
	srv := server.NewServer(cfg, httpHandler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logging.Error("Server failed", "error", err)
		}
	case sig := <-quit:
		logging.Info("Received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logging.Error("Graceful shutdown failed", "error", err)
		}
	}
}

// loadEnv reads .env from the working directory, then from the executable's directory
func loadEnv() error {
	if err := godotenv.Load(); err == nil {
		return nil
	}

	ex, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	exPath := filepath.Dir(ex)
	if err := os.Chdir(exPath); err != nil {
		return fmt.Errorf("failed to change directory: %w", err)
	}

	// variables may come from the environment alone
	_ = godotenv.Load()
	return nil
}
