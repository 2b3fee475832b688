// Package server implements the unified server command for running both the
// HTTP API and the deployment scheduler.
package server

import (
	"context"
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
	"github.com/spf13/cobra"

	"github.com/pxedeck/pxedeck/app"
	"github.com/pxedeck/pxedeck/config"
	"github.com/pxedeck/pxedeck/logging"
	"github.com/pxedeck/pxedeck/web/routes"
)

// NewCmdServer creates a command to run the API server and scheduler
func NewCmdServer() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run pxedeck server (HTTP API + deployment scheduler)",
		Long:  "Starts the HTTP API, the live event stream and the deployment scheduler in a single process",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runServer(configPath)
		},
	}

	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

// runServer runs the API server and the scheduler
func runServer(configPath string) error {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	// Initialize logging
	logging.InitLogging(cfg.LogLevel)

	slog.Info("Starting pxedeck server (API + scheduler)")

	// Initialize application
	if err := app.InitializeWithConfig(cfg); err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go handleShutdown(cancel)

	// Start scheduler in background
	go func() {
		if err := app.GetSchedulerService().Run(ctx); err != nil {
			slog.Error("Scheduler failed", "error", err)
			cancel() // Trigger shutdown
		}
	}()

	// Start web server (blocks until shutdown)
	return startWebServer(ctx, cfg)
}

// startWebServer starts the HTTP server
func startWebServer(ctx context.Context, cfg *config.Config) error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	// Register all routes
	routes.RegisterDeploymentRoutes(r)
	routes.RegisterDeviceRoutes(r)
	routes.RegisterPipelineRoutes(r)
	routes.RegisterEventRoutes(r)
	routes.RegisterUtilityRoutes(r)

	// Create HTTP server
	address := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	server := &http.Server{
		Addr:    address,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server starting on http://%s", address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server failed", "error", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown
	slog.Info("Shutting down API server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}

	slog.Info("API server stopped")
	return nil
}

// handleShutdown handles OS signals for graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	slog.Info("Shutdown signal received")
	cancel()
}
