// Package app provides the main application context for pxedeck, managing
// the database and services.
package app

import (
	"os"

	"gorm.io/gorm"

	"github.com/pxedeck/pxedeck/broadcast"
	"github.com/pxedeck/pxedeck/config"
	"github.com/pxedeck/pxedeck/db"
	"github.com/pxedeck/pxedeck/imaging"
	"github.com/pxedeck/pxedeck/repository"
	"github.com/pxedeck/pxedeck/scheduler"
)

var (
	// Version is set at build time via -ldflags
	Version = "dev"

	database         *gorm.DB
	eventHub         *broadcast.Hub
	schedulerService *scheduler.Service
	appConfig        *config.Config
)

// InitializeWithConfig initializes the app with a pre-configured Config
func InitializeWithConfig(cfg *config.Config) error {
	var err error

	appConfig = cfg

	// Ensure required directories exist
	if err := os.MkdirAll(appConfig.DataDir, 0755); err != nil {
		return err
	}

	// Initialize database using config
	database, err = db.InitDB(appConfig.DataDir)
	if err != nil {
		return err
	}

	// Run database migrations
	if err := db.AutoMigrateAll(database); err != nil {
		return err
	}

	// Initialize repositories
	deploymentRepo := repository.NewDeploymentRepository(database)
	taskRunRepo := repository.NewTaskRunRepository(database)

	eventHub = broadcast.NewHub()

	var executor scheduler.Executor
	if appConfig.ImagingAgentURL != "" {
		executor = imaging.NewHTTPExecutor(appConfig.ImagingAgentURL)
	} else {
		executor = imaging.NewLogExecutor()
	}

	// Initialize services with dependency injection
	schedulerService = scheduler.NewService(
		deploymentRepo,
		taskRunRepo,
		executor,
		eventHub,
		appConfig.PollInterval,
	)
	return nil
}

func GetSchedulerService() *scheduler.Service {
	return schedulerService
}

func GetHub() *broadcast.Hub {
	return eventHub
}

func GetConfig() *config.Config {
	return appConfig
}

// SetSchedulerServiceForTesting allows overriding the scheduler service for testing purposes
func SetSchedulerServiceForTesting(service *scheduler.Service) {
	schedulerService = service
}

// SetHubForTesting allows overriding the event hub for testing purposes
func SetHubForTesting(hub *broadcast.Hub) {
	eventHub = hub
}
