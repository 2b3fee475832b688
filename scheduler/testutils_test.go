package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pxedeck/pxedeck/broadcast"
	"github.com/pxedeck/pxedeck/db"
	"github.com/pxedeck/pxedeck/domain"
	"github.com/pxedeck/pxedeck/repository"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	database, err := db.InitDatabase(db.DBConfig{
		Path:     ":memory:",
		LogLevel: logger.Silent,
	})
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	if err := db.AutoMigrateAll(database); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return database
}

// fakeExecutor records execution signals from the scheduler
type fakeExecutor struct {
	mu      sync.Mutex
	started []uuid.UUID
	err     error
}

func (f *fakeExecutor) StartDeployment(_ context.Context, deployment *domain.Deployment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, deployment.ID)
	return nil
}

func (f *fakeExecutor) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

// fakeClock is a settable time source
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type testEnv struct {
	service     *Service
	deployments repository.DeploymentRepository
	taskRuns    repository.TaskRunRepository
	executor    *fakeExecutor
	hub         *broadcast.Hub
	clock       *fakeClock
}

func setupTestEnv(t *testing.T, at time.Time) *testEnv {
	database := setupTestDB(t)
	deployments := repository.NewDeploymentRepository(database)
	taskRuns := repository.NewTaskRunRepository(database)
	executor := &fakeExecutor{}
	hub := broadcast.NewHub()
	clock := &fakeClock{t: at}

	service := NewService(deployments, taskRuns, executor, hub, time.Second,
		WithClock(clock.Now))

	return &testEnv{
		service:     service,
		deployments: deployments,
		taskRuns:    taskRuns,
		executor:    executor,
		hub:         hub,
		clock:       clock,
	}
}
