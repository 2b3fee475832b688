// Package scheduler turns deployment requests into time-triggered executions
// and drives each execution through its status lifecycle. Multiple scheduler
// instances may run against the same store; the atomic claim in the
// repository is the only synchronization point between them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pxedeck/pxedeck/broadcast"
	"github.com/pxedeck/pxedeck/cronexpr"
	"github.com/pxedeck/pxedeck/domain"
	"github.com/pxedeck/pxedeck/repository"
)

// Executor is the external imaging pipeline. The scheduler only signals it;
// progress and completion come back through the Handle* callbacks.
type Executor interface {
	StartDeployment(ctx context.Context, deployment *domain.Deployment) error
}

// ScheduleRequest describes one schedule call from the API/CLI layer.
type ScheduleRequest struct {
	DeviceID         string
	ImageID          string
	ScheduleType     domain.ScheduleType
	ScheduledFor     *time.Time
	RecurringPattern string
	PostTasks        []string
}

type Service struct {
	deployments  repository.DeploymentRepository
	taskRuns     repository.TaskRunRepository
	executor     Executor
	hub          *broadcast.Hub
	pollInterval time.Duration
	now          func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	deployments repository.DeploymentRepository,
	taskRuns repository.TaskRunRepository,
	executor Executor,
	hub *broadcast.Hub,
	pollInterval time.Duration,
	opts ...Option,
) *Service {
	s := &Service{
		deployments:  deployments,
		taskRuns:     taskRuns,
		executor:     executor,
		hub:          hub,
		pollInterval: pollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule validates the request, computes the first fire time and persists
// the deployment as Scheduled. Violations are rejected with
// ErrInvalidSchedule and never retried.
func (s *Service) Schedule(req ScheduleRequest) (*domain.Deployment, error) {
	if req.DeviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", domain.ErrInvalidSchedule)
	}
	if req.ImageID == "" {
		return nil, fmt.Errorf("%w: image id is required", domain.ErrInvalidSchedule)
	}

	now := s.now()
	deployment := domain.NewDeployment(req.DeviceID, req.ImageID, req.ScheduleType)
	deployment.PostTasks = req.PostTasks

	var nextRunAt time.Time
	switch req.ScheduleType {
	case domain.ScheduleTypeImmediate:
		if req.ScheduledFor != nil || req.RecurringPattern != "" {
			return nil, fmt.Errorf("%w: immediate deployment takes no fire time or pattern",
				domain.ErrInvalidSchedule)
		}
		// Fires on the next tick, through the same claim path as the rest.
		nextRunAt = now
	case domain.ScheduleTypeDelayed:
		if req.ScheduledFor == nil {
			return nil, fmt.Errorf("%w: delayed deployment requires a fire time",
				domain.ErrInvalidSchedule)
		}
		if !req.ScheduledFor.After(now) {
			return nil, fmt.Errorf("%w: fire time %s is in the past",
				domain.ErrInvalidSchedule, req.ScheduledFor.Format(time.RFC3339))
		}
		if req.RecurringPattern != "" {
			return nil, fmt.Errorf("%w: delayed deployment takes no recurring pattern",
				domain.ErrInvalidSchedule)
		}
		deployment.ScheduledFor = req.ScheduledFor
		nextRunAt = *req.ScheduledFor
	case domain.ScheduleTypeRecurring:
		if req.RecurringPattern == "" {
			return nil, fmt.Errorf("%w: recurring deployment requires a cron pattern",
				domain.ErrInvalidSchedule)
		}
		if err := cronexpr.Validate(req.RecurringPattern); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
		}
		pattern := req.RecurringPattern
		deployment.RecurringPattern = &pattern
		next, err := cronexpr.Next(pattern, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
		}
		nextRunAt = next
	default:
		return nil, fmt.Errorf("%w: unknown schedule type", domain.ErrInvalidSchedule)
	}

	deployment.NextRunAt = &nextRunAt
	if err := s.deployments.Create(deployment); err != nil {
		return nil, fmt.Errorf("failed to persist deployment: %w", err)
	}

	slog.Info("Deployment scheduled",
		"deployment_id", deployment.ID,
		"device_id", deployment.DeviceID,
		"image_id", deployment.ImageID,
		"schedule_type", deployment.ScheduleType.String(),
		"next_run_at", nextRunAt)

	s.hub.Publish(broadcast.ActivityEvent{
		DeploymentID: deployment.ID,
		DeviceID:     deployment.DeviceID,
		Message: fmt.Sprintf("deployment of %s to %s scheduled (%s)",
			deployment.ImageID, deployment.DeviceID, deployment.ScheduleType),
	})

	return deployment, nil
}

// Tick fires every Scheduled deployment whose nextRunAt is at or before now.
// Safe under concurrent invocation from multiple instances: the claim
// resolves each race, losers skip silently. A store error aborts the cycle;
// the next tick retries, and because the next occurrence is always
// recomputed from the current instant no backlog accumulates.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	due, err := s.deployments.ListDue(now)
	if err != nil {
		return fmt.Errorf("failed to list due deployments: %w", err)
	}

	for _, deployment := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.fire(ctx, deployment, now); err != nil {
			if errors.Is(err, domain.ErrClaimConflict) {
				// Another instance won, or a cancellation landed first.
				slog.Debug("Skipping claimed deployment",
					"deployment_id", deployment.ID)
				continue
			}
			slog.Error("Failed to fire deployment",
				"layer", "scheduler",
				"operation", "fire",
				"deployment_id", deployment.ID,
				"error", err)
		}
	}
	return nil
}

// fire claims one due deployment and signals the execution pipeline. For a
// recurring schedule the following occurrence is computed strictly after
// now, never after the stale nextRunAt, so a scheduler that was down fires
// an overdue occurrence exactly once instead of a backlog burst.
func (s *Service) fire(ctx context.Context, deployment *domain.Deployment, now time.Time) error {
	if deployment.NextRunAt == nil {
		return fmt.Errorf("deployment %s is scheduled without a fire time", deployment.ID)
	}
	dueAt := *deployment.NextRunAt

	var nextRunAt *time.Time
	if deployment.ScheduleType == domain.ScheduleTypeRecurring {
		next, err := cronexpr.Next(deployment.PatternStr(), now)
		if err != nil {
			return fmt.Errorf("failed to compute next occurrence: %w", err)
		}
		nextRunAt = &next
	}

	if err := s.deployments.Claim(deployment.ID, dueAt, nextRunAt); err != nil {
		return err
	}

	fired, err := s.deployments.FindByID(deployment.ID)
	if err != nil {
		return fmt.Errorf("failed to reload claimed deployment: %w", err)
	}

	var nextRunLog any
	if fired.NextRunAt != nil {
		nextRunLog = *fired.NextRunAt
	}
	slog.Info("Deployment fired",
		"deployment_id", fired.ID,
		"device_id", fired.DeviceID,
		"due_at", dueAt,
		"next_run_at", nextRunLog)

	s.publishProgress(fired)
	s.hub.Publish(broadcast.ActivityEvent{
		DeploymentID: fired.ID,
		DeviceID:     fired.DeviceID,
		Message: fmt.Sprintf("deployment of %s to %s started", fired.ImageID, fired.DeviceID),
	})
	s.publishDeviceSnapshot()

	if err := s.executor.StartDeployment(ctx, fired); err != nil {
		// The deployment stays Pending; the pipeline reports failures
		// through the callbacks once it picks the signal up again.
		slog.Error("Failed to signal execution pipeline",
			"deployment_id", fired.ID,
			"device_id", fired.DeviceID,
			"error", err)
		return fmt.Errorf("failed to signal execution pipeline: %w", err)
	}
	return nil
}

// Cancel moves any non-terminal deployment to Cancelled. It is idempotent:
// cancelling an already-terminal deployment is a successful no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	deployment, err := s.deployments.FindByID(id)
	if err != nil {
		return err
	}
	if deployment.IsTerminal() {
		return nil
	}

	cancelled, err := s.deployments.CancelPending(id, cancellableStatuses(deployment))
	if err != nil {
		return fmt.Errorf("failed to cancel deployment: %w", err)
	}
	if !cancelled {
		// Raced with a transition into a terminal status; still a no-op.
		return nil
	}

	slog.Info("Deployment cancelled",
		"deployment_id", id,
		"device_id", deployment.DeviceID)

	deployment.Status = domain.DeploymentStatusCancelled
	deployment.NextRunAt = nil
	s.publishProgress(deployment)
	s.hub.Publish(broadcast.ActivityEvent{
		DeploymentID: deployment.ID,
		DeviceID:     deployment.DeviceID,
		Message: fmt.Sprintf("deployment of %s to %s cancelled",
			deployment.ImageID, deployment.DeviceID),
	})
	s.publishDeviceSnapshot()
	return nil
}

// cancellableStatuses is every status the deployment could be cancelled
// from. For recurring schedules Completed and Failed are not terminal (the
// window between finishing and re-arming), so they are cancellable too.
func cancellableStatuses(deployment *domain.Deployment) []domain.DeploymentStatus {
	statuses := []domain.DeploymentStatus{
		domain.DeploymentStatusScheduled,
		domain.DeploymentStatusPending,
		domain.DeploymentStatusDeploying,
		domain.DeploymentStatusPostProcessing,
	}
	if deployment.ScheduleType == domain.ScheduleTypeRecurring {
		statuses = append(statuses,
			domain.DeploymentStatusCompleted,
			domain.DeploymentStatusFailed)
	}
	return statuses
}

// Get returns one deployment by id.
func (s *Service) Get(id uuid.UUID) (*domain.Deployment, error) {
	return s.deployments.FindByID(id)
}

// List returns all deployments, newest first.
func (s *Service) List() ([]*domain.Deployment, error) {
	return s.deployments.List()
}

// ListTaskRuns returns the post-deployment task runs for one deployment.
func (s *Service) ListTaskRuns(deploymentID uuid.UUID) ([]*domain.TaskRun, error) {
	return s.taskRuns.ListByDeploymentID(deploymentID)
}

// DeviceStatuses derives the per-device view from the most recent
// deployment targeting each device.
func (s *Service) DeviceStatuses() ([]domain.DeviceStatus, error) {
	deployments, err := s.deployments.List()
	if err != nil {
		return nil, err
	}

	latest := map[string]*domain.Deployment{}
	order := []string{}
	for _, d := range deployments {
		current, seen := latest[d.DeviceID]
		if !seen {
			latest[d.DeviceID] = d
			order = append(order, d.DeviceID)
			continue
		}
		if d.CreatedAt.After(current.CreatedAt) {
			latest[d.DeviceID] = d
		}
	}

	statuses := make([]domain.DeviceStatus, 0, len(order))
	for _, deviceID := range order {
		d := latest[deviceID]
		statuses = append(statuses, domain.DeviceStatus{
			DeviceID:     d.DeviceID,
			ImageID:      d.ImageID,
			DeploymentID: d.ID,
			Status:       d.Status,
			Progress:     d.Progress,
			UpdatedAt:    d.UpdatedAt,
		})
	}
	return statuses, nil
}

func (s *Service) publishProgress(deployment *domain.Deployment) {
	s.hub.Publish(broadcast.DeploymentProgressEvent{
		DeploymentID: deployment.ID,
		DeviceID:     deployment.DeviceID,
		Status:       deployment.Status.String(),
		Progress:     deployment.Progress,
		ErrorMessage: deployment.ErrorMessage,
	})
}

// publishDeviceSnapshot publishes the full device-status snapshot. Observers
// replace their device cache with it, so it is only published on status
// changes, not on every progress increment.
func (s *Service) publishDeviceSnapshot() {
	statuses, err := s.DeviceStatuses()
	if err != nil {
		slog.Error("Failed to build device snapshot",
			"layer", "scheduler",
			"error", err)
		return
	}

	devices := make([]broadcast.DeviceState, len(statuses))
	for i, status := range statuses {
		devices[i] = broadcast.DeviceState{
			DeviceID:     status.DeviceID,
			ImageID:      status.ImageID,
			DeploymentID: status.DeploymentID,
			Status:       status.Status.String(),
			Progress:     status.Progress,
		}
	}
	s.hub.Publish(broadcast.DeviceStatusEvent{Devices: devices})
}

// Run is the background scheduling loop. It is independent of request
// handling paths; request servicing never waits on a tick.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("Deployment scheduler starting", "poll_interval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Run an initial tick immediately so overdue work fires on startup.
	if err := s.Tick(ctx, s.now()); err != nil {
		slog.Error("Scheduler tick failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Deployment scheduler shutting down")
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx, s.now()); err != nil {
				// Store errors abort the cycle; the next tick retries.
				slog.Error("Scheduler tick failed", "error", err)
			}
		}
	}
}
