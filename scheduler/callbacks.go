package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pxedeck/pxedeck/broadcast"
	"github.com/pxedeck/pxedeck/cronexpr"
	"github.com/pxedeck/pxedeck/domain"
)

// Callbacks from the execution pipeline. Each one applies a state machine
// transition, persists it, and publishes the change. Illegal moves are
// rejected with ErrInvalidTransition and surfaced to the caller.

// HandleExecutionStarted records that imaging began for the deployment.
func (s *Service) HandleExecutionStarted(ctx context.Context, id uuid.UUID) error {
	deployment, err := s.deployments.FindByID(id)
	if err != nil {
		return err
	}

	if err := deployment.Transition(domain.DeploymentStatusDeploying); err != nil {
		slog.Warn("Rejected execution start",
			"deployment_id", id,
			"status", deployment.Status.String(),
			"error", err)
		return err
	}
	now := s.now()
	deployment.StartedAt = &now

	if err := s.deployments.Update(deployment); err != nil {
		return fmt.Errorf("failed to persist deployment: %w", err)
	}

	s.publishProgress(deployment)
	s.publishDeviceSnapshot()
	return nil
}

// HandleProgress records imaging progress. Progress is monotonic while
// deploying; a regressed value is ignored, not an error, since pipeline
// reports can arrive out of order.
func (s *Service) HandleProgress(ctx context.Context, id uuid.UUID, progress int) error {
	deployment, err := s.deployments.FindByID(id)
	if err != nil {
		return err
	}
	if deployment.Status != domain.DeploymentStatusDeploying {
		return fmt.Errorf("%w: progress report while %s",
			domain.ErrInvalidTransition, deployment.Status)
	}

	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", domain.ErrInvalidTransition, progress)
	}
	if progress <= deployment.Progress {
		slog.Debug("Ignoring stale progress report",
			"deployment_id", id,
			"reported", progress,
			"current", deployment.Progress)
		return nil
	}

	deployment.Progress = progress
	if err := s.deployments.Update(deployment); err != nil {
		return fmt.Errorf("failed to persist deployment: %w", err)
	}

	s.publishProgress(deployment)
	return nil
}

// HandleImagingCompleted moves the deployment into post-processing and
// creates its task runs. With no post tasks configured it completes
// immediately.
func (s *Service) HandleImagingCompleted(ctx context.Context, id uuid.UUID) error {
	deployment, err := s.deployments.FindByID(id)
	if err != nil {
		return err
	}

	deployment.Progress = 100
	if err := deployment.Transition(domain.DeploymentStatusPostProcessing); err != nil {
		return err
	}
	if err := s.deployments.Update(deployment); err != nil {
		return fmt.Errorf("failed to persist deployment: %w", err)
	}
	s.publishProgress(deployment)

	for _, taskType := range deployment.PostTasks {
		run := domain.NewTaskRun(deployment.ID, taskType)
		if err := s.taskRuns.Create(run); err != nil {
			return fmt.Errorf("failed to create task run: %w", err)
		}
		s.publishTaskRun(deployment, run)
	}

	if len(deployment.PostTasks) == 0 {
		return s.finish(deployment, domain.DeploymentStatusCompleted, "")
	}

	s.publishDeviceSnapshot()
	return nil
}

// HandleFailure records a pipeline failure during imaging or post-processing.
func (s *Service) HandleFailure(ctx context.Context, id uuid.UUID, message string) error {
	deployment, err := s.deployments.FindByID(id)
	if err != nil {
		return err
	}
	return s.finish(deployment, domain.DeploymentStatusFailed, message)
}

// HandleTaskStarted records that a post-deployment task began executing.
func (s *Service) HandleTaskStarted(ctx context.Context, taskRunID uuid.UUID) error {
	run, err := s.taskRuns.FindByID(taskRunID)
	if err != nil {
		return err
	}
	if run.Status != domain.TaskRunStatusPending {
		return fmt.Errorf("%w: task start while %s", domain.ErrInvalidTransition, run.Status)
	}

	run.Status = domain.TaskRunStatusRunning
	if err := s.taskRuns.Update(run); err != nil {
		return fmt.Errorf("failed to persist task run: %w", err)
	}
	return s.publishTaskRunByID(run)
}

// HandleTaskProgress records progress on a running post-deployment task.
func (s *Service) HandleTaskProgress(ctx context.Context, taskRunID uuid.UUID, progress int) error {
	run, err := s.taskRuns.FindByID(taskRunID)
	if err != nil {
		return err
	}
	if run.Status != domain.TaskRunStatusRunning {
		return fmt.Errorf("%w: task progress while %s", domain.ErrInvalidTransition, run.Status)
	}
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", domain.ErrInvalidTransition, progress)
	}
	if progress <= run.Progress {
		return nil
	}

	run.Progress = progress
	if err := s.taskRuns.Update(run); err != nil {
		return fmt.Errorf("failed to persist task run: %w", err)
	}
	return s.publishTaskRunByID(run)
}

// HandleTaskCompleted finishes one task run; when every run for the owning
// deployment is terminal the deployment itself completes or fails.
func (s *Service) HandleTaskCompleted(ctx context.Context, taskRunID uuid.UUID) error {
	return s.finishTaskRun(taskRunID, domain.TaskRunStatusCompleted, "")
}

// HandleTaskFailed fails one task run and, once every run is terminal,
// fails the owning deployment.
func (s *Service) HandleTaskFailed(ctx context.Context, taskRunID uuid.UUID, message string) error {
	return s.finishTaskRun(taskRunID, domain.TaskRunStatusFailed, message)
}

func (s *Service) finishTaskRun(taskRunID uuid.UUID, status domain.TaskRunStatus, message string) error {
	run, err := s.taskRuns.FindByID(taskRunID)
	if err != nil {
		return err
	}
	if run.Status.IsTerminal() {
		return fmt.Errorf("%w: task run already %s", domain.ErrInvalidTransition, run.Status)
	}

	run.Status = status
	run.ErrorMessage = message
	if status == domain.TaskRunStatusCompleted {
		run.Progress = 100
	}
	if err := s.taskRuns.Update(run); err != nil {
		return fmt.Errorf("failed to persist task run: %w", err)
	}
	if err := s.publishTaskRunByID(run); err != nil {
		return err
	}

	// When the last run finishes, settle the owning deployment.
	runs, err := s.taskRuns.ListByDeploymentID(run.DeploymentID)
	if err != nil {
		return err
	}
	failures := 0
	for _, r := range runs {
		if !r.Status.IsTerminal() {
			return nil
		}
		if r.Status == domain.TaskRunStatusFailed {
			failures++
		}
	}

	deployment, err := s.deployments.FindByID(run.DeploymentID)
	if err != nil {
		return err
	}
	if deployment.Status != domain.DeploymentStatusPostProcessing {
		// Cancelled underneath us, or already settled.
		return nil
	}
	if failures > 0 {
		return s.finish(deployment, domain.DeploymentStatusFailed,
			fmt.Sprintf("%d post-deployment task(s) failed", failures))
	}
	return s.finish(deployment, domain.DeploymentStatusCompleted, "")
}

// finish settles a deployment into Completed or Failed, then re-arms it if
// the schedule is recurring: the next occurrence is computed strictly after
// the current instant, so downtime yields at most one immediate fire.
func (s *Service) finish(deployment *domain.Deployment, status domain.DeploymentStatus, message string) error {
	if err := deployment.Transition(status); err != nil {
		return err
	}
	now := s.now()
	deployment.CompletedAt = &now
	deployment.ErrorMessage = message

	if err := s.deployments.Update(deployment); err != nil {
		return fmt.Errorf("failed to persist deployment: %w", err)
	}

	slog.Info("Deployment finished",
		"deployment_id", deployment.ID,
		"device_id", deployment.DeviceID,
		"status", status.String(),
		"error_message", message)

	s.publishProgress(deployment)
	s.hub.Publish(broadcast.ActivityEvent{
		DeploymentID: deployment.ID,
		DeviceID:     deployment.DeviceID,
		Message: fmt.Sprintf("deployment of %s to %s %s",
			deployment.ImageID, deployment.DeviceID, status),
	})

	if deployment.ScheduleType == domain.ScheduleTypeRecurring {
		if err := s.rearm(deployment, now); err != nil {
			return err
		}
	}

	s.publishDeviceSnapshot()
	return nil
}

func (s *Service) rearm(deployment *domain.Deployment, now time.Time) error {
	next, err := cronexpr.Next(deployment.PatternStr(), now)
	if err != nil {
		return fmt.Errorf("failed to compute next occurrence: %w", err)
	}
	if err := deployment.Rearm(now, next); err != nil {
		return err
	}
	if err := s.deployments.Update(deployment); err != nil {
		return fmt.Errorf("failed to persist re-armed deployment: %w", err)
	}

	slog.Info("Recurring deployment re-armed",
		"deployment_id", deployment.ID,
		"device_id", deployment.DeviceID,
		"next_run_at", next)

	s.hub.Publish(broadcast.ActivityEvent{
		DeploymentID: deployment.ID,
		DeviceID:     deployment.DeviceID,
		Message: fmt.Sprintf("deployment of %s to %s re-armed for %s",
			deployment.ImageID, deployment.DeviceID, next.Format("2006-01-02 15:04:05 MST")),
	})
	return nil
}

// PublishCaptureProgress relays image capture progress from the pipeline to
// observers. Captures have no scheduler state; this is broadcast only.
func (s *Service) PublishCaptureProgress(deviceID, imageID string, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", domain.ErrInvalidTransition, progress)
	}
	s.hub.Publish(broadcast.CaptureProgressEvent{
		DeviceID: deviceID,
		ImageID:  imageID,
		Progress: progress,
	})
	return nil
}

func (s *Service) publishTaskRun(deployment *domain.Deployment, run *domain.TaskRun) {
	s.hub.Publish(broadcast.PostDeploymentEvent{
		DeploymentID: deployment.ID,
		TaskRunID:    run.ID,
		TaskType:     run.TaskType,
		Status:       run.Status.String(),
		Progress:     run.Progress,
		ErrorMessage: run.ErrorMessage,
	})
}

func (s *Service) publishTaskRunByID(run *domain.TaskRun) error {
	s.hub.Publish(broadcast.PostDeploymentEvent{
		DeploymentID: run.DeploymentID,
		TaskRunID:    run.ID,
		TaskType:     run.TaskType,
		Status:       run.Status.String(),
		Progress:     run.Progress,
		ErrorMessage: run.ErrorMessage,
	})
	return nil
}
