package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxedeck/pxedeck/broadcast"
	"github.com/pxedeck/pxedeck/domain"
)

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

// fireAndComplete drives an immediate deployment through its whole
// lifecycle: fire, execution start, imaging progress and completion.
func fireAndComplete(t *testing.T, env *testEnv, postTasks []string) *domain.Deployment {
	t.Helper()
	ctx := context.Background()

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeImmediate,
		PostTasks:    postTasks,
	})
	require.NoError(t, err)

	tickAt := env.clock.Now().Add(time.Second)
	env.clock.Set(tickAt)
	require.NoError(t, env.service.Tick(ctx, tickAt))
	require.NoError(t, env.service.HandleExecutionStarted(ctx, deployment.ID))
	require.NoError(t, env.service.HandleProgress(ctx, deployment.ID, 50))
	require.NoError(t, env.service.HandleImagingCompleted(ctx, deployment.ID))

	settled, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	return settled
}

func TestLifecycle_NoPostTasksCompletesImmediately(t *testing.T) {
	env := setupTestEnv(t, t0)

	deployment := fireAndComplete(t, env, nil)

	assert.Equal(t, domain.DeploymentStatusCompleted, deployment.Status)
	assert.Equal(t, 100, deployment.Progress)
	assert.NotNil(t, deployment.CompletedAt)
}

func TestLifecycle_PostTasksGateCompletion(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment := fireAndComplete(t, env, []string{"join-domain", "install-agent"})
	assert.Equal(t, domain.DeploymentStatusPostProcessing, deployment.Status)

	runs, err := env.service.ListTaskRuns(deployment.ID)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, domain.TaskRunStatusPending, run.Status)
	}

	// First task finishes; deployment still post-processing.
	require.NoError(t, env.service.HandleTaskStarted(ctx, runs[0].ID))
	require.NoError(t, env.service.HandleTaskProgress(ctx, runs[0].ID, 80))
	require.NoError(t, env.service.HandleTaskCompleted(ctx, runs[0].ID))

	midway, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusPostProcessing, midway.Status)

	// Last task finishes; deployment completes.
	require.NoError(t, env.service.HandleTaskStarted(ctx, runs[1].ID))
	require.NoError(t, env.service.HandleTaskCompleted(ctx, runs[1].ID))

	settled, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusCompleted, settled.Status)
}

func TestLifecycle_FailedTaskFailsDeployment(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment := fireAndComplete(t, env, []string{"join-domain"})

	runs, err := env.service.ListTaskRuns(deployment.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	require.NoError(t, env.service.HandleTaskStarted(ctx, runs[0].ID))
	require.NoError(t, env.service.HandleTaskFailed(ctx, runs[0].ID, "domain controller unreachable"))

	settled, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusFailed, settled.Status)
	assert.Contains(t, settled.ErrorMessage, "task(s) failed")

	failedRun, err := env.taskRuns.FindByID(runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskRunStatusFailed, failedRun.Status)
	assert.Equal(t, "domain controller unreachable", failedRun.ErrorMessage)
}

func TestLifecycle_ImagingFailure(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeImmediate,
	})
	require.NoError(t, err)

	tickAt := t0.Add(time.Second)
	env.clock.Set(tickAt)
	require.NoError(t, env.service.Tick(ctx, tickAt))
	require.NoError(t, env.service.HandleExecutionStarted(ctx, deployment.ID))
	require.NoError(t, env.service.HandleFailure(ctx, deployment.ID, "image checksum mismatch"))

	settled, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusFailed, settled.Status)
	assert.Equal(t, "image checksum mismatch", settled.ErrorMessage)
}

func TestLifecycle_RecurringRearmsAfterCompletion(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:         "device-01",
		ImageID:          "ubuntu-24-04",
		ScheduleType:     domain.ScheduleTypeRecurring,
		RecurringPattern: "0 * * * *",
	})
	require.NoError(t, err)

	fireAt := time.Date(2024, 1, 1, 1, 0, 2, 0, time.UTC)
	env.clock.Set(fireAt)
	require.NoError(t, env.service.Tick(ctx, fireAt))
	require.NoError(t, env.service.HandleExecutionStarted(ctx, deployment.ID))

	doneAt := fireAt.Add(10 * time.Minute)
	env.clock.Set(doneAt)
	require.NoError(t, env.service.HandleImagingCompleted(ctx, deployment.ID))

	rearmed, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusScheduled, rearmed.Status)
	assert.Equal(t, 0, rearmed.Progress, "progress resets for the new occurrence")
	require.NotNil(t, rearmed.NextRunAt)
	assert.Equal(t, time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC), rearmed.NextRunAt.UTC())
	require.NotNil(t, rearmed.LastRunAt)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), rearmed.LastRunAt.UTC())
}

func TestLifecycle_RecurringRearmsAfterFailure(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:         "device-01",
		ImageID:          "ubuntu-24-04",
		ScheduleType:     domain.ScheduleTypeRecurring,
		RecurringPattern: "0 * * * *",
	})
	require.NoError(t, err)

	fireAt := time.Date(2024, 1, 1, 1, 0, 2, 0, time.UTC)
	env.clock.Set(fireAt)
	require.NoError(t, env.service.Tick(ctx, fireAt))
	require.NoError(t, env.service.HandleExecutionStarted(ctx, deployment.ID))
	require.NoError(t, env.service.HandleFailure(ctx, deployment.ID, "boot timeout"))

	rearmed, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusScheduled, rearmed.Status,
		"failure does not end a recurring schedule")
	require.NotNil(t, rearmed.NextRunAt)
	assert.True(t, rearmed.NextRunAt.After(fireAt))
}

func TestHandleProgress_IgnoresRegression(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeImmediate,
	})
	require.NoError(t, err)

	tickAt := t0.Add(time.Second)
	env.clock.Set(tickAt)
	require.NoError(t, env.service.Tick(ctx, tickAt))
	require.NoError(t, env.service.HandleExecutionStarted(ctx, deployment.ID))
	require.NoError(t, env.service.HandleProgress(ctx, deployment.ID, 60))
	require.NoError(t, env.service.HandleProgress(ctx, deployment.ID, 40),
		"stale report is ignored, not an error")

	current, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, current.Progress)
}

func TestHandleProgress_RejectedOutsideDeploying(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeImmediate,
	})
	require.NoError(t, err)

	err = env.service.HandleProgress(ctx, deployment.ID, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestHandleExecutionStarted_RejectedFromTerminal(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment := fireAndComplete(t, env, nil)
	require.Equal(t, domain.DeploymentStatusCompleted, deployment.Status)

	err := env.service.HandleExecutionStarted(ctx, deployment.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCallbacks_PublishProgressEvents(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	ch, unsubscribe := env.hub.Subscribe(64, broadcast.TopicDeploymentProgress)
	defer unsubscribe()

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeImmediate,
	})
	require.NoError(t, err)

	tickAt := t0.Add(time.Second)
	env.clock.Set(tickAt)
	require.NoError(t, env.service.Tick(ctx, tickAt))
	require.NoError(t, env.service.HandleExecutionStarted(ctx, deployment.ID))
	require.NoError(t, env.service.HandleProgress(ctx, deployment.ID, 30))

	statuses := []string{}
	for len(statuses) < 3 {
		select {
		case msg := <-ch:
			statuses = append(statuses, msg.Data.(broadcast.DeploymentProgressEvent).Status)
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %v", statuses)
		}
	}
	assert.Equal(t, []string{"pending", "deploying", "deploying"}, statuses)
}

func TestPublishCaptureProgress(t *testing.T) {
	env := setupTestEnv(t, t0)

	ch, unsubscribe := env.hub.Subscribe(4, broadcast.TopicCaptureProgress)
	defer unsubscribe()

	require.NoError(t, env.service.PublishCaptureProgress("device-03", "golden-win11", 45))

	select {
	case envlp := <-ch:
		data := envlp.Data.(broadcast.CaptureProgressEvent)
		assert.Equal(t, "device-03", data.DeviceID)
		assert.Equal(t, 45, data.Progress)
	case <-time.After(time.Second):
		t.Fatal("capture event was not delivered")
	}

	assert.Error(t, env.service.PublishCaptureProgress("device-03", "golden-win11", 180))
}
