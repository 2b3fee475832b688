package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxedeck/pxedeck/domain"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSchedule_Immediate(t *testing.T) {
	env := setupTestEnv(t, t0)

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeImmediate,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusScheduled, deployment.Status)
	require.NotNil(t, deployment.NextRunAt)
	assert.Equal(t, t0, deployment.NextRunAt.UTC())
}

func TestSchedule_DelayedInPast(t *testing.T) {
	env := setupTestEnv(t, t0)
	past := t0.Add(-time.Hour)

	_, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeDelayed,
		ScheduledFor: &past,
	})

	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
}

func TestSchedule_DelayedWithoutFireTime(t *testing.T) {
	env := setupTestEnv(t, t0)

	_, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeDelayed,
	})

	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
}

func TestSchedule_DelayedRejectsPattern(t *testing.T) {
	env := setupTestEnv(t, t0)
	future := t0.Add(time.Hour)

	_, err := env.service.Schedule(ScheduleRequest{
		DeviceID:         "device-01",
		ImageID:          "ubuntu-24-04",
		ScheduleType:     domain.ScheduleTypeDelayed,
		ScheduledFor:     &future,
		RecurringPattern: "0 * * * *",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
}

func TestSchedule_RecurringInvalidPattern(t *testing.T) {
	env := setupTestEnv(t, t0)

	_, err := env.service.Schedule(ScheduleRequest{
		DeviceID:         "device-01",
		ImageID:          "ubuntu-24-04",
		ScheduleType:     domain.ScheduleTypeRecurring,
		RecurringPattern: "not-a-pattern",
	})

	require.ErrorIs(t, err, domain.ErrInvalidSchedule)
	assert.NotEmpty(t, err.Error())
}

func TestSchedule_RecurringHourly(t *testing.T) {
	env := setupTestEnv(t, t0)

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:         "device-01",
		ImageID:          "ubuntu-24-04",
		ScheduleType:     domain.ScheduleTypeRecurring,
		RecurringPattern: "0 * * * *",
	})

	require.NoError(t, err)
	require.NotNil(t, deployment.NextRunAt)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), deployment.NextRunAt.UTC())
}

func TestTick_FiresDueDeployment(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:         "device-01",
		ImageID:          "ubuntu-24-04",
		ScheduleType:     domain.ScheduleTypeRecurring,
		RecurringPattern: "0 * * * *",
	})
	require.NoError(t, err)

	tickAt := time.Date(2024, 1, 1, 1, 0, 1, 0, time.UTC)
	env.clock.Set(tickAt)
	require.NoError(t, env.service.Tick(ctx, tickAt))

	fired, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusPending, fired.Status)
	require.NotNil(t, fired.LastRunAt)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), fired.LastRunAt.UTC())
	require.NotNil(t, fired.NextRunAt)
	assert.Equal(t, time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC), fired.NextRunAt.UTC())
	assert.Equal(t, 1, env.executor.startCount())
}

func TestTick_NotDueYet(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	future := t0.Add(time.Hour)
	_, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeDelayed,
		ScheduledFor: &future,
	})
	require.NoError(t, err)

	require.NoError(t, env.service.Tick(ctx, t0.Add(time.Minute)))

	assert.Equal(t, 0, env.executor.startCount())
}

func TestTick_MissedCyclesFireOnce(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:         "device-01",
		ImageID:          "ubuntu-24-04",
		ScheduleType:     domain.ScheduleTypeRecurring,
		RecurringPattern: "0 * * * *",
	})
	require.NoError(t, err)

	// Scheduler down for five hours past the 01:00 occurrence.
	tickAt := time.Date(2024, 1, 1, 6, 0, 30, 0, time.UTC)
	env.clock.Set(tickAt)
	require.NoError(t, env.service.Tick(ctx, tickAt))

	// Exactly one fire, and the next occurrence is computed from now, not
	// from the stale nextRunAt: no queued backlog.
	assert.Equal(t, 1, env.executor.startCount())

	fired, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	require.NotNil(t, fired.NextRunAt)
	assert.Equal(t, time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC), fired.NextRunAt.UTC())

	// A repeated tick at the same instant fires nothing further.
	require.NoError(t, env.service.Tick(ctx, tickAt))
	assert.Equal(t, 1, env.executor.startCount())
}

func TestTick_ConcurrentInstancesSingleFire(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	// Second scheduler instance sharing the same store.
	other := NewService(env.deployments, env.taskRuns, env.executor, env.hub,
		time.Second, WithClock(env.clock.Now))

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeImmediate,
	})
	require.NoError(t, err)

	tickAt := t0.Add(time.Second)
	env.clock.Set(tickAt)
	require.NoError(t, env.service.Tick(ctx, tickAt))
	require.NoError(t, other.Tick(ctx, tickAt))

	assert.Equal(t, 1, env.executor.startCount(), "exactly one instance may fire")

	fired, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusPending, fired.Status)
}

func TestClaim_LoserGetsConflict(t *testing.T) {
	env := setupTestEnv(t, t0)

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeImmediate,
	})
	require.NoError(t, err)

	require.NoError(t, env.deployments.Claim(deployment.ID, *deployment.NextRunAt, nil))

	err = env.deployments.Claim(deployment.ID, *deployment.NextRunAt, nil)
	assert.ErrorIs(t, err, domain.ErrClaimConflict)
}

func TestCancel_Idempotent(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeImmediate,
	})
	require.NoError(t, err)

	require.NoError(t, env.service.Cancel(ctx, deployment.ID))
	require.NoError(t, env.service.Cancel(ctx, deployment.ID), "second cancel is a no-op")

	cancelled, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.NextRunAt)
}

func TestCancel_PreventsFiring(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeImmediate,
	})
	require.NoError(t, err)

	require.NoError(t, env.service.Cancel(ctx, deployment.ID))
	require.NoError(t, env.service.Tick(ctx, t0.Add(time.Second)))

	assert.Equal(t, 0, env.executor.startCount(),
		"no deployment fires after an applied cancellation")
}

func TestCancel_TerminalOneShotIsNoOp(t *testing.T) {
	env := setupTestEnv(t, t0)
	ctx := context.Background()

	deployment := fireAndComplete(t, env, nil)

	require.NoError(t, env.service.Cancel(ctx, deployment.ID))

	settled, err := env.service.Get(deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStatusCompleted, settled.Status,
		"cancelling a completed one-shot must not change its status")
}

func TestCancel_NotFound(t *testing.T) {
	env := setupTestEnv(t, t0)

	err := env.service.Cancel(context.Background(), newUUID(t))

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeviceStatuses_LatestPerDevice(t *testing.T) {
	env := setupTestEnv(t, t0)

	_, err := env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-01",
		ImageID:      "ubuntu-24-04",
		ScheduleType: domain.ScheduleTypeImmediate,
	})
	require.NoError(t, err)

	_, err = env.service.Schedule(ScheduleRequest{
		DeviceID:     "device-02",
		ImageID:      "debian-12",
		ScheduleType: domain.ScheduleTypeImmediate,
	})
	require.NoError(t, err)

	statuses, err := env.service.DeviceStatuses()
	require.NoError(t, err)
	assert.Len(t, statuses, 2)
}
