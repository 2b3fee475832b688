package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeployment(scheduleType ScheduleType, status DeploymentStatus) *Deployment {
	d := NewDeployment("device-01", "ubuntu-24.04", scheduleType)
	d.Status = status
	return d
}

func TestTransition_HappyPath(t *testing.T) {
	d := newTestDeployment(ScheduleTypeImmediate, DeploymentStatusScheduled)

	require.NoError(t, d.Transition(DeploymentStatusPending))
	require.NoError(t, d.Transition(DeploymentStatusDeploying))

	d.Progress = 100
	require.NoError(t, d.Transition(DeploymentStatusPostProcessing))
	require.NoError(t, d.Transition(DeploymentStatusCompleted))
	assert.Equal(t, DeploymentStatusCompleted, d.Status)
}

func TestTransition_OutsideEnumeratedSet(t *testing.T) {
	tests := []struct {
		name string
		from DeploymentStatus
		to   DeploymentStatus
	}{
		{"completed to deploying", DeploymentStatusCompleted, DeploymentStatusDeploying},
		{"scheduled to deploying", DeploymentStatusScheduled, DeploymentStatusDeploying},
		{"pending to completed", DeploymentStatusPending, DeploymentStatusCompleted},
		{"cancelled to pending", DeploymentStatusCancelled, DeploymentStatusPending},
		{"failed to pending", DeploymentStatusFailed, DeploymentStatusPending},
		{"scheduled to post_processing", DeploymentStatusScheduled, DeploymentStatusPostProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeployment(ScheduleTypeImmediate, tt.from)
			err := d.Transition(tt.to)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.from, d.Status, "status must not change on rejection")
		})
	}
}

func TestTransition_DeployingRequiresZeroProgress(t *testing.T) {
	d := newTestDeployment(ScheduleTypeImmediate, DeploymentStatusPending)
	d.Progress = 40

	err := d.Transition(DeploymentStatusDeploying)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, DeploymentStatusPending, d.Status)
}

func TestTransition_CompletedRequiresFullProgress(t *testing.T) {
	d := newTestDeployment(ScheduleTypeImmediate, DeploymentStatusPostProcessing)
	d.Progress = 99

	err := d.Transition(DeploymentStatusCompleted)

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_CancelFromAnyNonTerminal(t *testing.T) {
	for _, from := range []DeploymentStatus{
		DeploymentStatusScheduled,
		DeploymentStatusPending,
		DeploymentStatusDeploying,
		DeploymentStatusPostProcessing,
	} {
		d := newTestDeployment(ScheduleTypeImmediate, from)
		assert.NoError(t, d.Transition(DeploymentStatusCancelled), "cancel from %s", from)
	}
}

func TestTransition_CancelFromTerminalRejected(t *testing.T) {
	for _, from := range []DeploymentStatus{
		DeploymentStatusCompleted,
		DeploymentStatusFailed,
		DeploymentStatusCancelled,
	} {
		d := newTestDeployment(ScheduleTypeImmediate, from)
		err := d.Transition(DeploymentStatusCancelled)
		assert.ErrorIs(t, err, ErrInvalidTransition, "cancel from %s", from)
	}
}

func TestIsTerminal_RecurringVsOneShot(t *testing.T) {
	oneShot := newTestDeployment(ScheduleTypeDelayed, DeploymentStatusCompleted)
	assert.True(t, oneShot.IsTerminal())

	recurring := newTestDeployment(ScheduleTypeRecurring, DeploymentStatusCompleted)
	assert.False(t, recurring.IsTerminal())

	recurring.Status = DeploymentStatusFailed
	assert.False(t, recurring.IsTerminal())

	recurring.Status = DeploymentStatusCancelled
	assert.True(t, recurring.IsTerminal())
}

func TestRearm_RecurringReturnsToScheduled(t *testing.T) {
	now := time.Date(2024, 1, 1, 1, 0, 5, 0, time.UTC)
	next := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)

	d := newTestDeployment(ScheduleTypeRecurring, DeploymentStatusCompleted)
	d.Progress = 100
	startedAt := now.Add(-time.Minute)
	d.StartedAt = &startedAt

	require.NoError(t, d.Rearm(now, next))

	assert.Equal(t, DeploymentStatusScheduled, d.Status)
	assert.Equal(t, 0, d.Progress, "progress resets for the new occurrence")
	assert.Nil(t, d.StartedAt)
	require.NotNil(t, d.NextRunAt)
	assert.Equal(t, next, *d.NextRunAt)
}

func TestRearm_FromFailed(t *testing.T) {
	d := newTestDeployment(ScheduleTypeRecurring, DeploymentStatusFailed)
	d.Progress = 35

	require.NoError(t, d.Rearm(time.Now(), time.Now().Add(time.Hour)))

	assert.Equal(t, DeploymentStatusScheduled, d.Status)
	assert.Equal(t, 0, d.Progress)
}

func TestRearm_NonRecurringRejected(t *testing.T) {
	d := newTestDeployment(ScheduleTypeDelayed, DeploymentStatusCompleted)

	err := d.Rearm(time.Now(), time.Now().Add(time.Hour))

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRearm_CancelledRejected(t *testing.T) {
	d := newTestDeployment(ScheduleTypeRecurring, DeploymentStatusCancelled)

	err := d.Rearm(time.Now(), time.Now().Add(time.Hour))

	assert.ErrorIs(t, err, ErrInvalidTransition)
}
