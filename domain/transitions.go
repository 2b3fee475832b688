package domain

import (
	"fmt"
	"time"
)

// transitions is the closed set of legal forward moves. Cancellation from
// any non-terminal status and the recurring re-arm are handled separately.
var transitions = map[DeploymentStatus][]DeploymentStatus{
	DeploymentStatusScheduled:      {DeploymentStatusPending},
	DeploymentStatusPending:        {DeploymentStatusDeploying},
	DeploymentStatusDeploying:      {DeploymentStatusPostProcessing, DeploymentStatusFailed},
	DeploymentStatusPostProcessing: {DeploymentStatusCompleted, DeploymentStatusFailed},
}

// CanTransition reports whether from -> to is in the legal transition set.
// recurring widens terminality: Completed/Failed are not terminal for a
// recurring schedule, but the only move out of them is the re-arm back to
// Scheduled (or Cancelled).
func CanTransition(from, to DeploymentStatus, recurring bool) bool {
	if from == DeploymentStatusCancelled {
		return false
	}
	if from == DeploymentStatusCompleted || from == DeploymentStatusFailed {
		if !recurring {
			return false
		}
		return to == DeploymentStatusScheduled || to == DeploymentStatusCancelled
	}
	if to == DeploymentStatusCancelled {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the deployment to the given status, enforcing the legal
// transition set and the progress guards. Timestamps are owned by the
// caller; Transition only mutates Status.
func (d *Deployment) Transition(to DeploymentStatus) error {
	if !CanTransition(d.Status, to, d.ScheduleType == ScheduleTypeRecurring) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	switch to {
	case DeploymentStatusDeploying:
		if d.Progress != 0 {
			return fmt.Errorf("%w: entering deploying requires progress 0, have %d",
				ErrInvalidTransition, d.Progress)
		}
	case DeploymentStatusCompleted:
		if d.Progress != 100 {
			return fmt.Errorf("%w: entering completed requires progress 100, have %d",
				ErrInvalidTransition, d.Progress)
		}
	}
	d.Status = to
	return nil
}

// Rearm returns a recurring deployment to Scheduled for its next occurrence.
// The next fire time is recomputed strictly after max(lastRunAt, now), so a
// scheduler that was down does not fire a backlog burst: at most one overdue
// occurrence fires, on the next tick.
func (d *Deployment) Rearm(now, next time.Time) error {
	if d.ScheduleType != ScheduleTypeRecurring {
		return fmt.Errorf("%w: re-arm on non-recurring deployment", ErrInvalidTransition)
	}
	if err := d.Transition(DeploymentStatusScheduled); err != nil {
		return err
	}
	d.Progress = 0
	d.StartedAt = nil
	d.CompletedAt = nil
	d.NextRunAt = &next
	return nil
}
