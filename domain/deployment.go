// Package domain provides core domain types and entities for pxedeck.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type Deployment struct {
	ID               uuid.UUID
	DeviceID         string
	ImageID          string
	Status           DeploymentStatus
	Progress         int // 0-100, monotonic while deploying
	ScheduleType     ScheduleType
	ScheduledFor     *time.Time // set iff delayed
	RecurringPattern *string    // cron expression, set iff recurring
	PostTasks        []string   // task types to run after imaging
	LastRunAt        *time.Time
	NextRunAt        *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewDeployment(deviceID, imageID string, scheduleType ScheduleType) *Deployment {
	return &Deployment{
		ID:           uuid.New(),
		DeviceID:     deviceID,
		ImageID:      imageID,
		Status:       DeploymentStatusScheduled,
		ScheduleType: scheduleType,
	}
}

// PatternStr returns the recurring pattern or an empty string.
func (d *Deployment) PatternStr() string {
	if d.RecurringPattern == nil {
		return ""
	}
	return *d.RecurringPattern
}

// IsTerminal reports whether the deployment can make no further progress.
// Completed and Failed are terminal only for non-recurring schedules; a
// recurring schedule re-arms from them and is only ever ended by Cancelled.
func (d *Deployment) IsTerminal() bool {
	switch d.Status {
	case DeploymentStatusCancelled:
		return true
	case DeploymentStatusCompleted, DeploymentStatusFailed:
		return d.ScheduleType != ScheduleTypeRecurring
	default:
		return false
	}
}

type TaskRun struct {
	ID           uuid.UUID
	DeploymentID uuid.UUID
	TaskType     string
	Status       TaskRunStatus
	Progress     int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewTaskRun(deploymentID uuid.UUID, taskType string) *TaskRun {
	return &TaskRun{
		ID:           uuid.New(),
		DeploymentID: deploymentID,
		TaskType:     taskType,
		Status:       TaskRunStatusPending,
	}
}

// DeviceStatus is the per-device view derived from the most recent
// deployment targeting that device. Published as a full snapshot.
type DeviceStatus struct {
	DeviceID     string
	ImageID      string
	DeploymentID uuid.UUID
	Status       DeploymentStatus
	Progress     int
	UpdatedAt    time.Time
}
