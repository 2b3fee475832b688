package domain

import "fmt"

// DeploymentStatus represents the lifecycle status of a deployment
type DeploymentStatus int

const (
	DeploymentStatusUnknown DeploymentStatus = iota
	DeploymentStatusScheduled
	DeploymentStatusPending
	DeploymentStatusDeploying
	DeploymentStatusPostProcessing
	DeploymentStatusCompleted
	DeploymentStatusFailed
	DeploymentStatusCancelled
)

func (s DeploymentStatus) String() string {
	switch s {
	case DeploymentStatusScheduled:
		return "scheduled"
	case DeploymentStatusPending:
		return "pending"
	case DeploymentStatusDeploying:
		return "deploying"
	case DeploymentStatusPostProcessing:
		return "post_processing"
	case DeploymentStatusCompleted:
		return "completed"
	case DeploymentStatusFailed:
		return "failed"
	case DeploymentStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func ParseDeploymentStatus(s string) (DeploymentStatus, error) {
	switch s {
	case "scheduled":
		return DeploymentStatusScheduled, nil
	case "pending":
		return DeploymentStatusPending, nil
	case "deploying":
		return DeploymentStatusDeploying, nil
	case "post_processing":
		return DeploymentStatusPostProcessing, nil
	case "completed":
		return DeploymentStatusCompleted, nil
	case "failed":
		return DeploymentStatusFailed, nil
	case "cancelled":
		return DeploymentStatusCancelled, nil
	case "unknown":
		return DeploymentStatusUnknown, nil
	default:
		return DeploymentStatusUnknown, fmt.Errorf("invalid deployment status: %q", s)
	}
}

// ScheduleType determines when a deployment fires
type ScheduleType int

const (
	ScheduleTypeImmediate ScheduleType = iota
	ScheduleTypeDelayed
	ScheduleTypeRecurring
)

func (t ScheduleType) String() string {
	switch t {
	case ScheduleTypeImmediate:
		return "immediate"
	case ScheduleTypeDelayed:
		return "delayed"
	case ScheduleTypeRecurring:
		return "recurring"
	default:
		return "immediate"
	}
}

func ParseScheduleType(s string) (ScheduleType, error) {
	switch s {
	case "immediate":
		return ScheduleTypeImmediate, nil
	case "delayed":
		return ScheduleTypeDelayed, nil
	case "recurring":
		return ScheduleTypeRecurring, nil
	default:
		return ScheduleTypeImmediate, fmt.Errorf("invalid schedule type: %q", s)
	}
}

// TaskRunStatus represents the status of a post-deployment task run
type TaskRunStatus int

const (
	TaskRunStatusUnknown TaskRunStatus = iota
	TaskRunStatusPending
	TaskRunStatusRunning
	TaskRunStatusCompleted
	TaskRunStatusFailed
	TaskRunStatusCancelled
)

func (s TaskRunStatus) String() string {
	switch s {
	case TaskRunStatusPending:
		return "pending"
	case TaskRunStatusRunning:
		return "running"
	case TaskRunStatusCompleted:
		return "completed"
	case TaskRunStatusFailed:
		return "failed"
	case TaskRunStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func ParseTaskRunStatus(s string) (TaskRunStatus, error) {
	switch s {
	case "pending":
		return TaskRunStatusPending, nil
	case "running":
		return TaskRunStatusRunning, nil
	case "completed":
		return TaskRunStatusCompleted, nil
	case "failed":
		return TaskRunStatusFailed, nil
	case "cancelled":
		return TaskRunStatusCancelled, nil
	case "unknown":
		return TaskRunStatusUnknown, nil
	default:
		return TaskRunStatusUnknown, fmt.Errorf("invalid task run status: %q", s)
	}
}

// IsTerminal reports whether a task run status is final.
func (s TaskRunStatus) IsTerminal() bool {
	switch s {
	case TaskRunStatusCompleted, TaskRunStatusFailed, TaskRunStatusCancelled:
		return true
	default:
		return false
	}
}
