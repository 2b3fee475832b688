// Package repository provides the data access layer for deployments and task runs.
package repository

import (
	"strings"

	"github.com/pxedeck/pxedeck/db"
	"github.com/pxedeck/pxedeck/domain"
)

type DeploymentMapper struct{}

func (m *DeploymentMapper) ToDomain(d *db.DeploymentModel) *domain.Deployment {
	status, err := domain.ParseDeploymentStatus(d.Status)
	if err != nil {
		status = domain.DeploymentStatusUnknown
	}
	scheduleType, err := domain.ParseScheduleType(d.ScheduleType)
	if err != nil {
		scheduleType = domain.ScheduleTypeImmediate
	}

	return &domain.Deployment{
		ID:               d.ID,
		DeviceID:         d.DeviceID,
		ImageID:          d.ImageID,
		Status:           status,
		Progress:         d.Progress,
		ScheduleType:     scheduleType,
		ScheduledFor:     d.ScheduledFor,
		RecurringPattern: d.RecurringPattern,
		PostTasks:        parseList(d.PostTasks),
		LastRunAt:        d.LastRunAt,
		NextRunAt:        d.NextRunAt,
		StartedAt:        d.StartedAt,
		CompletedAt:      d.CompletedAt,
		ErrorMessage:     d.ErrorMessage,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func (m *DeploymentMapper) ToModel(d *domain.Deployment) *db.DeploymentModel {
	return &db.DeploymentModel{
		BaseModel: db.BaseModel{
			ID:        d.ID,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		},
		DeviceID:         d.DeviceID,
		ImageID:          d.ImageID,
		Status:           d.Status.String(),
		Progress:         d.Progress,
		ScheduleType:     d.ScheduleType.String(),
		ScheduledFor:     d.ScheduledFor,
		RecurringPattern: d.RecurringPattern,
		PostTasks:        serializeList(d.PostTasks),
		LastRunAt:        d.LastRunAt,
		NextRunAt:        d.NextRunAt,
		StartedAt:        d.StartedAt,
		CompletedAt:      d.CompletedAt,
		ErrorMessage:     d.ErrorMessage,
	}
}

type TaskRunMapper struct{}

func (m *TaskRunMapper) ToDomain(t *db.TaskRunModel) *domain.TaskRun {
	status, err := domain.ParseTaskRunStatus(t.Status)
	if err != nil {
		status = domain.TaskRunStatusUnknown
	}

	return &domain.TaskRun{
		ID:           t.ID,
		DeploymentID: t.DeploymentID,
		TaskType:     t.TaskType,
		Status:       status,
		Progress:     t.Progress,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (m *TaskRunMapper) ToModel(t *domain.TaskRun) *db.TaskRunModel {
	return &db.TaskRunModel{
		BaseModel: db.BaseModel{
			ID:        t.ID,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		},
		DeploymentID: t.DeploymentID,
		TaskType:     t.TaskType,
		Status:       t.Status.String(),
		Progress:     t.Progress,
		ErrorMessage: t.ErrorMessage,
	}
}

// Helper functions
func parseList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\x00") // null-separated for better handling
}

func serializeList(items []string) string {
	return strings.Join(items, "\x00")
}
