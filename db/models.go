// Package db provides database models and utilities for pxedeck.
package db

import (
	"time"

	"github.com/google/uuid"
)

type BaseModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DeploymentModel struct {
	BaseModel
	DeviceID         string `gorm:"not null;index;check:device_id <> ''"`
	ImageID          string `gorm:"not null;check:image_id <> ''"`
	Status           string `gorm:"not null;index;check:status <> ''"`
	Progress         int    `gorm:"not null;default:0"`
	ScheduleType     string `gorm:"not null;check:schedule_type <> ''"` // immediate, delayed, recurring
	ScheduledFor     *time.Time
	RecurringPattern *string `gorm:"type:varchar(120)"`
	PostTasks        string  // task types separated by null character (\0)
	LastRunAt        *time.Time
	NextRunAt        *time.Time `gorm:"index"`
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ErrorMessage     string `gorm:"type:text"`

	TaskRuns []TaskRunModel `gorm:"foreignKey:DeploymentID;constraint:OnDelete:CASCADE"`
}

func (DeploymentModel) TableName() string {
	return "deployments"
}

type TaskRunModel struct {
	BaseModel
	DeploymentID uuid.UUID `gorm:"not null;index"`
	TaskType     string    `gorm:"not null;check:task_type <> ''"`
	Status       string    `gorm:"not null;check:status <> ''"`
	Progress     int       `gorm:"not null;default:0"`
	ErrorMessage string    `gorm:"type:text"`

	Deployment DeploymentModel `gorm:"foreignKey:DeploymentID;constraint:OnDelete:CASCADE"`
}

func (TaskRunModel) TableName() string {
	return "task_runs"
}

type MigrationModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null;uniqueIndex"`
	AppliedAt time.Time
}

func (MigrationModel) TableName() string {
	return "migrations"
}
