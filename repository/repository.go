package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pxedeck/pxedeck/db"
	"github.com/pxedeck/pxedeck/domain"
	"gorm.io/gorm"
)

type DeploymentRepository interface {
	FindByID(id uuid.UUID) (*domain.Deployment, error)
	Create(deployment *domain.Deployment) error
	Update(deployment *domain.Deployment) error
	Delete(id uuid.UUID) error
	List() ([]*domain.Deployment, error)
	ListByDeviceID(deviceID string) ([]*domain.Deployment, error)
	// ListDue returns deployments in Scheduled status whose nextRunAt is at
	// or before now, oldest first.
	ListDue(now time.Time) ([]*domain.Deployment, error)
	// Claim atomically moves a due deployment from Scheduled to Pending.
	// The update is conditional on (status=scheduled, next_run_at=dueAt);
	// exactly one concurrent caller wins, the rest get ErrClaimConflict.
	// lastRunAt records the claimed occurrence (the fencing value) and
	// nextRunAt carries the recomputed following occurrence, nil for
	// one-shot schedules.
	Claim(id uuid.UUID, dueAt time.Time, nextRunAt *time.Time) error
	// CancelPending atomically cancels the deployment if its status is
	// still one of the given statuses. Returns true if a row was updated,
	// false if the deployment had already reached a terminal status.
	CancelPending(id uuid.UUID, from []domain.DeploymentStatus) (bool, error)
}

type deploymentRepository struct {
	db     *gorm.DB
	mapper *DeploymentMapper
}

func NewDeploymentRepository(database *gorm.DB) DeploymentRepository {
	return &deploymentRepository{
		db:     database,
		mapper: &DeploymentMapper{},
	}
}

func (r *deploymentRepository) FindByID(id uuid.UUID) (*domain.Deployment, error) {
	var m db.DeploymentModel
	if err := r.db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
		}
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "find_deployment",
			"deployment_id", id,
			"error", err)
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}

func (r *deploymentRepository) Create(deployment *domain.Deployment) error {
	m := r.mapper.ToModel(deployment)
	if err := r.db.Create(m).Error; err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "create_deployment",
			"deployment_id", deployment.ID,
			"device_id", deployment.DeviceID,
			"error", err)
		return err
	}
	// Update the domain object with the timestamps that GORM populated
	*deployment = *r.mapper.ToDomain(m)
	return nil
}

func (r *deploymentRepository) Update(deployment *domain.Deployment) error {
	m := r.mapper.ToModel(deployment)

	// Use Select to explicitly update all fields except CreatedAt, including
	// zero values such as progress 0 and cleared timestamps.
	return r.db.Model(&db.DeploymentModel{}).
		Where("id = ?", m.ID).
		Select("*").
		Omit("created_at").
		Updates(m).
		Error
}

func (r *deploymentRepository) Delete(id uuid.UUID) error {
	err := r.db.Delete(&db.DeploymentModel{}, "id = ?", id).Error
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "delete_deployment",
			"deployment_id", id,
			"error", err)
	}
	return err
}

func (r *deploymentRepository) List() ([]*domain.Deployment, error) {
	var models []db.DeploymentModel
	if err := r.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(models), nil
}

func (r *deploymentRepository) ListByDeviceID(deviceID string) ([]*domain.Deployment, error) {
	var models []db.DeploymentModel
	if err := r.db.Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(models), nil
}

func (r *deploymentRepository) ListDue(now time.Time) ([]*domain.Deployment, error) {
	var models []db.DeploymentModel
	err := r.db.
		Where("status = ? AND next_run_at IS NOT NULL AND next_run_at <= ?",
			domain.DeploymentStatusScheduled.String(), now).
		Order("next_run_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.toDomainSlice(models), nil
}

func (r *deploymentRepository) Claim(id uuid.UUID, dueAt time.Time, nextRunAt *time.Time) error {
	res := r.db.Model(&db.DeploymentModel{}).
		Where("id = ? AND status = ? AND next_run_at = ?",
			id, domain.DeploymentStatusScheduled.String(), dueAt).
		Updates(map[string]any{
			"status":        domain.DeploymentStatusPending.String(),
			"progress":      0,
			"last_run_at":   dueAt,
			"next_run_at":   nextRunAt,
			"started_at":    nil,
			"completed_at":  nil,
			"error_message": "",
		})
	if res.Error != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "claim_deployment",
			"deployment_id", id,
			"error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Another scheduler instance claimed it, or a cancellation landed
		// first. Either way the caller skips.
		return fmt.Errorf("deployment %s: %w", id, domain.ErrClaimConflict)
	}
	return nil
}

func (r *deploymentRepository) CancelPending(id uuid.UUID, from []domain.DeploymentStatus) (bool, error) {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = s.String()
	}

	res := r.db.Model(&db.DeploymentModel{}).
		Where("id = ? AND status IN ?", id, statuses).
		Updates(map[string]any{
			"status":      domain.DeploymentStatusCancelled.String(),
			"next_run_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *deploymentRepository) toDomainSlice(models []db.DeploymentModel) []*domain.Deployment {
	deployments := make([]*domain.Deployment, len(models))
	for i, m := range models {
		deployments[i] = r.mapper.ToDomain(&m)
	}
	return deployments
}

type TaskRunRepository interface {
	FindByID(id uuid.UUID) (*domain.TaskRun, error)
	Create(run *domain.TaskRun) error
	Update(run *domain.TaskRun) error
	ListByDeploymentID(deploymentID uuid.UUID) ([]*domain.TaskRun, error)
}

type taskRunRepository struct {
	db     *gorm.DB
	mapper *TaskRunMapper
}

func NewTaskRunRepository(database *gorm.DB) TaskRunRepository {
	return &taskRunRepository{
		db:     database,
		mapper: &TaskRunMapper{},
	}
}

func (r *taskRunRepository) FindByID(id uuid.UUID) (*domain.TaskRun, error) {
	var m db.TaskRunModel
	if err := r.db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task run %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}

func (r *taskRunRepository) Create(run *domain.TaskRun) error {
	m := r.mapper.ToModel(run)
	if err := r.db.Create(m).Error; err != nil {
		return err
	}
	*run = *r.mapper.ToDomain(m)
	return nil
}

func (r *taskRunRepository) Update(run *domain.TaskRun) error {
	m := r.mapper.ToModel(run)
	if err := r.db.Save(m).Error; err != nil {
		return err
	}
	*run = *r.mapper.ToDomain(m)
	return nil
}

func (r *taskRunRepository) ListByDeploymentID(deploymentID uuid.UUID) ([]*domain.TaskRun, error) {
	var models []db.TaskRunModel
	if err := r.db.Where("deployment_id = ?", deploymentID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	runs := make([]*domain.TaskRun, len(models))
	for i, m := range models {
		runs[i] = r.mapper.ToDomain(&m)
	}
	return runs, nil
}
