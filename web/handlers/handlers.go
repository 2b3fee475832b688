// Package handlers provides HTTP request handlers and utilities for the web server.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/pxedeck/pxedeck/app"
	"github.com/pxedeck/pxedeck/domain"
)

// GetVersion returns the server version
func GetVersion() string {
	return app.Version
}

// ParseDeploymentID extracts and validates the deployment ID from URL parameters
func ParseDeploymentID(r *http.Request) (uuid.UUID, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		return uuid.Nil, errors.New("deployment ID is required")
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errors.New("invalid deployment ID format")
	}

	return parsedID, nil
}

// ParseTaskRunID extracts and validates the task run ID from URL parameters
func ParseTaskRunID(r *http.Request) (uuid.UUID, error) {
	id := chi.URLParam(r, "taskID")
	if id == "" {
		return uuid.Nil, errors.New("task run ID is required")
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errors.New("invalid task run ID format")
	}

	return parsedID, nil
}

// NormalizeImageID turns a human-entered image name into a stable identifier,
// e.g. "Ubuntu 24.04 LTS" becomes "ubuntu-24-04-lts".
func NormalizeImageID(name string) string {
	return slug.Make(name)
}

// DeploymentView is the JSON representation of a deployment
type DeploymentView struct {
	ID                  uuid.UUID  `json:"id"`
	DeviceID            string     `json:"device_id"`
	ImageID             string     `json:"image_id"`
	Status              string     `json:"status"`
	Progress            int        `json:"progress"`
	ScheduleType        string     `json:"schedule_type"`
	ScheduledFor        *time.Time `json:"scheduled_for,omitempty"`
	RecurringPattern    string     `json:"recurring_pattern,omitempty"`
	PostTasks           []string   `json:"post_tasks,omitempty"`
	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
	NextRunAt           *time.Time `json:"next_run_at,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TaskRunView is the JSON representation of a post-deployment task run
type TaskRunView struct {
	ID           uuid.UUID `json:"id"`
	DeploymentID uuid.UUID `json:"deployment_id"`
	TaskType     string    `json:"task_type"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DeviceStatusView is the JSON representation of a device's latest deployment state
type DeviceStatusView struct {
	DeviceID     string    `json:"device_id"`
	ImageID      string    `json:"image_id"`
	DeploymentID uuid.UUID `json:"deployment_id"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConvertDeploymentToView converts a backend Deployment to its JSON view
func ConvertDeploymentToView(d *domain.Deployment, now time.Time) DeploymentView {
	return DeploymentView{
		ID:                  d.ID,
		DeviceID:            d.DeviceID,
		ImageID:             d.ImageID,
		Status:              d.Status.String(),
		Progress:            d.Progress,
		ScheduleType:        d.ScheduleType.String(),
		ScheduledFor:        d.ScheduledFor,
		RecurringPattern:    d.PatternStr(),
		PostTasks:           d.PostTasks,
		LastRunAt:           d.LastRunAt,
		NextRunAt:           d.NextRunAt,
		StartedAt:           d.StartedAt,
		CompletedAt:         d.CompletedAt,
		EstimatedCompletion: EstimateCompletion(d, now),
		ErrorMessage:        d.ErrorMessage,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

// ConvertDeploymentsToViews converts backend deployments to JSON views
func ConvertDeploymentsToViews(deployments []*domain.Deployment, now time.Time) []DeploymentView {
	views := make([]DeploymentView, len(deployments))
	for i, d := range deployments {
		views[i] = ConvertDeploymentToView(d, now)
	}
	return views
}

// ConvertTaskRunToView converts a backend TaskRun to its JSON view
func ConvertTaskRunToView(run *domain.TaskRun) TaskRunView {
	return TaskRunView{
		ID:           run.ID,
		DeploymentID: run.DeploymentID,
		TaskType:     run.TaskType,
		Status:       run.Status.String(),
		Progress:     run.Progress,
		ErrorMessage: run.ErrorMessage,
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
	}
}

// ConvertTaskRunsToViews converts backend task runs to JSON views
func ConvertTaskRunsToViews(runs []*domain.TaskRun) []TaskRunView {
	views := make([]TaskRunView, len(runs))
	for i, run := range runs {
		views[i] = ConvertTaskRunToView(run)
	}
	return views
}

// ConvertDeviceStatusToView converts a backend DeviceStatus to its JSON view
func ConvertDeviceStatusToView(s domain.DeviceStatus) DeviceStatusView {
	return DeviceStatusView{
		DeviceID:     s.DeviceID,
		ImageID:      s.ImageID,
		DeploymentID: s.DeploymentID,
		Status:       s.Status.String(),
		Progress:     s.Progress,
		UpdatedAt:    s.UpdatedAt,
	}
}

// EstimateCompletion extrapolates a completion time from the progress rate
// observed since imaging started. Returns nil unless the deployment is
// actively imaging and has reported enough progress to extrapolate from.
// Display only, never persisted.
func EstimateCompletion(d *domain.Deployment, now time.Time) *time.Time {
	if d.Status != domain.DeploymentStatusDeploying {
		return nil
	}
	if d.StartedAt == nil || d.Progress <= 0 || d.Progress >= 100 {
		return nil
	}

	elapsed := now.Sub(*d.StartedAt)
	if elapsed <= 0 {
		return nil
	}

	remaining := time.Duration(float64(elapsed) * float64(100-d.Progress) / float64(d.Progress))
	eta := now.Add(remaining)
	return &eta
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response",
			"layer", "handlers",
			"operation", "write_json",
			"error", err)
	}
}

// errorResponse is the JSON body for error responses
type errorResponse struct {
	Error string `json:"error"`
}

// WriteError maps service errors to HTTP status codes and writes a JSON error body
func WriteError(w http.ResponseWriter, operation string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSchedule):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrClaimConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		LogOperationError(operation, "api", err)
	}

	WriteJSON(w, status, errorResponse{Error: err.Error()})
}

// WriteBadRequest writes a 400 response with the given message
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}

// LogOperationError logs an error with consistent structure
func LogOperationError(operation, component string, err error, args ...any) {
	logArgs := []any{
		"layer", "handlers",
		"component", component,
		"operation", operation,
		"error", err,
	}
	logArgs = append(logArgs, args...)
	slog.Error("Operation failed", logArgs...)
}
