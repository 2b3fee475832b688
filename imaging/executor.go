// Package imaging dispatches deployment work to the PXE imaging agent.
package imaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pxedeck/pxedeck/domain"
)

// startRequest is the payload sent to the imaging agent when a deployment fires.
type startRequest struct {
	DeploymentID string   `json:"deployment_id"`
	DeviceID     string   `json:"device_id"`
	ImageID      string   `json:"image_id"`
	PostTasks    []string `json:"post_tasks,omitempty"`
}

// HTTPExecutor signals deployment starts to a remote imaging agent over HTTP.
type HTTPExecutor struct {
	baseURL string
	client  *http.Client
}

func NewHTTPExecutor(baseURL string) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (e *HTTPExecutor) StartDeployment(ctx context.Context, deployment *domain.Deployment) error {
	payload := startRequest{
		DeploymentID: deployment.ID.String(),
		DeviceID:     deployment.DeviceID,
		ImageID:      deployment.ImageID,
		PostTasks:    deployment.PostTasks,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode start request: %w", err)
	}

	url := e.baseURL + "/api/deployments/start"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("imaging agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("imaging agent rejected start for deployment %s: status %d: %s",
			deployment.ID, resp.StatusCode, string(msg))
	}

	slog.Debug("Imaging agent accepted deployment start",
		"deployment_id", deployment.ID,
		"device_id", deployment.DeviceID)
	return nil
}

// LogExecutor records deployment starts without contacting an agent. Used
// when no imaging agent URL is configured, so deployments progress only
// through the pipeline callback API.
type LogExecutor struct{}

func NewLogExecutor() *LogExecutor {
	return &LogExecutor{}
}

func (e *LogExecutor) StartDeployment(_ context.Context, deployment *domain.Deployment) error {
	slog.Info("Deployment fired",
		"deployment_id", deployment.ID,
		"device_id", deployment.DeviceID,
		"image_id", deployment.ImageID)
	return nil
}
