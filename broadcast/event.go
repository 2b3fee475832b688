// Package broadcast fans out deployment state-change events to subscribed
// observers. Delivery is best-effort: subscribers get bounded buffers, slow
// ones drop their oldest messages, and history is never replayed.
package broadcast

import (
	"time"

	"github.com/google/uuid"
)

// Topics form a closed set. Each one maps to a scoped cache invalidation on
// the observer side, except TopicDeviceStatus which carries a full snapshot.
const (
	TopicDeviceStatus         = "device-status"
	TopicDeploymentProgress   = "deployment-progress"
	TopicCaptureProgress      = "capture-progress"
	TopicActivity             = "activity"
	TopicPostDeploymentUpdate = "post-deployment-update"
)

// Event is one of the typed variants below. Dispatch is on the variant, not
// on an untyped string tag.
type Event interface {
	Topic() string
}

// DeviceStatusEvent carries a full per-device status snapshot. Observers
// replace their device cache wholesale.
type DeviceStatusEvent struct {
	Devices []DeviceState `json:"devices"`
}

type DeviceState struct {
	DeviceID     string    `json:"device_id"`
	ImageID      string    `json:"image_id"`
	DeploymentID uuid.UUID `json:"deployment_id"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
}

func (DeviceStatusEvent) Topic() string { return TopicDeviceStatus }

// DeploymentProgressEvent reports a status or progress change on one deployment.
type DeploymentProgressEvent struct {
	DeploymentID uuid.UUID `json:"deployment_id"`
	DeviceID     string    `json:"device_id"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

func (DeploymentProgressEvent) Topic() string { return TopicDeploymentProgress }

// CaptureProgressEvent reports progress of an image capture from a device.
type CaptureProgressEvent struct {
	DeviceID string `json:"device_id"`
	ImageID  string `json:"image_id"`
	Progress int    `json:"progress"`
}

func (CaptureProgressEvent) Topic() string { return TopicCaptureProgress }

// ActivityEvent is a human-readable entry for the dashboard activity feed.
type ActivityEvent struct {
	DeploymentID uuid.UUID `json:"deployment_id"`
	DeviceID     string    `json:"device_id"`
	Message      string    `json:"message"`
}

func (ActivityEvent) Topic() string { return TopicActivity }

// PostDeploymentEvent reports task run progress after imaging has finished.
type PostDeploymentEvent struct {
	DeploymentID uuid.UUID `json:"deployment_id"`
	TaskRunID    uuid.UUID `json:"task_run_id"`
	TaskType     string    `json:"task_type"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

func (PostDeploymentEvent) Topic() string { return TopicPostDeploymentUpdate }

// Envelope is the wire format delivered to observers.
type Envelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvelope wraps an event for delivery.
func NewEnvelope(e Event, at time.Time) Envelope {
	return Envelope{Type: e.Topic(), Data: e, Timestamp: at}
}
