package observer

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pxedeck/pxedeck/broadcast"
)

const activityLimit = 200

// DeviceState is the observer's cached per-device view.
type DeviceState struct {
	DeviceID     string    `json:"device_id"`
	ImageID      string    `json:"image_id"`
	DeploymentID uuid.UUID `json:"deployment_id"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
}

// DeploymentView is the incrementally maintained deployment state.
type DeploymentView struct {
	DeploymentID uuid.UUID
	DeviceID     string
	Status       string
	Progress     int
	ErrorMessage string
}

// Cache is the observer's local dashboard state. The device snapshot is
// replaced wholesale on device-status events; every other topic applies a
// scoped update. Entries invalidated by a suspected miss are dropped and
// must be re-fetched from the store.
type Cache struct {
	mu sync.RWMutex

	devices     map[string]DeviceState
	deployments map[uuid.UUID]DeploymentView
	activity    []string

	lastTimestamp time.Time
}

func NewCache() *Cache {
	return &Cache{
		devices:     map[string]DeviceState{},
		deployments: map[uuid.UUID]DeploymentView{},
	}
}

// Apply folds one message into the cache. The returned flag reports a
// suspected missed or out-of-order delivery: the envelope timestamp moved
// backwards, so the caller should reconcile against the store.
func (c *Cache) Apply(msg Message) (suspectedMiss bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !msg.Timestamp.IsZero() {
		if msg.Timestamp.Before(c.lastTimestamp) {
			suspectedMiss = true
		} else {
			c.lastTimestamp = msg.Timestamp
		}
	}

	switch msg.Type {
	case broadcast.TopicDeviceStatus:
		var event broadcast.DeviceStatusEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return suspectedMiss, fmt.Errorf("failed to decode device snapshot: %w", err)
		}
		// Full snapshot replace, never a merge.
		c.devices = make(map[string]DeviceState, len(event.Devices))
		for _, d := range event.Devices {
			c.devices[d.DeviceID] = DeviceState{
				DeviceID:     d.DeviceID,
				ImageID:      d.ImageID,
				DeploymentID: d.DeploymentID,
				Status:       d.Status,
				Progress:     d.Progress,
			}
		}

	case broadcast.TopicDeploymentProgress:
		var event broadcast.DeploymentProgressEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return suspectedMiss, fmt.Errorf("failed to decode deployment progress: %w", err)
		}
		c.deployments[event.DeploymentID] = DeploymentView{
			DeploymentID: event.DeploymentID,
			DeviceID:     event.DeviceID,
			Status:       event.Status,
			Progress:     event.Progress,
			ErrorMessage: event.ErrorMessage,
		}

	case broadcast.TopicPostDeploymentUpdate:
		var event broadcast.PostDeploymentEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return suspectedMiss, fmt.Errorf("failed to decode post-deployment update: %w", err)
		}
		// Scoped invalidation: drop the cached deployment so the next read
		// re-fetches it with its task runs.
		delete(c.deployments, event.DeploymentID)

	case broadcast.TopicCaptureProgress:
		var event broadcast.CaptureProgressEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return suspectedMiss, fmt.Errorf("failed to decode capture progress: %w", err)
		}
		// Captures only affect the cached view of their device.
		if d, ok := c.devices[event.DeviceID]; ok {
			d.Progress = event.Progress
			c.devices[event.DeviceID] = d
		}

	case broadcast.TopicActivity:
		var event broadcast.ActivityEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return suspectedMiss, fmt.Errorf("failed to decode activity: %w", err)
		}
		c.activity = append(c.activity, event.Message)
		if len(c.activity) > activityLimit {
			c.activity = c.activity[len(c.activity)-activityLimit:]
		}

	default:
		return suspectedMiss, fmt.Errorf("unknown event type %q", msg.Type)
	}

	return suspectedMiss, nil
}

// Devices returns a copy of the device snapshot.
func (c *Cache) Devices() []DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	devices := make([]DeviceState, 0, len(c.devices))
	for _, d := range c.devices {
		devices = append(devices, d)
	}
	return devices
}

// Deployment returns the cached view of one deployment, if present. A miss
// means the entry was invalidated and should be re-fetched from the store.
func (c *Cache) Deployment(id uuid.UUID) (DeploymentView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	view, ok := c.deployments[id]
	return view, ok
}

// Activity returns the recent activity feed, oldest first.
func (c *Cache) Activity() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.activity...)
}

// ReplaceDevices installs a freshly fetched device snapshot.
func (c *Cache) ReplaceDevices(devices []DeviceState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = make(map[string]DeviceState, len(devices))
	for _, d := range devices {
		c.devices[d.DeviceID] = d
	}
}

// InvalidateScoped drops every incrementally maintained entry, keeping the
// device snapshot.
func (c *Cache) InvalidateScoped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deployments = map[uuid.UUID]DeploymentView{}
}

// InvalidateAll drops everything, including the device snapshot.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = map[string]DeviceState{}
	c.deployments = map[uuid.UUID]DeploymentView{}
}
