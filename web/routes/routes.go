// Package routes provides HTTP route registration for the web server.
package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pxedeck/pxedeck/app"
	"github.com/pxedeck/pxedeck/domain"
	"github.com/pxedeck/pxedeck/scheduler"
	"github.com/pxedeck/pxedeck/web/handlers"
)

// scheduleRequest is the JSON body for creating a deployment. ImageID wins
// over ImageName; a bare ImageName is normalized into an identifier.
type scheduleRequest struct {
	DeviceID         string     `json:"device_id"`
	ImageID          string     `json:"image_id"`
	ImageName        string     `json:"image_name"`
	ScheduleType     string     `json:"schedule_type"`
	ScheduledFor     *time.Time `json:"scheduled_for"`
	RecurringPattern string     `json:"recurring_pattern"`
	PostTasks        []string   `json:"post_tasks"`
}

// progressRequest is the JSON body for pipeline progress callbacks
type progressRequest struct {
	Progress int `json:"progress"`
}

// failureRequest is the JSON body for pipeline failure callbacks
type failureRequest struct {
	Message string `json:"message"`
}

// captureProgressRequest is the JSON body for image capture progress reports
type captureProgressRequest struct {
	DeviceID string `json:"device_id"`
	ImageID  string `json:"image_id"`
	Progress int    `json:"progress"`
}

// RegisterDeploymentRoutes registers the deployment management API
func RegisterDeploymentRoutes(r chi.Router) {
	r.Route("/api/deployments", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var body scheduleRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				handlers.WriteBadRequest(w, "invalid request body")
				return
			}

			imageID := body.ImageID
			if imageID == "" && body.ImageName != "" {
				imageID = handlers.NormalizeImageID(body.ImageName)
			}

			scheduleType, err := domain.ParseScheduleType(body.ScheduleType)
			if err != nil {
				handlers.WriteBadRequest(w, err.Error())
				return
			}

			deployment, err := app.GetSchedulerService().Schedule(scheduler.ScheduleRequest{
				DeviceID:         body.DeviceID,
				ImageID:          imageID,
				ScheduleType:     scheduleType,
				ScheduledFor:     body.ScheduledFor,
				RecurringPattern: body.RecurringPattern,
				PostTasks:        body.PostTasks,
			})
			if err != nil {
				handlers.WriteError(w, "schedule_deployment", err)
				return
			}

			handlers.WriteJSON(w, http.StatusCreated,
				handlers.ConvertDeploymentToView(deployment, time.Now()))
		})

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			deployments, err := app.GetSchedulerService().List()
			if err != nil {
				handlers.WriteError(w, "list_deployments", err)
				return
			}
			handlers.WriteJSON(w, http.StatusOK,
				handlers.ConvertDeploymentsToViews(deployments, time.Now()))
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				id, err := handlers.ParseDeploymentID(req)
				if err != nil {
					handlers.WriteBadRequest(w, err.Error())
					return
				}

				deployment, err := app.GetSchedulerService().Get(id)
				if err != nil {
					handlers.WriteError(w, "get_deployment", err)
					return
				}
				handlers.WriteJSON(w, http.StatusOK,
					handlers.ConvertDeploymentToView(deployment, time.Now()))
			})

			r.Post("/cancel", func(w http.ResponseWriter, req *http.Request) {
				id, err := handlers.ParseDeploymentID(req)
				if err != nil {
					handlers.WriteBadRequest(w, err.Error())
					return
				}

				if err := app.GetSchedulerService().Cancel(req.Context(), id); err != nil {
					handlers.WriteError(w, "cancel_deployment", err)
					return
				}

				deployment, err := app.GetSchedulerService().Get(id)
				if err != nil {
					handlers.WriteError(w, "cancel_deployment", err)
					return
				}
				handlers.WriteJSON(w, http.StatusOK,
					handlers.ConvertDeploymentToView(deployment, time.Now()))
			})

			r.Get("/tasks", func(w http.ResponseWriter, req *http.Request) {
				id, err := handlers.ParseDeploymentID(req)
				if err != nil {
					handlers.WriteBadRequest(w, err.Error())
					return
				}

				if _, err := app.GetSchedulerService().Get(id); err != nil {
					handlers.WriteError(w, "list_task_runs", err)
					return
				}

				runs, err := app.GetSchedulerService().ListTaskRuns(id)
				if err != nil {
					handlers.WriteError(w, "list_task_runs", err)
					return
				}
				handlers.WriteJSON(w, http.StatusOK, handlers.ConvertTaskRunsToViews(runs))
			})
		})
	})
}

// RegisterDeviceRoutes registers the device status API
func RegisterDeviceRoutes(r chi.Router) {
	r.Get("/api/devices/status", func(w http.ResponseWriter, req *http.Request) {
		statuses, err := app.GetSchedulerService().DeviceStatuses()
		if err != nil {
			handlers.WriteError(w, "device_statuses", err)
			return
		}

		views := make([]handlers.DeviceStatusView, len(statuses))
		for i, s := range statuses {
			views[i] = handlers.ConvertDeviceStatusToView(s)
		}
		handlers.WriteJSON(w, http.StatusOK, views)
	})
}

// RegisterPipelineRoutes registers the callback API used by the imaging
// agent to report deployment and task progress.
func RegisterPipelineRoutes(r chi.Router) {
	r.Route("/api/pipeline", func(r chi.Router) {
		r.Route("/deployments/{id}", func(r chi.Router) {
			r.Post("/started", func(w http.ResponseWriter, req *http.Request) {
				id, err := handlers.ParseDeploymentID(req)
				if err != nil {
					handlers.WriteBadRequest(w, err.Error())
					return
				}
				if err := app.GetSchedulerService().HandleExecutionStarted(req.Context(), id); err != nil {
					handlers.WriteError(w, "execution_started", err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/progress", func(w http.ResponseWriter, req *http.Request) {
				id, err := handlers.ParseDeploymentID(req)
				if err != nil {
					handlers.WriteBadRequest(w, err.Error())
					return
				}
				var body progressRequest
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					handlers.WriteBadRequest(w, "invalid request body")
					return
				}
				if err := app.GetSchedulerService().HandleProgress(req.Context(), id, body.Progress); err != nil {
					handlers.WriteError(w, "deployment_progress", err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/completed", func(w http.ResponseWriter, req *http.Request) {
				id, err := handlers.ParseDeploymentID(req)
				if err != nil {
					handlers.WriteBadRequest(w, err.Error())
					return
				}
				if err := app.GetSchedulerService().HandleImagingCompleted(req.Context(), id); err != nil {
					handlers.WriteError(w, "imaging_completed", err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/failed", func(w http.ResponseWriter, req *http.Request) {
				id, err := handlers.ParseDeploymentID(req)
				if err != nil {
					handlers.WriteBadRequest(w, err.Error())
					return
				}
				var body failureRequest
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					handlers.WriteBadRequest(w, "invalid request body")
					return
				}
				if err := app.GetSchedulerService().HandleFailure(req.Context(), id, body.Message); err != nil {
					handlers.WriteError(w, "imaging_failed", err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
		})

		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Post("/started", func(w http.ResponseWriter, req *http.Request) {
				id, err := handlers.ParseTaskRunID(req)
				if err != nil {
					handlers.WriteBadRequest(w, err.Error())
					return
				}
				if err := app.GetSchedulerService().HandleTaskStarted(req.Context(), id); err != nil {
					handlers.WriteError(w, "task_started", err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/progress", func(w http.ResponseWriter, req *http.Request) {
				id, err := handlers.ParseTaskRunID(req)
				if err != nil {
					handlers.WriteBadRequest(w, err.Error())
					return
				}
				var body progressRequest
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					handlers.WriteBadRequest(w, "invalid request body")
					return
				}
				if err := app.GetSchedulerService().HandleTaskProgress(req.Context(), id, body.Progress); err != nil {
					handlers.WriteError(w, "task_progress", err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/completed", func(w http.ResponseWriter, req *http.Request) {
				id, err := handlers.ParseTaskRunID(req)
				if err != nil {
					handlers.WriteBadRequest(w, err.Error())
					return
				}
				if err := app.GetSchedulerService().HandleTaskCompleted(req.Context(), id); err != nil {
					handlers.WriteError(w, "task_completed", err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})

			r.Post("/failed", func(w http.ResponseWriter, req *http.Request) {
				id, err := handlers.ParseTaskRunID(req)
				if err != nil {
					handlers.WriteBadRequest(w, err.Error())
					return
				}
				var body failureRequest
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					handlers.WriteBadRequest(w, "invalid request body")
					return
				}
				if err := app.GetSchedulerService().HandleTaskFailed(req.Context(), id, body.Message); err != nil {
					handlers.WriteError(w, "task_failed", err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
		})

		r.Post("/capture-progress", func(w http.ResponseWriter, req *http.Request) {
			var body captureProgressRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				handlers.WriteBadRequest(w, "invalid request body")
				return
			}
			if body.DeviceID == "" || body.ImageID == "" {
				handlers.WriteBadRequest(w, "device_id and image_id are required")
				return
			}
			if err := app.GetSchedulerService().PublishCaptureProgress(body.DeviceID, body.ImageID, body.Progress); err != nil {
				handlers.WriteError(w, "capture_progress", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
}

// RegisterEventRoutes registers the live event stream endpoint
func RegisterEventRoutes(r chi.Router) {
	r.Get("/events", handlers.HandleEventStream)
}

// RegisterUtilityRoutes registers utility routes like the health check
func RegisterUtilityRoutes(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		handlers.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": handlers.GetVersion(),
		})
	})
}
