package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pxedeck/pxedeck/app"
)

const keepAliveInterval = 15 * time.Second

// HandleEventStream serves the live event feed over Server-Sent Events.
// Topics can be narrowed with repeated ?topic= query parameters; by default
// the stream carries every topic. There is no replay: the stream starts at
// the first event published after the subscription.
func HandleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	hub := app.GetHub()
	if hub == nil {
		http.Error(w, "event hub unavailable", http.StatusServiceUnavailable)
		return
	}

	buffer := 0
	if cfg := app.GetConfig(); cfg != nil {
		buffer = cfg.EventBufferSize
	}

	topics := r.URL.Query()["topic"]
	events, unsubscribe := hub.Subscribe(buffer, topics...)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case env, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				slog.Error("Failed to encode event",
					"layer", "handlers",
					"operation", "event_stream",
					"event_type", env.Type,
					"error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
