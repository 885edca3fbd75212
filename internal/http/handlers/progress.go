package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/service/progress"
)

// ProgressHandler streams job and batch progress over SSE.
type ProgressHandler struct {
	hub               *progress.Hub
	heartbeatInterval time.Duration
	logger            *slog.Logger
}

// NewProgressHandler creates a progress streaming handler.
func NewProgressHandler(hub *progress.Hub, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{
		hub:               hub,
		heartbeatInterval: 30 * time.Second,
		logger:            logger.With("component", "sse"),
	}
}

// SetHeartbeatInterval overrides the SSE heartbeat interval (for testing).
func (h *ProgressHandler) SetHeartbeatInterval(interval time.Duration) {
	h.heartbeatInterval = interval
}

// RegisterSSE registers the streaming routes on the chi router. These
// bypass huma: SSE needs raw control of the response stream.
func (h *ProgressHandler) RegisterSSE(router chi.Router) {
	router.Get("/api/jobs/{id}/progress", h.handleStream)
	router.Get("/api/batch/{id}/progress", h.handleStream)
}

// handleStream attaches to the job's progress stream and forwards each
// snapshot as one SSE data frame. The stream closes after the terminal
// event.
func (h *ProgressHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	listener, err := h.hub.Attach(id)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	defer h.hub.Detach(id, listener)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)

	fmt.Fprint(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		h.logger.Debug("initial flush failed", "job_id", id, "error", err)
		return
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				h.logger.Debug("heartbeat flush failed, client gone", "job_id", id)
				return
			}
		case p, ok := <-listener.Events():
			if !ok {
				return
			}
			if err := h.writeEvent(w, p); err != nil {
				h.logger.Debug("event write failed", "job_id", id, "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				h.logger.Debug("event flush failed, client gone", "job_id", id)
				return
			}
		}
	}
}

// writeEvent writes one progress snapshot as a single SSE frame.
func (h *ProgressHandler) writeEvent(w http.ResponseWriter, p progress.JobProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
