// Package progress tracks clip extraction jobs and fans their state out to
// attached listeners, typically SSE connections.
package progress

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/models"
)

const (
	// listenerBuffer is the per-listener event queue. A listener that falls
	// this far behind is detached rather than allowed to stall the job.
	listenerBuffer = 16

	// finishedRetention keeps terminal jobs queryable for late GET requests
	// before the cleanup pass drops them.
	finishedRetention = 30 * time.Minute

	cleanupInterval = 5 * time.Minute
)

// ErrUnknownJob is returned for operations on a job id the hub has never
// seen or has already expired.
var ErrUnknownJob = errors.New("unknown job")

// Listener is one attached consumer of a job's progress stream. The channel
// is closed when the job reaches a terminal status or the listener is
// detached.
type Listener struct {
	events chan JobProgress
}

// Events returns the listener's receive channel.
func (l *Listener) Events() <-chan JobProgress {
	return l.events
}

type job struct {
	latest     JobProgress
	listeners  map[*Listener]struct{}
	cancelled  bool
	closed     bool
	finishedAt time.Time
}

// Hub owns all job progress state. Workers publish snapshots into it and
// any number of listeners attach per job. Listeners are isolated from each
// other: a slow or dead one is detached without affecting the rest.
type Hub struct {
	mu     sync.RWMutex
	jobs   map[string]*job
	logger *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		jobs:   make(map[string]*job),
		logger: logger.With("component", "progress"),
		stop:   make(chan struct{}),
	}
}

// Start launches the background cleanup loop.
func (h *Hub) Start() {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.removeExpired()
			case <-h.stop:
				return
			}
		}
	}()
}

// Stop halts the cleanup loop. Jobs and listeners are left as-is.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Create registers a new job and returns its id. The job starts in the
// downloading status so a listener attaching immediately after submission
// sees a meaningful snapshot.
func (h *Hub) Create(totalClips int) string {
	id := models.NewULID().String()
	h.CreateWithID(id, totalClips)
	return id
}

// CreateWithID registers a job under a caller-chosen id, used for batch
// runs whose ids come from the batch layer.
func (h *Hub) CreateWithID(id string, totalClips int) {
	h.mu.Lock()
	h.jobs[id] = &job{
		latest: JobProgress{
			Status:     StatusDownloading,
			TotalClips: totalClips,
			Message:    "Starting",
		},
		listeners: make(map[*Listener]struct{}),
	}
	h.mu.Unlock()

	h.logger.Debug("job created", "job_id", id, "total_clips", totalClips)
}

// Get returns the latest snapshot for a job.
func (h *Hub) Get(jobID string) (JobProgress, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	j, ok := h.jobs[jobID]
	if !ok {
		return JobProgress{}, ErrUnknownJob
	}
	return j.latest, nil
}

// Attach registers a listener on a job. The latest snapshot is delivered
// first, then live events in publish order. Attaching to a finished job
// yields the terminal snapshot followed by channel close.
func (h *Hub) Attach(jobID string) (*Listener, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	j, ok := h.jobs[jobID]
	if !ok {
		return nil, ErrUnknownJob
	}

	l := &Listener{events: make(chan JobProgress, listenerBuffer)}
	l.events <- j.latest
	if j.closed {
		close(l.events)
		return l, nil
	}
	j.listeners[l] = struct{}{}
	return l, nil
}

// Detach removes a listener and closes its channel. Detaching a listener
// that is already gone is a no-op.
func (h *Hub) Detach(jobID string, l *Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()

	j, ok := h.jobs[jobID]
	if !ok {
		return
	}
	if _, registered := j.listeners[l]; !registered {
		return
	}
	delete(j.listeners, l)
	close(l.events)
}

// Publish records a new snapshot and fans it out to every attached
// listener. A listener whose queue is full is detached; delivery to the
// others continues. A terminal snapshot closes all listener channels.
func (h *Hub) Publish(jobID string, p JobProgress) {
	h.mu.Lock()
	defer h.mu.Unlock()

	j, ok := h.jobs[jobID]
	if !ok || j.closed {
		return
	}
	j.latest = p

	for l := range j.listeners {
		select {
		case l.events <- p:
		default:
			delete(j.listeners, l)
			close(l.events)
			h.logger.Debug("listener too slow, detached", "job_id", jobID)
		}
	}

	if p.Status.Terminal() {
		for l := range j.listeners {
			delete(j.listeners, l)
			close(l.events)
		}
		j.closed = true
		j.finishedAt = time.Now()
		h.logger.Debug("job finished", "job_id", jobID, "status", p.Status)
	}
}

// Cancel flags a job for cancellation. The worker observes the flag at its
// next checkpoint and publishes the terminal error snapshot itself.
func (h *Hub) Cancel(jobID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	j, ok := h.jobs[jobID]
	if !ok {
		return ErrUnknownJob
	}
	if !j.closed {
		j.cancelled = true
	}
	return nil
}

// Cancelled reports whether Cancel has been called for the job.
func (h *Hub) Cancelled(jobID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	j, ok := h.jobs[jobID]
	return ok && j.cancelled
}

func (h *Hub) removeExpired() {
	cutoff := time.Now().Add(-finishedRetention)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, j := range h.jobs {
		if j.closed && j.finishedAt.Before(cutoff) {
			delete(h.jobs, id)
		}
	}
}
