package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/analysis"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/service/progress"
)

// MaxBatchURLs caps how many videos a single batch may carry.
const MaxBatchURLs = 20

// BatchRequest describes an analyze-then-cut run over several URLs with
// shared settings.
type BatchRequest struct {
	URLs     []string                `json:"urls"`
	Settings *analysis.DetectOptions `json:"settings,omitempty"`
	CropMode models.CropMode         `json:"cropMode,omitempty"`
	Captions models.CaptionOptions   `json:"captions,omitempty"`
	Quality  int                     `json:"quality,omitempty"`
}

// BatchAnalyzer is the discovery surface the batch runner needs.
type BatchAnalyzer interface {
	Analyze(ctx context.Context, url string, opts analysis.DetectOptions) (*analysis.Result, error)
}

// BatchRunner processes each URL of a batch sequentially: analyze, submit
// a cut job for the detected segments, and relay that job's progress onto
// the batch stream.
type BatchRunner struct {
	analyzer BatchAnalyzer
	orch     *Orchestrator
	hub      *progress.Hub
	defaults analysis.DetectOptions
	logger   *slog.Logger
}

// NewBatchRunner builds a batch runner over an orchestrator and analyzer.
func NewBatchRunner(analyzer BatchAnalyzer, orch *Orchestrator, hub *progress.Hub, defaults analysis.DetectOptions, logger *slog.Logger) *BatchRunner {
	return &BatchRunner{
		analyzer: analyzer,
		orch:     orch,
		hub:      hub,
		defaults: defaults,
		logger:   logger.With("component", "batch"),
	}
}

// Submit validates the batch and starts the worker, returning the batch id
// before any work begins.
func (b *BatchRunner) Submit(req BatchRequest) (string, error) {
	if len(req.URLs) == 0 {
		return "", models.ErrURLRequired
	}
	if len(req.URLs) > MaxBatchURLs {
		return "", models.ErrBatchTooLarge
	}
	if req.CropMode != "" && !req.CropMode.Valid() {
		return "", models.ErrInvalidCropMode
	}
	if req.Quality != 0 && !models.ValidQuality(req.Quality) {
		return "", models.ErrInvalidQuality
	}

	id := uuid.NewString()
	b.hub.CreateWithID(id, len(req.URLs))
	go b.run(id, req)
	return id, nil
}

func (b *BatchRunner) run(batchID string, req BatchRequest) {
	ctx := context.Background()
	log := b.logger.With("batch_id", batchID)
	n := len(req.URLs)

	opts := b.defaults
	if req.Settings != nil {
		opts = req.Settings.Merge(b.defaults)
	}

	var allFiles []string
	for i, url := range req.URLs {
		if b.hub.Cancelled(batchID) {
			log.Info("batch cancelled")
			b.hub.Publish(batchID, progress.JobProgress{
				Status: progress.StatusError, CurrentClip: i, TotalClips: n,
				Message: "cancelled", Error: "cancelled",
			})
			return
		}
		cur := i + 1

		b.hub.Publish(batchID, progress.JobProgress{
			Status: progress.StatusAnalyzing, CurrentClip: cur, TotalClips: n,
			Message: fmt.Sprintf("Analyzing video %d/%d", cur, n), Files: allFiles,
		})

		res, err := b.analyzer.Analyze(ctx, url, opts)
		if err != nil {
			log.Error("batch analyze failed", "url", url, "error", err)
			continue
		}
		if len(res.Segments) == 0 {
			log.Warn("no segments detected", "url", url)
			continue
		}

		jobID, err := b.orch.Submit(models.CutRequest{
			URL:        url,
			Segments:   res.Segments,
			CropMode:   req.CropMode,
			Captions:   req.Captions,
			VideoTitle: res.Video.Title,
			Quality:    req.Quality,
		})
		if err != nil {
			log.Error("batch cut submit failed", "url", url, "error", err)
			continue
		}

		files, err := b.relay(batchID, jobID, cur, n, allFiles)
		if err != nil {
			log.Error("batch video failed", "url", url, "error", err)
			continue
		}
		allFiles = append(allFiles, files...)
	}

	if len(allFiles) == 0 {
		b.hub.Publish(batchID, progress.JobProgress{
			Status: progress.StatusError, CurrentClip: n, TotalClips: n,
			Message: "all videos failed", Error: "all videos failed",
		})
		return
	}
	b.hub.Publish(batchID, progress.JobProgress{
		Status: progress.StatusDone, CurrentClip: n, TotalClips: n,
		Message: "Done", Files: allFiles,
	})
}

// relay forwards one cut job's progress onto the batch stream until the
// job's terminal event, returning the files it produced.
func (b *BatchRunner) relay(batchID, jobID string, cur, n int, files []string) ([]string, error) {
	l, err := b.hub.Attach(jobID)
	if err != nil {
		return nil, err
	}
	defer b.hub.Detach(jobID, l)

	var last progress.JobProgress
	for p := range l.Events() {
		last = p
		if p.Status.Terminal() {
			continue
		}
		b.hub.Publish(batchID, progress.JobProgress{
			Status:      p.Status,
			CurrentClip: cur,
			TotalClips:  n,
			Message:     fmt.Sprintf("Video %d/%d: %s", cur, n, p.Message),
			Files:       files,
		})
	}

	if last.Status == progress.StatusError {
		return nil, errors.New(last.Error)
	}
	return last.Files, nil
}
