// Package jobs runs cut jobs: per-clip download, reframe analysis,
// transcode, and caption/translate/dub enhancement, publishing progress
// snapshots into the hub along the way.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/clipforge/clipforge/internal/captions"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/media/downloader"
	"github.com/clipforge/clipforge/internal/media/ffmpeg"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/reframe"
	"github.com/clipforge/clipforge/internal/service/progress"
	"github.com/clipforge/clipforge/internal/transcribe"
	"github.com/clipforge/clipforge/pkg/timefmt"
)

const (
	// fetchBufferS is the slack fetched around each segment so the boundary
	// cut never lands on a missing keyframe.
	fetchBufferS = 3.0

	// reframeFPS is the frame sampling rate for smart reframe analysis.
	reframeFPS = 2.0

	cancelPollInterval = time.Second
)

// MediaSource is the downloader surface the orchestrator needs.
type MediaSource interface {
	Info(ctx context.Context, url string) (models.VideoInfo, error)
	Download(ctx context.Context, url string, maxHeight int) (string, error)
	DownloadSection(ctx context.Context, url string, startS, endS float64, maxHeight int, dest string) error
	Subtitles(ctx context.Context, url, lang string) ([]models.SubtitleEntry, error)
}

// Transcoder spawns transcoder invocations and probes media files.
type Transcoder interface {
	Run(ctx context.Context, timeout time.Duration, args ...string) (string, error)
	Probe(ctx context.Context, path string) (ffmpeg.MediaProbe, error)
}

// Options wires an Orchestrator's collaborators. Transcriber, Translator,
// and Synthesizer may be nil; the matching enhancements then degrade to
// warnings.
type Options struct {
	Media       MediaSource
	FFmpeg      Transcoder
	Reframer    *reframe.Analyzer
	Transcriber transcribe.Transcriber
	Translator  transcribe.Translator
	Synthesizer transcribe.Synthesizer
	Hub         *progress.Hub
	Jobs        config.JobsConfig
	Storage     config.StorageConfig
	Logger      *slog.Logger
}

// Orchestrator executes cut jobs with bounded concurrency.
type Orchestrator struct {
	media       MediaSource
	ffmpeg      Transcoder
	reframer    *reframe.Analyzer
	transcriber transcribe.Transcriber
	translator  transcribe.Translator
	synth       transcribe.Synthesizer
	hub         *progress.Hub
	cfg         config.JobsConfig
	outputDir   string
	tempDir     string
	logger      *slog.Logger

	// hasAudio verifies a fetched artifact carries an audio track.
	hasAudio func(path string) (bool, error)

	slots chan struct{}

	mu     sync.Mutex
	active int
}

// New builds an Orchestrator from its wired collaborators.
func New(o Options) *Orchestrator {
	maxConcurrent := o.Jobs.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Orchestrator{
		media:       o.Media,
		ffmpeg:      o.FFmpeg,
		reframer:    o.Reframer,
		transcriber: o.Transcriber,
		translator:  o.Translator,
		synth:       o.Synthesizer,
		hub:         o.Hub,
		cfg:         o.Jobs,
		outputDir:   o.Storage.OutputPath(),
		tempDir:     o.Storage.TempPath(),
		logger:      o.Logger.With("component", "jobs"),
		hasAudio:    ffmpeg.HasAudioTrack,
		slots:       make(chan struct{}, maxConcurrent),
	}
}

// Submit validates the request, allocates a job, and starts the worker.
// The job id is returned before any work begins.
func (o *Orchestrator) Submit(req models.CutRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	req.Normalize()

	jobID := o.hub.Create(len(req.Segments))
	go o.runJob(jobID, req)
	return jobID, nil
}

// Cancel flags a running job for cancellation.
func (o *Orchestrator) Cancel(jobID string) error {
	return o.hub.Cancel(jobID)
}

// ActiveJobs reports how many job workers are currently executing.
func (o *Orchestrator) ActiveJobs() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *Orchestrator) runJob(jobID string, req models.CutRequest) {
	o.slots <- struct{}{}
	defer func() { <-o.slots }()

	o.mu.Lock()
	o.active++
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.active--
		o.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.watchCancel(ctx, cancel, jobID)

	jobDir := filepath.Join(o.tempDir, "job_"+jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		o.terminalError(jobID, len(req.Segments), fmt.Sprintf("creating temp directory: %v", err))
		return
	}
	defer os.RemoveAll(jobDir)

	caches := newJobCaches()
	defer caches.clear()

	log := o.logger.With("job_id", jobID)
	files, err := o.processClips(ctx, jobID, req, jobDir, caches, log)

	n := len(req.Segments)
	switch {
	case errors.Is(err, models.ErrCancelled):
		log.Info("job cancelled")
		o.terminalError(jobID, n, "cancelled")
	case err != nil:
		log.Error("job failed", "error", err)
		o.terminalError(jobID, n, err.Error())
	case len(files) == 0:
		log.Error("job produced no clips")
		o.terminalError(jobID, n, "all clips failed")
	default:
		log.Info("job finished", "clips", len(files))
		o.hub.Publish(jobID, progress.JobProgress{
			Status:      progress.StatusDone,
			CurrentClip: n,
			TotalClips:  n,
			Message:     "Done",
			Files:       files,
		})
	}
}

func (o *Orchestrator) terminalError(jobID string, totalClips int, msg string) {
	o.hub.Publish(jobID, progress.JobProgress{
		Status:     progress.StatusError,
		TotalClips: totalClips,
		Message:    msg,
		Error:      msg,
	})
}

// watchCancel propagates the hub cancel flag into the job context so
// in-flight spawned processes abort.
func (o *Orchestrator) watchCancel(ctx context.Context, cancel context.CancelFunc, jobID string) {
	t := time.NewTicker(cancelPollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if o.hub.Cancelled(jobID) {
				cancel()
				return
			}
		}
	}
}

// processClips runs the per-clip pipeline sequentially. A clip failure is
// logged and skipped; only cancellation or metadata failure aborts the job.
func (o *Orchestrator) processClips(ctx context.Context, jobID string, req models.CutRequest, jobDir string, caches *jobCaches, log *slog.Logger) ([]string, error) {
	ictx, icancel := context.WithTimeout(ctx, o.cfg.DownloadTimeout)
	info, err := o.media.Info(ictx, req.URL)
	icancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.ErrCancelled
		}
		return nil, fmt.Errorf("fetching video info: %w", err)
	}

	title := req.VideoTitle
	if title == "" {
		title = info.Title
	}

	n := len(req.Segments)
	var files []string

	pub := func(clip int, st progress.Status, msg string) {
		o.hub.Publish(jobID, progress.JobProgress{
			Status:      st,
			CurrentClip: clip,
			TotalClips:  n,
			Message:     msg,
			Files:       files,
		})
	}

	for i, seg := range req.Segments {
		if ctx.Err() != nil || o.hub.Cancelled(jobID) {
			return files, models.ErrCancelled
		}
		clip := i + 1
		clipLog := log.With("clip", clip)

		pub(clip, progress.StatusDownloading, fmt.Sprintf("Downloading clip %d/%d: %s → %s",
			clip, n, timefmt.Clock(seg.StartS), timefmt.Clock(seg.EndS)))

		src, offsetS, err := o.fetchClip(ctx, req, info, seg, i, jobDir, caches, clipLog)
		if err != nil {
			if ctx.Err() != nil {
				return files, models.ErrCancelled
			}
			clipLog.Error("clip download failed", "error", err)
			continue
		}

		var cropFilter string
		if req.CropMode == models.CropSmartReframe {
			pub(clip, progress.StatusAnalyzing, fmt.Sprintf("Analyzing framing for clip %d/%d", clip, n))
			cropFilter, err = o.analyzeReframe(ctx, src, offsetS, seg.EndS-seg.StartS, i, jobDir)
			if err != nil {
				if ctx.Err() != nil {
					return files, models.ErrCancelled
				}
				// Non-fatal: the transcode falls back to a center crop.
				clipLog.Warn("reframe analysis failed", "error", err)
				cropFilter = ""
			}
		}

		pub(clip, progress.StatusProcessing, fmt.Sprintf("Processing clip %d/%d", clip, n))
		outName := OutputName(title, i, seg.StartS)
		outPath := filepath.Join(o.outputDir, outName)
		_, err = o.ffmpeg.Run(ctx, o.cfg.TranscodeTimeout, ffmpeg.TranscodeArgs(ffmpeg.TranscodeOpts{
			Input:      src,
			Output:     outPath,
			SeekS:      offsetS,
			DurationS:  seg.EndS - seg.StartS,
			CropMode:   req.CropMode,
			Quality:    req.Quality,
			CropFilter: cropFilter,
		})...)
		if err != nil {
			os.Remove(outPath)
			if ctx.Err() != nil {
				return files, models.ErrCancelled
			}
			clipLog.Error("clip transcode failed", "error", err)
			continue
		}

		if req.Captions.Enabled || req.TranslateTo != "" {
			pub(clip, progress.StatusCaptioning, fmt.Sprintf("Adding captions to clip %d/%d", clip, n))
			o.enhanceClip(ctx, req, seg, i, outPath, jobDir, caches, clipLog)
			if ctx.Err() != nil {
				os.Remove(outPath)
				return files, models.ErrCancelled
			}
		}

		files = append(files, outName)
	}

	return files, nil
}

// fetchClip retrieves the source artifact for one segment: a buffered
// partial fetch when the extractor supports it, otherwise the per-job
// cached full download. Returns the source path and the seek offset of
// the segment start within it.
func (o *Orchestrator) fetchClip(ctx context.Context, req models.CutRequest, info models.VideoInfo, seg models.Segment, i int, jobDir string, caches *jobCaches, log *slog.Logger) (string, float64, error) {
	bufStart := math.Max(0, seg.StartS-fetchBufferS)
	dest := filepath.Join(jobDir, fmt.Sprintf("segment_%d_%s.mp4", i, info.ID))

	dctx, dcancel := context.WithTimeout(ctx, o.cfg.DownloadTimeout)
	err := o.media.DownloadSection(dctx, req.URL, bufStart, seg.EndS+fetchBufferS, req.Quality, dest)
	dcancel()

	switch {
	case err == nil:
		ok, aerr := o.hasAudio(dest)
		if aerr == nil && ok {
			return dest, seg.StartS - bufStart, nil
		}
		log.Warn("partial fetch has no audio track, falling back to full download", "error", aerr)
		os.Remove(dest)
	case errors.Is(err, downloader.ErrPartialUnsupported):
		log.Debug("partial fetch unsupported, falling back to full download")
	default:
		return "", 0, err
	}

	path, err := caches.fullVideo(func() (string, error) {
		fctx, fcancel := context.WithTimeout(ctx, o.cfg.DownloadTimeout)
		defer fcancel()
		return o.media.Download(fctx, req.URL, req.Quality)
	})
	if err != nil {
		return "", 0, fmt.Errorf("full download fallback: %w", err)
	}
	return path, seg.StartS, nil
}

// analyzeReframe samples frames from the clip range and derives the smart
// reframe crop filter.
func (o *Orchestrator) analyzeReframe(ctx context.Context, src string, offsetS, durationS float64, i int, jobDir string) (string, error) {
	probe, err := o.ffmpeg.Probe(ctx, src)
	if err != nil {
		return "", fmt.Errorf("probing source: %w", err)
	}

	pattern := filepath.Join(jobDir, fmt.Sprintf("frames_%d_%%04d.jpg", i))
	if _, err := o.ffmpeg.Run(ctx, o.cfg.AnalysisTimeout,
		ffmpeg.FrameSampleArgs(src, offsetS, durationS, reframeFPS, pattern)...); err != nil {
		return "", fmt.Errorf("sampling frames: %w", err)
	}

	frames, _ := filepath.Glob(filepath.Join(jobDir, fmt.Sprintf("frames_%d_*.jpg", i)))
	sort.Strings(frames)
	defer func() {
		for _, f := range frames {
			os.Remove(f)
		}
	}()

	analysis, err := o.reframer.AnalyzeSource(ctx, frames, reframeFPS, probe.Width, probe.Height)
	if err != nil {
		return "", err
	}
	return analysis.CropFilter(probe.Width, probe.Height), nil
}

// enhanceClip applies captions, translation, and dubbing to a finished
// clip. Every failure here downgrades to a warning; the clip ships without
// the enhancement.
func (o *Orchestrator) enhanceClip(ctx context.Context, req models.CutRequest, seg models.Segment, i int, outPath, jobDir string, caches *jobCaches, log *slog.Logger) {
	entries, err := o.clipSubtitles(ctx, req, seg, i, outPath, jobDir, caches)
	if err != nil {
		log.Warn("subtitle acquisition failed", "error", err)
		return
	}
	if len(entries) == 0 {
		log.Debug("no subtitles available for clip")
		return
	}

	if req.TranslateTo != "" && o.translator != nil {
		translated, err := o.translator.Translate(ctx, entries, req.TranslateTo)
		if err != nil {
			log.Warn("translation failed, keeping original language", "error", err)
		} else {
			entries = translated
		}
	}

	if req.Captions.Enabled {
		if err := o.burnCaptions(ctx, entries, req, i, outPath, jobDir); err != nil {
			log.Warn("caption overlay failed", "error", err)
		}
	}

	if req.TranslateMode == "dub" && o.synth != nil {
		if err := o.dubClip(ctx, entries, req, i, outPath, jobDir); err != nil {
			log.Warn("dubbing failed", "error", err)
		}
	}
}

// clipSubtitles resolves caption entries for one clip, in preference
// order: caller-edited entries, cached full-video subtitles sliced to the
// segment, local transcription of the clip audio.
func (o *Orchestrator) clipSubtitles(ctx context.Context, req models.CutRequest, seg models.Segment, i int, outPath, jobDir string, caches *jobCaches) ([]models.SubtitleEntry, error) {
	if edited, ok := req.EditedSubtitles[seg.ID]; ok && len(edited) > 0 {
		return edited, nil
	}

	full := caches.subtitles(func() []models.SubtitleEntry {
		sctx, scancel := context.WithTimeout(ctx, o.cfg.SubtitleTimeout)
		defer scancel()
		subs, err := o.media.Subtitles(sctx, req.URL, "")
		if err != nil {
			o.logger.Debug("subtitle fetch failed", "error", err)
			return nil
		}
		return subs
	})
	if sliced := captions.Slice(full, seg.StartS, seg.EndS); len(sliced) > 0 {
		return sliced, nil
	}

	if o.transcriber == nil {
		return nil, nil
	}
	wav := filepath.Join(jobDir, fmt.Sprintf("audio_%d.wav", i))
	if _, err := o.ffmpeg.Run(ctx, o.cfg.AnalysisTimeout, ffmpeg.ExtractAudioArgs(outPath, wav)...); err != nil {
		return nil, fmt.Errorf("extracting clip audio: %w", err)
	}
	defer os.Remove(wav)
	return o.transcriber.Transcribe(ctx, wav)
}

func (o *Orchestrator) burnCaptions(ctx context.Context, entries []models.SubtitleEntry, req models.CutRequest, i int, outPath, jobDir string) error {
	style, err := captions.Preset(req.Captions.Preset)
	if err != nil {
		return err
	}
	if style == (captions.Style{}) {
		return nil
	}

	assPath := filepath.Join(jobDir, fmt.Sprintf("captions_%d.ass", i))
	if err := os.WriteFile(assPath, []byte(captions.Render(entries, style)), 0o644); err != nil {
		return fmt.Errorf("writing stylesheet: %w", err)
	}

	tmp := outPath + ".tmp"
	if _, err := o.ffmpeg.Run(ctx, o.cfg.TranscodeTimeout,
		ffmpeg.CaptionBurnArgs(outPath, assPath, tmp, req.Quality)...); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, outPath)
}

func (o *Orchestrator) dubClip(ctx context.Context, entries []models.SubtitleEntry, req models.CutRequest, i int, outPath, jobDir string) error {
	tracks := make([]ffmpeg.DubbedTrack, 0, len(entries))
	for j, e := range entries {
		wav := filepath.Join(jobDir, fmt.Sprintf("dub_%d_%d.wav", i, j))
		if err := o.synth.Synthesize(ctx, e.Text, req.TranslateTo, wav); err != nil {
			return fmt.Errorf("synthesizing entry %d: %w", j, err)
		}
		tracks = append(tracks, ffmpeg.DubbedTrack{Path: wav, DelayS: e.StartS})
	}
	if len(tracks) == 0 {
		return nil
	}

	tmp := outPath + ".tmp"
	if _, err := o.ffmpeg.Run(ctx, o.cfg.TranscodeTimeout,
		ffmpeg.DubMixArgs(outPath, tracks, req.DubMixGain, tmp)...); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, outPath)
}

// jobCaches holds the per-job full-video and subtitle caches. A fresh set
// is created at submit and cleared at completion, so concurrent jobs never
// share state.
type jobCaches struct {
	store *gocache.Cache
}

const (
	fullVideoCacheKey = "full_video"
	subtitleCacheKey  = "subtitles"
)

func newJobCaches() *jobCaches {
	return &jobCaches{store: gocache.New(gocache.NoExpiration, gocache.NoExpiration)}
}

// fullVideo returns the cached full-download path, fetching it once.
func (c *jobCaches) fullVideo(fetch func() (string, error)) (string, error) {
	if v, ok := c.store.Get(fullVideoCacheKey); ok {
		return v.(string), nil
	}
	path, err := fetch()
	if err != nil {
		return "", err
	}
	c.store.Set(fullVideoCacheKey, path, gocache.NoExpiration)
	return path, nil
}

// subtitles returns the cached full-video subtitle set, fetching it once.
// An empty fetch result is cached too, so a video without subtitles is not
// re-queried per clip.
func (c *jobCaches) subtitles(fetch func() []models.SubtitleEntry) []models.SubtitleEntry {
	if v, ok := c.store.Get(subtitleCacheKey); ok {
		return v.([]models.SubtitleEntry)
	}
	subs := fetch()
	c.store.Set(subtitleCacheKey, subs, gocache.NoExpiration)
	return subs
}

// clear drops the caches and removes the cached full-video artifact.
func (c *jobCaches) clear() {
	if v, ok := c.store.Get(fullVideoCacheKey); ok {
		os.Remove(v.(string))
	}
	c.store.Flush()
}
