package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/clipforge/clipforge/internal/models"
)

// VideoSource resolves metadata and downloads source media for analysis.
type VideoSource interface {
	// Info returns video metadata without downloading.
	Info(ctx context.Context, url string) (models.VideoInfo, error)
	// Download fetches the full video capped at maxHeight and returns the
	// local file path.
	Download(ctx context.Context, url string, maxHeight int) (string, error)
}

// analysisDownloadHeight caps the resolution of the analysis-only download;
// signal extraction does not need more.
const analysisDownloadHeight = 480

// AnalyzerConfig tunes the analysis pipeline.
type AnalyzerConfig struct {
	WindowMs        int64
	SmoothingWindow int
	MaxComments     int
}

// Result is the full outcome of one analyze request.
type Result struct {
	Video          models.VideoInfo                    `json:"video"`
	Heatmap        []models.IntensityPoint             `json:"heatmap"`
	Segments       []models.Segment                    `json:"segments"`
	Detection      Detection                           `json:"detection"`
	ViralityScores map[string]models.ViralityBreakdown `json:"viralityScores"`
	CommentPeaks   []models.CommentPeak                `json:"commentPeaks,omitempty"`
}

// Analyzer runs the full discovery pipeline for one URL.
type Analyzer struct {
	video  VideoSource
	media  MediaAnalyzer
	prober *Prober
	cfg    AnalyzerConfig
	logger *slog.Logger
}

// NewAnalyzer wires the pipeline over its collaborators.
func NewAnalyzer(video VideoSource, engagement EngagementSource, media MediaAnalyzer, cfg AnalyzerConfig, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		video:  video,
		media:  media,
		prober: NewProber(engagement, media, cfg.MaxComments, logger),
		cfg:    cfg,
		logger: logger.With("component", "analyzer"),
	}
}

// Analyze discovers, sizes, optimizes, and scores highlight segments.
// Probe failures degrade the signal set; only a metadata failure is fatal.
func (a *Analyzer) Analyze(ctx context.Context, url string, opts DetectOptions) (*Result, error) {
	info, err := a.video.Info(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("resolving video info: %w", err)
	}
	durationMs := int64(info.DurationS * 1000)

	// The comment probe needs no media file, so it always runs first.
	commentSrc, peaks := a.prober.CommentSource(ctx, url, info.DurationS)
	heatmapSrc := a.prober.HeatmapSource(ctx, url)

	var sources []models.SignalSource
	var silences []models.SilenceInterval

	if len(heatmapSrc.Points) > 0 {
		// The platform heatmap is authoritative when present.
		sources = []models.SignalSource{heatmapSrc}
	} else if StrongCommentSignal(commentSrc) {
		// Enough distinct timestamp buckets to stand alone; the analysis
		// download and media probes are skipped entirely.
		a.logger.Debug("comment signal strong, skipping media probes",
			"buckets", len(commentSrc.Points))
		sources = []models.SignalSource{commentSrc}
	} else {
		sources = a.fallbackSources(ctx, url, info, commentSrc, &silences)
	}

	combined := Combine(sources, durationMs, CombineOptions{
		WindowMs:        a.cfg.WindowMs,
		SmoothingWindow: a.cfg.SmoothingWindow,
	})

	segments, detection := DetectSegments(combined.Points, info.DurationS, opts)
	detection.MethodsUsed = combined.MethodsUsed
	detection.Primary = primaryMethod(combined.MethodsUsed)

	optimizer := NewBoundaryOptimizer(combined.Points, silences, info.DurationS, opts.MinDurationS, opts.MaxDurationS)
	segments = optimizer.Optimize(segments)

	scores := make(map[string]models.ViralityBreakdown, len(segments))
	for _, seg := range segments {
		scores[seg.ID] = ScoreSegment(seg, combined.Points, info.DurationS)
	}

	a.logger.Info("analysis complete",
		"url", url,
		"segments", len(segments),
		"primary", detection.Primary,
		"threshold", detection.ThresholdUsed,
	)

	return &Result{
		Video:          info,
		Heatmap:        combined.Points,
		Segments:       segments,
		Detection:      detection,
		ViralityScores: scores,
		CommentPeaks:   peaks,
	}, nil
}

// fallbackSources downloads the video once and runs the audio and scene
// probes in parallel, fusing them with the comment curve.
func (a *Analyzer) fallbackSources(ctx context.Context, url string, info models.VideoInfo, commentSrc models.SignalSource, silences *[]models.SilenceInterval) []models.SignalSource {
	path, err := a.video.Download(ctx, url, analysisDownloadHeight)
	if err != nil {
		a.logger.Warn("analysis download failed, using comment signal only", "error", err)
		return []models.SignalSource{commentSrc}
	}

	var audioSrc, sceneSrc models.SignalSource
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		audioSrc = a.prober.AudioSource(gctx, path, info.DurationS)
		return nil
	})
	g.Go(func() error {
		sceneSrc = a.prober.SceneSource(gctx, path, info.DurationS)
		return nil
	})
	g.Go(func() error {
		found, serr := a.media.SilenceIntervals(gctx, path, silenceNoiseDB, silenceMinDurationS)
		if serr != nil {
			a.logger.Debug("silence pass for boundary snapping failed", "error", serr)
			return nil
		}
		*silences = found
		return nil
	})
	_ = g.Wait() // probes absorb their own errors

	return []models.SignalSource{audioSrc, sceneSrc, commentSrc}
}

// primaryMethod names the method the detection chiefly rests on.
func primaryMethod(methods []models.SignalMethod) models.SignalMethod {
	switch len(methods) {
	case 0:
		return models.MethodComments
	case 1:
		return methods[0]
	default:
		return models.MethodCombined
	}
}
