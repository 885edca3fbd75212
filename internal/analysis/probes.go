package analysis

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/clipforge/clipforge/internal/models"
)

// Probe constants.
const (
	// ProbeWindowS is the aggregation window for audio and scene probes.
	ProbeWindowS = 2.0
	// CommentBucketS is the bucket width for comment timestamp clustering.
	CommentBucketS = 5
	// StrongCommentBuckets is how many distinct timestamp buckets make the
	// comment signal strong enough to skip the audio/scene fallback.
	StrongCommentBuckets = 5

	// Loudness mapping range in dBFS.
	loudnessFloorDB   = -60.0
	loudnessCeilingDB = -10.0

	// Silence fallback parameters.
	silenceNoiseDB      = -35.0
	silenceMinDurationS = 0.3
	silenceDamping      = 0.9

	// SceneThreshold is the transcoder scene-change detection threshold.
	SceneThreshold = 0.3
)

// EngagementSource provides signals obtainable without downloading the video.
type EngagementSource interface {
	// Heatmap returns the platform's precomputed viewer-engagement curve,
	// or an empty slice when the platform has none.
	Heatmap(ctx context.Context, url string) ([]models.IntensityPoint, error)
	// Comments fetches up to max comments for the URL.
	Comments(ctx context.Context, url string, max int) ([]models.Comment, error)
}

// MediaAnalyzer runs transcoder analysis passes over a local media file.
type MediaAnalyzer interface {
	// AudioLevels returns per-window RMS loudness statistics.
	AudioLevels(ctx context.Context, path string, windowS float64) ([]models.LoudnessWindow, error)
	// SilenceIntervals returns detected silence ranges.
	SilenceIntervals(ctx context.Context, path string, noiseDB, minDurationS float64) ([]models.SilenceInterval, error)
	// SceneChanges returns scene-change timestamps in seconds. The pass is
	// downsampled and time-bounded by the video's length class.
	SceneChanges(ctx context.Context, path string, threshold, videoDurationS float64) ([]float64, error)
}

// Prober acquires the four raw intensity curves. Every probe absorbs its own
// failures and returns an empty source instead.
type Prober struct {
	engagement  EngagementSource
	media       MediaAnalyzer
	maxComments int
	logger      *slog.Logger
}

// NewProber builds a Prober over the given collaborators.
func NewProber(engagement EngagementSource, media MediaAnalyzer, maxComments int, logger *slog.Logger) *Prober {
	if maxComments <= 0 {
		maxComments = 200
	}
	return &Prober{
		engagement:  engagement,
		media:       media,
		maxComments: maxComments,
		logger:      logger.With("component", "prober"),
	}
}

// HeatmapSource fetches the platform viewer-engagement heatmap. Values are
// assumed already normalized to [0,1].
func (p *Prober) HeatmapSource(ctx context.Context, url string) models.SignalSource {
	src := models.SignalSource{Method: models.MethodHeatmap, Weight: 1.0}
	points, err := p.engagement.Heatmap(ctx, url)
	if err != nil {
		p.logger.Debug("heatmap probe failed", "error", err)
		return src
	}
	src.Points = points
	return src
}

// AudioSource derives an intensity curve from per-window RMS loudness,
// falling back to silence detection when the stats pass fails.
func (p *Prober) AudioSource(ctx context.Context, path string, durationS float64) models.SignalSource {
	src := models.SignalSource{Method: models.MethodAudio, Weight: WeightAudio}

	levels, err := p.media.AudioLevels(ctx, path, ProbeWindowS)
	if err != nil || len(levels) == 0 {
		if err != nil {
			p.logger.Debug("audio stats pass failed, trying silence fallback", "error", err)
		}
		src.Points = p.audioFromSilences(ctx, path, durationS)
		return src
	}

	points := make([]models.IntensityPoint, 0, len(levels))
	for _, lv := range levels {
		db := math.Max(loudnessFloorDB, math.Min(loudnessCeilingDB, lv.RMSdB))
		points = append(points, models.IntensityPoint{
			StartMs:   int64(lv.StartS * 1000),
			EndMs:     int64(lv.EndS * 1000),
			Intensity: (db - loudnessFloorDB) / (loudnessCeilingDB - loudnessFloorDB),
		})
	}
	normalizePoints(points)
	src.Points = points
	return src
}

// audioFromSilences builds the fallback curve: windows overlapping silence
// are damped in proportion to the overlap.
func (p *Prober) audioFromSilences(ctx context.Context, path string, durationS float64) []models.IntensityPoint {
	silences, err := p.media.SilenceIntervals(ctx, path, silenceNoiseDB, silenceMinDurationS)
	if err != nil {
		p.logger.Debug("silence fallback failed", "error", err)
		return nil
	}

	windows := int(math.Ceil(durationS / ProbeWindowS))
	if windows < 1 {
		return nil
	}
	points := make([]models.IntensityPoint, windows)
	for i := range points {
		start := float64(i) * ProbeWindowS
		end := math.Min(start+ProbeWindowS, durationS)
		overlap := 0.0
		for _, sil := range silences {
			lo := math.Max(start, sil.StartS)
			hi := math.Min(end, sil.EndS)
			if hi > lo {
				overlap += hi - lo
			}
		}
		ratio := overlap / ProbeWindowS
		points[i] = models.IntensityPoint{
			StartMs:   int64(start * 1000),
			EndMs:     int64(end * 1000),
			Intensity: 1 - ratio*silenceDamping,
		}
	}
	normalizePoints(points)
	return points
}

// SceneSource aggregates scene-change events into windowed counts.
func (p *Prober) SceneSource(ctx context.Context, path string, durationS float64) models.SignalSource {
	src := models.SignalSource{Method: models.MethodScene, Weight: WeightScene}

	events, err := p.media.SceneChanges(ctx, path, SceneThreshold, durationS)
	if err != nil {
		p.logger.Debug("scene probe failed", "error", err)
		return src
	}
	if len(events) == 0 {
		return src
	}

	windows := int(math.Ceil(durationS / ProbeWindowS))
	if windows < 1 {
		return src
	}
	counts := make([]float64, windows)
	for _, t := range events {
		idx := int(t / ProbeWindowS)
		if idx >= 0 && idx < windows {
			counts[idx]++
		}
	}
	normalize(counts)

	points := make([]models.IntensityPoint, windows)
	for i := range points {
		start := float64(i) * ProbeWindowS
		end := math.Min(start+ProbeWindowS, durationS)
		points[i] = models.IntensityPoint{
			StartMs:   int64(start * 1000),
			EndMs:     int64(end * 1000),
			Intensity: counts[i],
		}
	}
	src.Points = points
	return src
}

// CommentSource clusters timestamp mentions in comments into buckets and
// returns the resulting curve plus ranked peaks for explainability.
func (p *Prober) CommentSource(ctx context.Context, url string, durationS float64) (models.SignalSource, []models.CommentPeak) {
	src := models.SignalSource{Method: models.MethodComments, Weight: WeightComments}

	comments, err := p.engagement.Comments(ctx, url, p.maxComments)
	if err != nil {
		p.logger.Debug("comment probe failed", "error", err)
		return src, nil
	}

	// Timestamps slightly past the end still count; links often round up.
	maxS := int(durationS) + 5
	type bucketInfo struct {
		count  int
		sample string
	}
	buckets := make(map[int]*bucketInfo)
	for _, c := range comments {
		for _, secs := range ExtractTimestamps(c.Text, maxS) {
			b := secs / CommentBucketS
			info := buckets[b]
			if info == nil {
				info = &bucketInfo{sample: c.Text}
				buckets[b] = info
			}
			info.count++
		}
	}
	if len(buckets) == 0 {
		return src, nil
	}

	keys := make([]int, 0, len(buckets))
	maxCount := 0
	for b, info := range buckets {
		keys = append(keys, b)
		if info.count > maxCount {
			maxCount = info.count
		}
	}
	sort.Ints(keys)

	points := make([]models.IntensityPoint, 0, len(keys))
	peaks := make([]models.CommentPeak, 0, len(keys))
	for _, b := range keys {
		info := buckets[b]
		points = append(points, models.IntensityPoint{
			StartMs:   int64(b * CommentBucketS * 1000),
			EndMs:     int64((b + 1) * CommentBucketS * 1000),
			Intensity: float64(info.count) / float64(maxCount),
		})
		peaks = append(peaks, models.CommentPeak{
			TimeS:      float64(b * CommentBucketS),
			Count:      info.count,
			SampleText: info.sample,
		})
	}
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].Count > peaks[j].Count })

	src.Points = points
	return src, peaks
}

// StrongCommentSignal reports whether the comment curve has enough distinct
// timestamp buckets to stand on its own.
func StrongCommentSignal(src models.SignalSource) bool {
	return src.Method == models.MethodComments && len(src.Points) >= StrongCommentBuckets
}

// normalizePoints min-max scales point intensities to [0,1] in place.
func normalizePoints(points []models.IntensityPoint) {
	if len(points) == 0 {
		return
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Intensity
	}
	normalize(values)
	for i := range points {
		points[i].Intensity = values[i]
	}
}
