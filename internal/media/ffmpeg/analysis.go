package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/models"
)

// Analysis pass timeouts. The scene pass scales with input length.
const (
	audioPassTimeout = 3 * time.Minute

	sceneTimeoutShort = 90 * time.Second
	sceneTimeoutLong  = 120 * time.Second
	sceneTimeoutHuge  = 180 * time.Second

	sceneLongInputS = 30 * 60
	sceneHugeInputS = 2 * 60 * 60
)

// audioSampleRate is assumed for windowing the astats pass.
const audioSampleRate = 44100

// Analyzer runs ffmpeg analysis passes over local media files.
// It implements the transcoder side of the signal probes.
type Analyzer struct {
	runner *Runner
}

// NewAnalyzer builds an Analyzer over the given runner.
func NewAnalyzer(runner *Runner) *Analyzer {
	return &Analyzer{runner: runner}
}

// AudioLevels measures per-window RMS loudness across the whole file.
func (a *Analyzer) AudioLevels(ctx context.Context, path string, windowS float64) ([]models.LoudnessWindow, error) {
	samples := int(float64(audioSampleRate) * windowS)
	filter := fmt.Sprintf(
		"asetnsamples=n=%d:p=0,astats=metadata=1:reset=1,ametadata=mode=print:key=lavfi.astats.Overall.RMS_level",
		samples,
	)
	out, err := a.runner.Run(ctx, audioPassTimeout,
		"-hide_banner", "-nostats",
		"-i", path,
		"-vn",
		"-af", filter,
		"-f", "null", "-",
	)
	if err != nil {
		return nil, err
	}
	return parseLoudness(out, windowS), nil
}

// SilenceIntervals detects silence ranges with the given noise floor and
// minimum duration.
func (a *Analyzer) SilenceIntervals(ctx context.Context, path string, noiseDB, minDurationS float64) ([]models.SilenceInterval, error) {
	filter := fmt.Sprintf("silencedetect=noise=%.0fdB:d=%.1f", noiseDB, minDurationS)
	out, err := a.runner.Run(ctx, audioPassTimeout,
		"-hide_banner", "-nostats",
		"-i", path,
		"-vn",
		"-af", filter,
		"-f", "null", "-",
	)
	if err != nil {
		return nil, err
	}
	return parseSilences(out), nil
}

// SceneChanges returns scene-change timestamps. Long inputs are downsampled
// and the pass is time-bounded; a timeout yields the partial results parsed
// so far rather than an error.
func (a *Analyzer) SceneChanges(ctx context.Context, path string, threshold, videoDurationS float64) ([]float64, error) {
	filter, timeout := sceneFilter(threshold, videoDurationS)
	out, err := a.runner.Run(ctx, timeout,
		"-hide_banner", "-nostats",
		"-i", path,
		"-an",
		"-vf", filter,
		"-f", "null", "-",
	)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return parseSceneTimes(out), nil
}

// sceneFilter picks the sampling rate and timeout for the input's length class.
func sceneFilter(threshold, videoDurationS float64) (string, time.Duration) {
	sel := fmt.Sprintf("scale=640:-2,select='gt(scene,%.2f)',metadata=print", threshold)
	switch {
	case videoDurationS > sceneHugeInputS:
		return "fps=1," + sel, sceneTimeoutHuge
	case videoDurationS > sceneLongInputS:
		return "fps=2," + sel, sceneTimeoutLong
	default:
		return sel, sceneTimeoutShort
	}
}

var (
	ptsTimeRe      = regexp.MustCompile(`pts_time:([0-9.]+)`)
	rmsLevelRe     = regexp.MustCompile(`lavfi\.astats\.Overall\.RMS_level=(-?[0-9.]+|-inf)`)
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[0-9.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[0-9.]+)`)
)

// parseLoudness pairs each metadata frame timestamp with the RMS figure
// printed on the following line.
func parseLoudness(out string, windowS float64) []models.LoudnessWindow {
	var windows []models.LoudnessWindow
	lastPts := -1.0
	for _, line := range strings.Split(out, "\n") {
		if m := ptsTimeRe.FindStringSubmatch(line); m != nil {
			lastPts, _ = strconv.ParseFloat(m[1], 64)
			continue
		}
		m := rmsLevelRe.FindStringSubmatch(line)
		if m == nil || lastPts < 0 {
			continue
		}
		db := -120.0 // "-inf" means digital silence
		if m[1] != "-inf" {
			db, _ = strconv.ParseFloat(m[1], 64)
		}
		windows = append(windows, models.LoudnessWindow{
			StartS: lastPts,
			EndS:   lastPts + windowS,
			RMSdB:  db,
		})
		lastPts = -1
	}
	return windows
}

// parseSilences pairs silence_start/silence_end lines into intervals. A
// trailing silence_start without an end runs to the end of the file and is
// dropped; the curve derives nothing useful from it.
func parseSilences(out string) []models.SilenceInterval {
	var intervals []models.SilenceInterval
	start := -1.0
	for _, line := range strings.Split(out, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			start, _ = strconv.ParseFloat(m[1], 64)
			continue
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && start >= 0 {
			end, _ := strconv.ParseFloat(m[1], 64)
			if end > start {
				intervals = append(intervals, models.SilenceInterval{StartS: start, EndS: end})
			}
			start = -1
		}
	}
	return intervals
}

// parseSceneTimes extracts the timestamp of every frame the select filter
// let through.
func parseSceneTimes(out string) []float64 {
	var times []float64
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "pts_time") {
			continue
		}
		if m := ptsTimeRe.FindStringSubmatch(line); m != nil {
			t, _ := strconv.ParseFloat(m[1], 64)
			times = append(times, t)
		}
	}
	return times
}
