// Package downloader wraps the yt-dlp binary: metadata probing, engagement
// heatmaps, comments, subtitles, and partial or full video downloads.
package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/util"
)

// ErrPartialUnsupported signals that the installed yt-dlp (or the source site)
// rejected the download-sections flag; callers fall back to a full download.
var ErrPartialUnsupported = errors.New("partial download not supported")

// metadataTTL bounds how long a URL's probed metadata is reused.
const metadataTTL = 10 * time.Minute

// Downloader shells out to yt-dlp. Safe for concurrent use.
type Downloader struct {
	binPath  string
	tempDir  string
	metadata *gocache.Cache
	logger   *slog.Logger
}

// New resolves the yt-dlp binary and builds a Downloader writing download
// artifacts under tempDir.
func New(cfg config.ToolsConfig, tempDir string, logger *slog.Logger) (*Downloader, error) {
	binPath, err := util.FindBinary(cfg.YtDlpPath, "CLIPFORGE_YTDLP_BINARY", "yt-dlp", "yt-dlp.exe")
	if err != nil {
		return nil, fmt.Errorf("yt-dlp not available: %w", err)
	}
	return &Downloader{
		binPath:  binPath,
		tempDir:  tempDir,
		metadata: gocache.New(metadataTTL, 2*metadataTTL),
		logger:   logger.With("component", "downloader"),
	}, nil
}

// Path returns the resolved yt-dlp binary path.
func (d *Downloader) Path() string { return d.binPath }

// Version reports the yt-dlp version string, for health reporting.
func (d *Downloader) Version(ctx context.Context) (string, error) {
	out, err := d.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// videoMetadata is the subset of yt-dlp's --dump-single-json output we read.
type videoMetadata struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Uploader string  `json:"uploader"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Heatmap  []struct {
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
		Value     float64 `json:"value"`
	} `json:"heatmap"`
	Comments []struct {
		Text      string `json:"text"`
		LikeCount int    `json:"like_count"`
	} `json:"comments"`
}

// Info returns video metadata without downloading any media.
func (d *Downloader) Info(ctx context.Context, url string) (models.VideoInfo, error) {
	meta, err := d.fetchMetadata(ctx, url)
	if err != nil {
		return models.VideoInfo{}, err
	}
	return models.VideoInfo{
		ID:        meta.ID,
		Title:     meta.Title,
		DurationS: meta.Duration,
		Uploader:  meta.Uploader,
		Width:     meta.Width,
		Height:    meta.Height,
	}, nil
}

// Heatmap returns the platform's precomputed viewer-engagement curve, empty
// when the platform exposes none.
func (d *Downloader) Heatmap(ctx context.Context, url string) ([]models.IntensityPoint, error) {
	meta, err := d.fetchMetadata(ctx, url)
	if err != nil {
		return nil, err
	}
	points := make([]models.IntensityPoint, 0, len(meta.Heatmap))
	for _, h := range meta.Heatmap {
		if h.EndTime <= h.StartTime {
			continue
		}
		points = append(points, models.IntensityPoint{
			StartMs:   int64(h.StartTime * 1000),
			EndMs:     int64(h.EndTime * 1000),
			Intensity: h.Value,
		})
	}
	return points, nil
}

// Comments fetches up to max comments for the URL. This is a separate yt-dlp
// invocation; comment extraction is too slow to fold into every Info call.
func (d *Downloader) Comments(ctx context.Context, url string, max int) ([]models.Comment, error) {
	if max <= 0 {
		max = 200
	}
	out, err := d.run(ctx, commentArgs(url, max)...)
	if err != nil {
		return nil, err
	}
	var meta videoMetadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("parsing comment metadata: %w", err)
	}
	comments := make([]models.Comment, 0, len(meta.Comments))
	for _, c := range meta.Comments {
		if c.Text == "" {
			continue
		}
		comments = append(comments, models.Comment{Text: c.Text, LikeCount: c.LikeCount})
		if len(comments) >= max {
			break
		}
	}
	return comments, nil
}

// Download fetches the full video capped at maxHeight into the temp
// directory and returns the local path. Satisfies analysis.VideoSource.
func (d *Downloader) Download(ctx context.Context, url string, maxHeight int) (string, error) {
	meta, err := d.fetchMetadata(ctx, url)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(d.tempDir, fmt.Sprintf("full_%s.mp4", meta.ID))
	if _, statErr := os.Stat(dest); statErr == nil {
		return dest, nil
	}
	if _, err := d.run(ctx, fullArgs(url, maxHeight, dest)...); err != nil {
		return "", fmt.Errorf("full download: %w", err)
	}
	return dest, nil
}

// DownloadSection fetches only [startS, endS] of the video into dest.
// Returns ErrPartialUnsupported when the section flag is rejected so callers
// can fall back to Download.
func (d *Downloader) DownloadSection(ctx context.Context, url string, startS, endS float64, maxHeight int, dest string) error {
	_, err := d.run(ctx, sectionArgs(url, startS, endS, maxHeight, dest)...)
	if err != nil {
		if isSectionRejection(err) {
			return ErrPartialUnsupported
		}
		return fmt.Errorf("partial download: %w", err)
	}
	if _, statErr := os.Stat(dest); statErr != nil {
		// Some extractors exit zero without honoring the section flag.
		return ErrPartialUnsupported
	}
	return nil
}

// Subtitles downloads manual or automatic subtitles for the URL and returns
// the parsed full-video entries. Empty result means none are available.
func (d *Downloader) Subtitles(ctx context.Context, url, lang string) ([]models.SubtitleEntry, error) {
	meta, err := d.fetchMetadata(ctx, url)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(d.tempDir, "subs_"+meta.ID)
	if _, err := d.run(ctx, subtitleArgs(url, lang, base)...); err != nil {
		return nil, err
	}

	matches, _ := filepath.Glob(base + "*.vtt")
	if len(matches) == 0 {
		return nil, nil
	}
	defer func() {
		for _, m := range matches {
			os.Remove(m)
		}
	}()

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("reading subtitle file: %w", err)
	}
	return ParseWebVTT(string(data)), nil
}

func (d *Downloader) fetchMetadata(ctx context.Context, url string) (*videoMetadata, error) {
	if cached, ok := d.metadata.Get(url); ok {
		return cached.(*videoMetadata), nil
	}

	out, err := d.run(ctx, infoArgs(url)...)
	if err != nil {
		return nil, fmt.Errorf("probing video metadata: %w", err)
	}
	var meta videoMetadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("parsing video metadata: %w", err)
	}
	if meta.Duration <= 0 {
		return nil, fmt.Errorf("video reports no duration")
	}
	meta.Comments = nil // fetched separately, keep the cache small
	d.metadata.SetDefault(url, &meta)
	return &meta, nil
}

// run executes yt-dlp and returns stdout. On failure, the last stderr lines
// are folded into the error for diagnostics.
func (d *Downloader) run(ctx context.Context, args ...string) ([]byte, error) {
	started := time.Now()
	cmd := exec.CommandContext(ctx, d.binPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	d.logger.Debug("yt-dlp finished",
		"args", args,
		"duration", time.Since(started),
		"error", err != nil,
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("yt-dlp: %w: %s", err, tailLines(stderr.String(), 3))
	}
	return out, nil
}

// isSectionRejection reports whether the error indicates the section flag
// itself was rejected rather than the download failing for other reasons.
func isSectionRejection(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "download-sections") ||
		strings.Contains(msg, "no such option") ||
		strings.Contains(msg, "unsupported url scheme")
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}

// infoArgs builds the metadata-only probe invocation.
func infoArgs(url string) []string {
	return []string{
		"--dump-single-json",
		"--no-playlist",
		"--skip-download",
		url,
	}
}

// commentArgs builds the comment-fetch invocation.
func commentArgs(url string, max int) []string {
	return []string{
		"--dump-single-json",
		"--no-playlist",
		"--skip-download",
		"--write-comments",
		"--extractor-args", fmt.Sprintf("youtube:max_comments=%d;comment_sort=top", max),
		url,
	}
}

// formatSelector caps the stream height while preferring separate
// video+audio streams merged into mp4.
func formatSelector(maxHeight int) string {
	return fmt.Sprintf("bv*[height<=%d]+ba/b[height<=%d]", maxHeight, maxHeight)
}

// fullArgs builds the full-download invocation.
func fullArgs(url string, maxHeight int, dest string) []string {
	return []string{
		"-f", formatSelector(maxHeight),
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-progress",
		"-o", dest,
		url,
	}
}

// sectionArgs builds the partial-download invocation for [startS, endS].
func sectionArgs(url string, startS, endS float64, maxHeight int, dest string) []string {
	return []string{
		"-f", formatSelector(maxHeight),
		"--download-sections", fmt.Sprintf("*%.1f-%.1f", startS, endS),
		"--force-keyframes-at-cuts",
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-progress",
		"-o", dest,
		url,
	}
}

// subtitleArgs builds the subtitle-only invocation; base is the output path
// without extension (yt-dlp appends .{lang}.vtt).
func subtitleArgs(url, lang string, base string) []string {
	if lang == "" {
		lang = "en.*,en"
	}
	return []string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", lang,
		"--sub-format", "vtt",
		"--convert-subs", "vtt",
		"--no-playlist",
		"-o", base,
		url,
	}
}
