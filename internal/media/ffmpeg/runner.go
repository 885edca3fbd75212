// Package ffmpeg wraps the ffmpeg/ffprobe binaries: analysis passes over
// local media, and argument builders for every transcode the pipeline runs.
package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/util"
)

// Runner executes ffmpeg/ffprobe invocations with bounded lifetimes.
// Safe for concurrent use.
type Runner struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

// NewRunner resolves both binaries. ffmpeg is required; ffprobe is required
// too since probing drives seek and duration decisions throughout.
func NewRunner(cfg config.ToolsConfig, logger *slog.Logger) (*Runner, error) {
	ffmpegPath, err := util.FindBinary(cfg.FFmpegPath, "CLIPFORGE_FFMPEG_BINARY", "ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not available: %w", err)
	}
	ffprobePath, err := util.FindBinary(cfg.FFprobePath, "CLIPFORGE_FFPROBE_BINARY", "ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not available: %w", err)
	}
	return &Runner{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger.With("component", "ffmpeg"),
	}, nil
}

// FFmpegPath returns the resolved ffmpeg binary path.
func (r *Runner) FFmpegPath() string { return r.ffmpegPath }

// FFprobePath returns the resolved ffprobe binary path.
func (r *Runner) FFprobePath() string { return r.ffprobePath }

// Version reports the ffmpeg version string, for health reporting.
func (r *Runner) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, r.ffmpegPath, "-version")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(strings.TrimPrefix(line, "ffmpeg version ")), nil
}

// Run executes ffmpeg with the given args under a timeout. ffmpeg writes
// analysis output to stderr, so stderr is always returned; on timeout the
// partial stderr collected so far is returned along with the context error.
func (r *Runner) Run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	err := cmd.Run()
	r.logger.Debug("ffmpeg finished",
		"args", args,
		"duration", time.Since(started),
		"error", err != nil,
	)
	if err != nil {
		if ctx.Err() != nil {
			return stderr.String(), ctx.Err()
		}
		return stderr.String(), fmt.Errorf("ffmpeg: %w: %s", err, lastStderrLines(stderr.String(), 3))
	}
	return stderr.String(), nil
}

// RunProbe executes ffprobe and returns stdout.
func (r *Runner) RunProbe(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.ffprobePath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe: %w: %s", err, lastStderrLines(stderr.String(), 3))
	}
	return out, nil
}

func lastStderrLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
