package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/media/downloader"
	"github.com/clipforge/clipforge/internal/models"
	"github.com/clipforge/clipforge/internal/util"
)

// transcribeTimeout bounds a single whisper invocation.
const transcribeTimeout = 3 * time.Minute

// WhisperTranscriber shells out to a whisper.cpp style binary.
type WhisperTranscriber struct {
	binPath string
	model   string
	logger  *slog.Logger
}

// NewWhisper resolves the transcription binary. Returns an error when none
// is configured or found; callers treat transcription as unavailable then.
func NewWhisper(cfg config.ToolsConfig, logger *slog.Logger) (*WhisperTranscriber, error) {
	binPath, err := util.FindBinary(cfg.WhisperPath, "CLIPFORGE_WHISPER_BINARY", "whisper-cli", "whisper")
	if err != nil {
		return nil, fmt.Errorf("transcription binary not available: %w", err)
	}
	model := cfg.WhisperModel
	if model == "" {
		model = "base"
	}
	return &WhisperTranscriber{
		binPath: binPath,
		model:   model,
		logger:  logger.With("component", "whisper"),
	}, nil
}

// Transcribe runs speech recognition over a 16 kHz mono WAV file and parses
// the VTT the binary writes next to it.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) ([]models.SubtitleEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	base := strings.TrimSuffix(audioPath, ".wav")
	cmd := exec.CommandContext(ctx, w.binPath,
		"-m", w.model,
		"-f", audioPath,
		"--output-vtt",
		"--output-file", base,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	started := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("whisper: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	w.logger.Debug("transcription finished", "audio", audioPath, "duration", time.Since(started))

	vttPath := base + ".vtt"
	data, err := os.ReadFile(vttPath)
	if err != nil {
		return nil, fmt.Errorf("reading transcription output: %w", err)
	}
	os.Remove(vttPath)
	return downloader.ParseWebVTT(string(data)), nil
}

// unavailable satisfies a capability interface with a fixed error, used when
// no backing tool or model is configured.
type unavailable struct{ what string }

func (u unavailable) Translate(context.Context, []models.SubtitleEntry, string) ([]models.SubtitleEntry, error) {
	return nil, fmt.Errorf("%s is not configured", u.what)
}

func (u unavailable) Synthesize(context.Context, string, string, string) error {
	return fmt.Errorf("%s is not configured", u.what)
}

// UnavailableTranslator returns a Translator that always fails; translation
// is an optional enhancement and the failure downgrades to a warning.
func UnavailableTranslator() Translator { return unavailable{what: "translation"} }

// UnavailableSynthesizer returns a Synthesizer that always fails.
func UnavailableSynthesizer() Synthesizer { return unavailable{what: "speech synthesis"} }
