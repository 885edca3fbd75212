// Package transcribe abstracts speech recognition, machine translation, and
// speech synthesis behind capability interfaces with lazily resolved model
// handles.
package transcribe

import (
	"context"

	"github.com/clipforge/clipforge/internal/models"
)

// Transcriber produces subtitles from a clip's audio. Entry times are
// relative to the start of the audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]models.SubtitleEntry, error)
}

// Translator rewrites subtitle text into the target language, preserving
// timing.
type Translator interface {
	Translate(ctx context.Context, entries []models.SubtitleEntry, targetLang string) ([]models.SubtitleEntry, error)
}

// Synthesizer renders one subtitle entry's text as speech into destPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang, destPath string) error
}
