package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clipforge/clipforge/internal/models"
)

// Output geometry per quality level (vertical 9:16).
func outputDims(quality int) (w, h int) {
	switch quality {
	case models.Quality720:
		return 720, 1280
	case models.Quality480:
		return 480, 854
	default:
		return 1080, 1920
	}
}

// crf maps a quality level to its x264 constant rate factor.
func crf(quality int) int {
	switch quality {
	case models.Quality720:
		return 20
	case models.Quality480:
		return 22
	default:
		return 18
	}
}

// TranscodeOpts describes one clip transcode.
type TranscodeOpts struct {
	Input     string
	Output    string
	SeekS     float64
	DurationS float64
	CropMode  models.CropMode
	Quality   int
	// CropFilter carries the precomputed crop expression for smart_reframe;
	// ignored for the other modes.
	CropFilter string
}

// TranscodeArgs builds the full ffmpeg invocation for one clip: seek, cut,
// reframe to vertical, and encode H.264 High / AAC with faststart.
func TranscodeArgs(o TranscodeOpts) []string {
	w, h := outputDims(o.Quality)

	args := []string{
		"-hide_banner", "-nostats",
		"-ss", formatSeconds(o.SeekS),
		"-i", o.Input,
		"-t", formatSeconds(o.DurationS),
	}

	if o.CropMode == models.CropBlurPad {
		args = append(args, "-filter_complex", blurPadFilter(w, h), "-map", "[out]", "-map", "0:a?")
	} else {
		args = append(args, "-vf", cropFilter(o.CropMode, o.CropFilter, w, h))
	}

	args = append(args, encodeArgs(o.Quality)...)
	args = append(args, "-y", o.Output)
	return args
}

// cropFilter returns the -vf chain for the single-stream crop modes.
func cropFilter(mode models.CropMode, smartCrop string, w, h int) string {
	switch mode {
	case models.CropLetterbox:
		return fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black",
			w, h, w, h)
	case models.CropSmartReframe:
		if smartCrop != "" {
			return fmt.Sprintf("%s,scale=%d:%d", smartCrop, w, h)
		}
		fallthrough
	default: // center
		return fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
			w, h, w, h)
	}
}

// blurPadFilter composites the fitted clip over a blurred fill background.
func blurPadFilter(w, h int) string {
	return fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,boxblur=20:5[bg];"+
			"[0:v]scale=%d:%d:force_original_aspect_ratio=decrease[fg];"+
			"[bg][fg]overlay=(W-w)/2:(H-h)/2[out]",
		w, h, w, h, w, h)
}

// encodeArgs is the shared encoder tail for clip outputs.
func encodeArgs(quality int) []string {
	return []string{
		"-c:v", "libx264",
		"-profile:v", "high",
		"-pix_fmt", "yuv420p",
		"-crf", strconv.Itoa(crf(quality)),
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		"-movflags", "+faststart",
	}
}

// CaptionBurnArgs re-encodes a finished clip with an ASS overlay burned in.
// The muxed audio is copied unchanged.
func CaptionBurnArgs(input, assPath, output string, quality int) []string {
	return []string{
		"-hide_banner", "-nostats",
		"-i", input,
		"-vf", "ass=" + escapeFilterPath(assPath),
		"-c:v", "libx264",
		"-profile:v", "high",
		"-pix_fmt", "yuv420p",
		"-crf", strconv.Itoa(crf(quality)),
		"-c:a", "copy",
		"-movflags", "+faststart",
		"-y", output,
	}
}

// DubbedTrack is one synthesized speech file placed at an offset in the clip.
type DubbedTrack struct {
	Path   string
	DelayS float64
}

// DubMixArgs mixes synthesized speech tracks over the clip's original audio
// at reduced gain. The video stream is copied unchanged.
func DubMixArgs(input string, tracks []DubbedTrack, originalGain float64, output string) []string {
	args := []string{"-hide_banner", "-nostats", "-i", input}
	for _, tr := range tracks {
		args = append(args, "-i", tr.Path)
	}

	var fc strings.Builder
	fmt.Fprintf(&fc, "[0:a]volume=%.2f[a0]", originalGain)
	for i, tr := range tracks {
		delayMs := int(tr.DelayS * 1000)
		fmt.Fprintf(&fc, ";[%d:a]adelay=%d:all=1[a%d]", i+1, delayMs, i+1)
	}
	for i := 0; i <= len(tracks); i++ {
		fmt.Fprintf(&fc, "[a%d]", i)
	}
	fmt.Fprintf(&fc, "amix=inputs=%d:normalize=0[aout]", len(tracks)+1)

	args = append(args,
		"-filter_complex", fc.String(),
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		"-movflags", "+faststart",
		"-y", output,
	)
	return args
}

// FrameSampleArgs extracts frames at the given rate into a numbered jpeg
// sequence, used by the reframe analysis.
func FrameSampleArgs(input string, startS, durationS, fps float64, pattern string) []string {
	return []string{
		"-hide_banner", "-nostats",
		"-ss", formatSeconds(startS),
		"-i", input,
		"-t", formatSeconds(durationS),
		"-vf", fmt.Sprintf("fps=%g,scale=640:-2", fps),
		"-q:v", "5",
		"-y", pattern,
	}
}

// ExtractAudioArgs pulls the clip's audio out as 16 kHz mono WAV, the input
// format local transcription expects.
func ExtractAudioArgs(input, output string) []string {
	return []string{
		"-hide_banner", "-nostats",
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-y", output,
	}
}

// formatSeconds renders a seek/duration value the way ffmpeg expects.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// escapeFilterPath escapes a path for use inside a filter argument.
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, `:`, `\:`)
	p = strings.ReplaceAll(p, `'`, `\'`)
	return p
}
