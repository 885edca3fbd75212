package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	gomp4 "github.com/abema/go-mp4"
)

// MediaProbe is the subset of ffprobe output the pipeline consumes.
type MediaProbe struct {
	DurationS  float64
	Width      int
	Height     int
	VideoCodec string
	AudioCodec string
	HasAudio   bool
}

// probeTimeout bounds a single ffprobe invocation.
const probeTimeout = 30 * time.Second

// probeOutput models ffprobe's -print_format json output.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe inspects a local media file.
func (r *Runner) Probe(ctx context.Context, path string) (MediaProbe, error) {
	out, err := r.RunProbe(ctx, probeTimeout,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return MediaProbe{}, err
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return MediaProbe{}, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	probe := MediaProbe{}
	probe.DurationS, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if probe.VideoCodec == "" {
				probe.VideoCodec = s.CodecName
				probe.Width = s.Width
				probe.Height = s.Height
			}
		case "audio":
			probe.HasAudio = true
			if probe.AudioCodec == "" {
				probe.AudioCodec = s.CodecName
			}
		}
	}
	if probe.VideoCodec == "" && !probe.HasAudio {
		return MediaProbe{}, fmt.Errorf("no media streams in %s", path)
	}
	return probe, nil
}

// HasAudioTrack reports whether an MP4 file carries an audio track, by
// walking the container's track handler boxes directly. Partial downloads
// sometimes arrive video-only; this is the cheap check before committing a
// clip to the fetched artifact.
func HasAudioTrack(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	boxes, err := gomp4.ExtractBoxWithPayload(f, nil, gomp4.BoxPath{
		gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak(), gomp4.BoxTypeMdia(), gomp4.BoxTypeHdlr(),
	})
	if err != nil {
		return false, fmt.Errorf("reading mp4 structure: %w", err)
	}
	for _, box := range boxes {
		hdlr, ok := box.Payload.(*gomp4.Hdlr)
		if !ok {
			continue
		}
		if string(hdlr.HandlerType[:]) == "soun" {
			return true, nil
		}
	}
	return false, nil
}
