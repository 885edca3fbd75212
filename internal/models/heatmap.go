package models

// SignalMethod identifies the origin of an intensity signal.
type SignalMethod string

const (
	// MethodHeatmap is the platform viewer-engagement heatmap.
	MethodHeatmap SignalMethod = "heatmap"
	// MethodAudio is the audio-energy probe.
	MethodAudio SignalMethod = "audio"
	// MethodScene is the scene-change probe.
	MethodScene SignalMethod = "scene"
	// MethodComments is the comment-timestamp probe.
	MethodComments SignalMethod = "comments"
	// MethodCombined marks a fused multi-source heatmap.
	MethodCombined SignalMethod = "combined"
)

// IntensityPoint is one time bucket of an intensity curve. Intensity is in [0,1].
type IntensityPoint struct {
	StartMs   int64   `json:"startMs"`
	EndMs     int64   `json:"endMs"`
	Intensity float64 `json:"intensity"`
}

// SignalSource is one probe's contribution to the combined heatmap.
// Weight scales the source during fusion; zero-weight sources are inert.
type SignalSource struct {
	Method SignalMethod
	Weight float64
	Points []IntensityPoint
}

// CommentPeak is a ranked comment-timestamp cluster, kept for explainability.
type CommentPeak struct {
	TimeS      float64 `json:"timeS"`
	Count      int     `json:"count"`
	SampleText string  `json:"sampleText,omitempty"`
}

// VideoInfo describes the source video as reported by the downloader.
type VideoInfo struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	DurationS float64 `json:"durationS"`
	Uploader  string  `json:"uploader,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
}
