package models

// LoudnessWindow is one aggregation window of the transcoder's RMS statistics pass.
type LoudnessWindow struct {
	StartS float64
	EndS   float64
	RMSdB  float64
}

// SilenceInterval is one detected silence range from the silencedetect pass.
type SilenceInterval struct {
	StartS float64
	EndS   float64
}

// Comment is one fetched viewer comment.
type Comment struct {
	Text      string
	LikeCount int
}
