package models

// CropMode selects how a wide source is reframed into the vertical output.
type CropMode string

const (
	// CropCenter scales up preserving aspect, then center-crops.
	CropCenter CropMode = "center"
	// CropBlurPad composites the fitted clip over a blurred scaled-up background.
	CropBlurPad CropMode = "blur_pad"
	// CropLetterbox fits inside with black padding.
	CropLetterbox CropMode = "letterbox"
	// CropSmartReframe follows the per-frame subject tracking crop.
	CropSmartReframe CropMode = "smart_reframe"
)

// Valid reports whether the crop mode is one of the supported variants.
func (m CropMode) Valid() bool {
	switch m {
	case CropCenter, CropBlurPad, CropLetterbox, CropSmartReframe:
		return true
	}
	return false
}

// Quality levels map to a resolution cap and an x264 CRF.
const (
	Quality1080 = 1080
	Quality720  = 720
	Quality480  = 480
)

// ValidQuality reports whether q is a supported quality level.
func ValidQuality(q int) bool {
	return q == Quality1080 || q == Quality720 || q == Quality480
}

// CaptionOptions selects the caption overlay style for a cut job.
type CaptionOptions struct {
	Enabled bool   `json:"enabled,omitempty"`
	Preset  string `json:"preset,omitempty"`
}

// CutRequest describes a job cutting a set of segments out of one URL.
type CutRequest struct {
	URL        string         `json:"url"`
	Segments   []Segment      `json:"segments"`
	CropMode   CropMode       `json:"cropMode,omitempty"`
	Captions   CaptionOptions `json:"captions,omitempty"`
	VideoTitle string         `json:"videoTitle,omitempty"`
	Quality    int            `json:"quality,omitempty"`

	// Translation and dubbing are optional enhancements.
	TranslateTo   string  `json:"translateTo,omitempty"`
	TranslateMode string  `json:"translateMode,omitempty"` // "captions" or "dub"
	DubMixGain    float64 `json:"dubMixGain,omitempty"`

	// EditedSubtitles overrides fetched/transcribed captions per segment ID.
	EditedSubtitles map[string][]SubtitleEntry `json:"editedSubtitles,omitempty"`
}

// Validate checks the request for structural errors before job admission.
func (r *CutRequest) Validate() error {
	if r.URL == "" {
		return ErrURLRequired
	}
	if len(r.Segments) == 0 {
		return ErrNoSegments
	}
	if r.CropMode != "" && !r.CropMode.Valid() {
		return ErrInvalidCropMode
	}
	if r.Quality != 0 && !ValidQuality(r.Quality) {
		return ErrInvalidQuality
	}
	for i := range r.Segments {
		if err := r.Segments[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Normalize fills defaulted fields in place.
func (r *CutRequest) Normalize() {
	if r.CropMode == "" {
		r.CropMode = CropCenter
	}
	if r.Quality == 0 {
		r.Quality = Quality1080
	}
	if r.DubMixGain == 0 {
		r.DubMixGain = 0.15
	}
}
