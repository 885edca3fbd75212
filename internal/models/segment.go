package models

// BoundaryType classifies how a segment edge was chosen by the boundary optimizer.
type BoundaryType string

const (
	// BoundarySentenceStart means the edge snapped to a silence boundary.
	BoundarySentenceStart BoundaryType = "sentence_start"
	// BoundaryEnergyPeak means the edge snapped to a high-energy point.
	BoundaryEnergyPeak BoundaryType = "energy_peak"
	// BoundaryOriginal means the detector's edge was kept.
	BoundaryOriginal BoundaryType = "original"
)

// Segment is a selected highlight range. Segments in a result list are
// non-overlapping and sorted by StartS ascending.
type Segment struct {
	ID            string  `json:"id"`
	StartS        float64 `json:"startS"`
	EndS          float64 `json:"endS"`
	DurationS     float64 `json:"durationS,omitempty"`
	AvgIntensity  float64 `json:"avgIntensity,omitempty"`
	PeakIntensity float64 `json:"peakIntensity,omitempty"`

	// Boundary optimizer diagnostics.
	BoundaryType BoundaryType `json:"boundaryType,omitempty"`
	HookScore    int          `json:"hookScore,omitempty"`
	HookShiftS   float64      `json:"hookShiftS,omitempty"`
}

// Validate checks that the segment describes a usable time range.
func (s *Segment) Validate() error {
	if s.StartS < 0 {
		return ErrValidation{Field: "startS", Message: "must be >= 0"}
	}
	if s.EndS <= s.StartS {
		return ErrValidation{Field: "endS", Message: "must be after startS"}
	}
	return nil
}

// ViralityBreakdown is the weighted composite score for a segment.
// Every sub-score and the overall value are integers in 0..100.
type ViralityBreakdown struct {
	Overall       int    `json:"overall"`
	PeakIntensity int    `json:"peakIntensity"`
	HookStrength  int    `json:"hookStrength"`
	Pacing        int    `json:"pacing"`
	AudioEnergy   int    `json:"audioEnergy"`
	PositionBonus int    `json:"positionBonus"`
	DurationFit   int    `json:"durationFit"`
	Label         string `json:"label"`
	Color         string `json:"color"`
}

// SubtitleEntry is one caption line with clip-relative timing in seconds.
type SubtitleEntry struct {
	StartS float64 `json:"startS"`
	EndS   float64 `json:"endS"`
	Text   string  `json:"text"`
}
