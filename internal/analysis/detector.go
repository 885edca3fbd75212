package analysis

import (
	"math"
	"sort"

	"github.com/clipforge/clipforge/internal/models"
)

// Detection constants.
const (
	// zoneMergeGapMs is the maximum gap between markers merged into one zone.
	zoneMergeGapMs int64 = 3000
	// thresholdFloor is the lowest adaptive threshold tried.
	thresholdFloor = 0.2
	// thresholdStep is the adaptive threshold decrement.
	thresholdStep = 0.1
	// minMarkers is how many markers the adaptive pass wants before giving up.
	minMarkers = 5
	// relaxedGapFloorS is the minimum gap used by the relaxation pass.
	relaxedGapFloorS = 10.0
)

// DetectOptions configures peak detection.
type DetectOptions struct {
	TopN               int     `json:"topN,omitempty"`
	MinDurationS       float64 `json:"minDurationS,omitempty"`
	MaxDurationS       float64 `json:"maxDurationS,omitempty"`
	MinGapS            float64 `json:"minGapS,omitempty"`
	IntensityThreshold float64 `json:"intensityThreshold,omitempty"`
}

// DefaultDetectOptions returns the standard detection settings.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		TopN:               5,
		MinDurationS:       15,
		MaxDurationS:       60,
		MinGapS:            30,
		IntensityThreshold: 0.6,
	}
}

// Merge returns o with zero-valued fields filled from base, so request
// settings override configured defaults field by field.
func (o DetectOptions) Merge(base DetectOptions) DetectOptions {
	out := o
	if out.TopN <= 0 {
		out.TopN = base.TopN
	}
	if out.MinDurationS <= 0 {
		out.MinDurationS = base.MinDurationS
	}
	if out.MaxDurationS <= 0 {
		out.MaxDurationS = base.MaxDurationS
	}
	if out.MinGapS <= 0 {
		out.MinGapS = base.MinGapS
	}
	if out.IntensityThreshold <= 0 {
		out.IntensityThreshold = base.IntensityThreshold
	}
	return out
}

// Detection reports how the detector arrived at its result.
type Detection struct {
	// Primary is the method the result chiefly rests on.
	Primary models.SignalMethod `json:"primary"`
	// MethodsUsed lists every contributing method.
	MethodsUsed []models.SignalMethod `json:"methodsUsed"`
	// ThresholdUsed is the intensity threshold after adaptive relaxation.
	ThresholdUsed float64 `json:"thresholdUsed"`
	// RelaxedGap is true when the gap-relaxation fallback admitted a segment.
	RelaxedGap bool `json:"relaxedGap"`
}

// zone is a maximal contiguous above-threshold region of the heatmap.
type zone struct {
	startMs     int64
	endMs       int64
	intensities []float64
	peakValue   float64
	peakTimeMs  int64
}

// candidate is a sized, centered time range derived from a zone.
type candidate struct {
	startS        float64
	endS          float64
	avgIntensity  float64
	peakIntensity float64
	peakTimeS     float64
	score         float64
}

func (c *candidate) durationS() float64 { return c.endS - c.startS }

// DetectSegments extracts the topN non-overlapping highlight segments from a
// heatmap. The returned segments are sorted by start time; Detection carries
// the adaptive threshold actually used and whether gap relaxation kicked in.
func DetectSegments(heatmap []models.IntensityPoint, videoDurationS float64, opts DetectOptions) ([]models.Segment, Detection) {
	det := Detection{ThresholdUsed: opts.IntensityThreshold}
	if len(heatmap) == 0 || videoDurationS <= 0 || opts.TopN < 1 {
		return nil, det
	}

	markers, threshold := adaptiveMarkers(heatmap, opts.IntensityThreshold)
	det.ThresholdUsed = threshold
	if len(markers) == 0 {
		return nil, det
	}

	zones := mergeZones(markers)
	candidates := sizeCandidates(zones, videoDurationS, opts)

	// Stable sort keeps zone order for equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	selected, remaining := selectGreedy(candidates, nil, opts.TopN, opts.MinGapS)
	if len(selected) < opts.TopN && len(remaining) > 0 {
		relaxedGap := math.Max(opts.MinGapS/2, relaxedGapFloorS)
		before := len(selected)
		selected, _ = selectGreedy(remaining, selected, opts.TopN, relaxedGap)
		det.RelaxedGap = len(selected) > before
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].startS < selected[j].startS })

	segments := make([]models.Segment, 0, len(selected))
	for _, c := range selected {
		segments = append(segments, models.Segment{
			ID:            models.NewULID().String(),
			StartS:        round1(c.startS),
			EndS:          round1(c.endS),
			DurationS:     round1(c.durationS()),
			AvgIntensity:  round3(c.avgIntensity),
			PeakIntensity: round3(c.peakIntensity),
		})
	}
	return segments, det
}

// adaptiveMarkers lowers the threshold in steps until enough markers survive
// or the floor is reached.
func adaptiveMarkers(heatmap []models.IntensityPoint, threshold float64) ([]models.IntensityPoint, float64) {
	markers := filterMarkers(heatmap, threshold)
	for len(markers) < minMarkers && threshold > thresholdFloor+1e-9 {
		threshold -= thresholdStep
		markers = filterMarkers(heatmap, threshold)
	}
	return markers, threshold
}

func filterMarkers(heatmap []models.IntensityPoint, threshold float64) []models.IntensityPoint {
	var out []models.IntensityPoint
	for _, p := range heatmap {
		if p.Intensity >= threshold {
			out = append(out, p)
		}
	}
	return out
}

// mergeZones merges markers whose time gap is at most zoneMergeGapMs.
// Markers are sorted by start first; input sequences are monotonic but the
// adaptive pass does not guarantee it.
func mergeZones(markers []models.IntensityPoint) []zone {
	sort.SliceStable(markers, func(i, j int) bool { return markers[i].StartMs < markers[j].StartMs })

	var zones []zone
	for _, m := range markers {
		mid := (m.StartMs + m.EndMs) / 2
		if n := len(zones); n > 0 && m.StartMs-zones[n-1].endMs <= zoneMergeGapMs {
			z := &zones[n-1]
			if m.EndMs > z.endMs {
				z.endMs = m.EndMs
			}
			z.intensities = append(z.intensities, m.Intensity)
			if m.Intensity > z.peakValue {
				z.peakValue = m.Intensity
				z.peakTimeMs = mid
			}
			continue
		}
		zones = append(zones, zone{
			startMs:     m.StartMs,
			endMs:       m.EndMs,
			intensities: []float64{m.Intensity},
			peakValue:   m.Intensity,
			peakTimeMs:  mid,
		})
	}
	return zones
}

// sizeCandidates turns zones into duration-constrained candidates centered on
// each zone's peak, then scores them.
func sizeCandidates(zones []zone, videoDurationS float64, opts DetectOptions) []candidate {
	candidates := make([]candidate, 0, len(zones))
	for _, z := range zones {
		c := candidate{
			startS:        float64(z.startMs) / 1000,
			endS:          float64(z.endMs) / 1000,
			peakIntensity: z.peakValue,
			peakTimeS:     float64(z.peakTimeMs) / 1000,
		}
		sum := 0.0
		for _, v := range z.intensities {
			sum += v
		}
		c.avgIntensity = sum / float64(len(z.intensities))

		switch {
		case c.durationS() < opts.MinDurationS:
			resize(&c, opts.MinDurationS, videoDurationS)
		case c.durationS() > opts.MaxDurationS:
			resize(&c, opts.MaxDurationS, videoDurationS)
		}

		c.score = 1.0*c.avgIntensity +
			0.3*c.peakIntensity +
			0.1*math.Min(c.durationS()/opts.MaxDurationS, 1)
		candidates = append(candidates, c)
	}
	return candidates
}

// resize centers the candidate on its peak at the target duration, shifting
// the opposite edge when clipped by a video boundary.
func resize(c *candidate, targetS, videoDurationS float64) {
	half := targetS / 2
	c.startS = c.peakTimeS - half
	c.endS = c.peakTimeS + half
	if c.startS < 0 {
		c.startS = 0
		c.endS = math.Min(targetS, videoDurationS)
	}
	if c.endS > videoDurationS {
		c.endS = videoDurationS
		c.startS = math.Max(0, videoDurationS-targetS)
	}
}

// selectGreedy admits candidates in score order while every already-selected
// segment stays at least gapS away. Overlaps are always rejected.
func selectGreedy(candidates, selected []candidate, topN int, gapS float64) (kept, rejected []candidate) {
	kept = selected
	for _, c := range candidates {
		if len(kept) >= topN {
			rejected = append(rejected, c)
			continue
		}
		ok := true
		for _, s := range kept {
			if math.Max(c.startS-s.endS, s.startS-c.endS) < gapS {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, c)
		} else {
			rejected = append(rejected, c)
		}
	}
	return kept, rejected
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
