package analysis

import (
	"math"

	"github.com/clipforge/clipforge/internal/models"
)

// Virality sub-score weights.
const (
	weightPeak     = 0.30
	weightHook     = 0.25
	weightPacing   = 0.15
	weightAudio    = 0.15
	weightPosition = 0.10
	weightDuration = 0.05
)

// ScoreSegment computes the weighted virality breakdown for one segment
// against the heatmap it was detected on.
func ScoreSegment(seg models.Segment, heatmap []models.IntensityPoint, videoDurationS float64) models.ViralityBreakdown {
	peak := clampScore(100 * seg.PeakIntensity)
	hook := hookStrength(seg, heatmap)
	pacing := pacingScore(seg, heatmap)
	audio := clampScore(100 * seg.AvgIntensity)
	position := positionBonus(seg.StartS, videoDurationS)
	duration := durationFit(seg.DurationS)

	overall := clampScore(weightPeak*float64(peak) +
		weightHook*float64(hook) +
		weightPacing*float64(pacing) +
		weightAudio*float64(audio) +
		weightPosition*float64(position) +
		weightDuration*float64(duration))

	label, color := viralityLabel(overall)

	return models.ViralityBreakdown{
		Overall:       overall,
		PeakIntensity: peak,
		HookStrength:  hook,
		Pacing:        pacing,
		AudioEnergy:   audio,
		PositionBonus: position,
		DurationFit:   duration,
		Label:         label,
		Color:         color,
	}
}

// hookStrength scores the first three seconds of the segment. A hook hotter
// than the segment average earns a retention bonus.
func hookStrength(seg models.Segment, heatmap []models.IntensityPoint) int {
	hookEndMs := int64((seg.StartS + 3) * 1000)
	startMs := int64(seg.StartS * 1000)

	sum := 0.0
	n := 0
	for _, p := range heatmap {
		if p.StartMs < hookEndMs && p.EndMs > startMs {
			sum += p.Intensity
			n++
		}
	}
	if n == 0 {
		return clampScore(100 * 0.5 * seg.AvgIntensity)
	}
	h := sum / float64(n)
	bonus := 0.0
	if h > seg.AvgIntensity {
		bonus = 15
	}
	return clampScore(math.Min(100, 85*h+bonus))
}

// pacingScore rewards intensity variance inside the segment; with fewer than
// three in-segment points it is neutral.
func pacingScore(seg models.Segment, heatmap []models.IntensityPoint) int {
	startMs := int64(seg.StartS * 1000)
	endMs := int64(seg.EndS * 1000)
	var inside []float64
	for _, p := range heatmap {
		if p.StartMs < endMs && p.EndMs > startMs {
			inside = append(inside, p.Intensity)
		}
	}
	if len(inside) < 3 {
		return 50
	}
	return clampScore(math.Min(100, 400*stddev(inside)))
}

// positionBonus favors clips early in the video, piecewise per video third.
func positionBonus(startS, videoDurationS float64) int {
	if videoDurationS <= 0 {
		return 50
	}
	rel := startS / videoDurationS
	third := 1.0 / 3.0
	switch {
	case rel < third:
		return clampScore(100 - (rel/third)*20)
	case rel < 2*third:
		return clampScore(80 - ((rel-third)/third)*30)
	default:
		return clampScore(50 - math.Min((rel-2*third)/third, 1)*20)
	}
}

// durationFit peaks in the 30-45s sweet spot for vertical platforms.
func durationFit(durationS float64) int {
	switch {
	case durationS >= 30 && durationS <= 45:
		return 100
	case durationS >= 20 && durationS < 30:
		return clampScore(70 + (durationS-20)*3)
	case durationS > 45 && durationS <= 60:
		return clampScore(100 - (durationS-45)*2)
	case durationS >= 15 && durationS < 20:
		return 50
	default:
		return 30
	}
}

func viralityLabel(overall int) (label, color string) {
	switch {
	case overall >= 80:
		return "Viral", "red"
	case overall >= 60:
		return "Strong", "green"
	case overall >= 40:
		return "Good", "amber"
	default:
		return "Fair", "gray"
	}
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
