package analysis

import (
	"math"

	"github.com/clipforge/clipforge/internal/models"
)

// Boundary search windows, in seconds.
const (
	startSearchBack    = 5.0
	startSearchForward = 2.0
	hookWindowS        = 3.0
	energyPeakFloor    = 0.5
	energyDropRatio    = 0.5
	energyDropMinPrev  = 0.4
)

// BoundaryOptimizer snaps detected segment edges to natural sentence or
// energy boundaries without ever introducing overlaps.
type BoundaryOptimizer struct {
	points       []models.IntensityPoint
	silences     []models.SilenceInterval
	durationS    float64
	minDurationS float64
	maxDurationS float64
}

// NewBoundaryOptimizer builds an optimizer over the combined heatmap and the
// silence intervals found in the source audio. silences may be empty; the
// optimizer then falls back to energy-based snapping only.
func NewBoundaryOptimizer(points []models.IntensityPoint, silences []models.SilenceInterval, videoDurationS, minDurationS, maxDurationS float64) *BoundaryOptimizer {
	return &BoundaryOptimizer{
		points:       points,
		silences:     silences,
		durationS:    videoDurationS,
		minDurationS: minDurationS,
		maxDurationS: maxDurationS,
	}
}

// Optimize adjusts every segment independently, then re-verifies the
// non-overlap invariant: a segment whose optimized bounds collide with its
// predecessor reverts to its original bounds.
func (o *BoundaryOptimizer) Optimize(segments []models.Segment) []models.Segment {
	out := make([]models.Segment, len(segments))
	for i, seg := range segments {
		out[i] = o.optimizeOne(seg)
	}

	// Overlaps can only come from an earlier segment's end extending forward:
	// starts move back at most startSearchBack seconds, less than the gap the
	// detector guarantees. Reverting the earlier segment of a colliding pair
	// therefore restores the invariant; the backward pass keeps every pair
	// final when it is checked.
	for i := len(out) - 1; i >= 1; i-- {
		if out[i].StartS < out[i-1].EndS {
			reverted := segments[i-1]
			reverted.BoundaryType = models.BoundaryOriginal
			reverted.HookScore = int(math.Round(100 * energyBetween(o.points, reverted.StartS, reverted.StartS+hookWindowS)))
			out[i-1] = reverted
		}
	}
	return out
}

func (o *BoundaryOptimizer) optimizeOne(seg models.Segment) models.Segment {
	bestStart, boundaryType := o.findStart(seg.StartS)
	end := o.findEnd(bestStart, seg.EndS)

	// Enforce duration bounds within the video.
	if end-bestStart > o.maxDurationS {
		end = bestStart + o.maxDurationS
	}
	if end > o.durationS {
		end = o.durationS
	}
	if end-bestStart < o.minDurationS {
		bestStart = math.Max(0, end-o.minDurationS)
	}

	optimized := seg
	optimized.StartS = round1(bestStart)
	optimized.EndS = round1(end)
	optimized.DurationS = round1(end - bestStart)
	optimized.BoundaryType = boundaryType
	optimized.HookScore = int(math.Round(100 * energyBetween(o.points, bestStart, bestStart+hookWindowS)))
	optimized.HookShiftS = round1(bestStart - seg.StartS)
	return optimized
}

// findStart searches [startS-5, startS+2] for the best opening point: ends of
// silence intervals first, then high-energy points, with the original start as
// the baseline.
func (o *BoundaryOptimizer) findStart(startS float64) (float64, models.BoundaryType) {
	lo := math.Max(0, startS-startSearchBack)
	hi := math.Min(o.durationS, startS+startSearchForward)

	best := startS
	bestType := models.BoundaryOriginal
	bestScore := 100 * energyBetween(o.points, startS, startS+hookWindowS)

	for _, sil := range o.silences {
		if sil.EndS < lo || sil.EndS > hi {
			continue
		}
		score := 100*energyBetween(o.points, sil.EndS, sil.EndS+hookWindowS) + 20
		if score > bestScore {
			best = sil.EndS
			bestType = models.BoundarySentenceStart
			bestScore = score
		}
	}

	for _, p := range o.points {
		t := float64(p.StartMs) / 1000
		if t < lo || t > hi || p.Intensity <= energyPeakFloor {
			continue
		}
		score := 100*(p.Intensity+energyBetween(o.points, t, t+hookWindowS))/2 + 10
		if score > bestScore {
			best = t
			bestType = models.BoundaryEnergyPeak
			bestScore = score
		}
	}

	return best, bestType
}

// findEnd searches [start+minDuration, min(start+maxDuration, videoEnd)] for a
// closing point: the first silence start wins, then the first significant
// energy drop, else the original end clamped into the window.
func (o *BoundaryOptimizer) findEnd(startS, originalEndS float64) float64 {
	lo := startS + o.minDurationS
	hi := math.Min(startS+o.maxDurationS, o.durationS)

	for _, sil := range o.silences {
		if sil.StartS >= lo && sil.StartS <= hi {
			return sil.StartS
		}
	}

	prev := -1.0
	for _, p := range o.points {
		t := float64(p.StartMs) / 1000
		if t > hi {
			break
		}
		if t >= lo && prev > energyDropMinPrev && p.Intensity < energyDropRatio*prev {
			return t
		}
		prev = p.Intensity
	}

	end := originalEndS
	if end < lo {
		end = lo
	}
	if end > hi {
		end = hi
	}
	return end
}
