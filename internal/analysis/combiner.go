// Package analysis implements the highlight discovery pipeline: signal probes,
// multi-source fusion, peak detection, boundary optimization, and virality scoring.
package analysis

import (
	"math"

	"github.com/clipforge/clipforge/internal/models"
)

// Default fusion parameters.
const (
	// DefaultWindowMs is the uniform grid bucket width.
	DefaultWindowMs int64 = 2000
	// DefaultSmoothingWindow is the centered moving-average width.
	DefaultSmoothingWindow = 3
)

// Default per-source weights for the fallback (no platform heatmap) path.
const (
	WeightAudio    = 1.0
	WeightScene    = 0.6
	WeightComments = 1.2
)

// CombineOptions configures signal fusion.
type CombineOptions struct {
	// WindowMs is the uniform grid bucket width. Zero means DefaultWindowMs.
	WindowMs int64
	// SmoothingWindow applies a centered moving average of this width after
	// fusion. Values below 2 disable smoothing.
	SmoothingWindow int
}

// CombinedHeatmap is the fused, uniform-grid intensity curve.
type CombinedHeatmap struct {
	Points      []models.IntensityPoint `json:"points"`
	MethodsUsed []models.SignalMethod   `json:"methodsUsed"`
}

// Combine fuses any number of signal sources onto a uniform grid.
//
// Empty sources are dropped. A single surviving source is returned unchanged.
// Otherwise every source is resampled onto the grid taking the max intensity
// per overlapped bucket, normalized, weighted, and accumulated; the result is
// min-max normalized and optionally smoothed.
func Combine(sources []models.SignalSource, durationMs int64, opts CombineOptions) CombinedHeatmap {
	windowMs := opts.WindowMs
	if windowMs <= 0 {
		windowMs = DefaultWindowMs
	}

	var live []models.SignalSource
	for _, s := range sources {
		if len(s.Points) > 0 {
			live = append(live, s)
		}
	}

	if len(live) == 0 {
		return CombinedHeatmap{}
	}
	if len(live) == 1 {
		return CombinedHeatmap{
			Points:      live[0].Points,
			MethodsUsed: []models.SignalMethod{live[0].Method},
		}
	}

	buckets := int((durationMs + windowMs - 1) / windowMs)
	if buckets < 1 {
		buckets = 1
	}

	grid := make([]float64, buckets)
	methods := make([]models.SignalMethod, 0, len(live)+1)
	for _, src := range live {
		resampled := resampleMax(src.Points, buckets, windowMs)
		normalize(resampled)
		for i := range grid {
			grid[i] += src.Weight * resampled[i]
		}
		methods = append(methods, src.Method)
	}
	methods = append(methods, models.MethodCombined)

	normalize(grid)

	if opts.SmoothingWindow >= 2 {
		grid = smooth(grid, opts.SmoothingWindow)
	}

	points := make([]models.IntensityPoint, buckets)
	for i := range points {
		end := int64(i+1) * windowMs
		if end > durationMs {
			end = durationMs
		}
		points[i] = models.IntensityPoint{
			StartMs:   int64(i) * windowMs,
			EndMs:     end,
			Intensity: grid[i],
		}
	}

	return CombinedHeatmap{Points: points, MethodsUsed: methods}
}

// resampleMax projects source points onto the uniform grid, keeping the max
// intensity per overlapped bucket.
func resampleMax(points []models.IntensityPoint, buckets int, windowMs int64) []float64 {
	grid := make([]float64, buckets)
	for _, p := range points {
		if p.EndMs <= p.StartMs {
			continue
		}
		first := int(p.StartMs / windowMs)
		last := int((p.EndMs - 1) / windowMs)
		if first < 0 {
			first = 0
		}
		if last >= buckets {
			last = buckets - 1
		}
		for i := first; i <= last; i++ {
			if p.Intensity > grid[i] {
				grid[i] = p.Intensity
			}
		}
	}
	return grid
}

// normalize min-max scales values to [0,1] in place. A flat non-zero curve
// maps to all ones; a flat zero curve stays zero.
func normalize(values []float64) {
	if len(values) == 0 {
		return
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span < 1e-12 {
		if hi > 0 {
			for i := range values {
				values[i] = 1
			}
		}
		return
	}
	for i := range values {
		values[i] = (values[i] - lo) / span
	}
}

// smooth applies a centered moving average of width w; edge buckets average
// over however many neighbours exist.
func smooth(values []float64, w int) []float64 {
	out := make([]float64, len(values))
	lead := (w - 1) / 2
	trail := w / 2
	for i := range values {
		lo := i - lead
		hi := i + trail
		if lo < 0 {
			lo = 0
		}
		if hi > len(values)-1 {
			hi = len(values) - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

// energyAt returns the intensity of the bucket containing t (in seconds),
// or 0 if no bucket covers it.
func energyAt(points []models.IntensityPoint, t float64) float64 {
	ms := int64(t * 1000)
	for _, p := range points {
		if ms >= p.StartMs && ms < p.EndMs {
			return p.Intensity
		}
	}
	return 0
}

// energyBetween returns the mean intensity of buckets overlapping [fromS, toS).
func energyBetween(points []models.IntensityPoint, fromS, toS float64) float64 {
	fromMs := int64(fromS * 1000)
	toMs := int64(toS * 1000)
	sum := 0.0
	n := 0
	for _, p := range points {
		if p.StartMs < toMs && p.EndMs > fromMs {
			sum += p.Intensity
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// stddev returns the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}
