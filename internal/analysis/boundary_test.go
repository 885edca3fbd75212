package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/models"
)

// flatGrid builds a 2s-bucket heatmap of constant intensity covering durationS.
func flatGrid(durationS int, intensity float64) []models.IntensityPoint {
	intensities := make([]float64, durationS/2)
	for i := range intensities {
		intensities[i] = intensity
	}
	return uniformGrid(intensities)
}

// S5: the start snaps to the end of a nearby silence interval.
func TestOptimize_SnapsStartToSilenceEnd(t *testing.T) {
	points := flatGrid(600, 0.45)
	silences := []models.SilenceInterval{{StartS: 98, EndS: 99}}
	opt := NewBoundaryOptimizer(points, silences, 600, 15, 60)

	segments := opt.Optimize([]models.Segment{
		{ID: "a", StartS: 100, EndS: 140, DurationS: 40},
	})

	require.Len(t, segments, 1)
	seg := segments[0]
	assert.InDelta(t, 99.0, seg.StartS, 0.01)
	assert.Equal(t, models.BoundarySentenceStart, seg.BoundaryType)
	assert.InDelta(t, -1.0, seg.HookShiftS, 0.01)
	assert.Equal(t, 45, seg.HookScore)
}

func TestOptimize_SnapsStartToEnergyPeak(t *testing.T) {
	intensities := make([]float64, 300)
	for i := range intensities {
		intensities[i] = 0.3
	}
	intensities[49] = 0.9 // bucket starting at 98s
	opt := NewBoundaryOptimizer(uniformGrid(intensities), nil, 600, 15, 60)

	segments := opt.Optimize([]models.Segment{
		{ID: "a", StartS: 100, EndS: 140, DurationS: 40},
	})

	seg := segments[0]
	assert.InDelta(t, 98.0, seg.StartS, 0.01)
	assert.Equal(t, models.BoundaryEnergyPeak, seg.BoundaryType)
}

func TestOptimize_KeepsOriginalWithoutBetterBoundary(t *testing.T) {
	points := flatGrid(600, 0.45)
	opt := NewBoundaryOptimizer(points, nil, 600, 15, 60)

	segments := opt.Optimize([]models.Segment{
		{ID: "a", StartS: 100, EndS: 140, DurationS: 40},
	})

	seg := segments[0]
	assert.InDelta(t, 100.0, seg.StartS, 0.01)
	assert.InDelta(t, 140.0, seg.EndS, 0.01)
	assert.Equal(t, models.BoundaryOriginal, seg.BoundaryType)
	assert.InDelta(t, 0.0, seg.HookShiftS, 0.01)
}

func TestOptimize_EndSnapsToSilenceStart(t *testing.T) {
	points := flatGrid(600, 0.45)
	silences := []models.SilenceInterval{{StartS: 130, EndS: 131}}
	opt := NewBoundaryOptimizer(points, silences, 600, 15, 60)

	segments := opt.Optimize([]models.Segment{
		{ID: "a", StartS: 100, EndS: 155, DurationS: 55},
	})

	seg := segments[0]
	assert.InDelta(t, 130.0, seg.EndS, 0.01)
}

func TestOptimize_EndSnapsToEnergyDrop(t *testing.T) {
	intensities := make([]float64, 300)
	for i := range intensities {
		intensities[i] = 0.45
	}
	intensities[65] = 0.1 // bucket at 130s: 0.1 < 0.5*0.45
	opt := NewBoundaryOptimizer(uniformGrid(intensities), nil, 600, 15, 60)

	segments := opt.Optimize([]models.Segment{
		{ID: "a", StartS: 100, EndS: 155, DurationS: 55},
	})

	assert.InDelta(t, 130.0, segments[0].EndS, 0.01)
}

func TestOptimize_EnforcesDurationBounds(t *testing.T) {
	points := flatGrid(600, 0.45)
	opt := NewBoundaryOptimizer(points, nil, 600, 15, 60)

	segments := opt.Optimize([]models.Segment{
		{ID: "a", StartS: 100, EndS: 108, DurationS: 8},
	})

	seg := segments[0]
	assert.GreaterOrEqual(t, seg.DurationS, 15.0)
	assert.LessOrEqual(t, seg.DurationS, 60.0)
}

// A short first segment whose end gets pushed to the minimum duration can
// collide with an optimized second start; the earlier segment must revert.
func TestOptimize_RevertsOverlapToOriginalBounds(t *testing.T) {
	intensities := make([]float64, 300)
	for i := range intensities {
		intensities[i] = 0.3
	}
	intensities[11] = 0.9 // bucket starting at 22s, inside the second start window
	points := uniformGrid(intensities)

	opt := NewBoundaryOptimizer(points, nil, 600, 15, 60)
	original := []models.Segment{
		{ID: "a", StartS: 10, EndS: 20, DurationS: 10},
		{ID: "b", StartS: 24, EndS: 54, DurationS: 30},
	}

	segments := opt.Optimize(original)

	require.Len(t, segments, 2)
	assert.GreaterOrEqual(t, segments[1].StartS, segments[0].EndS,
		"optimizer must never emit overlapping segments")
	assert.Equal(t, models.BoundaryOriginal, segments[0].BoundaryType)
	assert.InDelta(t, 10.0, segments[0].StartS, 0.01)
	assert.InDelta(t, 20.0, segments[0].EndS, 0.01)
}
