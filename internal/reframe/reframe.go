// Package reframe finds the most interesting vertical crop of a wide video
// by scoring frame strips and smoothing the crop position over time.
package reframe

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // frame samples are jpeg
	"log/slog"
	"os"
	"sort"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

const (
	// stripCount is how many equal-width vertical strips each frame is
	// scored in; the crop window spans windowStrips of them.
	stripCount   = 5
	windowStrips = 3

	// smoothingFrames is the centered window for crop-position smoothing.
	smoothingFrames = 5

	// scoreWidth is the downscaled analysis width; scoring does not need
	// full resolution.
	scoreWidth = 160

	// frameWorkers bounds concurrent frame decoding.
	frameWorkers = 4
)

// centralBias slightly favors the middle strips when scores are close.
var centralBias = [stripCount]float64{1.0, 1.05, 1.1, 1.05, 1.0}

// Keyframe is one point of the piecewise-linear crop trajectory. X is the
// crop window's left edge as a fraction of the source width.
type Keyframe struct {
	TimeS float64
	X     float64
}

// Analysis is the outcome of scoring one clip's frames.
type Analysis struct {
	// Static means a single centered crop suffices (vertical source, or no
	// movement detected).
	Static    bool
	Keyframes []Keyframe
}

// Analyzer scores sampled frames. Safe for concurrent use.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer builds a frame analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{logger: logger.With("component", "reframe")}
}

// AnalyzeSource decides the crop plan for a source of the given dimensions.
// Vertical sources short-circuit to a static center crop without touching
// the frames.
func (a *Analyzer) AnalyzeSource(ctx context.Context, framePaths []string, fps float64, srcW, srcH int) (Analysis, error) {
	if srcW*16 <= srcH*9 {
		return Analysis{Static: true}, nil
	}
	if len(framePaths) == 0 {
		return Analysis{Static: true}, nil
	}

	positions := make([]float64, len(framePaths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(frameWorkers)
	for i, path := range framePaths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			x, err := scoreFrameFile(path)
			if err != nil {
				return fmt.Errorf("scoring frame %s: %w", path, err)
			}
			positions[i] = x
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Analysis{}, err
	}

	smoothed := smoothPositions(positions, smoothingFrames)
	keys := collapseKeyframes(smoothed, fps)
	a.logger.Debug("reframe analysis complete",
		"frames", len(framePaths),
		"keyframes", len(keys),
	)
	return Analysis{Keyframes: keys}, nil
}

// scoreFrameFile decodes one frame and returns the chosen crop window's left
// edge as a fraction of frame width.
func scoreFrameFile(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return 0, err
	}
	return scoreFrame(img), nil
}

// scoreFrame scores the five strips of a frame and picks the best contiguous
// three-strip window.
func scoreFrame(img image.Image) float64 {
	small := downscale(img)
	bounds := small.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return centerPosition()
	}

	var strips [stripCount]float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := small.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			strips[x*stripCount/w] += pixelInterest(r, g, b)
		}
	}
	for i := range strips {
		strips[i] *= centralBias[i]
	}

	bestStart, bestScore := 0, -1.0
	for s := 0; s+windowStrips <= stripCount; s++ {
		score := strips[s] + strips[s+1] + strips[s+2]
		if score > bestScore {
			bestStart, bestScore = s, score
		}
	}
	return float64(bestStart) / stripCount
}

// pixelInterest is brightness plus saturation, each in [0,1].
func pixelInterest(r, g, b uint32) float64 {
	rf := float64(r) / 0xffff
	gf := float64(g) / 0xffff
	bf := float64(b) / 0xffff

	maxC := rf
	if gf > maxC {
		maxC = gf
	}
	if bf > maxC {
		maxC = bf
	}
	minC := rf
	if gf < minC {
		minC = gf
	}
	if bf < minC {
		minC = bf
	}

	brightness := maxC
	saturation := 0.0
	if maxC > 0 {
		saturation = (maxC - minC) / maxC
	}
	return brightness + saturation
}

func downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= scoreWidth {
		return img
	}
	h := bounds.Dy() * scoreWidth / bounds.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, scoreWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// centerPosition is the left edge that centers the crop window.
func centerPosition() float64 {
	return float64(stripCount-windowStrips) / 2 / stripCount
}

// smoothPositions applies a centered moving average over the per-frame crop
// positions, shrinking the window at the edges.
func smoothPositions(positions []float64, window int) []float64 {
	if window <= 1 || len(positions) < 2 {
		return positions
	}
	lead := (window - 1) / 2
	trail := window / 2
	out := make([]float64, len(positions))
	for i := range positions {
		lo := i - lead
		if lo < 0 {
			lo = 0
		}
		hi := i + trail
		if hi > len(positions)-1 {
			hi = len(positions) - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += positions[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

// collapseKeyframes turns per-frame positions into keyframes, merging runs
// where the position barely moves.
func collapseKeyframes(positions []float64, fps float64) []Keyframe {
	const epsilon = 0.01
	var keys []Keyframe
	for i, x := range positions {
		t := float64(i) / fps
		if len(keys) > 0 && abs(keys[len(keys)-1].X-x) < epsilon {
			continue
		}
		keys = append(keys, Keyframe{TimeS: t, X: x})
	}
	if len(keys) == 0 {
		keys = []Keyframe{{TimeS: 0, X: centerPosition()}}
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].TimeS < keys[j].TimeS })
	return keys
}

// CropFilter renders the ffmpeg crop filter for this analysis against the
// real source dimensions. Both paths crop a 9:16 window at full height so
// the scale to the output never distorts; dynamic trajectories express the
// window's left edge as a piecewise-linear function of t between keyframes,
// centered on the chosen strip window.
func (a Analysis) CropFilter(srcW, srcH int) string {
	cw := srcH * 9 / 16
	if cw > srcW {
		cw = srcW
	}
	cw = evenDown(cw)

	if a.Static || len(a.Keyframes) == 0 {
		return fmt.Sprintf("crop=%d:%d:(iw-%d)/2:0", cw, evenDown(srcH), cw)
	}
	if len(a.Keyframes) == 1 {
		x := int(cropLeft(a.Keyframes[0].X, srcW, cw))
		return fmt.Sprintf("crop=%d:%d:%d:0", cw, evenDown(srcH), clampX(x, srcW, cw))
	}
	return fmt.Sprintf("crop=%d:%d:'%s':0", cw, evenDown(srcH), piecewiseExpr(a.Keyframes, srcW, cw))
}

// cropLeft converts a strip-window left-edge fraction into the 9:16 crop
// window's left edge in pixels, keeping the crop centered on the strip
// window. Unclamped; callers clamp to [0, srcW-cropW].
func cropLeft(x float64, srcW, cropW int) float64 {
	center := (x + float64(windowStrips)/(2*stripCount)) * float64(srcW)
	return center - float64(cropW)/2
}

// piecewiseExpr builds the nested if() expression interpolating x linearly
// between keyframes, clamped to the frame.
func piecewiseExpr(keys []Keyframe, srcW, cropW int) string {
	maxX := float64(srcW - cropW)
	var sb strings.Builder

	last := keys[len(keys)-1]
	expr := formatX(cropLeft(last.X, srcW, cropW), maxX)
	for i := len(keys) - 2; i >= 0; i-- {
		k0, k1 := keys[i], keys[i+1]
		dt := k1.TimeS - k0.TimeS
		if dt <= 0 {
			continue
		}
		x0 := cropLeft(k0.X, srcW, cropW)
		x1 := cropLeft(k1.X, srcW, cropW)
		slope := (x1 - x0) / dt
		seg := fmt.Sprintf("min(max(0,%.1f+(t-%.2f)*%.3f),%.1f)", x0, k0.TimeS, slope, maxX)
		expr = fmt.Sprintf("if(lt(t,%.2f),%s,%s)", k1.TimeS, seg, expr)
	}
	sb.WriteString(expr)
	return sb.String()
}

func formatX(x, maxX float64) string {
	if x < 0 {
		x = 0
	}
	if x > maxX {
		x = maxX
	}
	return fmt.Sprintf("%.1f", x)
}

func clampX(x, srcW, cropW int) int {
	if x < 0 {
		return 0
	}
	if x > srcW-cropW {
		return srcW - cropW
	}
	return x
}

// evenDown rounds down to an even pixel count; encoders require it.
func evenDown(v int) int {
	return v &^ 1
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
