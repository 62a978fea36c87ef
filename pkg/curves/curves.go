// Package curves builds depth-level sequences and samples each level's
// depth-plane curve across the width of the unrolled tube image.
package curves

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"rhizotube/pkg/geometry"
)

// DefaultSamples is the number of points sampled along a depth curve
// when no explicit count is configured.
const DefaultSamples = 1000

// DepthLevel is a single horizontal soil plane at a fixed physical
// depth below the ground surface.
type DepthLevel struct {
	// Cm is the depth in centimetres, >= 0.
	Cm float64
}

// Label returns the display label for this level, e.g. "Depth: 40 cm".
func (l DepthLevel) Label() string {
	return fmt.Sprintf("Depth: %g cm", l.Cm)
}

// DepthLevels generates the strictly increasing level sequence from the
// surface down to maxCm in steps of intervalCm. When maxCm is not a
// multiple of the interval, maxCm itself is appended as the final level
// so the deepest layer is never truncated.
func DepthLevels(intervalCm, maxCm float64) ([]DepthLevel, error) {
	if intervalCm <= 0 {
		return nil, fmt.Errorf("depth interval must be positive, got %g cm", intervalCm)
	}
	if maxCm < intervalCm {
		return nil, fmt.Errorf("max depth %g cm is smaller than the depth interval %g cm", maxCm, intervalCm)
	}

	// Index-based stepping avoids accumulation drift for fractional
	// intervals.
	n := int(math.Floor(maxCm/intervalCm + 1e-9))
	levels := make([]DepthLevel, 0, n+2)
	for i := 0; i <= n; i++ {
		levels = append(levels, DepthLevel{Cm: float64(i) * intervalCm})
	}
	if last := levels[len(levels)-1].Cm; last < maxCm {
		levels = append(levels, DepthLevel{Cm: maxCm})
	}
	return levels, nil
}

// Point is a single sample of a depth curve in pixel coordinates.
// V is not clamped to the image: a depth plane may lie partly outside
// the camera's field of view, and handling that is the region
// extractor's concern.
type Point struct {
	U, V float64
}

// DepthCurve is the sampled intersection of one depth plane with the
// tube wall, ordered by increasing U. It is immutable once generated.
type DepthCurve struct {
	// Level is the depth plane this curve belongs to.
	Level DepthLevel

	// Points holds the samples in increasing-U order, covering
	// [0, WidthPx) at uniform spacing.
	Points []Point
}

// Generator samples depth curves for a fixed tube geometry. The zero
// value is not usable; construct with NewGenerator.
type Generator struct {
	geom    *geometry.TubeGeometry
	samples int
}

// NewGenerator returns a curve generator for the given geometry. A
// non-positive sample count selects DefaultSamples; a count of one is
// rejected because a curve needs at least two points to bound a region.
func NewGenerator(g *geometry.TubeGeometry, samples int) (*Generator, error) {
	if g == nil {
		return nil, fmt.Errorf("tube geometry must not be nil")
	}
	if samples <= 0 {
		samples = DefaultSamples
	}
	if samples < 2 {
		return nil, fmt.Errorf("sample count must be at least 2, got %d", samples)
	}
	return &Generator{geom: g, samples: samples}, nil
}

// Generate samples the curve for one depth level at uniformly spaced u
// values spanning [0, W). The first sample is at u=0 and the last at
// u=W-W/N. Output is bit-reproducible for identical inputs.
func (gen *Generator) Generate(level DepthLevel) *DepthCurve {
	w := float64(gen.geom.WidthPx)
	step := w / float64(gen.samples)

	us := make([]float64, gen.samples)
	floats.Span(us, 0, w-step)

	points := make([]Point, gen.samples)
	for i, u := range us {
		points[i] = Point{U: u, V: gen.geom.VerticalPosition(u, level.Cm)}
	}
	return &DepthCurve{Level: level, Points: points}
}

// GenerateAll samples one curve per level, preserving level order.
func (gen *Generator) GenerateAll(levels []DepthLevel) []*DepthCurve {
	out := make([]*DepthCurve, len(levels))
	for i, level := range levels {
		out[i] = gen.Generate(level)
	}
	return out
}
