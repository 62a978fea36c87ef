// Package geometry implements the intersection of horizontal soil-depth
// planes with a tilted cylindrical tube, expressed in the pixel
// coordinates of the unrolled (flattened) tube image.
//
// The tube is inserted into the soil at a tilt angle theta measured from
// the horizontal ground plane. Unrolling the tube wall maps the angular
// position phi around the circumference to the horizontal pixel axis u,
// and the distance s along the tube axis to the vertical pixel axis v.
// A horizontal plane at depth d meets the wall at
//
//	s(phi) = (d + R*cos(phi)*cos(theta)) / sin(theta)
//
// which on the unrolled image is a cosine wave of period W (the image
// width) around a mean level that sinks linearly with depth.
package geometry

import (
	"fmt"
	"math"
)

// sinEpsilon is the threshold below which sin(theta) is considered zero
// and the plane/cylinder intersection degenerates (the planes become
// parallel to the tube axis and never cross it at a finite distance).
const sinEpsilon = 1e-9

// DegenerateGeometryError reports a tube tilt angle for which the
// depth-plane intersection is undefined (theta equal to 0 or pi, where
// sin(theta) vanishes).
type DegenerateGeometryError struct {
	// TiltRad is the rejected tilt angle in radians.
	TiltRad float64
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("degenerate tube geometry: tilt angle %.6f rad has sin(theta) = 0, depth planes never intersect the tube wall", e.TiltRad)
}

// TubeGeometry describes a tilted cylindrical tube and the calibration
// of its unrolled image. It is immutable once constructed; construction
// fails for degenerate or non-physical parameters.
type TubeGeometry struct {
	// RadiusCm is the tube radius in centimetres.
	RadiusCm float64

	// TiltRad is the tube tilt angle in radians, measured from the
	// horizontal ground plane. Valid range is (0, pi) excluding the
	// endpoints.
	TiltRad float64

	// PixelsPerCmU and PixelsPerCmV convert physical distances to
	// pixels along the horizontal and vertical image axes.
	PixelsPerCmU float64
	PixelsPerCmV float64

	// WidthPx and HeightPx are the unrolled image dimensions in pixels.
	// One full turn of the circumference spans exactly WidthPx.
	WidthPx  int
	HeightPx int

	// VOffsetPx is the vertical pixel coordinate of the reference level
	// (depth zero at the mean of the wave). Larger depths map to
	// smaller v, so with VOffsetPx equal to the image height the ground
	// surface sits at the bottom edge.
	VOffsetPx float64
}

// NewTubeGeometry validates the parameters and returns an immutable
// geometry. It returns a *DegenerateGeometryError when sin(tiltRad) is
// zero, and a plain error for non-physical radius, calibration or image
// dimensions.
func NewTubeGeometry(radiusCm, tiltRad, pixelsPerCmU, pixelsPerCmV float64, widthPx, heightPx int, vOffsetPx float64) (*TubeGeometry, error) {
	if math.Abs(math.Sin(tiltRad)) < sinEpsilon {
		return nil, &DegenerateGeometryError{TiltRad: tiltRad}
	}
	if radiusCm <= 0 {
		return nil, fmt.Errorf("tube radius must be positive, got %g cm", radiusCm)
	}
	if pixelsPerCmU <= 0 || pixelsPerCmV <= 0 {
		return nil, fmt.Errorf("pixel calibration must be positive, got %g px/cm horizontal and %g px/cm vertical", pixelsPerCmU, pixelsPerCmV)
	}
	if widthPx <= 0 || heightPx <= 0 {
		return nil, fmt.Errorf("image dimensions must be positive, got %dx%d px", widthPx, heightPx)
	}

	return &TubeGeometry{
		RadiusCm:     radiusCm,
		TiltRad:      tiltRad,
		PixelsPerCmU: pixelsPerCmU,
		PixelsPerCmV: pixelsPerCmV,
		WidthPx:      widthPx,
		HeightPx:     heightPx,
		VOffsetPx:    vOffsetPx,
	}, nil
}

// VerticalPosition maps a horizontal pixel position u and a soil depth
// in centimetres to the vertical pixel position of the depth plane on
// the unrolled image.
//
// The mapping is total for any finite u and depth: u values outside
// [0, WidthPx) simply wrap around the circumference (the result is
// periodic in u with period WidthPx), and the returned v may lie
// outside [0, HeightPx) when the plane leaves the camera's field of
// view. Callers that need on-image coordinates must clamp themselves.
func (g *TubeGeometry) VerticalPosition(u, depthCm float64) float64 {
	phi := u / float64(g.WidthPx) * 2 * math.Pi
	s := (depthCm + g.RadiusCm*math.Cos(phi)*math.Cos(g.TiltRad)) / math.Sin(g.TiltRad)
	return g.VOffsetPx - s*g.PixelsPerCmV
}

// MeanLevel returns the mean vertical pixel level of the depth curve at
// the given depth, i.e. the curve with the cosine term averaged out.
// It decreases strictly as depth grows (deeper layers render higher on
// the image) for tilt angles in (0, pi/2].
func (g *TubeGeometry) MeanLevel(depthCm float64) float64 {
	return g.VOffsetPx - depthCm/math.Sin(g.TiltRad)*g.PixelsPerCmV
}

// Amplitude returns the half peak-to-peak amplitude of the depth curve
// in pixels: |R*cot(theta)|*PixelsPerCmV. A vertical tube (theta = pi/2)
// has amplitude zero and every depth curve degenerates to a horizontal
// line.
func (g *TubeGeometry) Amplitude() float64 {
	return math.Abs(g.RadiusCm*math.Cos(g.TiltRad)/math.Sin(g.TiltRad)) * g.PixelsPerCmV
}
