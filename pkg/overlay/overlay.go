// Package overlay composites depth curves onto a copy of the base tube
// image for visual QA. Curves get a deterministic, cycling colour
// assignment from a fixed palette and an optional depth label near the
// left edge. Pure compositing: no geometric derivation beyond consuming
// curve points, and the base image is never mutated.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"codeberg.org/go-fonts/liberation/liberationsansregular"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"rhizotube/pkg/curves"
	"rhizotube/pkg/imageio"
)

// DefaultPalette returns the fixed ten-colour palette assigned to
// curves by depth index modulo palette length.
func DefaultPalette() []color.NRGBA {
	return []color.NRGBA{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
		{255, 255, 0, 255},
		{255, 0, 255, 255},
		{0, 255, 255, 255},
		{255, 128, 0, 255},
		{128, 0, 255, 255},
		{0, 128, 255, 255},
		{255, 0, 128, 255},
	}
}

// Options configures the overlay renderer. Zero values select the
// defaults noted on each field.
type Options struct {
	// Palette is the cycling curve colour assignment; nil selects
	// DefaultPalette.
	Palette []color.NRGBA

	// ThicknessPx is the stroke thickness in pixels (default 3).
	ThicknessPx int

	// FontSizePt is the label font size in points (default 48).
	FontSizePt float64

	// LabelAnchorX is the horizontal pixel position of labels
	// (default 20).
	LabelAnchorX int

	// HideLabels suppresses the per-curve depth labels.
	HideLabels bool
}

// Renderer draws depth curves and labels. Construct with NewRenderer.
type Renderer struct {
	opts Options
	face font.Face
}

// NewRenderer prepares a renderer, parsing the embedded label typeface
// once up front.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Palette == nil {
		opts.Palette = DefaultPalette()
	}
	if len(opts.Palette) == 0 {
		return nil, fmt.Errorf("palette must not be empty")
	}
	if opts.ThicknessPx <= 0 {
		opts.ThicknessPx = 3
	}
	if opts.FontSizePt <= 0 {
		opts.FontSizePt = 48
	}
	if opts.LabelAnchorX <= 0 {
		opts.LabelAnchorX = 20
	}

	fnt, err := opentype.Parse(liberationsansregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse label typeface: %w", err)
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    opts.FontSizePt,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build label face: %w", err)
	}

	return &Renderer{opts: opts, face: face}, nil
}

// Render draws every curve onto a fresh copy of the base image and
// returns the composited overlay.
func (r *Renderer) Render(base image.Image, all []*curves.DepthCurve) (*image.NRGBA, error) {
	if base == nil {
		return nil, fmt.Errorf("base image must not be nil")
	}

	out := imageio.ToNRGBA(base)
	if isSameBuffer(out, base) {
		// ToNRGBA may return its input unchanged; Render must not
		// mutate the caller's image.
		clone := image.NewNRGBA(out.Bounds())
		copy(clone.Pix, out.Pix)
		out = clone
	}

	for i, curve := range all {
		col := r.opts.Palette[i%len(r.opts.Palette)]
		r.drawCurve(out, curve, col)
		if !r.opts.HideLabels {
			r.drawLabel(out, curve, col)
		}
	}
	return out, nil
}

func isSameBuffer(n *image.NRGBA, img image.Image) bool {
	other, ok := img.(*image.NRGBA)
	return ok && other == n
}

// drawCurve strokes the polyline through the curve samples with the
// configured thickness.
func (r *Renderer) drawCurve(dst *image.NRGBA, curve *curves.DepthCurve, col color.NRGBA) {
	pts := curve.Points
	for i := 0; i+1 < len(pts); i++ {
		r.drawSegment(dst, pts[i], pts[i+1], col)
	}
}

// drawSegment stamps the stroke footprint along the line from a to b.
func (r *Renderer) drawSegment(dst *image.NRGBA, a, b curves.Point, col color.NRGBA) {
	du := b.U - a.U
	dv := b.V - a.V
	steps := int(math.Max(math.Abs(du), math.Abs(dv))) + 1
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		r.stamp(dst, int(math.Round(a.U+t*du)), int(math.Round(a.V+t*dv)), col)
	}
}

// stamp paints the thickness x thickness stroke footprint centred on
// (x, y), clipped to the image.
func (r *Renderer) stamp(dst *image.NRGBA, x, y int, col color.NRGBA) {
	half := r.opts.ThicknessPx / 2
	b := dst.Bounds()
	for dy := -half; dy <= r.opts.ThicknessPx-1-half; dy++ {
		for dx := -half; dx <= r.opts.ThicknessPx-1-half; dx++ {
			px, py := x+dx, y+dy
			if px < b.Min.X || px >= b.Max.X || py < b.Min.Y || py >= b.Max.Y {
				continue
			}
			dst.SetNRGBA(px, py, col)
		}
	}
}

// drawLabel writes the curve's depth label above its first sample, or
// below it when the label would leave the top of the image.
func (r *Renderer) drawLabel(dst *image.NRGBA, curve *curves.DepthCurve, col color.NRGBA) {
	if len(curve.Points) == 0 {
		return
	}
	size := int(r.opts.FontSizePt)
	y := int(curve.Points[0].V) - (size + 10)
	if y < 0 {
		y = int(curve.Points[0].V) + 20
	}

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: r.face,
		// The drawer's dot is the text baseline; y is the label top.
		Dot: fixed.P(r.opts.LabelAnchorX, y+size),
	}
	d.DrawString(curve.Level.Label())
}
