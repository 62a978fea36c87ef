// Package extraction turns pairs of adjacent depth curves into bounded,
// masked sub-images of the soil layer lying between the two depth
// planes.
//
// The layer boundary is a closed polygon: the upper curve traversed
// left to right, the lower curve traversed right to left, closed across
// the image seam using the curves' periodicity. The polygon is
// rasterized with an even-odd scanline fill over pixel centres, which
// makes adjacent layers partition the image exactly: a pixel centre is
// claimed by one band or the other, never both. Where the two bounding
// curves cross (possible only when the wave amplitude reaches the level
// spacing or the input ordering is violated) the even-odd rule keeps
// the fill deterministic; spans between crossing points invert and no
// repair of the geometry is attempted.
package extraction

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	xdraw "golang.org/x/image/draw"

	"rhizotube/pkg/curves"
)

// Region is one extracted soil layer. It is created per adjacent depth
// pair, consumed to produce one output image, then discarded.
type Region struct {
	// StartDepthCm and EndDepthCm are the bounding plane depths.
	StartDepthCm float64
	EndDepthCm   float64

	// Bounds is the tight bounding box of the mask in base-image
	// coordinates. Zero when the region is empty.
	Bounds image.Rectangle

	// Mask covers the full base image; opaque where the layer is.
	Mask *image.Alpha

	// Image is the masked crop of the base image, upscaled by the
	// extractor's scale factor, with pixels outside the mask fully
	// transparent. Nil when the region is empty.
	Image *image.NRGBA

	// Empty reports that the layer lies entirely outside the visible
	// image, so there is nothing to crop. An explicit outcome, not an
	// error.
	Empty bool
}

// Label returns the display label for the layer, e.g. "0cm-40cm".
func (r *Region) Label() string {
	return fmt.Sprintf("%gcm-%gcm", r.StartDepthCm, r.EndDepthCm)
}

// Extractor cuts soil layers out of a single base image. The base image
// is shared read-only; every extraction allocates its own output
// buffers, so one Extractor may serve concurrent Extract calls.
type Extractor struct {
	base  image.Image
	scale int
}

// NewExtractor returns an extractor over the given base image. scale
// upscales each cropped layer by a fixed integer factor using
// nearest-neighbour resampling, which cannot introduce opaque pixels
// outside the original mask boundary; 1 disables upscaling.
func NewExtractor(base image.Image, scale int) (*Extractor, error) {
	if base == nil {
		return nil, fmt.Errorf("base image must not be nil")
	}
	if scale < 1 {
		return nil, fmt.Errorf("upscale factor must be at least 1, got %d", scale)
	}
	return &Extractor{base: base, scale: scale}, nil
}

// Extract produces the layer bounded above by upper and below by lower.
// An off-image layer yields a Region with Empty set rather than an
// error; depth ordering is not enforced here and a crossed pair is
// filled best-effort under the even-odd rule.
func (e *Extractor) Extract(upper, lower *curves.DepthCurve) (*Region, error) {
	if upper == nil || lower == nil {
		return nil, fmt.Errorf("both bounding curves are required")
	}
	if len(upper.Points) < 2 || len(lower.Points) < 2 {
		return nil, fmt.Errorf("bounding curves need at least 2 points, got %d and %d", len(upper.Points), len(lower.Points))
	}

	region := &Region{
		StartDepthCm: upper.Level.Cm,
		EndDepthCm:   lower.Level.Cm,
	}

	poly := layerPolygon(upper, lower, e.base.Bounds().Dx())
	mask, bounds := rasterize(poly, e.base.Bounds())
	region.Mask = mask
	region.Bounds = bounds

	if bounds.Empty() {
		region.Empty = true
		return region, nil
	}

	region.Image = e.applyMask(mask, bounds)
	return region, nil
}

// layerPolygon builds the closed layer boundary from the two curves.
// Each curve covers [0, W); a wrap-around point at u=W (equal to the
// u=0 sample by periodicity) closes the band across the seam so the
// layer spans the full image width.
func layerPolygon(upper, lower *curves.DepthCurve, widthPx int) []curves.Point {
	w := float64(widthPx)
	poly := make([]curves.Point, 0, len(upper.Points)+len(lower.Points)+2)

	poly = append(poly, upper.Points...)
	poly = append(poly, curves.Point{U: w, V: upper.Points[0].V})
	poly = append(poly, curves.Point{U: w, V: lower.Points[0].V})
	for i := len(lower.Points) - 1; i >= 0; i-- {
		poly = append(poly, lower.Points[i])
	}
	// The fill closes the final edge back to the first vertex itself.
	return poly
}

// rasterize fills the polygon into an alpha mask over the clip
// rectangle using an even-odd scanline rule evaluated at pixel centres,
// and returns the tight bounding box of the filled pixels.
func rasterize(poly []curves.Point, clip image.Rectangle) (*image.Alpha, image.Rectangle) {
	mask := image.NewAlpha(clip)

	minX, minY := clip.Max.X, clip.Max.Y
	maxX, maxY := clip.Min.X-1, clip.Min.Y-1

	var crossings []float64
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		yc := float64(y) + 0.5
		crossings = crossings[:0]

		for i := range poly {
			p1 := poly[i]
			p2 := poly[(i+1)%len(poly)]
			if p1.V == p2.V {
				continue // horizontal edge, no crossing
			}
			if p1.V > p2.V {
				p1, p2 = p2, p1
			}
			// Half-open in v so a vertex is counted exactly once.
			if yc < p1.V || yc >= p2.V {
				continue
			}
			x := p1.U + (yc-p1.V)*(p2.U-p1.U)/(p2.V-p1.V)
			crossings = append(crossings, x)
		}
		if len(crossings) < 2 {
			continue
		}
		sort.Float64s(crossings)

		for i := 0; i+1 < len(crossings); i += 2 {
			// Fill pixels whose centre x+0.5 lies in [xa, xb).
			x0 := int(math.Ceil(crossings[i] - 0.5))
			x1 := int(math.Ceil(crossings[i+1] - 0.5))
			if x0 < clip.Min.X {
				x0 = clip.Min.X
			}
			if x1 > clip.Max.X {
				x1 = clip.Max.X
			}
			if x0 >= x1 {
				continue
			}
			row := mask.PixOffset(x0, y)
			for x := x0; x < x1; x++ {
				mask.Pix[row] = 0xff
				row++
			}
			if x0 < minX {
				minX = x0
			}
			if x1-1 > maxX {
				maxX = x1 - 1
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < minX || maxY < minY {
		return mask, image.Rectangle{}
	}
	return mask, image.Rect(minX, minY, maxX+1, maxY+1)
}

// applyMask copies the masked pixels of the base image into a fresh
// buffer cropped to bounds, then upscales when configured. Pixels
// outside the mask are fully transparent; pixels inside keep their
// colour at full opacity.
func (e *Extractor) applyMask(mask *image.Alpha, bounds image.Rectangle) *image.NRGBA {
	cropped := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if mask.AlphaAt(x, y).A == 0 {
				continue
			}
			c := color.NRGBAModel.Convert(e.base.At(x, y)).(color.NRGBA)
			c.A = 0xff
			cropped.SetNRGBA(x-bounds.Min.X, y-bounds.Min.Y, c)
		}
	}

	if e.scale == 1 {
		return cropped
	}
	scaled := image.NewNRGBA(image.Rect(0, 0, bounds.Dx()*e.scale, bounds.Dy()*e.scale))
	xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), cropped, cropped.Bounds(), xdraw.Src, nil)
	return scaled
}

// ExtractAll produces one region per adjacent level pair in order: k
// curves yield k-1 regions. Failures and empty layers do not abort the
// remaining pairs; the first error is returned after all pairs have
// been attempted.
func (e *Extractor) ExtractAll(all []*curves.DepthCurve) ([]*Region, error) {
	if len(all) < 2 {
		return nil, fmt.Errorf("need at least 2 depth curves, got %d", len(all))
	}

	regions := make([]*Region, 0, len(all)-1)
	var firstErr error
	for i := 0; i+1 < len(all); i++ {
		region, err := e.Extract(all[i], all[i+1])
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("layer %gcm-%gcm: %w", all[i].Level.Cm, all[i+1].Level.Cm, err)
			}
			continue
		}
		regions = append(regions, region)
	}
	return regions, firstErr
}
