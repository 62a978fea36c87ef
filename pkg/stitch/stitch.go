// Package stitch combines the raw camera segments of a tube scan into
// one continuous image. Segments are ordered by the numeric index
// embedded in their filenames (L001, L002, ...); segments whose size
// disagrees with the dominant size are resampled to match before
// concatenation.
package stitch

import (
	"fmt"
	"image"
	"image/draw"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	xdraw "golang.org/x/image/draw"

	"rhizotube/internal/models"
	"rhizotube/pkg/imageio"
)

// Direction selects the axis along which segments are concatenated.
type Direction string

const (
	// Vertical stacks segments top to bottom.
	Vertical Direction = "vertical"

	// Horizontal places segments left to right.
	Horizontal Direction = "horizontal"
)

// indexPattern matches the position number in segment filenames such as
// "tube4_L012.png".
var indexPattern = regexp.MustCompile(`L(\d+)`)

// SegmentIndex extracts the position number from a segment filename.
// Filenames without an index sort first with index 0.
func SegmentIndex(filename string) int {
	m := indexPattern.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// LoadSegments finds the segment images in dir matching the glob
// pattern, decodes them, and returns them ordered by segment index.
func LoadSegments(dir, pattern string) ([]models.Segment, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad segment pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no images found matching pattern %q in %s", pattern, dir)
	}

	sort.Slice(matches, func(i, j int) bool {
		return SegmentIndex(matches[i]) < SegmentIndex(matches[j])
	})

	segments := make([]models.Segment, 0, len(matches))
	for _, path := range matches {
		img, err := imageio.LoadImage(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load segment: %w", err)
		}
		segments = append(segments, models.Segment{
			Image:    img,
			Index:    SegmentIndex(path),
			Filename: filepath.Base(path),
		})
	}
	return segments, nil
}

// Combine concatenates the segments along the given direction into one
// image. For vertical stitching all segments are brought to the most
// common width (resampling outliers with Catmull-Rom interpolation,
// preserving aspect ratio); for horizontal stitching, to the most
// common height.
func Combine(segments []models.Segment, dir Direction) (*image.NRGBA, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to combine")
	}

	imgs := make([]image.Image, len(segments))
	for i, seg := range segments {
		imgs[i] = seg.Image
	}

	switch dir {
	case Vertical:
		imgs = normalize(imgs, true)
		width, height := 0, 0
		for _, img := range imgs {
			b := img.Bounds()
			if b.Dx() > width {
				width = b.Dx()
			}
			height += b.Dy()
		}
		combined := image.NewNRGBA(image.Rect(0, 0, width, height))
		y := 0
		for _, img := range imgs {
			b := img.Bounds()
			draw.Draw(combined, image.Rect(0, y, b.Dx(), y+b.Dy()), img, b.Min, draw.Src)
			y += b.Dy()
		}
		return combined, nil

	case Horizontal:
		imgs = normalize(imgs, false)
		width, height := 0, 0
		for _, img := range imgs {
			b := img.Bounds()
			if b.Dy() > height {
				height = b.Dy()
			}
			width += b.Dx()
		}
		combined := image.NewNRGBA(image.Rect(0, 0, width, height))
		x := 0
		for _, img := range imgs {
			b := img.Bounds()
			draw.Draw(combined, image.Rect(x, 0, x+b.Dx(), b.Dy()), img, b.Min, draw.Src)
			x += b.Dx()
		}
		return combined, nil

	default:
		return nil, fmt.Errorf("unknown stitch direction %q", dir)
	}
}

// normalize resamples outlier segments to the most common width
// (byWidth) or height, keeping each segment's aspect ratio.
func normalize(imgs []image.Image, byWidth bool) []image.Image {
	counts := make(map[int]int)
	for _, img := range imgs {
		if byWidth {
			counts[img.Bounds().Dx()]++
		} else {
			counts[img.Bounds().Dy()]++
		}
	}
	common, best := 0, 0
	for size, n := range counts {
		if n > best || (n == best && size > common) {
			common, best = size, n
		}
	}

	out := make([]image.Image, len(imgs))
	for i, img := range imgs {
		b := img.Bounds()
		if byWidth {
			if b.Dx() == common {
				out[i] = img
				continue
			}
			newH := int(float64(b.Dy()) / float64(b.Dx()) * float64(common))
			out[i] = resize(img, common, newH)
		} else {
			if b.Dy() == common {
				out[i] = img
				continue
			}
			newW := int(float64(b.Dx()) / float64(b.Dy()) * float64(common))
			out[i] = resize(img, newW, common)
		}
	}
	return out
}

// resize resamples img to w x h with Catmull-Rom interpolation.
func resize(img image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
