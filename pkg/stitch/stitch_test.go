package stitch

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"rhizotube/internal/models"
	"rhizotube/pkg/imageio"
)

// solidImage builds a w x h image filled with one colour.
func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// TestSegmentIndex verifies the position number extraction from
// segment filenames.
func TestSegmentIndex(t *testing.T) {
	cases := []struct {
		filename string
		want     int
	}{
		{"tube4_L012.png", 12},
		{"L001.png", 1},
		{"scan_L250_final.jpg", 250},
		{"/data/run7/plotA_L003.png", 3},
		{"noindex.png", 0},
		{"lower_l005.png", 0},
	}
	for _, tc := range cases {
		if got := SegmentIndex(tc.filename); got != tc.want {
			t.Errorf("SegmentIndex(%q) = %d, want %d", tc.filename, got, tc.want)
		}
	}
}

// TestLoadSegmentsOrder verifies segments come back in index order even
// when lexical filename order disagrees.
func TestLoadSegmentsOrder(t *testing.T) {
	dir := t.TempDir()
	// Lexical order a, b, c; index order c (1), b (2), a (10).
	files := map[string]color.NRGBA{
		"a_L010.png": {255, 0, 0, 255},
		"b_L002.png": {0, 255, 0, 255},
		"c_L001.png": {0, 0, 255, 255},
	}
	for name, c := range files {
		if err := imageio.SavePNG(filepath.Join(dir, name), solidImage(4, 4, c)); err != nil {
			t.Fatalf("failed to write segment %s: %v", name, err)
		}
	}

	segments, err := LoadSegments(dir, "*L???*.png")
	if err != nil {
		t.Fatalf("LoadSegments failed: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	wantIndices := []int{1, 2, 10}
	wantNames := []string{"c_L001.png", "b_L002.png", "a_L010.png"}
	for i, seg := range segments {
		if seg.Index != wantIndices[i] {
			t.Errorf("segment %d index = %d, want %d", i, seg.Index, wantIndices[i])
		}
		if seg.Filename != wantNames[i] {
			t.Errorf("segment %d filename = %q, want %q", i, seg.Filename, wantNames[i])
		}
	}
}

// TestLoadSegmentsNoMatches verifies an empty directory is an error.
func TestLoadSegmentsNoMatches(t *testing.T) {
	if _, err := LoadSegments(t.TempDir(), "*L???*.png"); err == nil {
		t.Error("LoadSegments on empty directory succeeded, want error")
	}
}

// TestCombineHorizontal verifies left-to-right concatenation preserves
// segment order and content.
func TestCombineHorizontal(t *testing.T) {
	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 0, 255, 255}
	segments := []models.Segment{
		{Image: solidImage(3, 4, red), Index: 1},
		{Image: solidImage(3, 4, blue), Index: 2},
	}

	combined, err := Combine(segments, Horizontal)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if combined.Bounds().Dx() != 6 || combined.Bounds().Dy() != 4 {
		t.Fatalf("combined size = %dx%d, want 6x4", combined.Bounds().Dx(), combined.Bounds().Dy())
	}
	if got := combined.NRGBAAt(1, 2); got != red {
		t.Errorf("left half pixel = %v, want %v", got, red)
	}
	if got := combined.NRGBAAt(4, 2); got != blue {
		t.Errorf("right half pixel = %v, want %v", got, blue)
	}
}

// TestCombineVertical verifies top-to-bottom stacking.
func TestCombineVertical(t *testing.T) {
	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 0, 255, 255}
	segments := []models.Segment{
		{Image: solidImage(4, 3, red), Index: 1},
		{Image: solidImage(4, 3, blue), Index: 2},
	}

	combined, err := Combine(segments, Vertical)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if combined.Bounds().Dx() != 4 || combined.Bounds().Dy() != 6 {
		t.Fatalf("combined size = %dx%d, want 4x6", combined.Bounds().Dx(), combined.Bounds().Dy())
	}
	if got := combined.NRGBAAt(2, 1); got != red {
		t.Errorf("top half pixel = %v, want %v", got, red)
	}
	if got := combined.NRGBAAt(2, 4); got != blue {
		t.Errorf("bottom half pixel = %v, want %v", got, blue)
	}
}

// TestCombineResizesOutliers verifies a segment whose height disagrees
// with the dominant height is resampled to match, preserving its aspect
// ratio.
func TestCombineResizesOutliers(t *testing.T) {
	c := color.NRGBA{128, 128, 128, 255}
	segments := []models.Segment{
		{Image: solidImage(4, 4, c), Index: 1},
		{Image: solidImage(4, 8, c), Index: 2}, // outlier, resized to 2x4
		{Image: solidImage(4, 4, c), Index: 3},
	}

	combined, err := Combine(segments, Horizontal)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if combined.Bounds().Dy() != 4 {
		t.Errorf("combined height = %d, want dominant height 4", combined.Bounds().Dy())
	}
	if combined.Bounds().Dx() != 10 {
		t.Errorf("combined width = %d, want 10 (4 + 2 + 4)", combined.Bounds().Dx())
	}
}

// TestCombineErrors checks the failure modes.
func TestCombineErrors(t *testing.T) {
	if _, err := Combine(nil, Horizontal); err == nil {
		t.Error("Combine with no segments succeeded, want error")
	}
	segments := []models.Segment{{Image: solidImage(2, 2, color.NRGBA{A: 255})}}
	if _, err := Combine(segments, Direction("diagonal")); err == nil {
		t.Error("Combine with unknown direction succeeded, want error")
	}
}
