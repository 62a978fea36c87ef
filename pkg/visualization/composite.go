// Package visualization assembles the extracted soil layers into a
// single review figure: one titled tile per layer, ordered shallow to
// deep, for quick visual QA of a whole run.
package visualization

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"rhizotube/pkg/extraction"
)

const (
	tileWidth  = 10 * vg.Inch
	tileHeight = 3 * vg.Inch
)

// SaveComposite renders all non-empty regions into one stacked PNG
// figure at path. Empty regions are skipped; with no drawable region at
// all the figure is not written and an error is returned so callers can
// report the condition.
func SaveComposite(path string, regions []*extraction.Region) error {
	var drawable []*extraction.Region
	for _, r := range regions {
		if r != nil && !r.Empty && r.Image != nil {
			drawable = append(drawable, r)
		}
	}
	if len(drawable) == 0 {
		return fmt.Errorf("no non-empty regions to compose")
	}

	rows := len(drawable)
	plots := make([][]*plot.Plot, rows)
	for i, region := range drawable {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("Soil Depth: %g cm to %g cm", region.StartDepthCm, region.EndDepthCm)
		p.Title.TextStyle.Font.Size = vg.Points(16)
		p.HideAxes()

		b := region.Image.Bounds()
		p.Add(plotter.NewImage(region.Image, 0, 0, float64(b.Dx()), float64(b.Dy())))
		plots[i] = []*plot.Plot{p}
	}

	canvas := vgimg.New(tileWidth, vg.Length(rows)*tileHeight)
	dc := draw.New(canvas)
	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      1,
		PadX:      vg.Points(4),
		PadY:      vg.Points(4),
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(4),
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	return writePNG(path, canvas)
}

// writePNG encodes the canvas atomically: temp file in the target
// directory, renamed into place only after a complete encode.
func writePNG(path string, canvas *vgimg.Canvas) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	png := vgimg.PngCanvas{Canvas: canvas}
	if _, err := png.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode composite figure: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move composite figure into place: %w", err)
	}
	return nil
}
