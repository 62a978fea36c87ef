// Package processing orchestrates the full depth-mapping pipeline:
// stitching the raw tube segments, generating the depth curves,
// rendering the QA overlay, extracting the soil layers in parallel,
// and assembling the composite review figure.
package processing

import (
	"fmt"
	"image"
	"log"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"rhizotube/pkg/config"
	"rhizotube/pkg/curves"
	"rhizotube/pkg/extraction"
	"rhizotube/pkg/geometry"
	"rhizotube/pkg/imageio"
	"rhizotube/pkg/overlay"
	"rhizotube/pkg/stitch"
	"rhizotube/pkg/visualization"
)

// Params holds the pipeline parameters for one run.
type Params struct {
	// InputDir is the directory containing tube segment images.
	// Ignored when SingleImage is set.
	InputDir string

	// SingleImage processes one pre-stitched image instead of
	// combining segments from InputDir.
	SingleImage string

	// OutputDir receives all result files.
	OutputDir string

	// Config carries the physical, depth and output parameters.
	Config *config.Config
}

// RunStats summarises one pipeline run.
type RunStats struct {
	// Levels is the number of depth planes mapped.
	Levels int

	// Regions is the number of soil layers extracted (Levels - 1).
	Regions int

	// EmptyRegions counts layers that fell entirely outside the
	// visible image.
	EmptyRegions int

	// Coverage is the fraction of base-image pixels claimed by the
	// union of all layer masks.
	Coverage float64

	// MeanRegionHeightPx is the mean bounding-box height of the
	// non-empty layers.
	MeanRegionHeightPx float64
}

// Processor runs the depth-mapping pipeline. Construct with
// NewProcessor and call Process once; per-layer failures are isolated
// and reported through the logs and RunStats rather than aborting the
// batch.
type Processor struct {
	params *Params

	base   *image.NRGBA
	geom   *geometry.TubeGeometry
	curves []*curves.DepthCurve

	stats RunStats
}

// NewProcessor creates a processor instance with the provided
// parameters.
func NewProcessor(params *Params) *Processor {
	return &Processor{params: params}
}

// Process runs the complete pipeline.
func (p *Processor) Process() error {
	cfg := p.params.Config
	if cfg == nil {
		return fmt.Errorf("missing configuration")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Step 1: Load the base image (single file or stitched segments).
	fmt.Println("Step 1: Loading base image...")
	if err := p.loadBase(); err != nil {
		return fmt.Errorf("failed to load base image: %w", err)
	}

	// Step 2: Derive the tube geometry and sample the depth curves.
	fmt.Println("Step 2: Generating depth curves...")
	if err := p.generateCurves(); err != nil {
		return fmt.Errorf("failed to generate depth curves: %w", err)
	}

	// Step 3: Render the overlay for visual QA.
	fmt.Println("Step 3: Rendering depth overlay...")
	if err := p.renderOverlay(); err != nil {
		return fmt.Errorf("failed to render overlay: %w", err)
	}

	// Step 4: Extract the soil layers between adjacent depth planes.
	fmt.Println("Step 4: Extracting soil layers...")
	regions, err := p.extractRegions()
	if err != nil {
		return fmt.Errorf("failed to extract soil layers: %w", err)
	}

	// Step 5: Assemble the composite review figure.
	fmt.Println("Step 5: Assembling composite figure...")
	compositePath := filepath.Join(p.params.OutputDir, "all_depths.png")
	if err := visualization.SaveComposite(compositePath, regions); err != nil {
		// A run whose layers are all off-image still produced its
		// overlay; report and continue.
		log.Printf("Warning: composite figure skipped: %v", err)
	}

	p.computeStats(regions)
	return nil
}

// loadBase decodes the single input image or stitches the tube
// segments, then applies the configured input rotation.
func (p *Processor) loadBase() error {
	cfg := p.params.Config

	var img image.Image
	if p.params.SingleImage != "" {
		loaded, err := imageio.LoadImage(p.params.SingleImage)
		if err != nil {
			return err
		}
		img = loaded
	} else {
		segments, err := stitch.LoadSegments(p.params.InputDir, cfg.Processing.Pattern)
		if err != nil {
			return err
		}
		fmt.Printf("Found %d segments to combine\n", len(segments))

		combined, err := stitch.Combine(segments, stitch.Horizontal)
		if err != nil {
			return err
		}
		combinedPath := filepath.Join(p.params.OutputDir, "combined_tube.png")
		if err := imageio.SavePNG(combinedPath, combined); err != nil {
			return err
		}
		img = combined
	}

	if cfg.Output.RotateInput {
		p.base = imageio.Rotate90(img)
	} else {
		p.base = imageio.ToNRGBA(img)
	}

	b := p.base.Bounds()
	fmt.Printf("Base image: %dx%d px\n", b.Dx(), b.Dy())
	return nil
}

// generateCurves derives the tube geometry from the physical
// parameters and samples one curve per depth level.
func (p *Processor) generateCurves() error {
	cfg := p.params.Config
	b := p.base.Bounds()
	w, h := b.Dx(), b.Dy()

	ppcmU := float64(w) / cfg.Tube.ImageWidthCm
	heightCm := cfg.Tube.ImageHeightCm
	if heightCm == 0 {
		// Preserve the aspect ratio: same pixel density vertically.
		heightCm = cfg.Tube.ImageWidthCm * float64(h) / float64(w)
		fmt.Printf("Calculated image height: %.2f cm\n", heightCm)
	}
	ppcmV := float64(h) / heightCm

	tilt := cfg.Tube.AngleDeg * math.Pi / 180
	geo, err := geometry.NewTubeGeometry(cfg.Tube.DiameterCm/2, tilt, ppcmU, ppcmV, w, h, float64(h))
	if err != nil {
		return err
	}
	p.geom = geo

	levels, err := curves.DepthLevels(cfg.Depth.IntervalCm, cfg.Depth.MaxCm)
	if err != nil {
		return err
	}
	gen, err := curves.NewGenerator(geo, cfg.Depth.Samples)
	if err != nil {
		return err
	}
	p.curves = gen.GenerateAll(levels)

	fmt.Printf("Mapped %d depth planes (amplitude %.1f px)\n", len(levels), geo.Amplitude())
	return nil
}

// renderOverlay composites all curves onto a copy of the base image and
// saves it.
func (p *Processor) renderOverlay() error {
	cfg := p.params.Config

	renderer, err := overlay.NewRenderer(overlay.Options{
		ThicknessPx: cfg.Output.LineThicknessPx,
		FontSizePt:  cfg.Output.LabelFontSizePt,
	})
	if err != nil {
		return err
	}
	img, err := renderer.Render(p.base, p.curves)
	if err != nil {
		return err
	}

	var out image.Image = img
	if cfg.Output.FlipOutputs {
		out = imageio.FlipVertical(img)
	}
	return imageio.SavePNG(filepath.Join(p.params.OutputDir, "depth_overlay.png"), out)
}

// extractRegions cuts one soil layer per adjacent depth pair, bounded
// by NumCores concurrent workers, and saves each non-empty layer. A
// failed or empty layer is logged and skipped without aborting its
// siblings.
func (p *Processor) extractRegions() ([]*extraction.Region, error) {
	cfg := p.params.Config

	extractor, err := extraction.NewExtractor(p.base, cfg.Output.ScaleFactor)
	if err != nil {
		return nil, err
	}

	numPairs := len(p.curves) - 1
	if numPairs < 1 {
		return nil, fmt.Errorf("need at least 2 depth curves, got %d", len(p.curves))
	}

	type extractionResult struct {
		pairIdx int
		region  *extraction.Region
		err     error
	}
	resultChan := make(chan extractionResult)
	sem := make(chan struct{}, cfg.Processing.NumCores)

	for i := 0; i < numPairs; i++ {
		go func(pairIdx int) {
			sem <- struct{}{}
			defer func() { <-sem }()

			region, err := extractor.Extract(p.curves[pairIdx], p.curves[pairIdx+1])
			resultChan <- extractionResult{pairIdx: pairIdx, region: region, err: err}
		}(i)
	}

	regions := make([]*extraction.Region, numPairs)
	for completed := 0; completed < numPairs; completed++ {
		res := <-resultChan
		if res.err != nil {
			log.Printf("Warning: layer %d extraction failed: %v", res.pairIdx, res.err)
			continue
		}
		regions[res.pairIdx] = res.region

		progress := float64(completed+1) / float64(numPairs) * 100
		fmt.Printf("\rExtracting soil layers: %.1f%% complete", progress)
	}
	fmt.Println()

	// Save sequentially in depth order; output files appear only after
	// a successful mask and crop.
	saved := 0
	for _, region := range regions {
		if region == nil {
			continue
		}
		if region.Empty {
			log.Printf("Layer %s lies outside the visible image, no file written", region.Label())
			continue
		}
		if cfg.Output.FlipOutputs {
			region.Image = imageio.FlipVertical(region.Image)
		}
		name := fmt.Sprintf("depth_%gcm_to_%gcm.png", region.StartDepthCm, region.EndDepthCm)
		if err := imageio.SavePNG(filepath.Join(p.params.OutputDir, name), region.Image); err != nil {
			log.Printf("Warning: failed to save layer %s: %v", region.Label(), err)
			continue
		}
		saved++
	}
	fmt.Printf("Saved %d of %d soil layers\n", saved, numPairs)

	out := regions[:0]
	for _, region := range regions {
		if region != nil {
			out = append(out, region)
		}
	}
	return out, nil
}

// computeStats fills the run summary from the extracted regions.
func (p *Processor) computeStats(regions []*extraction.Region) {
	p.stats.Levels = len(p.curves)
	p.stats.Regions = len(regions)

	b := p.base.Bounds()
	covered := 0
	var heights []float64
	for _, region := range regions {
		if region.Empty {
			p.stats.EmptyRegions++
			continue
		}
		heights = append(heights, float64(region.Bounds.Dy()))
		for y := region.Bounds.Min.Y; y < region.Bounds.Max.Y; y++ {
			for x := region.Bounds.Min.X; x < region.Bounds.Max.X; x++ {
				if region.Mask.AlphaAt(x, y).A != 0 {
					covered++
				}
			}
		}
	}

	if total := b.Dx() * b.Dy(); total > 0 {
		p.stats.Coverage = float64(covered) / float64(total)
	}
	if len(heights) > 0 {
		p.stats.MeanRegionHeightPx = stat.Mean(heights, nil)
	}
}

// GetStats returns the run summary. Valid after Process has returned.
func (p *Processor) GetStats() RunStats {
	return p.stats
}
