package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"rhizotube/pkg/config"
	"rhizotube/pkg/processing"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing tube segment images")
	singleImage := flag.String("image", "", "Process a single pre-stitched image instead of combining segments")
	outputDir := flag.String("output", "processed_tube", "Directory to save output images")
	configPath := flag.String("config", "", "Optional YAML configuration file")
	pattern := flag.String("pattern", "", "Glob pattern to match segment files (default *L???*.png)")
	angle := flag.Float64("angle", 0, "Tube tilt angle in degrees from horizontal (default 45)")
	diameter := flag.Float64("diameter", 0, "Tube diameter in cm (default 10)")
	interval := flag.Float64("interval", 0, "Interval between soil depth planes in cm (default 40)")
	maxDepth := flag.Float64("max-depth", 0, "Maximum soil depth to map in cm (default 200)")
	imgWidth := flag.Float64("img-width", 0, "Physical width of the unrolled image in cm (default 18)")
	thickness := flag.Int("thickness", 0, "Depth line thickness in pixels (default 3)")
	cores := flag.Int("cores", 0, "Number of CPU cores to use (default: all available)")
	flag.Parse()

	// Validate inputs
	if *inputDir == "" && *singleImage == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Load configuration, then let explicit flags override it
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *pattern != "" {
		cfg.Processing.Pattern = *pattern
	}
	if *angle != 0 {
		cfg.Tube.AngleDeg = *angle
	}
	if *diameter != 0 {
		cfg.Tube.DiameterCm = *diameter
	}
	if *interval != 0 {
		cfg.Depth.IntervalCm = *interval
	}
	if *maxDepth != 0 {
		cfg.Depth.MaxCm = *maxDepth
	}
	if *imgWidth != 0 {
		cfg.Tube.ImageWidthCm = *imgWidth
	}
	if *thickness != 0 {
		cfg.Output.LineThicknessPx = *thickness
	}
	if *cores != 0 {
		cfg.Processing.NumCores = *cores
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("RHIZOTUBE: SOIL DEPTH MAPPING FOR MINIRHIZOTRON TUBE IMAGES")
	fmt.Println("================================")

	params := &processing.Params{
		InputDir:    *inputDir,
		SingleImage: *singleImage,
		OutputDir:   *outputDir,
		Config:      cfg,
	}

	processor := processing.NewProcessor(params)
	if err := processor.Process(); err != nil {
		log.Fatalf("Processing failed: %v", err)
	}

	stats := processor.GetStats()
	fmt.Printf("\nProcessing complete. Results saved to: %s\n\n", *outputDir)
	fmt.Printf("Run summary:\n")
	fmt.Printf("============\n")
	fmt.Printf("Depth planes mapped: %d\n", stats.Levels)
	fmt.Printf("Soil layers extracted: %d\n", stats.Regions)
	fmt.Printf("Layers outside the image: %d\n", stats.EmptyRegions)
	fmt.Printf("Image coverage: %.1f%%\n", stats.Coverage*100)
	fmt.Printf("Mean layer height: %.0f px\n", stats.MeanRegionHeightPx)
}
