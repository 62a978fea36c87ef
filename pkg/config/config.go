// Package config provides configuration loading and management for
// rhizotube. It handles loading configuration from YAML files, default
// values, and the up-front validation of the physical parameters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Tube holds the physical tube and calibration parameters.
	Tube struct {
		// AngleDeg is the tube tilt angle in degrees from the
		// horizontal ground plane. 0 and 180 are rejected.
		AngleDeg float64 `yaml:"angleDeg"`

		// DiameterCm is the tube diameter in centimetres.
		DiameterCm float64 `yaml:"diameterCm"`

		// ImageWidthCm is the physical width of the unrolled image
		// (one full circumference) in centimetres; it calibrates
		// pixels per centimetre horizontally.
		ImageWidthCm float64 `yaml:"imageWidthCm"`

		// ImageHeightCm is the physical height of the unrolled image.
		// Zero derives it from the aspect ratio, reusing the
		// horizontal pixel density.
		ImageHeightCm float64 `yaml:"imageHeightCm"`
	} `yaml:"tube"`

	// Depth holds the soil layering parameters.
	Depth struct {
		// IntervalCm is the spacing between consecutive depth planes.
		IntervalCm float64 `yaml:"intervalCm"`

		// MaxCm is the deepest plane to map.
		MaxCm float64 `yaml:"maxCm"`

		// Samples is the number of points sampled per depth curve.
		Samples int `yaml:"samples"`
	} `yaml:"depth"`

	// Output holds rendering and file-output parameters.
	Output struct {
		// LineThicknessPx is the overlay stroke thickness.
		LineThicknessPx int `yaml:"lineThicknessPx"`

		// LabelFontSizePt is the overlay label size in points.
		LabelFontSizePt float64 `yaml:"labelFontSizePt"`

		// ScaleFactor upscales each extracted layer by this integer
		// factor for readability.
		ScaleFactor int `yaml:"scaleFactor"`

		// RotateInput rotates the stitched input 90 degrees before
		// mapping, matching the scanner orientation.
		RotateInput bool `yaml:"rotateInput"`

		// FlipOutputs mirrors outputs vertically so shallow soil
		// renders at the top of saved files.
		FlipOutputs bool `yaml:"flipOutputs"`
	} `yaml:"output"`

	// Processing holds execution parameters.
	Processing struct {
		// NumCores bounds the number of layers extracted in parallel.
		NumCores int `yaml:"numCores"`

		// Pattern is the glob matching tube segment files.
		Pattern string `yaml:"pattern"`
	} `yaml:"processing"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Tube.AngleDeg = 45
	cfg.Tube.DiameterCm = 10
	cfg.Tube.ImageWidthCm = 18.0
	cfg.Tube.ImageHeightCm = 0 // derive from aspect ratio

	cfg.Depth.IntervalCm = 40
	cfg.Depth.MaxCm = 200
	cfg.Depth.Samples = 1000

	cfg.Output.LineThicknessPx = 3
	cfg.Output.LabelFontSizePt = 48
	cfg.Output.ScaleFactor = 2
	cfg.Output.RotateInput = true
	cfg.Output.FlipOutputs = true

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Pattern = "*L???*.png"

	return cfg
}

// Validate checks the fatal configuration errors before any processing
// starts. Each diagnostic names the offending parameter.
func (cfg *Config) Validate() error {
	if cfg.Tube.AngleDeg == 0 || cfg.Tube.AngleDeg == 180 {
		return fmt.Errorf("tube.angleDeg: tilt angle %g deg is degenerate, the tube must leave the horizontal plane", cfg.Tube.AngleDeg)
	}
	if cfg.Tube.DiameterCm <= 0 {
		return fmt.Errorf("tube.diameterCm: diameter must be positive, got %g", cfg.Tube.DiameterCm)
	}
	if cfg.Tube.ImageWidthCm <= 0 {
		return fmt.Errorf("tube.imageWidthCm: physical image width must be positive, got %g", cfg.Tube.ImageWidthCm)
	}
	if cfg.Tube.ImageHeightCm < 0 {
		return fmt.Errorf("tube.imageHeightCm: physical image height must not be negative, got %g", cfg.Tube.ImageHeightCm)
	}
	if cfg.Depth.IntervalCm <= 0 {
		return fmt.Errorf("depth.intervalCm: depth interval must be positive, got %g", cfg.Depth.IntervalCm)
	}
	if cfg.Depth.MaxCm < cfg.Depth.IntervalCm {
		return fmt.Errorf("depth.maxCm: max depth %g is smaller than the depth interval %g", cfg.Depth.MaxCm, cfg.Depth.IntervalCm)
	}
	if cfg.Depth.Samples < 2 {
		return fmt.Errorf("depth.samples: at least 2 samples per curve are required, got %d", cfg.Depth.Samples)
	}
	if cfg.Output.ScaleFactor < 1 {
		return fmt.Errorf("output.scaleFactor: upscale factor must be at least 1, got %d", cfg.Output.ScaleFactor)
	}
	if cfg.Output.LineThicknessPx < 1 {
		return fmt.Errorf("output.lineThicknessPx: stroke thickness must be at least 1, got %d", cfg.Output.LineThicknessPx)
	}
	if cfg.Processing.NumCores < 1 {
		return fmt.Errorf("processing.numCores: at least 1 core is required, got %d", cfg.Processing.NumCores)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
