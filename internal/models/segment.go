package models

import (
	"image"
)

// Segment represents a single raw camera segment of the tube scan with
// its stitching metadata.
type Segment struct {
	// Image is the decoded segment image data.
	Image image.Image

	// Index is the position of this segment along the tube, parsed
	// from the filename (L001, L002, ...).
	Index int

	// Filename is the original filename of the segment.
	Filename string
}
