package models

import (
	"fmt"
	"image"
	"math"
)

// RawDetection is one object instance as reported by the detector, before
// label lookup and geometry validation.
type RawDetection struct {
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
}

// Detection represents a recognized object in a frame.
type Detection struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Caption is the overlay text drawn above the bounding box.
func (d Detection) Caption() string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
}

// Rect returns the bounding box of the raw detection.
func (r RawDetection) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Validate checks confidence range and box geometry against the frame bounds.
func (r RawDetection) Validate(frame image.Rectangle) error {
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", r.Confidence)
	}
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return fmt.Errorf("degenerate box (%d,%d)-(%d,%d)", r.X1, r.Y1, r.X2, r.Y2)
	}
	if !frame.Empty() && !r.Rect().Overlaps(frame) {
		return fmt.Errorf("box (%d,%d)-(%d,%d) outside frame %v", r.X1, r.Y1, r.X2, r.Y2, frame)
	}
	return nil
}
