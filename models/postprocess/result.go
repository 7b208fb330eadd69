// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-yolo11/images"

// Result is a single proposal in model input space.
type Result struct {
	// The bounding box of the result.
	Box images.Rect
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
}

// Detection is a final detection in original image pixel coordinates.
// Width and Height are never negative.
type Detection struct {
	X         float32 `json:"x"                    yaml:"x"`
	Y         float32 `json:"y"                    yaml:"y"`
	Width     float32 `json:"width"                yaml:"width"`
	Height    float32 `json:"height"               yaml:"height"`
	Label     int     `json:"label"                yaml:"label"`
	Score     float32 `json:"score"                yaml:"score"`
	ClassName string  `json:"class_name,omitempty" yaml:"class_name,omitempty"`
}

// Rect returns the detection as corner coordinates.
func (d Detection) Rect() images.Rect {
	return images.RectXYWH(d.X, d.Y, d.Width, d.Height)
}

// Result converts the detection back into a proposal, e.g. to re-run suppression.
func (d Detection) Result() Result {
	return Result{Box: d.Rect(), Score: d.Score, Class: d.Label}
}
