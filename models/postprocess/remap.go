package postprocess

import "github.com/nvr-ai/go-yolo11/images"

// Remap maps proposals from model input space into source image pixels using
// frame, clamping each box to the image bounds.
func Remap(results []Result, frame images.Transform) []Detection {
	sx, sy := frame.Scales()
	if frame.SrcWidth <= 0 || frame.SrcHeight <= 0 || sx <= 0 || sy <= 0 {
		return nil
	}

	detections := make([]Detection, 0, len(results))
	for _, r := range results {
		box := frame.InverseRect(r.Box)
		detections = append(detections, Detection{
			X:      box.X1,
			Y:      box.Y1,
			Width:  box.Width(),
			Height: box.Height(),
			Label:  r.Class,
			Score:  r.Score,
		})
	}
	return detections
}

// SuppressAndRemap runs Suppress and then Remap. The result is in acceptance
// order, which is not necessarily the proposal order.
//
// @example
//
//	proposals := yolo11.DecodeStrides(outputs, strides, conf)
//	dets := SuppressAndRemap(proposals, frame, NMSConfig{ConfidenceThreshold: conf, IoUThreshold: 0.45})
func SuppressAndRemap(proposals []Result, frame images.Transform, config NMSConfig) []Detection {
	return Remap(Suppress(proposals, config), frame)
}
