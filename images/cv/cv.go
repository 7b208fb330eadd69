// Package cv - OpenCV (gocv) counterparts of the pure Go image and
// suppression helpers. All functions need the OpenCV shared libraries.
package cv

import (
	"crypto/md5"
	"fmt"
	"image"
	"image/color"

	"github.com/nvr-ai/go-yolo11/images"
	"github.com/nvr-ai/go-yolo11/models/postprocess"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FromImage converts img into a 3-channel BGR Mat. The caller closes it.
func FromImage(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.NewMat(), images.ErrEmptyImage
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return mat, errors.Wrap(err, "image to mat")
	}
	return mat, nil
}

// LetterboxMat is images.Letterbox on a Mat: linear resize of the longer
// side to opts.Size and a constant border up to opts.Size x opts.Size.
//
// Returns:
//   - gocv.Mat: The letterboxed Mat, owned by the caller.
//   - images.Transform: Scale and pads needed to invert coordinates.
//   - error: images.ErrEmptyImage or images.ErrInvalidSize on degenerate input.
func LetterboxMat(src gocv.Mat, opts images.LetterboxOptions) (gocv.Mat, images.Transform, error) {
	if src.Empty() {
		return gocv.NewMat(), images.Transform{}, images.ErrEmptyImage
	}

	t, content, err := images.LetterboxGeometry(src.Cols(), src.Rows(), opts)
	if err != nil {
		return gocv.NewMat(), images.Transform{}, err
	}

	pad := images.DefaultPadColor
	if opts.Color != nil {
		pad = color.RGBAModel.Convert(opts.Color).(color.RGBA)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	if content.X != src.Cols() || content.Y != src.Rows() {
		gocv.Resize(src, &resized, content, 0, 0, gocv.InterpolationLinear)
	} else {
		src.CopyTo(&resized)
	}

	dst := gocv.NewMat()
	gocv.CopyMakeBorder(resized, &dst,
		t.PadTop, opts.Size-content.Y-t.PadTop,
		t.PadLeft, opts.Size-content.X-t.PadLeft,
		gocv.BorderConstant, pad)

	return dst, t, nil
}

// NMSBoxes suppresses proposals with OpenCV's NMSBoxes. It satisfies
// postprocess.SuppressFunc. Boxes are rounded to whole pixels and suppression
// is always label-agnostic. OpenCV keeps scores strictly above the
// confidence threshold.
func NMSBoxes(proposals []postprocess.Result, config postprocess.NMSConfig) []postprocess.Result {
	if !config.Valid() || len(proposals) == 0 {
		return nil
	}

	boxes := make([]image.Rectangle, len(proposals))
	scores := make([]float32, len(proposals))
	for i, p := range proposals {
		boxes[i] = image.Rect(round(p.Box.X1), round(p.Box.Y1), round(p.Box.X2), round(p.Box.Y2))
		scores[i] = p.Score
	}

	indices := gocv.NMSBoxes(boxes, scores, config.ConfidenceThreshold, config.IoUThreshold)

	kept := make([]postprocess.Result, 0, len(indices))
	for _, idx := range indices {
		if config.MaxDetections > 0 && len(kept) == config.MaxDetections {
			break
		}
		kept = append(kept, proposals[idx])
	}
	return kept
}

func round(v float32) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}

// MatChecksum returns the hex MD5 of a Mat's bytes, or "empty".
func MatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	data, err := mat.DataPtrUint8()
	if err != nil {
		return "empty"
	}
	return fmt.Sprintf("%x", md5.Sum(data))
}
