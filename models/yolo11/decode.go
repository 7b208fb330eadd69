// Package yolo11 - YOLO11 proposal decoding and model.
//
// Each output stride is a grid of cell vectors laid out as four 16-bin
// distance distributions (left, top, right, bottom) followed by one logit per
// class.
package yolo11

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-yolo11/images"
	"github.com/nvr-ai/go-yolo11/inference/tensor"
	"github.com/nvr-ai/go-yolo11/models/postprocess"
	"github.com/pkg/errors"
)

// RegMax is the number of DFL bins per box edge.
const RegMax = 16

// boxChannels is the number of leading channels holding the DFL bins.
const boxChannels = 4 * RegMax

// Strides are the feature-map strides of the three detection heads.
var Strides = []int{8, 16, 32}

// ErrChannelCount is returned when an output has no room for class logits.
var ErrChannelCount = errors.New("output has no class channels")

// Sigmoid is the logistic function.
func Sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// DFL decodes one edge distribution: the expectation of the bin index under
// the softmax of logits. The maximum is subtracted before exponentiating.
func DFL(logits []float32) float32 {
	if len(logits) == 0 {
		return 0
	}

	peak := logits[0]
	for _, v := range logits[1:] {
		peak = max(peak, v)
	}

	var sum, expectation float32
	for k, v := range logits {
		e := math32.Exp(v - peak)
		sum += e
		expectation += float32(k) * e
	}
	return expectation / sum
}

// NumClasses returns the class count carried by a view.
func NumClasses(view tensor.View) (int, error) {
	n := view.Channels() - boxChannels
	if n <= 0 {
		return 0, errors.Wrapf(ErrChannelCount, "%d channels, need more than %d", view.Channels(), boxChannels)
	}
	return n, nil
}

// GenerateProposals decodes every grid cell of one stride whose best class
// scores at least threshold.
//
// Arguments:
//   - stride: Input pixels per grid cell.
//   - view: The output feature map, rows x cols x (64 + classes).
//   - threshold: Minimum sigmoid class score.
//
// Returns:
//   - []postprocess.Result: Proposals in model input pixel coordinates.
//   - error: ErrChannelCount when the view has no class channels.
func GenerateProposals(stride int, view tensor.View, threshold float32) ([]postprocess.Result, error) {
	numClasses, err := NumClasses(view)
	if err != nil {
		return nil, err
	}

	s := float32(stride)
	var (
		proposals []postprocess.Result
		cell      []float32
	)
	for i := 0; i < view.Rows(); i++ {
		for j := 0; j < view.Cols(); j++ {
			cell = view.Cell(i, j, cell)

			// Sigmoid is monotonic: the best logit gives the best score.
			logits := cell[boxChannels:]
			label := 0
			for c := 1; c < numClasses; c++ {
				if logits[c] > logits[label] {
					label = c
				}
			}
			score := Sigmoid(logits[label])
			if !(score >= threshold) {
				continue
			}

			left := DFL(cell[0*RegMax : 1*RegMax])
			top := DFL(cell[1*RegMax : 2*RegMax])
			right := DFL(cell[2*RegMax : 3*RegMax])
			bottom := DFL(cell[3*RegMax : 4*RegMax])

			cx, cy := float32(j)+0.5, float32(i)+0.5
			proposals = append(proposals, postprocess.Result{
				Box: images.Rect{
					X1: (cx - left) * s,
					Y1: (cy - top) * s,
					X2: (cx + right) * s,
					Y2: (cy + bottom) * s,
				},
				Score: score,
				Class: label,
			})
		}
	}

	return proposals, nil
}

// DecodeStrides runs GenerateProposals over matching views and strides and
// concatenates the proposals.
func DecodeStrides(views []tensor.View, strides []int, threshold float32) ([]postprocess.Result, error) {
	if len(views) != len(strides) {
		return nil, errors.Errorf("%d outputs for %d strides", len(views), len(strides))
	}

	var proposals []postprocess.Result
	for k, view := range views {
		p, err := GenerateProposals(strides[k], view, threshold)
		if err != nil {
			return nil, errors.Wrapf(err, "stride %d", strides[k])
		}
		proposals = append(proposals, p...)
	}
	return proposals, nil
}
