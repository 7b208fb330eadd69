// Package inference - Model loading and the inference engine boundary.
package inference

import (
	"io"

	"github.com/nvr-ai/go-yolo11/inference/tensor"
	"github.com/pkg/errors"
)

// HeaderMagic opens every model header file.
const HeaderMagic = 7767517

// ErrMalformedHeader is returned when a model header cannot be parsed.
var ErrMalformedHeader = errors.New("malformed model header")

// maxOutputs bounds the output count read from a header.
const maxOutputs = 64

// DataReader is the byte-stream source the loader consumes. Scan parses
// values from a preloaded header with fmt verbs and returns how many were
// parsed; obfuscated.Reader implements it.
type DataReader interface {
	io.Reader
	Scan(format string, dst ...any) int
}

// OutputSpec names one output tensor and the feature-map stride it carries.
type OutputSpec struct {
	Name   string `json:"name"   yaml:"name"`
	Stride int    `json:"stride" yaml:"stride"`
}

// ModelHeader describes a model's input and outputs.
//
// On disk it is a whitespace separated text file:
//
//	7767517
//	<input_name> <input_size> <hwc|chw>
//	<output_count>
//	<output_name> <stride>
//	...
type ModelHeader struct {
	// InputName is the name of the image input tensor.
	InputName string `json:"input_name" yaml:"input_name"`
	// InputSize is the side of the square model input.
	InputSize int `json:"input_size" yaml:"input_size"`
	// Layout is the memory order of input and output tensors.
	Layout tensor.Layout `json:"layout" yaml:"layout"`
	// Outputs lists the output tensors in stride order.
	Outputs []OutputSpec `json:"outputs" yaml:"outputs"`
}

// OutputNames returns the names of all outputs.
func (h ModelHeader) OutputNames() []string {
	names := make([]string, len(h.Outputs))
	for i, o := range h.Outputs {
		names[i] = o.Name
	}
	return names
}

// ReadHeader parses a model header from r.
//
// Arguments:
//   - r: A preloaded reader positioned at the start of the header.
//
// Returns:
//   - ModelHeader: The parsed header.
//   - error: ErrMalformedHeader (wrapped) when a field is missing or invalid.
func ReadHeader(r DataReader) (ModelHeader, error) {
	var magic int
	if r.Scan("%d", &magic) != 1 || magic != HeaderMagic {
		return ModelHeader{}, errors.Wrapf(ErrMalformedHeader, "bad magic %d", magic)
	}

	var (
		h      ModelHeader
		layout string
	)
	if r.Scan("%s", &h.InputName) != 1 {
		return ModelHeader{}, errors.Wrap(ErrMalformedHeader, "missing input name")
	}
	if r.Scan("%d", &h.InputSize) != 1 || h.InputSize <= 0 {
		return ModelHeader{}, errors.Wrapf(ErrMalformedHeader, "bad input size %d", h.InputSize)
	}
	if r.Scan("%s", &layout) != 1 {
		return ModelHeader{}, errors.Wrap(ErrMalformedHeader, "missing layout")
	}
	l, err := tensor.ParseLayout(layout)
	if err != nil {
		return ModelHeader{}, errors.Wrap(ErrMalformedHeader, err.Error())
	}
	h.Layout = l

	var count int
	if r.Scan("%d", &count) != 1 || count <= 0 || count > maxOutputs {
		return ModelHeader{}, errors.Wrapf(ErrMalformedHeader, "bad output count %d", count)
	}

	h.Outputs = make([]OutputSpec, count)
	for i := range h.Outputs {
		o := &h.Outputs[i]
		if r.Scan("%s", &o.Name) != 1 || r.Scan("%d", &o.Stride) != 1 || o.Stride <= 0 {
			return ModelHeader{}, errors.Wrapf(ErrMalformedHeader, "bad output %d", i)
		}
	}

	return h, nil
}
