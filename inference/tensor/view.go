// Package tensor - Read-only views over inference output tensors.
//
// Decoders address feature maps as (row, col, channel) regardless of how the
// inference backend lays the memory out.
package tensor

import (
	"strings"

	"github.com/pkg/errors"
	gtensor "gorgonia.org/tensor"
)

// ErrShape is returned when data does not match the requested shape.
var ErrShape = errors.New("tensor shape mismatch")

// Layout is the memory order of a three dimensional feature map.
type Layout string

const (
	// LayoutHWC stores each grid cell's channels contiguously.
	LayoutHWC Layout = "hwc"
	// LayoutCHW stores each channel plane contiguously (ONNX default).
	LayoutCHW Layout = "chw"
)

// ParseLayout parses "hwc" or "chw", case-insensitively.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutHWC, LayoutCHW:
		return l, nil
	default:
		return "", errors.Errorf("unknown tensor layout %q", s)
	}
}

// View exposes a feature map as a rows x cols grid of channel vectors.
type View interface {
	// Rows is the grid height.
	Rows() int
	// Cols is the grid width.
	Cols() int
	// Channels is the length of each cell vector.
	Channels() int
	// At returns one element.
	At(row, col, ch int) float32
	// Cell returns the channel vector of one grid cell. Implementations may
	// return a slice of their own storage instead of filling dst.
	Cell(row, col int, dst []float32) []float32
}

// Dense is a View over a flat float32 slice.
type Dense struct {
	data     []float32
	rows     int
	cols     int
	channels int
	layout   Layout
}

// NewDense wraps data as a rows x cols x channels feature map.
//
// Arguments:
//   - data: Backing storage, len(data) must equal rows*cols*channels.
//   - rows, cols, channels: Grid height, width and cell vector length.
//   - layout: Memory order of data.
//
// Returns:
//   - *Dense: The view. The data is not copied.
//   - error: ErrShape if the sizes disagree.
func NewDense(data []float32, rows, cols, channels int, layout Layout) (*Dense, error) {
	if rows <= 0 || cols <= 0 || channels <= 0 {
		return nil, errors.Wrapf(ErrShape, "non-positive dims %dx%dx%d", rows, cols, channels)
	}
	if len(data) != rows*cols*channels {
		return nil, errors.Wrapf(ErrShape, "have %d values, need %d (%dx%dx%d)",
			len(data), rows*cols*channels, rows, cols, channels)
	}
	if layout != LayoutHWC && layout != LayoutCHW {
		return nil, errors.Errorf("unknown tensor layout %q", layout)
	}
	return &Dense{data: data, rows: rows, cols: cols, channels: channels, layout: layout}, nil
}

// FromShape wraps data using a backend shape such as [1, 80, 80, 144].
// Leading unit dimensions are dropped; three must remain, interpreted as
// [H, W, C] for LayoutHWC and [C, H, W] for LayoutCHW.
func FromShape(data []float32, shape []int64, layout Layout) (*Dense, error) {
	dims := make([]int, 0, len(shape))
	for _, d := range shape {
		dims = append(dims, int(d))
	}
	for len(dims) > 3 && dims[0] == 1 {
		dims = dims[1:]
	}
	if len(dims) != 3 {
		return nil, errors.Wrapf(ErrShape, "expected 3 dims after dropping batch, got %v", shape)
	}

	if layout == LayoutCHW {
		return NewDense(data, dims[1], dims[2], dims[0], layout)
	}
	return NewDense(data, dims[0], dims[1], dims[2], layout)
}

// FromGorgonia wraps a float32 gorgonia tensor without copying.
func FromGorgonia(t *gtensor.Dense, layout Layout) (*Dense, error) {
	if t == nil {
		return nil, errors.Wrap(ErrShape, "nil tensor")
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unsupported tensor dtype %v", t.Dtype())
	}

	shape := make([]int64, 0, t.Dims())
	for _, d := range t.Shape() {
		shape = append(shape, int64(d))
	}
	return FromShape(data, shape, layout)
}

// Rows implements View.
func (d *Dense) Rows() int { return d.rows }

// Cols implements View.
func (d *Dense) Cols() int { return d.cols }

// Channels implements View.
func (d *Dense) Channels() int { return d.channels }

// Layout returns the memory order of the backing slice.
func (d *Dense) Layout() Layout { return d.layout }

// At implements View.
func (d *Dense) At(row, col, ch int) float32 {
	if d.layout == LayoutCHW {
		return d.data[(ch*d.rows+row)*d.cols+col]
	}
	return d.data[(row*d.cols+col)*d.channels+ch]
}

// Cell implements View. HWC views return a sub-slice of the backing data.
func (d *Dense) Cell(row, col int, dst []float32) []float32 {
	if d.layout == LayoutHWC {
		off := (row*d.cols + col) * d.channels
		return d.data[off : off+d.channels : off+d.channels]
	}

	if cap(dst) < d.channels {
		dst = make([]float32, d.channels)
	}
	dst = dst[:d.channels]
	plane := d.rows * d.cols
	off := row*d.cols + col
	for c := range dst {
		dst[c] = d.data[c*plane+off]
	}
	return dst
}
