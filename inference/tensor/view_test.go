package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gtensor "gorgonia.org/tensor"
)

// seq returns 0, 1, 2, ... n-1.
func seq(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

func TestDenseHWCAndCHWAgree(t *testing.T) {
	const rows, cols, channels = 3, 4, 5

	hwc := seq(rows * cols * channels)

	// Transpose HWC into CHW so both views describe the same feature map.
	chw := make([]float32, len(hwc))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			for ch := 0; ch < channels; ch++ {
				chw[(ch*rows+r)*cols+c] = hwc[(r*cols+c)*channels+ch]
			}
		}
	}

	a, err := NewDense(hwc, rows, cols, channels, LayoutHWC)
	require.NoError(t, err)
	b, err := NewDense(chw, rows, cols, channels, LayoutCHW)
	require.NoError(t, err)

	var scratch []float32
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			for ch := 0; ch < channels; ch++ {
				assert.Equal(t, a.At(r, c, ch), b.At(r, c, ch), "(%d,%d,%d)", r, c, ch)
			}
			scratch = b.Cell(r, c, scratch)
			assert.Equal(t, a.Cell(r, c, nil), scratch, "cell (%d,%d)", r, c)
		}
	}
}

func TestDenseHWCCellIsSubslice(t *testing.T) {
	data := seq(2 * 2 * 3)
	d, err := NewDense(data, 2, 2, 3, LayoutHWC)
	require.NoError(t, err)

	cell := d.Cell(1, 0, nil)
	assert.Equal(t, []float32{6, 7, 8}, cell)
	assert.Equal(t, 3, cap(cell), "cell must not expose the neighbouring cells")
}

func TestNewDenseRejectsMismatch(t *testing.T) {
	_, err := NewDense(seq(10), 2, 2, 3, LayoutHWC)
	assert.ErrorIs(t, err, ErrShape)

	_, err = NewDense(nil, 0, 2, 3, LayoutHWC)
	assert.ErrorIs(t, err, ErrShape)

	_, err = NewDense(seq(12), 2, 2, 3, Layout("nchw"))
	assert.Error(t, err)
}

func TestFromShape(t *testing.T) {
	tests := []struct {
		name                 string
		shape                []int64
		layout               Layout
		rows, cols, channels int
		wantErr              bool
	}{
		{"hwc with batch", []int64{1, 2, 3, 4}, LayoutHWC, 2, 3, 4, false},
		{"chw with batch", []int64{1, 4, 2, 3}, LayoutCHW, 2, 3, 4, false},
		{"chw without batch", []int64{4, 2, 3}, LayoutCHW, 2, 3, 4, false},
		{"two unit dims", []int64{1, 1, 4, 2, 3}, LayoutCHW, 2, 3, 4, false},
		{"batch of two", []int64{2, 4, 1, 3}, LayoutCHW, 0, 0, 0, true},
		{"flat", []int64{24}, LayoutHWC, 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := FromShape(seq(24), tt.shape, tt.layout)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrShape)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rows, d.Rows())
			assert.Equal(t, tt.cols, d.Cols())
			assert.Equal(t, tt.channels, d.Channels())
			assert.Equal(t, tt.layout, d.Layout())
		})
	}
}

func TestFromGorgonia(t *testing.T) {
	g := gtensor.New(gtensor.WithShape(1, 2, 2, 3), gtensor.WithBacking(seq(12)))

	d, err := FromGorgonia(g, LayoutHWC)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Rows())
	assert.Equal(t, 3, d.Channels())
	assert.Equal(t, float32(11), d.At(1, 1, 2))

	_, err = FromGorgonia(gtensor.New(gtensor.WithShape(2), gtensor.WithBacking([]float64{1, 2})), LayoutHWC)
	assert.Error(t, err)

	_, err = FromGorgonia(nil, LayoutHWC)
	assert.ErrorIs(t, err, ErrShape)
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout(" CHW ")
	require.NoError(t, err)
	assert.Equal(t, LayoutCHW, l)

	_, err = ParseLayout("nhwc")
	assert.Error(t, err)
}
