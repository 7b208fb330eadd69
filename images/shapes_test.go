package images

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
		epsilon  float32
	}{
		{
			name:     "Identical rectangles",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{0, 0, 100, 100},
			expected: 1.0,
			epsilon:  0.001,
		},
		{
			name:     "No overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{200, 200, 300, 300},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Touching edges",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{100, 0, 200, 100},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Half overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{50, 50, 150, 150},
			expected: 0.142857, // 2500 / (10000+10000-2500)
			epsilon:  0.001,
		},
		{
			name:     "One inside other",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{25, 25, 75, 75},
			expected: 0.25,
			epsilon:  0.001,
		},
		{
			name:     "Sub-pixel overlap",
			r1:       Rect{0, 0, 10.5, 10},
			r2:       Rect{10, 0, 20, 10},
			expected: 5.0 / 200.0, // 0.5*10 / (105+100-5)
			epsilon:  0.0001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, float64(tt.epsilon))

			// IoU(A, B) must equal IoU(B, A).
			assert.InDelta(t, result, CalculateIoU(tt.r2, tt.r1), float64(tt.epsilon))
		})
	}
}

// TestIoU_vs_ImageRectangle compares integral boxes against image.Rectangle.
func TestIoU_vs_ImageRectangle(t *testing.T) {
	testCases := []struct {
		name string
		r1   image.Rectangle
		r2   image.Rectangle
	}{
		{"No overlap", image.Rect(0, 0, 100, 100), image.Rect(200, 200, 300, 300)},
		{"Partial overlap", image.Rect(0, 0, 100, 100), image.Rect(50, 50, 150, 150)},
		{"Full overlap", image.Rect(50, 50, 150, 150), image.Rect(50, 50, 150, 150)},
		{"Large boxes", image.Rect(0, 0, 1920, 1080), image.Rect(960, 540, 1920, 1080)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			custom := CalculateIoU(fromImageRect(tc.r1), fromImageRect(tc.r2))
			reference := imageRectangleIoU(tc.r1, tc.r2)
			if math.Abs(float64(custom-reference)) > 0.0001 {
				t.Errorf("Results differ: custom=%v, image.Rectangle=%v", custom, reference)
			}
		})
	}
}

func fromImageRect(r image.Rectangle) Rect {
	return Rect{X1: float32(r.Min.X), Y1: float32(r.Min.Y), X2: float32(r.Max.X), Y2: float32(r.Max.Y)}
}

func imageRectangleIoU(r1, r2 image.Rectangle) float32 {
	intersect := r1.Intersect(r2)
	if intersect.Empty() {
		return 0.0
	}

	intersectArea := intersect.Dx() * intersect.Dy()
	union := r1.Dx()*r1.Dy() + r2.Dx()*r2.Dy() - intersectArea

	return float32(intersectArea) / float32(union)
}

// TestIoU_EdgeCases tests edge cases and boundary conditions
func TestIoU_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		r1   Rect
		r2   Rect
	}{
		{"Zero area rectangle 1", Rect{0, 0, 0, 0}, Rect{0, 0, 100, 100}},
		{"Zero area rectangle 2", Rect{0, 0, 100, 100}, Rect{50, 50, 50, 50}},
		{"Both zero area", Rect{0, 0, 0, 0}, Rect{10, 10, 10, 10}},
		{"Negative coordinates", Rect{-100, -100, 0, 0}, Rect{-50, -50, 50, 50}},
		{"Inverted rectangle", Rect{100, 100, 0, 0}, Rect{0, 0, 100, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.GreaterOrEqual(t, result, float32(0))
			assert.LessOrEqual(t, result, float32(1))

			reverse := CalculateIoU(tt.r2, tt.r1)
			assert.GreaterOrEqual(t, reverse, float32(0))
			assert.LessOrEqual(t, reverse, float32(1))
		})
	}
}

func TestRectClamp(t *testing.T) {
	r := Rect{X1: -12, Y1: 5, X2: 700, Y2: 490}.Clamp(640, 480)

	assert.Equal(t, Rect{X1: 0, Y1: 5, X2: 640, Y2: 480}, r)
	assert.Equal(t, float32(640), r.Width())
	assert.Equal(t, float32(475), r.Height())

	// Entirely outside collapses to a zero-size box on the border.
	outside := Rect{X1: 800, Y1: 600, X2: 900, Y2: 700}.Clamp(640, 480)
	assert.Equal(t, float32(0), outside.Width())
	assert.Equal(t, float32(0), outside.Height())
}

func TestRectXYWH(t *testing.T) {
	r := RectXYWH(10, 20, 30, 40)
	assert.Equal(t, Rect{X1: 10, Y1: 20, X2: 40, Y2: 60}, r)
	assert.Equal(t, float32(1200), r.Area())
}
