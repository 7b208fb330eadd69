// Package images - Image processing utilities
package images

// Rect is a lightweight axis-aligned bounding box in float pixel coordinates.
type Rect struct {
	// X1,Y1 is the top-left corner, X2,Y2 the bottom-right corner.
	X1, Y1, X2, Y2 float32
}

// RectXYWH builds a Rect from a top-left corner and a size.
func RectXYWH(x, y, w, h float32) Rect {
	return Rect{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

// Width returns the horizontal extent of the rectangle, never negative.
func (r Rect) Width() float32 {
	return max(r.X2-r.X1, 0)
}

// Height returns the vertical extent of the rectangle, never negative.
func (r Rect) Height() float32 {
	return max(r.Y2-r.Y1, 0)
}

// Area returns Width * Height.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Clamp restricts every coordinate of the rectangle to [0, width] x [0, height].
func (r Rect) Clamp(width, height float32) Rect {
	return Rect{
		X1: clamp(r.X1, 0, width),
		Y1: clamp(r.Y1, 0, height),
		X2: clamp(r.X2, 0, width),
		Y2: clamp(r.Y2, 0, height),
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CalculateIoU measures the overlap between two rectangles as
// Intersection over Union.
//
// See also:
//   - http://ronny.rest/tutorials/module/localization_001/iou
//
// The intersection is bounded by the maximum of the two top-left corners and
// the minimum of the two bottom-right corners. When that region has zero or
// negative width or height the boxes do not overlap and 0 is returned. The
// union follows inclusion-exclusion:
//
//	Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}
