package images

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ErrInvalidSize is returned when a target size is not positive or cannot be honoured.
var ErrInvalidSize = errors.New("invalid target size")

// DefaultPadColor is the constant border used by YOLO-style letterboxing.
var DefaultPadColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Transform records how a source image was mapped into model input space so
// that coordinates produced by inference can be mapped back.
//
// For a letterbox the pads are the border widths. For a center crop they are
// the negated crop offsets, which keeps Inverse valid for both.
type Transform struct {
	// Scale is the input/source ratio. It applies to both axes unless ScaleY is set.
	Scale float32 `json:"scale" yaml:"scale"`
	// ScaleY is the vertical ratio of a stretch. Zero means Scale.
	ScaleY float32 `json:"scale_y,omitempty" yaml:"scale_y,omitempty"`
	// PadLeft is the horizontal offset of the resized image inside the input.
	PadLeft int `json:"pad_left" yaml:"pad_left"`
	// PadTop is the vertical offset of the resized image inside the input.
	PadTop int `json:"pad_top" yaml:"pad_top"`
	// SrcWidth and SrcHeight are the original image dimensions.
	SrcWidth  int `json:"src_width" yaml:"src_width"`
	SrcHeight int `json:"src_height" yaml:"src_height"`
	// DstWidth and DstHeight are the model input dimensions.
	DstWidth  int `json:"dst_width" yaml:"dst_width"`
	DstHeight int `json:"dst_height" yaml:"dst_height"`
}

// IdentityTransform maps a width x height image onto itself.
func IdentityTransform(width, height int) Transform {
	return Transform{
		Scale:     1,
		SrcWidth:  width,
		SrcHeight: height,
		DstWidth:  width,
		DstHeight: height,
	}
}

// StretchTransform maps a width x height image onto dstWidth x dstHeight
// without keeping the aspect ratio.
func StretchTransform(width, height, dstWidth, dstHeight int) (Transform, error) {
	if width <= 0 || height <= 0 {
		return Transform{}, ErrEmptyImage
	}
	if dstWidth <= 0 || dstHeight <= 0 {
		return Transform{}, errors.Wrapf(ErrInvalidSize, "stretch %dx%d", dstWidth, dstHeight)
	}
	return Transform{
		Scale:     float32(dstWidth) / float32(width),
		ScaleY:    float32(dstHeight) / float32(height),
		SrcWidth:  width,
		SrcHeight: height,
		DstWidth:  dstWidth,
		DstHeight: dstHeight,
	}, nil
}

// Scales returns the horizontal and vertical input/source ratios.
func (t Transform) Scales() (float32, float32) {
	if t.ScaleY == 0 {
		return t.Scale, t.Scale
	}
	return t.Scale, t.ScaleY
}

// Inverse maps a point from model input space back into source pixel space.
// The result is not clamped.
func (t Transform) Inverse(x, y float32) (float32, float32) {
	sx, sy := t.Scales()
	if sx <= 0 || sy <= 0 {
		return 0, 0
	}
	return (x - float32(t.PadLeft)) / sx, (y - float32(t.PadTop)) / sy
}

// InverseRect maps r back into source pixel space and clamps it to the source bounds.
func (t Transform) InverseRect(r Rect) Rect {
	x1, y1 := t.Inverse(r.X1, r.Y1)
	x2, y2 := t.Inverse(r.X2, r.Y2)
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}.Clamp(float32(t.SrcWidth), float32(t.SrcHeight))
}

// LetterboxOptions configures Letterbox.
type LetterboxOptions struct {
	// Size is the side of the square output.
	Size int `json:"size" yaml:"size"`
	// Color fills the border. Nil means DefaultPadColor.
	Color color.Color `json:"-" yaml:"-"`
	// OnlyScaleDown caps the scale at 1 so small images are padded, not enlarged.
	OnlyScaleDown bool `json:"only_scale_down" yaml:"only_scale_down"`
}

// LetterboxTransform computes the transform Letterbox would apply to a
// width x height image without touching any pixels.
//
// Returns:
//   - Transform: scale = size / max(width, height) and the symmetric pads,
//     with the odd pixel on the right/bottom.
//   - error: ErrEmptyImage or ErrInvalidSize on degenerate input.
func LetterboxTransform(width, height int, opts LetterboxOptions) (Transform, error) {
	t, _, err := LetterboxGeometry(width, height, opts)
	return t, err
}

// LetterboxGeometry is LetterboxTransform plus the size of the resized,
// unpadded image inside the square.
func LetterboxGeometry(width, height int, opts LetterboxOptions) (Transform, image.Point, error) {
	if width <= 0 || height <= 0 {
		return Transform{}, image.Point{}, ErrEmptyImage
	}
	if opts.Size <= 0 {
		return Transform{}, image.Point{}, errors.Wrapf(ErrInvalidSize, "letterbox size %d", opts.Size)
	}

	scale := float64(opts.Size) / float64(max(width, height))
	if opts.OnlyScaleDown {
		scale = math.Min(scale, 1.0)
	}

	newWidth := clampInt(int(math.Round(float64(width)*scale)), 1, opts.Size)
	newHeight := clampInt(int(math.Round(float64(height)*scale)), 1, opts.Size)

	return Transform{
		Scale:     float32(scale),
		PadLeft:   (opts.Size - newWidth) / 2,
		PadTop:    (opts.Size - newHeight) / 2,
		SrcWidth:  width,
		SrcHeight: height,
		DstWidth:  opts.Size,
		DstHeight: opts.Size,
	}, image.Pt(newWidth, newHeight), nil
}

// Letterbox resizes src so that its longer side fits opts.Size while keeping
// the aspect ratio, then pads it with a constant colour to exactly
// opts.Size x opts.Size.
//
// Arguments:
//   - src: The image to letterbox.
//   - opts: Target size, border colour and scaling policy.
//
// Returns:
//   - *image.RGBA: The opts.Size x opts.Size letterboxed image.
//   - Transform: Scale and pads needed to invert coordinates.
//   - error: ErrEmptyImage or ErrInvalidSize on degenerate input.
//
// @example
//
//	boxed, frame, err := Letterbox(img, LetterboxOptions{Size: 640})
//	x, y := frame.Inverse(320, 320)
func Letterbox(src image.Image, opts LetterboxOptions) (*image.RGBA, Transform, error) {
	if src == nil {
		return nil, Transform{}, ErrEmptyImage
	}
	bounds := src.Bounds()

	t, content, err := LetterboxGeometry(bounds.Dx(), bounds.Dy(), opts)
	if err != nil {
		return nil, Transform{}, err
	}
	newWidth, newHeight := content.X, content.Y

	pad := opts.Color
	if pad == nil {
		pad = DefaultPadColor
	}

	var resized image.Image = src
	if newWidth != bounds.Dx() || newHeight != bounds.Dy() {
		resized = resize.Resize(uint(newWidth), uint(newHeight), src, resize.Bilinear)
	}

	dst := image.NewRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: pad}, image.Point{}, draw.Src)
	draw.Draw(dst,
		image.Rect(t.PadLeft, t.PadTop, t.PadLeft+newWidth, t.PadTop+newHeight),
		resized, resized.Bounds().Min, draw.Src)

	return dst, t, nil
}

// ShortSideCrop is the classification-style transform: the shorter side is
// resized to resizeShort (aspect ratio kept) and a centered crop x crop
// window is cut from the result.
//
// Arguments:
//   - src: The image to transform.
//   - resizeShort: Target length of the shorter side.
//   - crop: Side of the square crop, at most resizeShort.
//
// Returns:
//   - *image.NRGBA: The crop x crop image.
//   - Transform: Scale plus the negated crop offsets as pads.
//   - error: ErrEmptyImage or ErrInvalidSize on degenerate input.
func ShortSideCrop(src image.Image, resizeShort, crop int) (*image.NRGBA, Transform, error) {
	if src == nil || src.Bounds().Dx() <= 0 || src.Bounds().Dy() <= 0 {
		return nil, Transform{}, ErrEmptyImage
	}
	if resizeShort <= 0 || crop <= 0 || crop > resizeShort {
		return nil, Transform{}, errors.Wrapf(ErrInvalidSize, "resize %d crop %d", resizeShort, crop)
	}

	width, height := src.Bounds().Dx(), src.Bounds().Dy()
	scale := float64(resizeShort) / float64(min(width, height))
	scaledWidth := max(int(float64(width)*scale), crop)
	scaledHeight := max(int(float64(height)*scale), crop)

	resized := imaging.Resize(src, scaledWidth, scaledHeight, imaging.Linear)

	x1 := max(0, int(math.Round(float64(scaledWidth-crop)/2)))
	y1 := max(0, int(math.Round(float64(scaledHeight-crop)/2)))
	cropped := imaging.Crop(resized, image.Rect(x1, y1, x1+crop, y1+crop))

	return cropped, Transform{
		Scale:     float32(scale),
		PadLeft:   -x1,
		PadTop:    -y1,
		SrcWidth:  width,
		SrcHeight: height,
		DstWidth:  crop,
		DstHeight: crop,
	}, nil
}

// ParseColor parses a hex colour such as "#727272" into an opaque RGBA.
// An empty string yields DefaultPadColor.
func ParseColor(hex string) (color.RGBA, error) {
	if hex == "" {
		return DefaultPadColor, nil
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(err, "invalid colour %q", hex)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
