// Package preprocess - Turns images into normalised model input tensors.
package preprocess

import (
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/go-yolo11/images"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ResizeMode selects how an image is fitted to the model input.
type ResizeMode string

const (
	// ResizeLetterbox fits the longer side and pads to a square.
	ResizeLetterbox ResizeMode = "letterbox"
	// ResizeShortSideCrop resizes the shorter side and center-crops a square.
	ResizeShortSideCrop ResizeMode = "short_side_crop"
	// ResizeStretch resizes to the input size ignoring aspect ratio.
	ResizeStretch ResizeMode = "stretch"
)

// NormalizationType defines how pixel values are normalized.
type NormalizationType int

const (
	// NormalizeNone keeps pixel values as 0-255.
	NormalizeNone NormalizationType = iota
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne
	// NormalizeMinusOneToOne scales pixel values to [-1, 1].
	NormalizeMinusOneToOne
	// NormalizeStandardize applies mean and std normalization on 0-255 values.
	NormalizeStandardize
)

// ChannelOrder defines the ordering of image channels.
type ChannelOrder int

const (
	// ChannelOrderCHW is Channel-Height-Width ordering (common for ONNX).
	ChannelOrderCHW ChannelOrder = iota
	// ChannelOrderHWC is Height-Width-Channel ordering.
	ChannelOrderHWC
)

// ColorMode defines the color space of the image.
type ColorMode int

const (
	// ColorModeRGB is standard RGB color mode.
	ColorModeRGB ColorMode = iota
	// ColorModeBGR is BGR color mode (common for OpenCV models).
	ColorModeBGR
	// ColorModeGrayscale is single channel grayscale.
	ColorModeGrayscale
)

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for debugging purposes.
	Name string
	// InputWidth is the expected width of the model input.
	InputWidth int
	// InputHeight is the expected height of the model input.
	InputHeight int
	// InputChannels is the number of channels (1 for grayscale, 3 for RGB).
	InputChannels int
	// NormalizationType defines how to normalize pixel values.
	NormalizationType NormalizationType
	// MeanValues for standardization (if NormalizationType is Standardize).
	MeanValues []float32
	// StdValues for standardization (if NormalizationType is Standardize).
	StdValues []float32
	// ChannelOrder defines the channel ordering (CHW or HWC).
	ChannelOrder ChannelOrder
	// ColorMode defines the color space (RGB, BGR, Grayscale).
	ColorMode ColorMode
	// ResizeMode selects letterbox, short-side crop or stretch.
	ResizeMode ResizeMode
	// ResizeShort is the shorter-side target for ResizeShortSideCrop.
	ResizeShort int
	// LetterboxColor is the color used for letterbox padding.
	LetterboxColor color.Color
	// OnlyScaleDown stops the letterbox from enlarging small images.
	OnlyScaleDown bool
	// ApplyDenoise if true, applies a Gaussian blur before resizing.
	ApplyDenoise bool
	// DenoiseStrength controls the strength of denoising (0.0 to 1.0).
	DenoiseStrength float64
}

// Validate checks sizes, channel counts and normalisation parameters.
func (c *ModelConfig) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return errors.Wrapf(images.ErrInvalidSize, "input %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.InputChannels != 1 && c.InputChannels != 3 {
		return errors.Errorf("unsupported channel count %d", c.InputChannels)
	}
	if (c.ColorMode == ColorModeGrayscale) != (c.InputChannels == 1) {
		return errors.New("grayscale color mode requires exactly one input channel")
	}
	if c.NormalizationType == NormalizeStandardize {
		if len(c.MeanValues) != c.InputChannels || len(c.StdValues) != c.InputChannels {
			return errors.Errorf("standardize needs %d mean and std values", c.InputChannels)
		}
		for _, s := range c.StdValues {
			if s == 0 {
				return errors.New("std values must be non-zero")
			}
		}
	}

	switch c.ResizeMode {
	case "", ResizeLetterbox:
		if c.InputWidth != c.InputHeight {
			return errors.Wrap(images.ErrInvalidSize, "letterbox input must be square")
		}
	case ResizeShortSideCrop:
		if c.InputWidth != c.InputHeight || c.ResizeShort < c.InputWidth {
			return errors.Wrapf(images.ErrInvalidSize, "crop %d from short side %d", c.InputWidth, c.ResizeShort)
		}
	case ResizeStretch:
	default:
		return errors.Errorf("unknown resize mode %q", c.ResizeMode)
	}
	return nil
}

// PreprocessingResult contains the preprocessed image data and metadata.
type PreprocessingResult struct {
	// Data is the preprocessed float32 tensor data.
	Data []float32
	// Shape is the tensor shape including the batch dimension,
	// [1, C, H, W] or [1, H, W, C].
	Shape []int64
	// Frame maps model input coordinates back to the source image.
	Frame images.Transform
}

// Preprocessor handles image preprocessing for ONNX models. It is safe for
// concurrent use.
type Preprocessor struct {
	config *ModelConfig
	logger *zap.Logger
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The model-specific preprocessing configuration.
//   - logger: Debug logger; nil disables logging.
//
// Returns:
//   - *Preprocessor: A configured Preprocessor instance.
//   - error: The configuration error, if any.
//
// @example
//
//	preprocessor, err := NewPreprocessor(GetYOLO11Config(640), logger)
//	result, err := preprocessor.Preprocess(img)
func NewPreprocessor(config *ModelConfig, logger *zap.Logger) (*Preprocessor, error) {
	if config == nil {
		return nil, errors.New("preprocess config is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(err, "preprocess config %q", config.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preprocessor{config: config, logger: logger}, nil
}

// Config returns the preprocessing configuration.
func (p *Preprocessor) Config() *ModelConfig {
	return p.config
}

// Preprocess performs all necessary preprocessing steps on the input image.
//
// Arguments:
//   - img: The input image to preprocess.
//
// Returns:
//   - *PreprocessingResult: The tensor, its shape and the inverse transform.
//   - error: images.ErrEmptyImage for nil or zero-sized images.
func (p *Preprocessor) Preprocess(img image.Image) (*PreprocessingResult, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, images.ErrEmptyImage
	}

	if p.config.ApplyDenoise {
		sigma := p.config.DenoiseStrength * 2.0
		if sigma <= 0 {
			sigma = 0.5
		}
		img = imaging.Blur(img, sigma)
	}

	resized, frame, err := p.resize(img)
	if err != nil {
		return nil, err
	}

	data := p.imageToTensor(resized)
	p.normalize(data)

	c, h, w := int64(p.config.InputChannels), int64(p.config.InputHeight), int64(p.config.InputWidth)
	shape := []int64{1, c, h, w}
	if p.config.ChannelOrder == ChannelOrderHWC {
		shape = []int64{1, h, w, c}
	}

	p.logger.Debug("preprocessed image",
		zap.String("model", p.config.Name),
		zap.Int("src_width", frame.SrcWidth),
		zap.Int("src_height", frame.SrcHeight),
		zap.Float32("scale", frame.Scale),
		zap.Int("pad_left", frame.PadLeft),
		zap.Int("pad_top", frame.PadTop))

	return &PreprocessingResult{Data: data, Shape: shape, Frame: frame}, nil
}

// PreprocessImage decodes an encoded image and preprocesses it.
func (p *Preprocessor) PreprocessImage(img *images.Image) (*PreprocessingResult, error) {
	decoded, err := img.Decode()
	if err != nil {
		return nil, errors.Wrap(err, "image decoding failed")
	}
	return p.Preprocess(decoded)
}

// resize fits img to the model input according to the resize mode.
func (p *Preprocessor) resize(img image.Image) (image.Image, images.Transform, error) {
	switch p.config.ResizeMode {
	case ResizeShortSideCrop:
		return images.ShortSideCrop(img, p.config.ResizeShort, p.config.InputWidth)
	case ResizeStretch:
		frame, err := images.StretchTransform(img.Bounds().Dx(), img.Bounds().Dy(),
			p.config.InputWidth, p.config.InputHeight)
		if err != nil {
			return nil, images.Transform{}, err
		}
		resized := imaging.Resize(img, p.config.InputWidth, p.config.InputHeight, imaging.Linear)
		return resized, frame, nil
	default:
		return images.Letterbox(img, images.LetterboxOptions{
			Size:          p.config.InputWidth,
			Color:         p.config.LetterboxColor,
			OnlyScaleDown: p.config.OnlyScaleDown,
		})
	}
}

// imageToTensor converts an image to a float32 tensor of 0-255 values.
func (p *Preprocessor) imageToTensor(img image.Image) []float32 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	tensor := make([]float32, plane*p.config.InputChannels)

	idx := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			r8, g8, b8 := float32(r>>8), float32(g>>8), float32(b>>8)

			if p.config.InputChannels == 1 {
				tensor[y*width+x] = 0.299*r8 + 0.587*g8 + 0.114*b8
				continue
			}

			ch0, ch1, ch2 := r8, g8, b8
			if p.config.ColorMode == ColorModeBGR {
				ch0, ch2 = b8, r8
			}

			if p.config.ChannelOrder == ChannelOrderCHW {
				pix := y*width + x
				tensor[pix] = ch0
				tensor[plane+pix] = ch1
				tensor[2*plane+pix] = ch2
			} else {
				tensor[idx] = ch0
				tensor[idx+1] = ch1
				tensor[idx+2] = ch2
				idx += 3
			}
		}
	}

	return tensor
}

// normalize applies normalization to the tensor in place.
func (p *Preprocessor) normalize(tensor []float32) {
	switch p.config.NormalizationType {
	case NormalizeZeroToOne:
		for i := range tensor {
			tensor[i] /= 255.0
		}
	case NormalizeMinusOneToOne:
		for i := range tensor {
			tensor[i] = (tensor[i] / 127.5) - 1.0
		}
	case NormalizeStandardize:
		channels := p.config.InputChannels
		pixelsPerChannel := len(tensor) / channels
		for c := 0; c < channels; c++ {
			mean := p.config.MeanValues[c]
			std := p.config.StdValues[c]

			if p.config.ChannelOrder == ChannelOrderCHW {
				offset := c * pixelsPerChannel
				for i := 0; i < pixelsPerChannel; i++ {
					tensor[offset+i] = (tensor[offset+i] - mean) / std
				}
			} else {
				for i := c; i < len(tensor); i += channels {
					tensor[i] = (tensor[i] - mean) / std
				}
			}
		}
	}
}

// GetYOLO11Config returns the YOLO11 configuration: RGB, 1/255 scaling,
// CHW, letterboxed with (114, 114, 114).
//
// @example
// config := GetYOLO11Config(640)
// preprocessor, err := NewPreprocessor(config, nil)
func GetYOLO11Config(inputSize int) *ModelConfig {
	return &ModelConfig{
		Name:              "yolo11",
		InputWidth:        inputSize,
		InputHeight:       inputSize,
		InputChannels:     3,
		NormalizationType: NormalizeZeroToOne,
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		ResizeMode:        ResizeLetterbox,
		LetterboxColor:    images.DefaultPadColor,
	}
}

// GetImageNetConfig returns the classification-style configuration: shorter
// side resized to resizeShort, center crop, ImageNet mean/std on 0-255 RGB.
func GetImageNetConfig(resizeShort, crop int) *ModelConfig {
	return &ModelConfig{
		Name:              "imagenet",
		InputWidth:        crop,
		InputHeight:       crop,
		InputChannels:     3,
		NormalizationType: NormalizeStandardize,
		MeanValues:        []float32{123.675, 116.28, 103.53},
		StdValues:         []float32{58.395, 57.12, 57.375},
		ChannelOrder:      ChannelOrderCHW,
		ColorMode:         ColorModeRGB,
		ResizeMode:        ResizeShortSideCrop,
		ResizeShort:       resizeShort,
	}
}

// BatchPreprocess processes multiple images in parallel.
//
// Arguments:
//   - imgs: Slice of images to preprocess.
//   - maxConcurrency: Maximum number of images to process concurrently.
//
// Returns:
//   - []*PreprocessingResult: Results in input order.
//   - error: The first failure by index, if any.
func (p *Preprocessor) BatchPreprocess(imgs []image.Image, maxConcurrency int) ([]*PreprocessingResult, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]*PreprocessingResult, len(imgs))
	errs := make([]error, len(imgs))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, img := range imgs {
		wg.Add(1)
		go func(idx int, img image.Image) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := p.Preprocess(img)
			if err != nil {
				errs[idx] = errors.Wrapf(err, "failed to preprocess image %d", idx)
				return
			}
			results[idx] = result
		}(i, img)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
