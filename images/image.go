// Package images - Image definition, decoding and geometric transforms used ahead of inference.
package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// ErrEmptyImage is returned when an image has no pixels or no encoded data.
var ErrEmptyImage = errors.New("image is empty")

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image, as reported by the producer. Decode does not set it.
	Width int `json:"width" yaml:"width"`
	// The height of the image, as reported by the producer. Decode does not set it.
	Height int `json:"height" yaml:"height"`
}

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// Decode decodes the encoded image into an image.Image.
//
// An empty format falls back to content sniffing through the registered decoders.
// Decode does not modify i, so one Image may be decoded from several goroutines.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: ErrEmptyImage when there is no data, or the decoder error.
func (i *Image) Decode() (image.Image, error) {
	if i == nil || len(i.Data) == 0 {
		return nil, ErrEmptyImage
	}

	reader := bytes.NewReader(i.Data)

	var (
		img image.Image
		err error
	)
	switch i.Format {
	case FormatJPEG:
		img, err = jpeg.Decode(reader)
	case FormatPNG:
		img, err = png.Decode(reader)
	case FormatWebP:
		img, err = webp.Decode(reader)
	case "":
		img, _, err = image.Decode(reader)
	default:
		return nil, errors.Errorf("unsupported image format: %s", i.Format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s image", i.Format)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	return img, nil
}
