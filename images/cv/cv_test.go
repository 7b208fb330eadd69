package cv

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/nvr-ai/go-yolo11/images"
	"github.com/nvr-ai/go-yolo11/models/postprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func solid(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func TestLetterboxMatMatchesLetterbox(t *testing.T) {
	src, err := FromImage(solid(1920, 1080, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	defer src.Close()

	boxed, frame, err := LetterboxMat(src, images.LetterboxOptions{Size: 640})
	require.NoError(t, err)
	defer boxed.Close()

	want, err := images.LetterboxTransform(1920, 1080, images.LetterboxOptions{Size: 640})
	require.NoError(t, err)

	assert.Equal(t, want, frame)
	assert.Equal(t, 640, boxed.Cols())
	assert.Equal(t, 640, boxed.Rows())

	// BGR: padding is grey, content is red.
	pad := boxed.GetVecbAt(0, 320)
	assert.Equal(t, []uint8{114, 114, 114}, []uint8{pad[0], pad[1], pad[2]})
	content := boxed.GetVecbAt(320, 320)
	assert.Equal(t, []uint8{0, 0, 255}, []uint8{content[0], content[1], content[2]})
}

func TestLetterboxMatOddPadding(t *testing.T) {
	src, err := FromImage(solid(100, 99, color.White))
	require.NoError(t, err)
	defer src.Close()

	boxed, frame, err := LetterboxMat(src, images.LetterboxOptions{Size: 64})
	require.NoError(t, err)
	defer boxed.Close()

	assert.Equal(t, 0, frame.PadTop)
	assert.Equal(t, 64, boxed.Rows())
}

func TestLetterboxMatDegenerate(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	_, _, err := LetterboxMat(empty, images.LetterboxOptions{Size: 640})
	assert.ErrorIs(t, err, images.ErrEmptyImage)

	_, err = FromImage(nil)
	assert.ErrorIs(t, err, images.ErrEmptyImage)
}

func TestNMSBoxesAgreesWithGreedy(t *testing.T) {
	proposals := []postprocess.Result{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Score: 0.9},
		{Box: images.Rect{X1: 5, Y1: 5, X2: 105, Y2: 105}, Score: 0.8},
		{Box: images.Rect{X1: 200, Y1: 200, X2: 260, Y2: 260}, Score: 0.7, Class: 1},
		{Box: images.Rect{X1: 300, Y1: 0, X2: 340, Y2: 40}, Score: 0.1},
	}
	config := postprocess.DefaultNMSConfig()

	got := NMSBoxes(proposals, config)
	want := postprocess.Suppress(proposals, config)

	assert.Equal(t, want, got)
	assert.Nil(t, NMSBoxes(proposals, postprocess.NMSConfig{ConfidenceThreshold: 2}))
}

func TestMatChecksum(t *testing.T) {
	a, err := FromImage(solid(8, 8, color.White))
	require.NoError(t, err)
	defer a.Close()

	b, err := FromImage(solid(8, 8, color.White))
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, MatChecksum(a), MatChecksum(b))
	assert.Len(t, MatChecksum(a), 32)

	empty := gocv.NewMat()
	defer empty.Close()
	assert.Equal(t, "empty", MatChecksum(empty))
}
