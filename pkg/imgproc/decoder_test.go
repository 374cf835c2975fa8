package imgproc

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDimensionsReadsPNGHeader(t *testing.T) {
	data := solidPNG(t, 640, 480)
	w, h, format, err := New().Dimensions(data)
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
	assert.Equal(t, "png", format)
}

func TestRenderFitsWithinTargetBox(t *testing.T) {
	data := solidPNG(t, 1200, 600)
	out, format, err := New().Render(data, 300, 300, 85)
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), 300)
	assert.LessOrEqual(t, bounds.Dy(), 300)
}

func TestDimensionsRejectsUnrecognizedData(t *testing.T) {
	_, _, _, err := New().Dimensions([]byte("not an image"))
	assert.Error(t, err)
}

func TestRenderJPEGForcesJPEGForNonJPEGSource(t *testing.T) {
	data := solidPNG(t, 1200, 600)
	out, err := New().RenderJPEG(data, 300, 300, 85)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), 300)
	assert.LessOrEqual(t, bounds.Dy(), 300)
}
