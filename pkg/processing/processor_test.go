package processing

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-annotator/pkg/types"
)

// createTestImage creates a simple gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8((x * 255) / width), uint8((y * 255) / height), 128, 255})
		}
	}
	return img
}

func TestDecodeRoundTrip(t *testing.T) {
	p := NewProcessor()
	data, err := p.EncodeJPEG(createTestImage(64, 48), 90)
	require.NoError(t, err)
	assert.True(t, IsJPEG(data))

	img, err := p.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	cfg, format, err := p.DecodeConfig(data)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, cfg.Width)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	p := NewProcessor()
	_, err := p.Decode([]byte("not an image"))
	assert.ErrorIs(t, err, image.ErrFormat)
	assert.Contains(t, err.Error(), "unsupported format")

	_, _, err = p.DecodeConfig([]byte("not an image"))
	assert.ErrorIs(t, err, image.ErrFormat)

	_, err = p.Decode(nil)
	assert.Error(t, err)
}

func TestEncodeJPEGDefaultsQuality(t *testing.T) {
	p := NewProcessor()
	data, err := p.EncodeJPEG(createTestImage(10, 10), 0)
	require.NoError(t, err)
	assert.True(t, IsJPEG(data))
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	data, err := p.PrepareImageForModel(createTestImage(400, 200), "png", 100, 85)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestFocusCrop(t *testing.T) {
	p := NewProcessor()
	bounds := image.Rect(0, 0, 400, 200)

	// Focus on the right edge: the square window is pushed against the right bound.
	crop := p.FocusCrop(bounds, image.Rect(350, 50, 390, 150), 100, 100)
	assert.Equal(t, image.Rect(200, 0, 400, 200), crop)

	// Empty focus centres the window.
	crop = p.FocusCrop(bounds, image.Rectangle{}, 100, 100)
	assert.Equal(t, image.Rect(100, 0, 300, 200), crop)

	// Wide target on a tall image.
	crop = p.FocusCrop(image.Rect(0, 0, 100, 300), image.Rect(0, 0, 10, 10), 2, 1)
	assert.Equal(t, image.Rect(0, 0, 100, 50), crop)
}

func TestThumbnail(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(200, 200)

	thumb, err := p.Thumbnail(img, image.Rect(10, 10, 110, 110), 50, 50)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 50), thumb.Bounds())

	_, err = p.Thumbnail(img, image.Rect(300, 300, 400, 400), 50, 50)
	assert.Error(t, err)

	center := p.CenterThumbnail(img, 100, 100)
	assert.Equal(t, 100, center.Bounds().Dx())
}

func TestNormBoxToRect(t *testing.T) {
	r := NormBoxToRect(types.NormBox{X: 0.25, Y: 0.5, W: 0.5, H: 0.25}, 200, 100)
	assert.Equal(t, image.Rect(50, 50, 150, 75), r)

	// Degenerate boxes still cover one pixel.
	r = NormBoxToRect(types.NormBox{X: 2, Y: 2}, 10, 10)
	assert.Equal(t, image.Rect(10, 10, 11, 11), r)
}
