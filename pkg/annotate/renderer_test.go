package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-annotator/pkg/types"
)

var gray = color.RGBA{128, 128, 128, 255}

// createTestImage creates a flat gray test image
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, gray)
		}
	}
	return img
}

type labelCall struct {
	text string
	x, y float64
}

// recordingCanvas captures draw calls instead of rasterising them.
type recordingCanvas struct {
	src    image.Image
	rects  []image.Rectangle
	labels []labelCall
}

func (c *recordingCanvas) StrokeRect(r image.Rectangle) { c.rects = append(c.rects, r) }

func (c *recordingCanvas) DrawLabel(text string, x, y float64) {
	c.labels = append(c.labels, labelCall{text, x, y})
}

func (c *recordingCanvas) Image() image.Image { return c.src }

func newRecordingRenderer() (*Renderer, **recordingCanvas) {
	var last *recordingCanvas
	r := NewRendererWithCanvas(func(src image.Image) Canvas {
		last = &recordingCanvas{src: src}
		return last
	})
	return r, &last
}

func TestRenderDrawsOneBoxAndLabelPerDetection(t *testing.T) {
	r, canvas := newRecordingRenderer()
	dets := []types.Detection{
		{Box: types.Box{X: 10, Y: 30, W: 50, H: 50}, Label: "cat"},
		{Box: types.Box{X: 40, Y: 40, W: 20, H: 10}, Label: "dog"},
		{Box: types.Box{X: 0, Y: 0, W: 5, H: 5}, Label: "cup"},
	}

	_, err := r.Render(createTestImage(100, 100), dets)
	require.NoError(t, err)

	c := *canvas
	require.Len(t, c.rects, 3)
	require.Len(t, c.labels, 3)

	// Draw order follows service order.
	assert.Equal(t, image.Rect(10, 30, 60, 80), c.rects[0])
	assert.Equal(t, image.Rect(40, 40, 60, 50), c.rects[1])
	assert.Equal(t, labelCall{"cat", 10, 10}, c.labels[0])
	assert.Equal(t, labelCall{"dog", 40, 20}, c.labels[1])
	assert.Equal(t, labelCall{"cup", 0, -20}, c.labels[2])
}

func TestRenderSkipsEmptyLabels(t *testing.T) {
	r, canvas := newRecordingRenderer()
	_, err := r.Render(createTestImage(50, 50), []types.Detection{{Box: types.Box{X: 1, Y: 1, W: 10, H: 10}}})
	require.NoError(t, err)

	assert.Len(t, (*canvas).rects, 1)
	assert.Empty(t, (*canvas).labels)
}

func TestRenderPreservesDimensions(t *testing.T) {
	r := NewRenderer()
	src := createTestImage(200, 150)

	for _, dets := range [][]types.Detection{
		nil,
		{{Box: types.Box{X: 10, Y: 10, W: 50, H: 50}, Label: "cat"}},
		{{Box: types.Box{X: -20, Y: 140, W: 300, H: 50}, Label: "off the edge"}},
	} {
		out, err := r.Render(src, dets)
		require.NoError(t, err)
		assert.Equal(t, src.Bounds(), out.Bounds())
	}
}

func TestRenderDrawsRectangleAndLeavesSourceUntouched(t *testing.T) {
	r := NewRenderer()
	src := createTestImage(200, 200)

	out, err := r.Render(src, []types.Detection{{Box: types.Box{X: 10, Y: 10, W: 50, H: 50}, Label: "cat"}})
	require.NoError(t, err)

	isRed := func(c color.Color) bool {
		cr, cg, cb, _ := c.RGBA()
		return cr>>8 > 200 && cg>>8 < 80 && cb>>8 < 80
	}
	// Left, right, top and bottom edges of the box.
	assert.True(t, isRed(out.At(10, 35)))
	assert.True(t, isRed(out.At(60, 35)))
	assert.True(t, isRed(out.At(35, 10)))
	assert.True(t, isRed(out.At(35, 60)))
	// Interior and far background are untouched.
	assert.Equal(t, gray, color.RGBAModel.Convert(out.At(35, 35)))
	assert.Equal(t, gray, color.RGBAModel.Convert(out.At(150, 150)))

	assert.Equal(t, gray, src.RGBAAt(10, 35))
}

func TestRenderEmptyDetectionsIsCopy(t *testing.T) {
	r := NewRenderer()
	src := createTestImage(20, 20)

	out, err := r.Render(src, nil)
	require.NoError(t, err)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			require.Equal(t, gray, color.RGBAModel.Convert(out.At(x, y)))
		}
	}
}

func TestRenderRejectsInvalidSource(t *testing.T) {
	r := NewRenderer()
	_, err := r.Render(nil, nil)
	assert.Error(t, err)

	_, err = r.Render(image.NewRGBA(image.Rect(0, 0, 0, 0)), nil)
	assert.Error(t, err)
}

func TestNewCanvasNormalisesOrigin(t *testing.T) {
	src := createTestImage(40, 40).SubImage(image.Rect(10, 10, 30, 30))
	c := NewCanvas(src)
	assert.Equal(t, image.Rect(0, 0, 20, 20), c.Image().Bounds())
}
