package annotate

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Canvas is a drawing surface holding a private copy of the source image.
type Canvas interface {
	// StrokeRect outlines r. Parts outside the image are dropped.
	StrokeRect(r image.Rectangle)
	// DrawLabel draws text with its top-left corner at (x, y).
	DrawLabel(text string, x, y float64)
	// Image returns the composited bitmap.
	Image() image.Image
}

// CanvasFactory creates a Canvas over a copy of src.
type CanvasFactory func(src image.Image) Canvas

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

var outlineOffsets = [][2]float64{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

type ggCanvas struct {
	dc   *gg.Context
	face font.Face
}

// NewCanvas returns an anti-aliased Canvas backed by gg.
func NewCanvas(src image.Image) Canvas {
	if src.Bounds().Min != (image.Point{}) {
		src = imaging.Clone(src)
	}
	dc := gg.NewContextForImage(src)
	dc.SetLineCapSquare()
	dc.SetLineJoinRound()
	return &ggCanvas{
		dc:   dc,
		face: truetype.NewFace(labelFont, &truetype.Options{Size: FontSize, Hinting: font.HintingNone}),
	}
}

func (c *ggCanvas) StrokeRect(r image.Rectangle) {
	c.dc.SetColor(BoxColor)
	c.dc.SetLineWidth(StrokeWidth)
	c.dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	c.dc.Stroke()
}

func (c *ggCanvas) DrawLabel(text string, x, y float64) {
	c.dc.SetFontFace(c.face)
	drawText := func(col color.Color, dx, dy float64) {
		c.dc.SetColor(col)
		c.dc.DrawStringAnchored(text, x+dx, y+dy, 0, 1)
	}
	for _, o := range outlineOffsets {
		drawText(LabelStroke, o[0], o[1])
	}
	drawText(LabelFill, 0, 0)
}

func (c *ggCanvas) Image() image.Image {
	return c.dc.Image()
}
