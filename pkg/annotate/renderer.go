// Package annotate draws detection boxes and labels over an image.
//
// Boxes are drawn in the order the vision service returned them, so later boxes overlay
// earlier ones where they overlap. Coordinates are used as given: a box that lies partly
// outside the image is truncated by the drawing surface, not clamped here. Callers must not
// assume clamping.
package annotate

import (
	"image"
	"image/color"

	"github.com/pkg/errors"

	"github.com/menta2k/image-annotator/pkg/types"
)

// Fixed styling. The quality profile (anti-aliased strokes and text) is not configurable.
const (
	StrokeWidth = 3.0
	FontSize    = 16.0
	LabelOffset = 20
)

var (
	BoxColor    = color.NRGBA{R: 255, A: 255}
	LabelFill   = color.NRGBA{R: 255, G: 255, A: 255}
	LabelStroke = color.NRGBA{A: 255}
)

// Renderer composites detections onto images.
type Renderer struct {
	newCanvas CanvasFactory
}

// NewRenderer creates a Renderer drawing on gg canvases
func NewRenderer() *Renderer {
	return &Renderer{newCanvas: NewCanvas}
}

// NewRendererWithCanvas creates a Renderer using a custom canvas factory
func NewRendererWithCanvas(factory CanvasFactory) *Renderer {
	return &Renderer{newCanvas: factory}
}

// Render returns a new bitmap with one box and one label per detection.
// src is never modified; an empty detections slice yields an unmodified copy.
func (r *Renderer) Render(src image.Image, detections []types.Detection) (image.Image, error) {
	if src == nil {
		return nil, errors.New("annotate: nil source image")
	}
	if b := src.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.Errorf("annotate: invalid source dimensions %dx%d", b.Dx(), b.Dy())
	}

	canvas := r.newCanvas(src)
	for _, d := range detections {
		canvas.StrokeRect(d.Box.Rect())
		if d.Label == "" {
			continue
		}
		canvas.DrawLabel(d.Label, float64(d.Box.X), float64(d.Box.Y-LabelOffset))
	}
	return canvas.Image(), nil
}
