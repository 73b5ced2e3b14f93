package processing

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-annotator/pkg/types"
)

// DefaultJPEGQuality is used when a caller passes a quality outside 1..100.
const DefaultJPEGQuality = 90

// Processor decodes, encodes and crops images held in memory
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// Decode decodes an image from byte data with WebP support.
// Each attempt reads from its own reader over data.
func (p *Processor) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("image: empty input")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		var werr error
		img, werr = webp.Decode(bytes.NewReader(data))
		if werr != nil {
			return nil, errors.Wrap(err, "image: unknown or unsupported format")
		}
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.Errorf("image: invalid dimensions %dx%d", b.Dx(), b.Dy())
	}
	return img, nil
}

// DecodeConfig reads only the header of the image and returns its dimensions and format
func (p *Processor) DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		return cfg, format, nil
	}
	cfg, werr := webp.DecodeConfig(bytes.NewReader(data))
	if werr != nil {
		return image.Config{}, "", errors.Wrap(err, "image: unknown or unsupported format")
	}
	return cfg, "webp", nil
}

// EncodeJPEG encodes img as JPEG at the given quality
func (p *Processor) EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}

// PrepareImageForModel downsizes an image so its long side is at most maxDim and
// encodes it for sending to a vision model
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) ([]byte, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	if strings.EqualFold(format, "png") {
		var buf bytes.Buffer
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, errors.Wrap(err, "encode png")
		}
		return buf.Bytes(), nil
	}
	return p.EncodeJPEG(img, quality)
}

// FocusCrop returns the largest window with the targetWidth:targetHeight aspect ratio that
// fits inside bounds, centred on the centre of focus as far as the bounds allow.
// An empty focus centres the window on the image.
func (p *Processor) FocusCrop(bounds, focus image.Rectangle, targetWidth, targetHeight int) image.Rectangle {
	imgW, imgH := bounds.Dx(), bounds.Dy()
	if imgW <= 0 || imgH <= 0 || targetWidth <= 0 || targetHeight <= 0 {
		return bounds
	}

	r := float64(targetWidth) / float64(targetHeight)
	cropW, cropH := float64(imgW), float64(imgH)
	if cropW/cropH > r {
		cropW = cropH * r
	} else {
		cropH = cropW / r
	}
	w := maxInt(1, int(math.Round(cropW)))
	h := maxInt(1, int(math.Round(cropH)))

	focus = focus.Intersect(bounds)
	cx, cy := float64(bounds.Min.X)+float64(imgW)/2, float64(bounds.Min.Y)+float64(imgH)/2
	if !focus.Empty() {
		cx = float64(focus.Min.X+focus.Max.X) / 2
		cy = float64(focus.Min.Y+focus.Max.Y) / 2
	}

	x0 := int(clamp(math.Round(cx-float64(w)/2), float64(bounds.Min.X), float64(bounds.Max.X-w)))
	y0 := int(clamp(math.Round(cy-float64(h)/2), float64(bounds.Min.Y), float64(bounds.Max.Y-h)))
	return image.Rect(x0, y0, x0+w, y0+h)
}

// Thumbnail crops img to crop and resizes the result to exactly width x height
func (p *Processor) Thumbnail(img image.Image, crop image.Rectangle, width, height int) (image.Image, error) {
	crop = crop.Intersect(img.Bounds())
	if crop.Empty() {
		return nil, errors.New("empty crop rectangle")
	}
	return imaging.Resize(imaging.Crop(img, crop), width, height, imaging.Lanczos), nil
}

// CenterThumbnail fills width x height from the centre of img without any saliency input
func (p *Processor) CenterThumbnail(img image.Image, width, height int) image.Image {
	return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
}

// NormBoxToRect converts a normalized box to pixel coordinates of a w x h image
func NormBoxToRect(box types.NormBox, w, h int) image.Rectangle {
	x0 := int(clamp(box.X, 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(box.Y, 0, 1)*float64(h) + 0.5)
	x1 := int(clamp(box.X+box.W, 0, 1)*float64(w) + 0.5)
	y1 := int(clamp(box.Y+box.H, 0, 1)*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return image.Rect(x0, y0, x1, y1)
}

// IsJPEG reports whether data starts with the JPEG SOI marker
func IsJPEG(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
