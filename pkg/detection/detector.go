// Package detection turns a chat-style vision language model into a VisionClient.
// The model is prompted for normalized boxes, which are converted to pixels of the
// original upload; thumbnail crops are computed locally around the subject it reports.
package detection

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Settings controls what is sent to the model
type Settings struct {
	Model string
	// SendFormat is "jpeg" or "png".
	SendFormat  string
	SendSize    int
	SendQuality int
}

// Detector implements client.VisionClient over a client.ChatClient
type Detector struct {
	chat      client.ChatClient
	settings  Settings
	processor *processing.Processor
	logger    *zap.Logger
}

var _ client.VisionClient = (*Detector)(nil)

// NewDetector creates a new detector with a chat client
func NewDetector(chat client.ChatClient, settings Settings, logger *zap.Logger) *Detector {
	if settings.SendFormat == "" {
		settings.SendFormat = "jpeg"
	}
	if settings.SendSize <= 0 {
		settings.SendSize = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		chat:      chat,
		settings:  settings,
		processor: processing.NewProcessor(),
		logger:    logger,
	}
}

// Analyze implements client.VisionClient. Sections not listed in features are dropped.
func (d *Detector) Analyze(ctx context.Context, data []byte, features []types.Feature) (*types.AnalysisRecord, error) {
	img, format, payload, err := d.prepare(data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := d.chat.Query(ctx, d.settings.Model, AnalysisPrompt, payload)
	if err != nil {
		return nil, errors.Wrap(err, "analysis query")
	}
	d.logger.Debug("model analysis finished",
		zap.String("model", d.settings.Model),
		zap.Duration("took", time.Since(start)),
		zap.Int("response_bytes", len(raw)))

	b := img.Bounds()
	rec, err := ParseAnalysis(raw, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	rec.Format = format
	return filterFeatures(rec, features), nil
}

// GenerateThumbnail implements client.VisionClient. Without smartCrop the
// model is not consulted and the centre of the image is kept.
func (d *Detector) GenerateThumbnail(ctx context.Context, width, height int, data []byte, smartCrop bool) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid thumbnail size %dx%d", width, height)
	}

	img, _, payload, err := d.prepare(data)
	if err != nil {
		return nil, err
	}

	if !smartCrop {
		return d.processor.EncodeJPEG(d.processor.CenterThumbnail(img, width, height), d.settings.SendQuality)
	}

	raw, err := d.chat.Query(ctx, d.settings.Model, FocusPrompt, payload)
	if err != nil {
		return nil, errors.Wrap(err, "focus query")
	}
	focus, err := ParseFocus(raw)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	subject := processing.NormBoxToRect(focus, b.Dx(), b.Dy()).Add(b.Min)
	crop := d.processor.FocusCrop(b, subject, width, height)
	out, err := d.processor.Thumbnail(img, crop, width, height)
	if err != nil {
		return nil, err
	}
	return d.processor.EncodeJPEG(out, d.settings.SendQuality)
}

func (d *Detector) prepare(data []byte) (img image.Image, format string, payload []byte, err error) {
	_, format, err = d.processor.DecodeConfig(data)
	if err != nil {
		return nil, "", nil, err
	}
	img, err = d.processor.Decode(data)
	if err != nil {
		return nil, "", nil, err
	}
	payload, err = d.processor.PrepareImageForModel(img, d.settings.SendFormat, d.settings.SendSize, d.settings.SendQuality)
	if err != nil {
		return nil, "", nil, errors.Wrap(err, "prepare image for model")
	}
	return img, format, payload, nil
}

func filterFeatures(rec *types.AnalysisRecord, features []types.Feature) *types.AnalysisRecord {
	want := make(map[types.Feature]bool, len(features))
	for _, f := range features {
		want[f] = true
	}
	if !want[types.FeatureDescription] {
		rec.Captions = nil
	}
	if !want[types.FeatureTags] {
		rec.Tags = nil
	}
	if !want[types.FeatureCategories] {
		rec.Categories = nil
	}
	if !want[types.FeatureBrands] {
		rec.Brands = nil
	}
	if !want[types.FeatureObjects] {
		rec.Objects = nil
	}
	if !want[types.FeatureAdult] {
		rec.Adult = nil
	}
	return rec
}
