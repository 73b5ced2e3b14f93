// Package gcv is a VisionClient backed by Google Cloud Vision.
package gcv

import (
	"context"
	"image"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/types"
)

const maxResults = 50

// annotator is the subset of *vision.ImageAnnotatorClient used here
type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// Client maps Cloud Vision annotations onto the analysis record
type Client struct {
	annotator annotator
	close     func() error
	processor *processing.Processor
	logger    *zap.Logger
}

var _ client.VisionClient = (*Client)(nil)

// NewClient dials Cloud Vision. credentialsFile may be empty to use application default credentials.
func NewClient(ctx context.Context, credentialsFile string, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "cloud vision: create client")
	}
	gc := newClient(c, logger)
	gc.close = c.Close
	return gc, nil
}

func newClient(a annotator, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		annotator: a,
		close:     func() error { return nil },
		processor: processing.NewProcessor(),
		logger:    logger,
	}
}

// Close releases the gRPC connection
func (c *Client) Close() error {
	return c.close()
}

// Analyze implements client.VisionClient
func (c *Client) Analyze(ctx context.Context, data []byte, features []types.Feature) (*types.AnalysisRecord, error) {
	cfg, format, err := c.processor.DecodeConfig(data)
	if err != nil {
		return nil, errors.Wrap(err, "cloud vision")
	}

	resp, err := c.annotate(ctx, &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: data},
		Features: requestFeatures(features),
	})
	if err != nil {
		return nil, err
	}

	rec := toRecord(resp, cfg.Width, cfg.Height)
	rec.Format = format
	c.logger.Debug("cloud vision analyze finished",
		zap.Int("labels", len(resp.GetLabelAnnotations())),
		zap.Int("objects", len(resp.GetLocalizedObjectAnnotations())))
	return rec, nil
}

// GenerateThumbnail implements client.VisionClient. The service only suggests a crop;
// cropping and resizing happen locally.
func (c *Client) GenerateThumbnail(ctx context.Context, width, height int, data []byte, smartCrop bool) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid thumbnail size %dx%d", width, height)
	}
	img, err := c.processor.Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, "cloud vision")
	}
	if !smartCrop {
		return c.processor.EncodeJPEG(c.processor.CenterThumbnail(img, width, height), processing.DefaultJPEGQuality)
	}

	resp, err := c.annotate(ctx, &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: data},
		Features: []*visionpb.Feature{{Type: visionpb.Feature_CROP_HINTS}},
		ImageContext: &visionpb.ImageContext{
			CropHintsParams: &visionpb.CropHintsParams{AspectRatios: []float32{float32(width) / float32(height)}},
		},
	})
	if err != nil {
		return nil, err
	}

	hints := resp.GetCropHintsAnnotation().GetCropHints()
	if len(hints) == 0 {
		return nil, errors.New("cloud vision: no crop hint returned")
	}
	b := img.Bounds()
	hint := polyRect(hints[0].GetBoundingPoly()).Add(b.Min)
	out, err := c.processor.Thumbnail(img, c.hintCrop(b, hint, width, height), width, height)
	if err != nil {
		return nil, err
	}
	return c.processor.EncodeJPEG(out, processing.DefaultJPEGQuality)
}

// hintCrop is the crop hint clipped to bounds. A hint that misses the image falls
// back to the largest width:height window centred on it.
func (c *Client) hintCrop(bounds, hint image.Rectangle, width, height int) image.Rectangle {
	if crop := hint.Intersect(bounds); !crop.Empty() {
		return crop
	}
	return c.processor.FocusCrop(bounds, hint, width, height)
}

func (c *Client) annotate(ctx context.Context, req *visionpb.AnnotateImageRequest) (*visionpb.AnnotateImageResponse, error) {
	batch, err := c.annotator.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return nil, errors.Wrap(err, "cloud vision: annotate")
	}
	if len(batch.GetResponses()) == 0 {
		return nil, errors.New("cloud vision: empty batch response")
	}
	resp := batch.GetResponses()[0]
	if st := resp.GetError(); st != nil && st.GetCode() != 0 {
		return nil, errors.Errorf("cloud vision: code %d: %s", st.GetCode(), st.GetMessage())
	}
	return resp, nil
}

func requestFeatures(features []types.Feature) []*visionpb.Feature {
	var out []*visionpb.Feature
	add := func(t visionpb.Feature_Type) {
		out = append(out, &visionpb.Feature{Type: t, MaxResults: maxResults})
	}
	seenWeb := false
	for _, f := range features {
		switch f {
		case types.FeatureTags:
			add(visionpb.Feature_LABEL_DETECTION)
		case types.FeatureBrands:
			add(visionpb.Feature_LOGO_DETECTION)
		case types.FeatureObjects:
			add(visionpb.Feature_OBJECT_LOCALIZATION)
		case types.FeatureAdult:
			add(visionpb.Feature_SAFE_SEARCH_DETECTION)
		case types.FeatureDescription, types.FeatureCategories:
			// Both come from web detection
			if !seenWeb {
				add(visionpb.Feature_WEB_DETECTION)
				seenWeb = true
			}
		}
	}
	return out
}
