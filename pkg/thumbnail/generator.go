// Package thumbnail requests smart-cropped thumbnails from the vision service and
// persists them next to the other derived artifacts.
package thumbnail

import (
	"context"
	"path"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/storage"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Config holds thumbnail persistence settings
type Config struct {
	// Dir is the store directory thumbnails are written to.
	Dir         string
	JPEGQuality int
}

// Generator produces thumbnails through the remote service.
// It never falls back to a local crop when the service fails.
type Generator struct {
	client    client.VisionClient
	store     storage.Store
	processor *processing.Processor
	config    Config
	logger    *zap.Logger
}

// NewGenerator creates a Generator
func NewGenerator(c client.VisionClient, store storage.Store, cfg Config, logger *zap.Logger) *Generator {
	if cfg.Dir == "" {
		cfg.Dir = "Thumbnails"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:    c,
		store:     store,
		processor: processing.NewProcessor(),
		config:    cfg,
		logger:    logger,
	}
}

// Generate asks the service for a width x height thumbnail of src and returns it as JPEG.
// Failures are reported as *types.ThumbnailGenerationError.
func (g *Generator) Generate(ctx context.Context, src []byte, width, height int, smartCrop bool) ([]byte, error) {
	data, err := g.client.GenerateThumbnail(ctx, width, height, src, smartCrop)
	if err != nil {
		return nil, &types.ThumbnailGenerationError{Err: err}
	}
	if len(data) == 0 {
		return nil, &types.ThumbnailGenerationError{Err: errors.New("service returned an empty thumbnail")}
	}
	if processing.IsJPEG(data) {
		return data, nil
	}

	// Thumbnails are always stored as .jpg.
	img, err := g.processor.Decode(data)
	if err != nil {
		return nil, &types.ThumbnailGenerationError{Err: errors.Wrap(err, "decode service thumbnail")}
	}
	data, err = g.processor.EncodeJPEG(img, g.config.JPEGQuality)
	if err != nil {
		return nil, &types.ThumbnailGenerationError{Err: err}
	}
	return data, nil
}

// Persist stores a JPEG thumbnail under the deterministic name derived from uploadName.
func (g *Generator) Persist(ctx context.Context, uploadName string, data []byte) (*types.Artifact, error) {
	cfg, _, err := g.processor.DecodeConfig(data)
	if err != nil {
		return nil, &types.ThumbnailGenerationError{Err: errors.Wrap(err, "inspect thumbnail")}
	}

	key := path.Join(g.config.Dir, utils.ArtifactName(uploadName, utils.ThumbnailSuffix, "jpg"))
	p, err := g.store.Put(ctx, key, "image/jpeg", data)
	if err != nil {
		return nil, &types.ThumbnailGenerationError{Err: err}
	}

	g.logger.Debug("thumbnail stored", zap.String("path", p), zap.Int("width", cfg.Width), zap.Int("height", cfg.Height))
	return &types.Artifact{Path: p, MimeType: "image/jpeg", Width: cfg.Width, Height: cfg.Height}, nil
}

// Create runs Generate and Persist for upload.
func (g *Generator) Create(ctx context.Context, upload *types.Upload, width, height int, smartCrop bool) (*types.Artifact, error) {
	data, err := g.Generate(ctx, upload.Bytes(), width, height, smartCrop)
	if err != nil {
		return nil, err
	}
	return g.Persist(ctx, upload.Name(), data)
}
