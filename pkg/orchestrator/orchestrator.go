// Package orchestrator handles one uploaded image end to end: a single analyze call,
// the annotated copy, the thumbnail and the display projection.
//
// Empty uploads and analysis failures are terminal and produce no artifacts. Failures
// of the annotated image or the thumbnail are kept as warnings next to whatever else
// succeeded.
package orchestrator

import (
	"context"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/annotate"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/projection"
	"github.com/menta2k/image-annotator/pkg/storage"
	"github.com/menta2k/image-annotator/pkg/thumbnail"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Thumbnail size requested for every upload
const (
	ThumbnailWidth  = 100
	ThumbnailHeight = 100
)

// Config controls artifact placement and scheduling
type Config struct {
	AnnotatedDir string
	ThumbnailDir string
	JPEGQuality  int
	// Concurrent runs the thumbnail call alongside the analyze call.
	Concurrent bool
}

// DefaultConfig returns the standard artifact layout
func DefaultConfig() Config {
	return Config{
		AnnotatedDir: "TempImages",
		ThumbnailDir: "Thumbnails",
		JPEGQuality:  processing.DefaultJPEGQuality,
		Concurrent:   true,
	}
}

// Orchestrator coordinates the per-upload pipeline. It holds no per-request state
// and is safe for concurrent use.
type Orchestrator struct {
	client    client.VisionClient
	store     storage.Store
	thumbs    *thumbnail.Generator
	renderer  *annotate.Renderer
	processor *processing.Processor
	config    Config
	logger    *zap.Logger
}

// New creates an Orchestrator around an already constructed vision client and store.
func New(c client.VisionClient, store storage.Store, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.AnnotatedDir == "" {
		cfg.AnnotatedDir = "TempImages"
	}
	if cfg.ThumbnailDir == "" {
		cfg.ThumbnailDir = "Thumbnails"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		client:    c,
		store:     store,
		thumbs:    thumbnail.NewGenerator(c, store, thumbnail.Config{Dir: cfg.ThumbnailDir, JPEGQuality: cfg.JPEGQuality}, logger),
		renderer:  annotate.NewRenderer(),
		processor: processing.NewProcessor(),
		config:    cfg,
		logger:    logger,
	}
}

// Handle processes one upload. It returns (nil, *types.EmptyUploadError) or
// (nil, *types.AnalysisServiceError) for terminal failures; otherwise a Result whose
// Warnings hold any *types.RenderError or *types.ThumbnailGenerationError.
func (o *Orchestrator) Handle(ctx context.Context, upload *types.Upload) (*Result, error) {
	if upload.Len() == 0 {
		return nil, &types.EmptyUploadError{}
	}

	res := &Result{RequestID: uuid.NewString()}
	logger := o.logger.With(zap.String("request_id", res.RequestID), zap.String("upload", upload.Name()))
	start := time.Now()

	rc, err := o.remoteCalls(ctx, upload)
	if err != nil {
		logger.Error("analysis failed", zap.Error(err))
		return nil, &types.AnalysisServiceError{Err: err}
	}
	rec := rc.record
	res.Record = rec
	res.Detections = rec.Objects

	annotated, err := o.annotate(ctx, upload, rec.Objects)
	if err != nil {
		logger.Warn("annotated image not produced", zap.Error(err))
		res.Warnings = append(res.Warnings, err)
	}
	res.AnnotatedImage = annotated

	thumbErr := rc.thumbErr
	if thumbErr == nil {
		res.Thumbnail, thumbErr = o.thumbs.Persist(ctx, upload.Name(), rc.thumb)
	}
	if thumbErr != nil {
		logger.Warn("thumbnail not produced", zap.Error(thumbErr))
		res.Warnings = append(res.Warnings, thumbErr)
	}

	res.Analysis = projection.Project(rec)

	logger.Info("upload processed",
		zap.Int("detections", len(rec.Objects)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

type remoteResult struct {
	record   *types.AnalysisRecord
	thumb    []byte
	thumbErr error
}

// remoteCalls runs the single analyze call and the thumbnail call. The thumbnail is not
// persisted here, so a failed analysis leaves nothing behind.
func (o *Orchestrator) remoteCalls(ctx context.Context, upload *types.Upload) (*remoteResult, error) {
	rc := &remoteResult{}

	analyze := func(ctx context.Context) error {
		rec, err := o.client.Analyze(ctx, upload.Bytes(), types.AnalysisFeatures)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = &types.AnalysisRecord{}
		}
		rc.record = rec
		return nil
	}
	generate := func(ctx context.Context) {
		rc.thumb, rc.thumbErr = o.thumbs.Generate(ctx, upload.Bytes(), ThumbnailWidth, ThumbnailHeight, true)
	}

	if !o.config.Concurrent {
		if err := analyze(ctx); err != nil {
			return nil, err
		}
		generate(ctx)
		return rc, nil
	}

	// A failed analysis cancels the in-flight thumbnail call through gctx.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return analyze(gctx) })
	g.Go(func() error {
		generate(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rc, nil
}

// annotate decodes the upload, draws the detections and stores the JPEG.
func (o *Orchestrator) annotate(ctx context.Context, upload *types.Upload, dets []types.Detection) (*types.Artifact, error) {
	src, err := o.processor.Decode(upload.Bytes())
	if err != nil {
		return nil, &types.RenderError{Stage: types.StageDecode, Err: err}
	}

	out, err := o.renderer.Render(src, dets)
	if err != nil {
		return nil, &types.RenderError{Stage: types.StageDraw, Err: err}
	}

	data, err := o.processor.EncodeJPEG(out, o.config.JPEGQuality)
	if err != nil {
		return nil, &types.RenderError{Stage: types.StageEncode, Err: err}
	}

	key := path.Join(o.config.AnnotatedDir, utils.ArtifactName(upload.Name(), utils.AnalyzedSuffix, "jpg"))
	p, err := o.store.Put(ctx, key, "image/jpeg", data)
	if err != nil {
		return nil, &types.RenderError{Stage: types.StagePersist, Err: err}
	}

	b := out.Bounds()
	return &types.Artifact{Path: p, MimeType: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
}
