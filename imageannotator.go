// Package imageannotator analyzes uploaded images with a remote vision service and
// produces display-ready results.
//
// For each upload the library issues one analyze call, draws the detected objects onto a
// copy of the image, requests a 100x100 smart-cropped thumbnail and flattens the analysis
// into display strings.
//
// Basic usage:
//
//	cfg, err := config.Load("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	ann, err := imageannotator.New(ctx, cfg, zap.NewExample())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ann.Close()
//
//	res, err := ann.AnalyzeFile(ctx, "photo.jpg")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(res.View().Description)
//
// The package consists of these components:
//
// 1. Backends (pkg/azure, pkg/gcv, pkg/detection with pkg/ollama or pkg/llamacpp)
// 2. Annotation (pkg/annotate): boxes and labels drawn with gg
// 3. Thumbnails (pkg/thumbnail): remote smart crop, stored as JPEG
// 4. Projection (pkg/projection): the display strings
// 5. Orchestration (pkg/orchestrator): ordering, concurrency and partial failures
//
// Artifacts are written through pkg/storage, either to a local directory or to a
// Cloud Storage bucket.
package imageannotator

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/internal/config"
	"github.com/menta2k/image-annotator/pkg/azure"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/gcv"
	"github.com/menta2k/image-annotator/pkg/llamacpp"
	"github.com/menta2k/image-annotator/pkg/ollama"
	"github.com/menta2k/image-annotator/pkg/orchestrator"
	"github.com/menta2k/image-annotator/pkg/storage"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Version of the image annotator library
const Version = "1.0.0"

// Annotator is the high-level entry point
type Annotator struct {
	orchestrator *orchestrator.Orchestrator
	closers      []func() error
	logger       *zap.Logger
}

// New builds the vision backend and artifact store described by cfg
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Annotator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	vc, closeClient, err := NewVisionClient(ctx, cfg.Vision, logger)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := NewStore(ctx, cfg.Output, logger)
	if err != nil {
		_ = closeClient()
		return nil, err
	}

	a := NewWithClient(vc, store, OrchestratorConfig(cfg.Output), logger)
	a.closers = append(a.closers, closeClient, closeStore)
	return a, nil
}

// NewWithClient wires an Annotator around an existing client and store
func NewWithClient(vc client.VisionClient, store storage.Store, cfg orchestrator.Config, logger *zap.Logger) *Annotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Annotator{
		orchestrator: orchestrator.New(vc, store, cfg, logger),
		logger:       logger,
	}
}

// OrchestratorConfig maps the output section onto the orchestrator settings
func OrchestratorConfig(out config.OutputConfig) orchestrator.Config {
	return orchestrator.Config{
		AnnotatedDir: out.AnnotatedDir,
		ThumbnailDir: out.ThumbnailDir,
		JPEGQuality:  out.JPEGQuality,
		Concurrent:   out.Concurrent,
	}
}

// NewVisionClient constructs the configured backend. The returned function releases it.
func NewVisionClient(ctx context.Context, cfg config.VisionConfig, logger *zap.Logger) (client.VisionClient, func() error, error) {
	noop := func() error { return nil }
	settings := detection.Settings{
		Model:       cfg.Model,
		SendFormat:  cfg.SendFormat,
		SendSize:    cfg.SendSize,
		SendQuality: cfg.SendQuality,
	}

	switch strings.ToLower(cfg.Backend) {
	case config.BackendAzure:
		c, err := azure.NewClient(azure.Config{
			Endpoint:   cfg.Azure.Endpoint,
			Key:        cfg.Azure.Key,
			APIVersion: cfg.Azure.APIVersion,
			Timeout:    cfg.Timeout(),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, noop, nil

	case config.BackendGoogle:
		c, err := gcv.NewClient(ctx, cfg.Google.CredentialsFile, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil

	case config.BackendOllama:
		chat, err := ollama.NewClient(cfg.Ollama.URL, cfg.Timeout())
		if err != nil {
			return nil, nil, err
		}
		return detection.NewDetector(chat, settings, logger), noop, nil

	case config.BackendLlamaCpp:
		chat, err := llamacpp.NewClient(cfg.LlamaCpp.URL, cfg.Timeout())
		if err != nil {
			return nil, nil, err
		}
		return detection.NewDetector(chat, settings, logger), noop, nil
	}
	return nil, nil, errors.Errorf("unknown vision backend %q", cfg.Backend)
}

// NewStore constructs the configured artifact store. The returned function releases it.
func NewStore(ctx context.Context, cfg config.OutputConfig, logger *zap.Logger) (storage.Store, func() error, error) {
	switch cfg.Backend {
	case config.OutputFile, "":
		s, err := storage.NewFileStore(cfg.Dir, cfg.URLPrefix, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	case config.OutputGCS:
		s, err := storage.NewGCSStore(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix, cfg.GCS.BaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, errors.Errorf("unknown output backend %q", cfg.Backend)
}

// Analyze runs the pipeline on an already buffered upload
func (a *Annotator) Analyze(ctx context.Context, upload *types.Upload) (*orchestrator.Result, error) {
	return a.orchestrator.Handle(ctx, upload)
}

// AnalyzeFile reads path and runs the pipeline on it
func (a *Annotator) AnalyzeFile(ctx context.Context, path string) (*orchestrator.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	defer f.Close()

	upload, err := types.ReadUpload(filepath.Base(path), f)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image")
	}
	return a.Analyze(ctx, upload)
}

// Close releases the backend and store
func (a *Annotator) Close() error {
	var err error
	for _, c := range a.closers {
		err = multierr.Append(err, c())
	}
	a.closers = nil
	return err
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
