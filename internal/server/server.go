// Package server exposes the annotator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"goji.io"
	"goji.io/pat"

	"github.com/menta2k/image-annotator/pkg/orchestrator"
	"github.com/menta2k/image-annotator/pkg/types"
)

// UploadField is the multipart field holding the image
const UploadField = "imageFile"

// EmptyUploadMessage is shown when the form carries no image
const EmptyUploadMessage = "You forgot to upload an image."

// Analyzer runs the pipeline for one upload
type Analyzer interface {
	Analyze(ctx context.Context, upload *types.Upload) (*orchestrator.Result, error)
}

// Options configures the handler
type Options struct {
	MaxUploadBytes int64
	AllowedOrigins []string
	// StaticRoot is the file store root. When set, ArtifactDirs below it are served.
	StaticRoot   string
	ArtifactDirs []string
}

type server struct {
	analyzer Analyzer
	opts     Options
	logger   *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler returns the HTTP handler: POST /analyze, GET /health and the artifact directories.
func NewHandler(a Analyzer, opts Options, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	s := &server{analyzer: a, opts: opts, logger: logger}

	mux := goji.NewMux()
	mux.HandleFunc(pat.Post("/analyze"), s.handleAnalyze)
	mux.HandleFunc(pat.Get("/health"), s.handleHealth)
	if opts.StaticRoot != "" {
		for _, dir := range opts.ArtifactDirs {
			prefix := "/" + dir
			fs := http.FileServer(http.Dir(filepath.Join(opts.StaticRoot, dir)))
			mux.Handle(pat.Get(prefix+"/*"), http.StripPrefix(prefix, fs))
		}
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(mux)
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrMissingFile):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: EmptyUploadMessage})
		case errors.As(err, &tooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "image is too large"})
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		return
	}
	defer file.Close()

	upload, err := types.ReadUpload(header.Filename, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), upload)
	if err != nil {
		var (
			empty    *types.EmptyUploadError
			analysis *types.AnalysisServiceError
		)
		switch {
		case errors.As(err, &empty):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: EmptyUploadMessage})
		case errors.As(err, &analysis):
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		default:
			s.logger.Error("analyze failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, res.View())
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
