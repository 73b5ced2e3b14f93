package imageannotator

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/image-annotator/internal/config"
	"github.com/menta2k/image-annotator/pkg/azure"
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/storage"
	"github.com/menta2k/image-annotator/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Create a pattern with a bright subject in the center
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

type stubVision struct{ thumb []byte }

func (s *stubVision) Analyze(context.Context, []byte, []types.Feature) (*types.AnalysisRecord, error) {
	return &types.AnalysisRecord{
		Captions: []types.Caption{{Text: "a bright square"}},
		Objects:  []types.Detection{{Box: types.Box{X: 33, Y: 33, W: 33, H: 33}, Label: "square"}},
	}, nil
}

func (s *stubVision) GenerateThumbnail(context.Context, int, int, []byte, bool) ([]byte, error) {
	return s.thumb, nil
}

func TestAnalyzeFile(t *testing.T) {
	p := processing.NewProcessor()
	src, err := p.EncodeJPEG(createTestImage(100, 100), 90)
	require.NoError(t, err)
	thumb, err := p.EncodeJPEG(createTestImage(100, 100), 90)
	require.NoError(t, err)

	dir := t.TempDir()
	input := filepath.Join(dir, "square.jpg")
	require.NoError(t, os.WriteFile(input, src, 0644))

	root := filepath.Join(dir, "www")
	store, err := storage.NewFileStore(root, "/", nil)
	require.NoError(t, err)

	cfg := config.Default()
	ann := NewWithClient(&stubVision{thumb: thumb}, store, OrchestratorConfig(cfg.Output), zaptest.NewLogger(t))
	defer ann.Close()

	res, err := ann.AnalyzeFile(context.Background(), input)
	require.NoError(t, err)
	require.NoError(t, res.Err())

	v := res.View()
	assert.Equal(t, "/TempImages/square_analyzed.jpg", v.AnnotatedImagePath)
	assert.Equal(t, "/Thumbnails/square_thumbnail.jpg", v.ThumbnailPath)
	assert.Equal(t, "a bright square", v.Description)
	assert.Equal(t, "square", v.Objects)

	assert.FileExists(t, filepath.Join(root, "TempImages", "square_analyzed.jpg"))
	assert.FileExists(t, filepath.Join(root, "Thumbnails", "square_thumbnail.jpg"))
}

func TestAnalyzeFileMissing(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir(), "/", nil)
	require.NoError(t, err)
	ann := NewWithClient(&stubVision{}, store, OrchestratorConfig(config.Default().Output), nil)

	_, err = ann.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))
	assert.Error(t, err)
}

func TestNewVisionClient(t *testing.T) {
	cfg := config.Default().Vision
	cfg.Azure.Endpoint = "https://example.cognitiveservices.azure.com"
	cfg.Azure.Key = "key"

	vc, closeFn, err := NewVisionClient(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &azure.Client{}, vc)
	assert.NoError(t, closeFn())

	for _, backend := range []string{config.BackendOllama, config.BackendLlamaCpp} {
		cfg.Backend = backend
		vc, _, err := NewVisionClient(context.Background(), cfg, nil)
		require.NoError(t, err, backend)
		assert.IsType(t, &detection.Detector{}, vc)
	}

	cfg.Backend = "rekognition"
	_, _, err = NewVisionClient(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	out := config.Default().Output
	out.Dir = t.TempDir()

	s, closeFn, err := NewStore(context.Background(), out, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.FileStore{}, s)
	assert.NoError(t, closeFn())

	out.Backend = "s3"
	_, _, err = NewStore(context.Background(), out, nil)
	assert.Error(t, err)
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
