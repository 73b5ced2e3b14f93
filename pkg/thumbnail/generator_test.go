package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/types"
)

type fakeClient struct {
	thumb     []byte
	err       error
	gotW      int
	gotH      int
	gotSmart  bool
	gotSource []byte
}

func (f *fakeClient) Analyze(context.Context, []byte, []types.Feature) (*types.AnalysisRecord, error) {
	return &types.AnalysisRecord{}, nil
}

func (f *fakeClient) GenerateThumbnail(_ context.Context, w, h int, src []byte, smart bool) ([]byte, error) {
	f.gotW, f.gotH, f.gotSmart, f.gotSource = w, h, smart, src
	return f.thumb, f.err
}

type memStore struct {
	objects map[string][]byte
	err     error
}

func (m *memStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return "/" + key, nil
}

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 64, 255})
		}
	}
	return img
}

func jpegBytes(t *testing.T, w, h int) []byte {
	data, err := processing.NewProcessor().EncodeJPEG(createTestImage(w, h), 90)
	require.NoError(t, err)
	return data
}

func TestCreatePersistsUnderDeterministicName(t *testing.T) {
	fc := &fakeClient{thumb: jpegBytes(t, 100, 100)}
	store := &memStore{}
	g := NewGenerator(fc, store, Config{}, zaptest.NewLogger(t))

	upload := types.NewUpload("cat.png", []byte("source"))
	art, err := g.Create(context.Background(), upload, 100, 100, true)
	require.NoError(t, err)

	assert.Equal(t, "/Thumbnails/cat_thumbnail.jpg", art.Path)
	assert.Equal(t, "image/jpeg", art.MimeType)
	assert.Equal(t, 100, art.Width)
	assert.Equal(t, 100, art.Height)
	assert.Contains(t, store.objects, "Thumbnails/cat_thumbnail.jpg")

	assert.Equal(t, 100, fc.gotW)
	assert.Equal(t, 100, fc.gotH)
	assert.True(t, fc.gotSmart)
	assert.Equal(t, []byte("source"), fc.gotSource)
}

func TestGenerateServiceFailure(t *testing.T) {
	g := NewGenerator(&fakeClient{err: errors.New("quota exceeded")}, &memStore{}, Config{}, nil)

	_, err := g.Generate(context.Background(), []byte("x"), 100, 100, true)
	var tErr *types.ThumbnailGenerationError
	require.ErrorAs(t, err, &tErr)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerateEmptyResponse(t *testing.T) {
	g := NewGenerator(&fakeClient{}, &memStore{}, Config{}, nil)

	_, err := g.Generate(context.Background(), []byte("x"), 100, 100, true)
	var tErr *types.ThumbnailGenerationError
	assert.ErrorAs(t, err, &tErr)
}

func TestGenerateReencodesNonJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, createTestImage(40, 30)))

	g := NewGenerator(&fakeClient{thumb: buf.Bytes()}, &memStore{}, Config{JPEGQuality: 80}, nil)
	data, err := g.Generate(context.Background(), []byte("x"), 40, 30, false)
	require.NoError(t, err)
	assert.True(t, processing.IsJPEG(data))
}

func TestPersistStoreFailure(t *testing.T) {
	g := NewGenerator(&fakeClient{}, &memStore{err: errors.New("disk full")}, Config{}, nil)

	_, err := g.Persist(context.Background(), "cat.jpg", jpegBytes(t, 10, 10))
	var tErr *types.ThumbnailGenerationError
	require.ErrorAs(t, err, &tErr)
	assert.Contains(t, err.Error(), "disk full")
}
