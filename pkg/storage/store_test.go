package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestFileStorePut(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root, "/", zaptest.NewLogger(t))
	require.NoError(t, err)

	url, err := s.Put(context.Background(), "Thumbnails/cat_thumbnail.jpg", "image/jpeg", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, "/Thumbnails/cat_thumbnail.jpg", url)

	// Same key overwrites.
	_, err = s.Put(context.Background(), "Thumbnails/cat_thumbnail.jpg", "image/jpeg", []byte("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "Thumbnails", "cat_thumbnail.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "Thumbnails"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreCancelledWriteLeavesNothing(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root, "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Put(ctx, "TempImages/cat_analyzed.jpg", "image/jpeg", []byte("data"))
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "TempImages"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "", nil)
	require.NoError(t, err)

	for _, key := range []string{"", "../outside.jpg", "a/../../b.jpg", "."} {
		_, err := s.Put(context.Background(), key, "image/jpeg", []byte("x"))
		assert.Error(t, err, key)
	}
}

func TestGCSNaming(t *testing.T) {
	assert.Equal(t, "uploads/Thumbnails/a.jpg", objectName("uploads", "Thumbnails/a.jpg"))
	assert.Equal(t, "Thumbnails/a.jpg", objectName("", "Thumbnails/a.jpg"))
	assert.Equal(t, "https://storage.googleapis.com/bkt", gcsBaseURL("bkt", ""))
	assert.Equal(t, "https://cdn.example.com", gcsBaseURL("bkt", "https://cdn.example.com/"))
}

func TestFileStoreCreatesRootAndLogsSize(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	root := filepath.Join(t.TempDir(), "www", "static")

	s, err := NewFileStore(root, "/", zap.New(core))
	require.NoError(t, err)
	assert.DirExists(t, root)

	_, err = s.Put(context.Background(), "TempImages/cat_analyzed.jpg", "image/jpeg", make([]byte, 1536))
	require.NoError(t, err)

	written := logs.FilterMessage("artifact written").All()
	require.Len(t, written, 1)
	assert.Equal(t, "1.5 KB", written[0].ContextMap()["size"])
}
