package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactName(t *testing.T) {
	tests := []struct {
		upload, suffix, want string
	}{
		{"cat.png", AnalyzedSuffix, "cat_analyzed.jpg"},
		{"cat.png", ThumbnailSuffix, "cat_thumbnail.jpg"},
		{"holiday.photo.jpeg", AnalyzedSuffix, "holiday.photo_analyzed.jpg"},
		{`C:\Users\me\Pictures\dog.jpg`, AnalyzedSuffix, "dog_analyzed.jpg"},
		{"../../etc/passwd", ThumbnailSuffix, "passwd_thumbnail.jpg"},
		{"", AnalyzedSuffix, "image_analyzed.jpg"},
		{"...", AnalyzedSuffix, "image_analyzed.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ArtifactName(tt.upload, tt.suffix, "jpg"), tt.upload)
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c", SanitizeFilename("a:b?c"))
	assert.Equal(t, "name", SanitizeFilename(" .name. "))
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("x.JPG"))
	assert.True(t, IsImageFile("x.webp"))
	assert.False(t, IsImageFile("x.txt"))
	assert.False(t, IsImageFile("noext"))
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.png"), []byte("x"), 0o644))

	files, err := ListImageFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "sub", "c.png")}, files)

	assert.True(t, FileExists(filepath.Join(dir, "a.jpg")))
	assert.False(t, FileExists(filepath.Join(dir, "sub")))
	assert.True(t, DirExists(filepath.Join(dir, "sub")))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", FormatFileSize(2*1024*1024))
}
