// Package storage persists derived artifacts. Writes are all-or-nothing per artifact:
// readers never observe a partially written object.
package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/menta2k/image-annotator/internal/utils"
)

// Store persists one artifact under key ("{dir}/{file}") and returns the path or URL
// the display layer should use for it. An existing object under key is replaced.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// FileStore writes artifacts below a root directory, staging each write in a temp file
// in the destination directory and renaming it into place.
type FileStore struct {
	root      string
	urlPrefix string
	logger    *zap.Logger
}

// NewFileStore creates a FileStore rooted at root. Returned paths are urlPrefix + "/" + key.
func NewFileStore(root, urlPrefix string, logger *zap.Logger) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("storage: empty root directory")
	}
	if err := utils.EnsureDir(root); err != nil {
		return nil, errors.Wrap(err, "storage: create root")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{root: root, urlPrefix: strings.TrimSuffix(urlPrefix, "/"), logger: logger}, nil
}

// Root returns the directory artifacts are written under.
func (s *FileStore) Root() string {
	return s.root
}

// Put implements Store.
func (s *FileStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	rel, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(rel))
	dir := filepath.Dir(dst)
	if err := utils.EnsureDir(dir); err != nil {
		return "", errors.Wrapf(err, "storage: create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return "", errors.Wrap(err, "storage: create temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", errors.Wrapf(err, "storage: write %s", rel)
	}
	if err := tmp.Sync(); err != nil {
		return "", errors.Wrapf(err, "storage: sync %s", rel)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrapf(err, "storage: close %s", rel)
	}
	if err := ctx.Err(); err != nil {
		return "", errors.Wrapf(err, "storage: write %s abandoned", rel)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", errors.Wrapf(err, "storage: commit %s", rel)
	}
	committed = true

	s.logger.Debug("artifact written", zap.String("path", dst), zap.String("content_type", contentType), zap.String("size", utils.FormatFileSize(int64(len(data)))))
	return s.urlPrefix + "/" + rel, nil
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	rel := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))[1:]
	if rel == "" || rel != strings.TrimPrefix(key, "/") {
		return "", errors.Errorf("storage: invalid key %q", key)
	}
	return rel, nil
}
