package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/menta2k/image-annotator/internal/utils"
)

// GCSStore writes artifacts to a Cloud Storage bucket. An object only becomes visible
// when its writer is closed; cancelling the write context discards the upload.
type GCSStore struct {
	client  *gcs.Client
	bucket  string
	prefix  string
	baseURL string
	logger  *zap.Logger
}

// NewGCSStore opens a Cloud Storage client. baseURL defaults to the public
// storage.googleapis.com URL of the bucket.
func NewGCSStore(ctx context.Context, bucket, prefix, baseURL string, logger *zap.Logger, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("storage: empty bucket name")
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "storage: create gcs client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GCSStore{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		baseURL: gcsBaseURL(bucket, baseURL),
		logger:  logger,
	}, nil
}

// Put implements Store.
func (s *GCSStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	rel, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	name := objectName(s.prefix, rel)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		cancel()
		_ = w.Close()
		return "", errors.Wrapf(err, "storage: write gs://%s/%s", s.bucket, name)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrapf(err, "storage: commit gs://%s/%s", s.bucket, name)
	}

	s.logger.Debug("artifact uploaded", zap.String("bucket", s.bucket), zap.String("object", name), zap.String("size", utils.FormatFileSize(int64(len(data)))))
	return s.baseURL + "/" + name, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func objectName(prefix, rel string) string {
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

func gcsBaseURL(bucket, baseURL string) string {
	if baseURL != "" {
		return strings.TrimSuffix(baseURL, "/")
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s", bucket)
}
