// Package storage implements the MediaStorage service on top of gocloud.dev
// blob buckets, so the media backend (local disk, S3, GCS) is chosen by URL.
package storage

import (
	"context"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"vidstream/config"
	"vidstream/internal/domain/service"
	"vidstream/internal/util"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"gocloud.dev/blob"

	// Bucket drivers are selected at runtime by the configured URL scheme.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

type bucketStorage struct {
	bucket        *blob.Bucket
	publicBaseURL string
	prefix        string
	logger        *slog.Logger
}

// New opens the configured media bucket and returns it as a service.MediaStorage.
func New(params Params) (service.MediaStorage, error) {
	cfg := params.Config.Storage
	if cfg == nil || cfg.BucketURL == "" {
		return nil, errors.New("storage bucket URL must be provided")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("storage public base URL must be provided")
	}

	bucket, err := blob.OpenBucket(context.Background(), cfg.BucketURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open media bucket %s", cfg.BucketURL)
	}

	params.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return errors.WithStack(bucket.Close())
		},
	})

	return newBucketStorage(bucket, cfg.PublicBaseURL, cfg.Prefix, params.Logger), nil
}

// newBucketStorage wires an already-open bucket; split out so tests can use
// an in-memory or temp-dir bucket without fx.
func newBucketStorage(bucket *blob.Bucket, publicBaseURL, prefix string, logger *slog.Logger) service.MediaStorage {
	return &bucketStorage{
		bucket:        bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		prefix:        strings.Trim(prefix, "/"),
		logger:        logger,
	}
}

// Upload stores the local file in the bucket under a fresh key and returns
// its public URL. The local temp file is removed after the attempt whether
// the upload succeeded or not.
func (s *bucketStorage) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", errors.New("no local file to upload")
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove local temp file", slog.String("path", localPath), slog.Any("error", err))
		}
	}()

	checksum, err := util.CalculateFileChecksum(localPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to checksum local file")
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to open local file")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", errors.Wrap(err, "failed to stat local file")
	}

	key := s.objectKey(localPath)

	opts := &blob.WriterOptions{
		ContentType: mime.TypeByExtension(filepath.Ext(localPath)),
	}
	start := time.Now()
	if err := s.bucket.Upload(ctx, key, file, opts); err != nil {
		return "", errors.Wrapf(err, "failed to upload %s", key)
	}

	s.logger.Debug("Uploaded media object",
		slog.String("key", key),
		slog.String("size", util.FormatBytes(info.Size())),
		slog.String("checksum", checksum),
		slog.String("elapsed", util.FormatDuration(time.Since(start))),
	)

	return s.publicBaseURL + "/" + key, nil
}

func (s *bucketStorage) objectKey(localPath string) string {
	name := uuid.New().String() + filepath.Ext(localPath)
	if s.prefix == "" {
		return name
	}

	return path.Join(s.prefix, name)
}
