package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/listing/domain"
	"github.com/urbanestate/listing-service/internal/platform/logger"
)

const objectPrefix = "listings/"

// Storage keeps listing media in a MinIO/S3 bucket. Media identifiers are
// object keys.
type Storage struct {
	client *minio.Client
	bucket string
	logger *logger.Logger
}

var _ domain.MediaStore = (*Storage)(nil)

// NewStorage connects to endpoint and creates bucketName if it is missing.
func NewStorage(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, log *logger.Logger) (*Storage, error) {
	log = log.Named("S3Storage")
	log.Info("initializing S3 storage",
		zap.String("endpoint", endpoint),
		zap.String("bucket", bucketName),
		zap.Bool("use_ssl", useSSL),
	)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", endpoint, err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucketName, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
		}
		log.Info("bucket created", zap.String("bucket", bucketName))
	}

	return &Storage{client: client, bucket: bucketName, logger: log}, nil
}

// objectKey builds a unique key that keeps the upload's extension.
func objectKey(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	return objectPrefix + uuid.NewString() + ext
}

func (s *Storage) Store(ctx context.Context, data []byte, originalName string) (string, error) {
	key := objectKey(originalName)

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  http.DetectContentType(data),
		UserMetadata: map[string]string{"original-filename": filepath.Base(originalName)},
	})
	if err != nil {
		s.logger.Error("PutObject failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("%w: upload %s: %w", domain.ErrStorageUnavailable, key, err)
	}

	s.logger.Debug("object uploaded",
		zap.String("key", info.Key),
		zap.String("etag", info.ETag),
		zap.Int64("size", info.Size),
	)
	return key, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Error("RemoveObject failed", zap.String("key", id), zap.Error(err))
		return fmt.Errorf("%w: remove %s: %w", domain.ErrStorageUnavailable, id, err)
	}
	return nil
}

// URL returns the public address of a stored object.
func (s *Storage) URL(id string) string {
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, id)
}
