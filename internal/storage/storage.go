// Package storage retains uploaded screenshots and generated export
// archives in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

type Service struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

// New creates the object storage service and ensures the bucket exists.
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger zerolog.Logger) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	svc := &Service{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "storage").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return svc, nil
}

// PutScreenshot retains an uploaded UI screenshot. Best-effort: failures are
// logged and the caller proceeds.
func (s *Service) PutScreenshot(ctx context.Context, name string, data []byte, contentType string) {
	s.put(ctx, "screenshots/"+name, data, contentType)
}

// PutExport retains a generated project archive.
func (s *Service) PutExport(ctx context.Context, name string, data []byte) {
	s.put(ctx, "exports/"+name, data, "application/zip")
}

func (s *Service) put(ctx context.Context, key string, data []byte, contentType string) {
	if s == nil {
		return
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("object upload failed")
		return
	}
	s.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("object stored")
}
