// Package gcs stores failure artifacts in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// Store uploads failure artifacts to one bucket. Authentication uses
// Application Default Credentials.
type Store struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewStore creates a GCS client and verifies bucket access so bad
// configuration fails at startup rather than on the first hard-fail.
func NewStore(ctx context.Context, bucket string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("failed to close gcs client after bucket check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("check gcs bucket %q: %w", bucket, err)
	}
	return &Store{client: client, bucket: bucket, logger: logger}, nil
}

// Save uploads data as an object and returns its gs:// URI.
func (s *Store) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		if cerr := w.Close(); cerr != nil {
			s.logger.Warn("failed to close gcs writer after write failure", zap.Error(cerr))
		}
		return "", fmt.Errorf("write gcs object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gcs object %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

// Close releases the GCS client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
