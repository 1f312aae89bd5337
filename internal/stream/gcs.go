package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSSource reads gs://bucket/object references.
type GCSSource struct {
	client *storage.Client
}

func NewGCSSource(ctx context.Context) (*GCSSource, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSSource{client: client}, nil
}

func (s *GCSSource) Close() error {
	return s.client.Close()
}

func (s *GCSSource) Exists(ctx context.Context, ref string) (bool, error) {
	bucket, key, err := splitBucketRef(ref)
	if err != nil {
		return false, err
	}

	_, err = s.client.Bucket(bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", ref, err)
	}
	return true, nil
}

func (s *GCSSource) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, err := splitBucketRef(ref)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	return r, nil
}
