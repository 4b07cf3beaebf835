package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

// GCSBackend stores blob objects in a Google Cloud Storage bucket
type GCSBackend struct {
	service *gcs.Service
	bucket  string
}

// NewGCSBackend creates a GCSBackend for bucket. Client options such as
// option.WithCredentialsFile are passed through to the storage service.
func NewGCSBackend(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSBackend, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: gcs bucket is required", ErrInvalidURI)
	}

	service, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	return &GCSBackend{service: service, bucket: bucket}, nil
}

// Bucket returns the bucket name
func (b *GCSBackend) Bucket() string {
	return b.bucket
}

// Put implements Backend. A GCS object insert replaces the object atomically.
func (b *GCSBackend) Put(ctx context.Context, name string, body []byte, contentType string) (string, error) {
	obj := &gcs.Object{
		Name:        name,
		ContentType: contentType,
	}

	stored, err := b.service.Objects.Insert(b.bucket, obj).
		Media(bytes.NewReader(body), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return stored.MediaLink, nil
}

// Open implements Backend
func (b *GCSBackend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := b.service.Objects.Get(b.bucket, name).Context(ctx).Download()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
		}
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	return resp.Body, nil
}

// DeleteBefore implements Expirer. Every object in the bucket last updated
// before horizon is deleted, so the bucket should be dedicated to offloads.
func (b *GCSBackend) DeleteBefore(ctx context.Context, horizon time.Time) (int, error) {
	var stale []string
	err := b.service.Objects.List(b.bucket).
		Fields("items(name,updated)", "nextPageToken").
		Pages(ctx, func(objects *gcs.Objects) error {
			for _, obj := range objects.Items {
				updated, err := time.Parse(time.RFC3339, obj.Updated)
				if err != nil {
					continue
				}
				if updated.Before(horizon) {
					stale = append(stale, obj.Name)
				}
			}
			return nil
		})
	if err != nil {
		return 0, fmt.Errorf("failed to list objects: %w", err)
	}

	count := 0
	for _, name := range stale {
		err := b.service.Objects.Delete(b.bucket, name).Context(ctx).Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
				continue
			}
			return count, fmt.Errorf("failed to delete object %s: %w", name, err)
		}
		count++
	}
	return count, nil
}
