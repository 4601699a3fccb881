// Package storage defines interfaces for blob storage backends.
// The storage layer persists raw image bytes; originals and thumbnails
// live in two logical buckets addressed by opaque keys.
package storage

import (
	"context"
	"io"
	"strings"
)

// Backend defines the interface for blob storage backends.
// Implementations include S3-compatible object storage and the local
// filesystem. The interface is stateless and supports horizontal scaling.
type Backend interface {
	// Put stores content under bucket/key, overwriting any existing object.
	Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error

	// Get retrieves content by bucket/key.
	// Returns a ReadCloser that must be closed after use.
	// Returns domain.ErrBlobNotFound if the object doesn't exist.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Delete removes content by bucket/key.
	// Deleting an absent object is not an error; deletes are idempotent
	// so cleanup paths can retry safely.
	Delete(ctx context.Context, bucket, key string) error

	// Exists checks if an object exists under bucket/key.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// List returns all object keys in a bucket.
	// Used by administrative tooling; not on any request path.
	List(ctx context.Context, bucket string) ([]string, error)
}

// URLBuilder derives the public URL for a stored object.
// URLs follow <base>/<bucket>/<key>.
type URLBuilder struct {
	base string
}

// NewURLBuilder creates a URLBuilder for the given public base URL.
func NewURLBuilder(baseURL string) *URLBuilder {
	return &URLBuilder{base: strings.TrimRight(baseURL, "/")}
}

// URL returns the public URL for an object.
func (b *URLBuilder) URL(bucket, key string) string {
	return b.base + "/" + bucket + "/" + key
}
