package storage

import (
	"context"
	"io"
)

// ObjectStorage holds the images operators attach to IMAGES content.
// Keys are content addressed, so an existing key never changes.
type ObjectStorage interface {
	// Upload writes an object under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the public URL customers load the object from.
	GetURL(key string) string

	// Exists reports whether key is already stored.
	Exists(ctx context.Context, key string) (bool, error)

	// EnsureBucket creates the bucket when the backend allows it.
	EnsureBucket(ctx context.Context) error
}
