// Package archive stores published digests in object storage.
package archive

import (
	"context"
	"io"
)

// Storage is the interface for object storage providers.
type Storage interface {
	// Upload stores an object and returns its URL.
	Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) (url string, err error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
}
