// Package storage holds paste bodies that are too large to live inline in a
// database row. Keys are opaque strings chosen by the paste service.
package storage

import "context"

// Backend abstracts blob storage. Implemented by local FS and S3.
type Backend interface {
	// Put stores data under the given key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the blob stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
