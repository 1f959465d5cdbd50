// Package filestore defines the read-only object storage interface used to
// fetch tileset definitions and pre-authored SQL files from a bucket instead
// of the local filesystem.
//
// The MinIO driver implements Store; callers depend only on this package.
package filestore

import (
	"context"
	"io"
)

// Store is the interface a storage provider must implement.
// Scoped to GET (read) operations: the service never writes objects.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Close() on the returned Object after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata for the object at key inside bucket
	// without downloading its content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
}

// ReadAll fetches the object at key and returns its full content.
func ReadAll(ctx context.Context, s Store, bucket, key string) ([]byte, error) {
	obj, err := s.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
