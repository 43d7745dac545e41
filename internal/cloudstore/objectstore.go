// Package cloudstore implements the cloud backup transport: uploading,
// listing, downloading, and deleting snapshot blobs in a per-tenant bucket
// namespace of an S3-compatible object store.
package cloudstore

import (
	"context"
	"time"
)

// ObjectInfo describes one stored object as reported by a listing.
type ObjectInfo struct {
	Key       string
	CreatedAt time.Time
	Size      int64
}

// ObjectStore is the minimal object-storage surface the transport needs.
// The production implementation is S3Store; tests substitute an in-memory
// fake.
type ObjectStore interface {
	// EnsureBucket verifies the bucket exists, creating it if missing.
	// Returns common.ErrBucketPrivilege when creation is denied and
	// common.ErrTransportUnavailable when the store cannot be reached.
	EnsureBucket(ctx context.Context, bucket string) error

	// Put writes one object. Keys are unique by construction, so an
	// existing object is never overwritten in practice.
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error

	// Get fetches one object's bytes, or common.ErrNotFound.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// List returns every object under the prefix.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// Remove deletes the given keys. Missing keys are not an error.
	Remove(ctx context.Context, bucket string, keys []string) error
}
