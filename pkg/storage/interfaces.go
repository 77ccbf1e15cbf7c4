package storage

import (
	"context"
	"errors"
	"time"
)

var ErrUnavailable = errors.New("blob store unavailable")

// ObjectInfo describes a stored object. Size is meaningful only when Exists.
type ObjectInfo struct {
	Exists bool
	Size   int64
}

// BlobStore is the signed-URL capability over the media bucket. The service
// never reads or writes blob bytes itself.
type BlobStore interface {
	PresignPut(ctx context.Context, path, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, path string, ttl time.Duration) (string, error)
	Stat(ctx context.Context, path string) (ObjectInfo, error)
	Delete(ctx context.Context, path string) error
}
