package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore keeps uploaded complaint images. Implementations hand out
// time-limited URLs instead of exposing the backing store.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
