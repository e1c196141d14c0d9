// Package blob stores product images and delivery receipts, either in the
// database or in an S3-compatible bucket.
package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("blob not found")

// Object is a stored blob.
type Object struct {
	Data []byte
	MIME string
}

// Store saves and loads blobs by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, mime string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh key under prefix, e.g. "products/<uuid>.jpg".
func NewKey(prefix, ext string) string {
	return fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext)
}
