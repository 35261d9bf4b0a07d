// Package storage defines the object store used for tenant files (resumes,
// attachments, posting images, logos). Implementations degrade instead of
// failing: an unreachable store must never block or roll back a database write.
// The MinIO implementation works with any S3-compatible provider; FSStorage
// keeps objects on a local (or in-memory) filesystem for development and tests.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"
)

// ErrInvalidKey is returned for empty or malformed object keys.
var ErrInvalidKey = errors.New("invalid object key")

// Storage is the interface for tenant object operations.
type Storage interface {
	// Save uploads body under key, overwriting any existing object. A transient
	// failure (network, timeout, 5xx) is logged and reported as success: the
	// returned key is still recorded by the caller and the blob is missing.
	Save(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	// Exists reports whether key is present. Errors read as false.
	Exists(ctx context.Context, key string) bool
	// URL returns a time-limited link to key, or a public-pattern link when
	// signing fails. Never empty for a non-empty key.
	URL(ctx context.Context, key string, expires time.Duration) string
	// Delete removes key and reports whether the store confirmed it.
	Delete(ctx context.Context, key string) bool
	// Size returns the object size, false when unknown.
	Size(ctx context.Context, key string) (int64, bool)
	// Open returns the object content. The caller must close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Buffer is an in-memory, seekable object body.
type Buffer struct {
	*bytes.Reader
}

// NewBuffer wraps data as a seekable ReadCloser.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{Reader: bytes.NewReader(data)}
}

// Close is a no-op.
func (*Buffer) Close() error { return nil }
