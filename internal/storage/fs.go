package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/metrics"
)

// FSStorage keeps objects on an afero filesystem, rooted at a base directory.
// It backs the "local" driver in development; URLs are plain public links
// because nothing signs them.
type FSStorage struct {
	fs         afero.Fs
	publicBase string
}

// NewFSStorage roots an FSStorage at dir on fsys.
func NewFSStorage(fsys afero.Fs, dir, publicBase string) (*FSStorage, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", dir, err)
	}
	return &FSStorage{
		fs:         afero.NewBasePathFs(fsys, dir),
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

func (s *FSStorage) path(key string) string {
	return filepath.FromSlash("/" + key)
}

// Ping checks that the storage root is still there.
func (s *FSStorage) Ping(context.Context) error {
	if _, err := s.fs.Stat("/"); err != nil {
		return fmt.Errorf("stat storage root: %w", err)
	}
	return nil
}

// Save writes body to key, replacing any previous content.
func (s *FSStorage) Save(ctx context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	p := s.path(key)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		metrics.RecordStorage("save", metrics.ResultError)
		return "", fmt.Errorf("create directory for %q: %w", key, err)
	}
	if err := afero.WriteReader(s.fs, p, body); err != nil {
		metrics.RecordStorage("save", metrics.ResultError)
		logger.FromContext(ctx).Error("storage: write failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("write %q: %w", key, err)
	}
	metrics.RecordStorage("save", metrics.ResultOK)
	return key, nil
}

// Exists reports whether key is a regular file.
func (s *FSStorage) Exists(_ context.Context, key string) bool {
	if !validKey(key) {
		return false
	}
	fi, err := s.fs.Stat(s.path(key))
	return err == nil && !fi.IsDir()
}

// URL returns the public link for key; expires is ignored.
func (s *FSStorage) URL(_ context.Context, key string, _ time.Duration) string {
	if key == "" {
		return ""
	}
	return s.publicBase + "/" + (&url.URL{Path: key}).EscapedPath() + "?download=1"
}

// Delete removes key. A missing file counts as deleted.
func (s *FSStorage) Delete(ctx context.Context, key string) bool {
	if !validKey(key) {
		return false
	}
	err := s.fs.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.RecordStorage("delete", metrics.ResultError)
		logger.FromContext(ctx).Error("storage: delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	metrics.RecordStorage("delete", metrics.ResultOK)
	return true
}

// Size returns the file size of key.
func (s *FSStorage) Size(_ context.Context, key string) (int64, bool) {
	if !validKey(key) {
		return 0, false
	}
	fi, err := s.fs.Stat(s.path(key))
	if err != nil || fi.IsDir() {
		return 0, false
	}
	return fi.Size(), true
}

// Open returns the file; afero files are seekable.
func (s *FSStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	f, err := s.fs.Open(s.path(key))
	if err != nil {
		metrics.RecordStorage("open", metrics.ResultError)
		return nil, fmt.Errorf("open %q: %w", key, err)
	}
	metrics.RecordStorage("open", metrics.ResultOK)
	return f, nil
}
