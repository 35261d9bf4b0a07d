package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/metrics"
)

// DefaultURLExpiry applies when URL is called without an explicit expiry.
const DefaultURLExpiry = time.Hour

// S3 caps presigned URLs at seven days.
const maxURLExpiry = 7 * 24 * time.Hour

type objectEntry struct {
	Key  string
	Size int64
}

// objectAPI is the slice of the S3 client the adapter depends on.
type objectAPI interface {
	bucketExists(ctx context.Context) (bool, error)
	makeBucket(ctx context.Context) error
	put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	list(ctx context.Context, prefix string, limit int) ([]objectEntry, error)
	presign(ctx context.Context, key string, expires time.Duration, params url.Values) (string, error)
	remove(ctx context.Context, keys []string) error
	get(ctx context.Context, key string) ([]byte, error)
}

// MinioStorage implements Storage on a private MinIO (or any S3-compatible) bucket.
// All tenants share the bucket; isolation is by key prefix and the portal's
// ownership checks, never by bucket policy.
type MinioStorage struct {
	api        objectAPI
	publicBase string
	expiry     time.Duration
}

// MinioOptions configures NewMinioStorage.
type MinioOptions struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	PublicBase string
	UseSSL     bool
	URLExpiry  time.Duration
}

// NewMinioStorage creates a MinIO client and makes a best effort to ensure the
// bucket exists. An unreachable endpoint is logged, not returned: each
// operation degrades on its own.
func NewMinioStorage(ctx context.Context, opts MinioOptions) (*MinioStorage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := newMinioStorage(&minioAPI{client: client, bucket: opts.Bucket}, opts.PublicBase, opts.URLExpiry)
	s.ensureBucket(ctx, opts.Bucket)
	return s, nil
}

func newMinioStorage(api objectAPI, publicBase string, expiry time.Duration) *MinioStorage {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &MinioStorage{
		api:        api,
		publicBase: strings.TrimRight(publicBase, "/"),
		expiry:     expiry,
	}
}

func (s *MinioStorage) ensureBucket(ctx context.Context, bucket string) {
	log := logger.FromContext(ctx).With(zap.String("bucket", bucket))

	exists, err := s.api.bucketExists(ctx)
	if err != nil {
		log.Warn("storage: could not check bucket, deferring to per-operation handling", zap.Error(err))
		return
	}
	if exists {
		return
	}
	if err := s.api.makeBucket(ctx); err != nil {
		log.Error("storage: bucket missing and could not be created", zap.Error(err))
		return
	}
	log.Info("storage: created bucket")
}

// Ping reports an error when the bucket cannot be reached or does not exist.
func (s *MinioStorage) Ping(ctx context.Context) error {
	exists, err := s.api.bucketExists(ctx)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		return errors.New("bucket does not exist")
	}
	return nil
}

// Save uploads body under key with upsert semantics.
func (s *MinioStorage) Save(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	log := logger.FromContext(ctx).With(zap.String("key", key))

	if contentType == "" {
		contentType = defaultContentType
	}
	err := s.api.put(ctx, key, body, size, contentType)
	switch {
	case err == nil:
		metrics.RecordStorage("save", metrics.ResultOK)
		log.Debug("storage: saved object", zap.String("size", humanize.Bytes(uint64(max(size, 0)))))
		return key, nil
	case isTransient(err):
		metrics.RecordStorage("save", metrics.ResultDegraded)
		log.Warn("storage: network error on upload, object skipped", zap.Error(err))
		return key, nil
	default:
		metrics.RecordStorage("save", metrics.ResultError)
		log.Error("storage: upload failed", zap.Error(err))
		return "", fmt.Errorf("put object %q: %w", key, err)
	}
}

// Exists lists objects under key as a prefix and looks for an exact match.
func (s *MinioStorage) Exists(ctx context.Context, key string) bool {
	_, ok := s.stat(ctx, key)
	return ok
}

// Size returns the stored size of key.
func (s *MinioStorage) Size(ctx context.Context, key string) (int64, bool) {
	return s.stat(ctx, key)
}

func (s *MinioStorage) stat(ctx context.Context, key string) (int64, bool) {
	if !validKey(key) {
		return 0, false
	}
	entries, err := s.api.list(ctx, key, 100)
	if err != nil {
		metrics.RecordStorage("list", metrics.ResultError)
		logger.FromContext(ctx).Debug("storage: list failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	metrics.RecordStorage("list", metrics.ResultOK)
	for _, e := range entries {
		if e.Key == key {
			return e.Size, true
		}
	}
	return 0, false
}

// URL returns a presigned GET URL rendering inline, or the public-pattern URL
// if signing fails.
func (s *MinioStorage) URL(ctx context.Context, key string, expires time.Duration) string {
	if key == "" {
		return ""
	}
	if expires <= 0 {
		expires = s.expiry
	}
	if expires > maxURLExpiry {
		expires = maxURLExpiry
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("inline; filename=%q", Filename(key)))

	signed, err := s.api.presign(ctx, key, expires, params)
	if err == nil && signed != "" {
		metrics.RecordStorage("sign", metrics.ResultOK)
		return signed
	}

	metrics.RecordStorage("sign", metrics.ResultDegraded)
	logger.FromContext(ctx).Warn("storage: could not sign URL, using public URL fallback",
		zap.String("key", key), zap.Error(err))
	return s.publicURL(key)
}

func (s *MinioStorage) publicURL(key string) string {
	return s.publicBase + "/" + (&url.URL{Path: key}).EscapedPath() + "?download=1"
}

// Delete removes key. Failures are logged and reported as false.
func (s *MinioStorage) Delete(ctx context.Context, key string) bool {
	if !validKey(key) {
		return false
	}
	log := logger.FromContext(ctx).With(zap.String("key", key))

	if err := s.api.remove(ctx, []string{key}); err != nil {
		metrics.RecordStorage("delete", metrics.ResultError)
		if isTransient(err) {
			log.Warn("storage: network error deleting object", zap.Error(err))
		} else {
			log.Error("storage: delete failed", zap.Error(err))
		}
		return false
	}
	metrics.RecordStorage("delete", metrics.ResultOK)
	return true
}

// Open downloads the whole object into memory and returns a seekable reader.
func (s *MinioStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	data, err := s.api.get(ctx, key)
	if err != nil {
		metrics.RecordStorage("open", metrics.ResultError)
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	metrics.RecordStorage("open", metrics.ResultOK)
	return NewBuffer(data), nil
}

// isTransient reports whether err is a connectivity problem rather than a
// definite answer from the store.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// minioAPI adapts *minio.Client to objectAPI for a single bucket.
type minioAPI struct {
	client *minio.Client
	bucket string
}

func (m *minioAPI) bucketExists(ctx context.Context) (bool, error) {
	return m.client.BucketExists(ctx, m.bucket)
}

func (m *minioAPI) makeBucket(ctx context.Context) error {
	return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
}

func (m *minioAPI) put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (m *minioAPI) list(ctx context.Context, prefix string, limit int) ([]objectEntry, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []objectEntry
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   limit,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, objectEntry{Key: obj.Key, Size: obj.Size})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *minioAPI) presign(ctx context.Context, key string, expires time.Duration, params url.Values) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, expires, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (m *minioAPI) remove(ctx context.Context, keys []string) error {
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)

	var errs []error
	for rerr := range m.client.RemoveObjects(ctx, m.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove %q: %w", rerr.ObjectName, rerr.Err))
	}
	return errors.Join(errs...)
}

func (m *minioAPI) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
