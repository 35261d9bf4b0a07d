package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/techspire01/ciadev/internal/logger"
)

var errConnRefused = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

type fakeAPI struct {
	mu      sync.Mutex
	objects map[string][]byte

	bucketErr  error
	putErr     error
	listErr    error
	presignErr error
	removeErr  error
	getErr     error

	madeBucket bool
	lastParams url.Values
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string][]byte{}}
}

func (f *fakeAPI) bucketExists(context.Context) (bool, error) { return f.madeBucket, f.bucketErr }

func (f *fakeAPI) makeBucket(context.Context) error {
	f.madeBucket = true
	return nil
}

func (f *fakeAPI) put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeAPI) list(_ context.Context, prefix string, _ int) ([]objectEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []objectEntry
	for k, v := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, objectEntry{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (f *fakeAPI) presign(_ context.Context, key string, _ time.Duration, params url.Values) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.lastParams = params
	return "https://s3.test/bucket/" + key + "?X-Amz-Signature=abc&" + params.Encode(), nil
}

func (f *fakeAPI) remove(_ context.Context, keys []string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.objects, k)
	}
	return nil
}

func (f *fakeAPI) get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	}
	return data, nil
}

func observedContext(level zapcore.Level) (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return logger.WithContext(context.Background(), zap.New(core)), logs
}

func TestMinioSaveAndOpen(t *testing.T) {
	api := newFakeAPI()
	s := newMinioStorage(api, "http://localhost:9000/ciadev", 0)
	ctx := context.Background()

	key, err := s.Save(ctx, "companies/t/applications/a/r.pdf", strings.NewReader("v1"), 2, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "companies/t/applications/a/r.pdf", key)

	// upsert: last write wins
	_, err = s.Save(ctx, key, strings.NewReader("version2"), 8, "")
	require.NoError(t, err)

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()

	_, seekable := rc.(io.ReadSeeker)
	assert.True(t, seekable)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "version2", string(data))

	size, ok := s.Size(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, int64(8), size)
}

func TestMinioSaveSwallowsNetworkFailure(t *testing.T) {
	api := newFakeAPI()
	api.putErr = &url.Error{Op: "Put", URL: "http://localhost:9000", Err: errConnRefused}
	s := newMinioStorage(api, "http://localhost:9000/ciadev", 0)
	ctx, logs := observedContext(zapcore.WarnLevel)

	key, err := s.Save(ctx, "companies/t/jobs/j/img.png", bytes.NewReader([]byte("x")), 1, "image/png")

	require.NoError(t, err)
	assert.Equal(t, "companies/t/jobs/j/img.png", key)
	assert.Equal(t, 1, logs.FilterMessageSnippet("network error on upload").Len())
	assert.False(t, s.Exists(context.Background(), key))
}

func TestMinioSaveReturnsServiceErrors(t *testing.T) {
	api := newFakeAPI()
	api.putErr = minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}
	s := newMinioStorage(api, "", 0)

	key, err := s.Save(context.Background(), "companies/t/x.pdf", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
	assert.Empty(t, key)

	_, err = s.Save(context.Background(), "", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMinioExistsExactMatch(t *testing.T) {
	api := newFakeAPI()
	api.objects["companies/t/applications/a/r.pdf.bak"] = []byte("x")
	s := newMinioStorage(api, "", 0)
	ctx := context.Background()

	assert.False(t, s.Exists(ctx, "companies/t/applications/a/r.pdf"))

	api.objects["companies/t/applications/a/r.pdf"] = []byte("x")
	assert.True(t, s.Exists(ctx, "companies/t/applications/a/r.pdf"))

	api.listErr = errConnRefused
	assert.False(t, s.Exists(ctx, "companies/t/applications/a/r.pdf"))
	_, ok := s.Size(ctx, "companies/t/applications/a/r.pdf")
	assert.False(t, ok)
}

func TestMinioURLSigned(t *testing.T) {
	api := newFakeAPI()
	s := newMinioStorage(api, "http://localhost:9000/ciadev", time.Minute)

	u := s.URL(context.Background(), "companies/t/applications/a/r.pdf", 0)

	assert.True(t, strings.HasPrefix(u, "https://s3.test/bucket/"))
	assert.Equal(t, `inline; filename="r.pdf"`, api.lastParams.Get("response-content-disposition"))
}

func TestMinioURLFallsBackToPublicPattern(t *testing.T) {
	api := newFakeAPI()
	api.presignErr = errors.New("signing unavailable")
	s := newMinioStorage(api, "http://localhost:9000/ciadev/", 0)
	ctx, logs := observedContext(zapcore.WarnLevel)

	u := s.URL(ctx, "companies/t/applications/a/my cv.pdf", time.Hour)

	assert.Equal(t, "http://localhost:9000/ciadev/companies/t/applications/a/my%20cv.pdf?download=1", u)
	assert.Equal(t, 1, logs.Len())
	assert.Empty(t, s.URL(ctx, "", time.Hour))
}

func TestMinioDeleteNeverPanicsOnFailure(t *testing.T) {
	api := newFakeAPI()
	api.objects["companies/t/a.pdf"] = []byte("x")
	s := newMinioStorage(api, "", 0)

	assert.True(t, s.Delete(context.Background(), "companies/t/a.pdf"))
	// deleting again is harmless
	assert.True(t, s.Delete(context.Background(), "companies/t/a.pdf"))

	api.removeErr = errConnRefused
	ctx, logs := observedContext(zapcore.WarnLevel)
	assert.False(t, s.Delete(ctx, "companies/t/b.pdf"))
	assert.Equal(t, 1, logs.FilterMessageSnippet("network error deleting").Len())

	api.removeErr = minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}
	assert.False(t, s.Delete(ctx, "companies/t/b.pdf"))
	assert.Equal(t, 1, logs.FilterMessageSnippet("delete failed").Len())

	assert.False(t, s.Delete(ctx, ""))
}

func TestMinioOpenFailure(t *testing.T) {
	s := newMinioStorage(newFakeAPI(), "", 0)
	_, err := s.Open(context.Background(), "companies/t/missing.pdf")
	assert.Error(t, err)
}

func TestEnsureBucket(t *testing.T) {
	api := newFakeAPI()
	s := newMinioStorage(api, "", 0)
	s.ensureBucket(context.Background(), "ciadev")
	assert.True(t, api.madeBucket)

	failing := newFakeAPI()
	failing.bucketErr = errConnRefused
	s = newMinioStorage(failing, "", 0)
	ctx, logs := observedContext(zapcore.WarnLevel)
	s.ensureBucket(ctx, "ciadev")
	assert.False(t, failing.madeBucket)
	assert.Equal(t, 1, logs.Len())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(errConnRefused))
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.True(t, isTransient(minio.ErrorResponse{StatusCode: http.StatusBadGateway}))
	assert.False(t, isTransient(minio.ErrorResponse{StatusCode: http.StatusForbidden}))
	assert.False(t, isTransient(errors.New("boom")))
	assert.False(t, isTransient(nil))
}

func TestMinioPing(t *testing.T) {
	api := newFakeAPI()
	s := newMinioStorage(api, "", 0)
	assert.Error(t, s.Ping(context.Background()))

	api.madeBucket = true
	assert.NoError(t, s.Ping(context.Background()))

	api.bucketErr = errConnRefused
	assert.Error(t, s.Ping(context.Background()))
}
