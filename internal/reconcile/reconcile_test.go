package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/metrics"
	"github.com/techspire01/ciadev/internal/reconcile"
	"github.com/techspire01/ciadev/internal/storage/storagetest"
)

type staticSource struct {
	refs []reconcile.Ref
	err  error
}

func (s staticSource) BlobRefs(context.Context) ([]reconcile.Ref, error) { return s.refs, s.err }

func TestSweepReportsDanglingRefs(t *testing.T) {
	store := storagetest.NewMemory()
	store.Put("companies/t/applications/a/r.pdf", []byte("r"))
	src := staticSource{refs: []reconcile.Ref{
		{Table: "applications", ID: "a", Column: "resume_key", Key: "companies/t/applications/a/r.pdf"},
		{Table: "applications", ID: "a", Column: "attachment_key", Key: "companies/t/applications/a/x.zip"},
		{Table: "tenants", ID: "t", Column: "logo_key", Key: ""},
	}}
	core, logs := observer.New(zapcore.WarnLevel)
	ctx := logger.WithContext(context.Background(), zap.New(core))

	report, err := reconcile.New(src, store, 0).Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Dangling, 1)
	assert.Equal(t, "attachment_key", report.Dangling[0].Column)
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DanglingBlobRefs))

	// the sweep never mutates the store
	assert.Empty(t, store.Deletes())
}

func TestSweepSourceError(t *testing.T) {
	_, err := reconcile.New(staticSource{err: errors.New("db down")}, storagetest.NewMemory(), 0).
		Sweep(context.Background())
	assert.Error(t, err)
}

func TestRunDisabledReturnsImmediately(t *testing.T) {
	done := make(chan struct{})
	go func() {
		reconcile.New(staticSource{}, storagetest.NewMemory(), 0).Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return with a zero interval")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reconcile.New(staticSource{}, storagetest.NewMemory(), 10*time.Millisecond).Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

type sourceFunc func(ctx context.Context) ([]reconcile.Ref, error)

func (f sourceFunc) BlobRefs(ctx context.Context) ([]reconcile.Ref, error) { return f(ctx) }

func TestSweepKeepsGaugeDuringStoreOutage(t *testing.T) {
	store := storagetest.NewMemory()
	refs := []reconcile.Ref{
		{Table: "applications", ID: "a", Column: "resume_key", Key: "companies/t/applications/a/r.pdf"},
		{Table: "postings", ID: "p", Column: "image_key", Key: "companies/t/jobs/p/flyer.png"},
	}
	store.Put(refs[0].Key, []byte("r"))

	_, err := reconcile.New(staticSource{refs: refs}, store, 0).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.DanglingBlobRefs))

	// the store drops out after the sweep has started
	flaky := sourceFunc(func(context.Context) ([]reconcile.Ref, error) {
		store.Unreachable = true
		return refs, nil
	})
	core, logs := observer.New(zapcore.WarnLevel)
	ctx := logger.WithContext(context.Background(), zap.New(core))

	_, err = reconcile.New(flaky, store, 0).Sweep(ctx)

	assert.ErrorIs(t, err, storagetest.ErrUnavailable)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DanglingBlobRefs))
	assert.Equal(t, 0, logs.Len())
}

func TestSweepRefusesUnreachableStore(t *testing.T) {
	store := storagetest.NewMemory()
	store.Unreachable = true
	listed := false
	src := sourceFunc(func(context.Context) ([]reconcile.Ref, error) {
		listed = true
		return nil, nil
	})

	_, err := reconcile.New(src, store, 0).Sweep(context.Background())

	assert.ErrorIs(t, err, storagetest.ErrUnavailable)
	assert.False(t, listed)
}
