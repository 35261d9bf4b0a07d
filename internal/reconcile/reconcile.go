// Package reconcile finds rows that reference blobs missing from the object
// store. Uploads that failed transiently are recorded as if they succeeded, so
// the database and the bucket can drift; the sweep reports the drift without
// touching either side.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/metrics"
	"github.com/techspire01/ciadev/internal/storage"
)

// Ref is one blob reference held by a row.
type Ref struct {
	Table  string `json:"table"`
	ID     string `json:"id"`
	Column string `json:"column"`
	Key    string `json:"key"`
}

// Source lists every non-empty blob reference.
type Source interface {
	BlobRefs(ctx context.Context) ([]Ref, error)
}

// Pinger is implemented by stores that can tell an outage apart from a
// missing object.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Report is the outcome of one sweep.
type Report struct {
	Checked  int           `json:"checked"`
	Dangling []Ref         `json:"dangling"`
	Took     time.Duration `json:"took"`
}

// Sweeper checks blob references against the store.
type Sweeper struct {
	src      Source
	store    storage.Storage
	interval time.Duration
}

// New creates a Sweeper. An interval of zero or less disables Run.
func New(src Source, store storage.Storage, interval time.Duration) *Sweeper {
	return &Sweeper{src: src, store: store, interval: interval}
}

// Sweep checks every reference once.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	if err := s.ping(ctx); err != nil {
		return Report{}, err
	}
	refs, err := s.src.BlobRefs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list blob refs: %w", err)
	}

	var report Report
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if ref.Key == "" {
			continue
		}
		report.Checked++
		if s.store.Exists(ctx, ref.Key) {
			continue
		}
		report.Dangling = append(report.Dangling, ref)
	}
	report.Took = time.Since(start)

	// Exists reads an outage as "missing"; a count taken while the store was
	// down is not published.
	if len(report.Dangling) > 0 {
		if err := s.ping(ctx); err != nil {
			return report, err
		}
	}
	for _, ref := range report.Dangling {
		log.Warn("reconcile: row references a missing blob",
			zap.String("table", ref.Table),
			zap.String("id", ref.ID),
			zap.String("column", ref.Column),
			zap.String("key", ref.Key))
	}

	metrics.DanglingBlobRefs.Set(float64(len(report.Dangling)))
	log.Info("reconcile: sweep finished",
		zap.Int("checked", report.Checked),
		zap.Int("dangling", len(report.Dangling)),
		zap.Duration("took", report.Took))
	return report, nil
}

func (s *Sweeper) ping(ctx context.Context) error {
	p, ok := s.store.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("object store unreachable: %w", err)
	}
	return nil
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				logger.FromContext(ctx).Error("reconcile: sweep failed", zap.Error(err))
			}
		}
	}
}
