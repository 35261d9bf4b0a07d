// Package cleanup deletes blobs whose owning rows or fields are gone.
//
// Removal is best effort. The database change has already been committed when
// Remove runs, so a failed delete leaves an orphaned object behind; it is
// logged and counted, never returned to the caller.
package cleanup

import (
	"context"

	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/metrics"
	"github.com/techspire01/ciadev/internal/storage"
)

// Reasons used as metric labels.
const (
	ReasonFieldDelete       = "field_delete"
	ReasonApplicationDelete = "application_delete"
	ReasonPostingDelete     = "posting_delete"
	ReasonTenantDelete      = "tenant_delete"
	ReasonReplaced          = "replaced"
	ReasonAborted           = "aborted_upload"
)

// Result summarizes one Remove call.
type Result struct {
	Removed  []string
	Orphaned []string
}

// Cleaner removes blobs from a Storage.
type Cleaner struct {
	store storage.Storage
}

// New creates a Cleaner.
func New(store storage.Storage) *Cleaner {
	return &Cleaner{store: store}
}

// Remove deletes every distinct, non-empty key.
func (c *Cleaner) Remove(ctx context.Context, reason string, keys ...string) Result {
	var res Result
	seen := make(map[string]struct{}, len(keys))
	log := logger.FromContext(ctx)

	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if c.store.Delete(ctx, key) {
			res.Removed = append(res.Removed, key)
			metrics.BlobCleanup.WithLabelValues(reason, metrics.ResultOK).Inc()
			continue
		}
		res.Orphaned = append(res.Orphaned, key)
		metrics.BlobCleanup.WithLabelValues(reason, metrics.ResultError).Inc()
		log.Warn("cleanup: blob left orphaned", zap.String("reason", reason), zap.String("key", key))
	}

	if len(res.Removed) > 0 {
		log.Debug("cleanup: blobs removed", zap.String("reason", reason), zap.Strings("keys", res.Removed))
	}
	return res
}
