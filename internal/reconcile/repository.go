package reconcile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads blob references from PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// BlobRefs returns every non-empty blob key column across the schema.
func (r *Repository) BlobRefs(ctx context.Context) ([]Ref, error) {
	rows, err := r.db.Query(ctx,
		`SELECT 'tenants', id::text, 'logo_key', logo_key FROM tenants WHERE logo_key <> ''
		 UNION ALL
		 SELECT 'postings', id::text, 'image_key', image_key FROM postings WHERE image_key <> ''
		 UNION ALL
		 SELECT 'applications', id::text, 'resume_key', resume_key FROM applications WHERE resume_key <> ''
		 UNION ALL
		 SELECT 'applications', id::text, 'attachment_key', attachment_key FROM applications WHERE attachment_key <> ''`)
	if err != nil {
		return nil, fmt.Errorf("query blob refs: %w", err)
	}
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Ref, error) {
		var ref Ref
		err := row.Scan(&ref.Table, &ref.ID, &ref.Column, &ref.Key)
		return ref, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan blob refs: %w", err)
	}
	return refs, nil
}
