package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postingColumns = `id, tenant_id, kind, title, description, location, salary, duration,
	experience, requirements, responsibilities, is_active, image_key, created_at, updated_at`

// Repository handles all posting database operations. Every tenant-facing
// query is filtered by tenant_id in SQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func scanPosting(row pgx.Row) (*Posting, error) {
	p := &Posting{}
	err := row.Scan(&p.ID, &p.TenantID, &p.Kind, &p.Title, &p.Description, &p.Location, &p.Salary,
		&p.Duration, &p.Experience, &p.Requirements, &p.Responsibilities, &p.IsActive, &p.ImageKey,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func collect(rows pgx.Rows, err error) ([]*Posting, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a new posting.
func (r *Repository) Create(ctx context.Context, p *Posting) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO postings (id, tenant_id, kind, title, description, location, salary, duration,
			experience, requirements, responsibilities, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.Kind, p.Title, p.Description, p.Location, p.Salary, p.Duration,
		p.Experience, p.Requirements, p.Responsibilities, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert posting: %w", err)
	}
	return nil
}

// GetOwned fetches a posting of tenantID.
func (r *Repository) GetOwned(ctx context.Context, tenantID string, kind Kind, id string) (*Posting, error) {
	p, err := scanPosting(r.db.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE id = $1 AND tenant_id = $2 AND kind = $3`,
		id, tenantID, kind))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get posting: %w", err)
	}
	return p, err
}

// GetActive fetches a published posting.
func (r *Repository) GetActive(ctx context.Context, kind Kind, id string) (*Posting, error) {
	p, err := scanPosting(r.db.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE id = $1 AND kind = $2 AND is_active`,
		id, kind))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get active posting: %w", err)
	}
	return p, err
}

// ListOwned returns all postings of tenantID, newest first.
func (r *Repository) ListOwned(ctx context.Context, tenantID string, kind Kind) ([]*Posting, error) {
	out, err := collect(r.db.Query(ctx,
		`SELECT `+postingColumns+` FROM postings
		 WHERE tenant_id = $1 AND kind = $2
		 ORDER BY created_at DESC`,
		tenantID, kind))
	if err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	return out, nil
}

// ListActive returns a page of published postings, newest first.
func (r *Repository) ListActive(ctx context.Context, kind Kind, limit, offset int) ([]*Posting, error) {
	out, err := collect(r.db.Query(ctx,
		`SELECT `+postingColumns+` FROM postings
		 WHERE kind = $1 AND is_active
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		kind, limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list active postings: %w", err)
	}
	return out, nil
}

// Update writes the editable fields of p, scoped to p.TenantID.
func (r *Repository) Update(ctx context.Context, p *Posting) error {
	err := r.db.QueryRow(ctx,
		`UPDATE postings SET title = $4, description = $5, location = $6, salary = $7,
			duration = $8, experience = $9, requirements = $10, responsibilities = $11,
			is_active = $12, updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND kind = $3
		 RETURNING updated_at`,
		p.ID, p.TenantID, p.Kind, p.Title, p.Description, p.Location, p.Salary, p.Duration,
		p.Experience, p.Requirements, p.Responsibilities, p.IsActive,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update posting: %w", err)
	}
	return nil
}

// Toggle flips is_active and returns the updated posting.
func (r *Repository) Toggle(ctx context.Context, tenantID string, kind Kind, id string) (*Posting, error) {
	p, err := scanPosting(r.db.QueryRow(ctx,
		`UPDATE postings SET is_active = NOT is_active, updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND kind = $3
		 RETURNING `+postingColumns,
		id, tenantID, kind))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("toggle posting: %w", err)
	}
	return p, err
}

// SetImage stores the new image key and returns the previous one.
func (r *Repository) SetImage(ctx context.Context, tenantID string, kind Kind, id, key string) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prev string
	err = tx.QueryRow(ctx,
		`SELECT image_key FROM postings WHERE id = $1 AND tenant_id = $2 AND kind = $3 FOR UPDATE`,
		id, tenantID, kind).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock posting: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE postings SET image_key = $2, updated_at = NOW() WHERE id = $1`, id, key); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return prev, nil
}

// Delete removes the posting and its applications, returning every blob key
// they referenced.
func (r *Repository) Delete(ctx context.Context, tenantID string, kind Kind, id string) ([]string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var image string
	err = tx.QueryRow(ctx,
		`SELECT image_key FROM postings WHERE id = $1 AND tenant_id = $2 AND kind = $3 FOR UPDATE`,
		id, tenantID, kind).Scan(&image)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock posting: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT resume_key FROM applications WHERE posting_id = $1
		 UNION ALL
		 SELECT attachment_key FROM applications WHERE posting_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("collect application blobs: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect application blobs: %w", err)
	}

	// applications go with the posting through ON DELETE CASCADE
	if _, err := tx.Exec(ctx, `DELETE FROM postings WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete posting: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return append([]string{image}, keys...), nil
}
