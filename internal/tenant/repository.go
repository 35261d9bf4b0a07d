package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/techspire01/ciadev/internal/db"
)

const tenantColumns = `id, name, email, principal_id, logo_key, created_at, updated_at`

// querier is the part of *pgxpool.Pool the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository handles all tenant database operations.
type Repository struct {
	db querier
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	t := &Tenant{}
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.PrincipalID, &t.LogoKey, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// Create inserts a new tenant.
func (r *Repository) Create(ctx context.Context, t *Tenant) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO tenants (id, name, email, principal_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Email, t.PrincipalID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// Get fetches a tenant by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Tenant, error) {
	t, err := scanTenant(r.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, err
}

// GetByPrincipal fetches the tenant linked to principalID.
func (r *Repository) GetByPrincipal(ctx context.Context, principalID string) (*Tenant, error) {
	t, err := scanTenant(r.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE principal_id = $1`, principalID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get tenant by principal: %w", err)
	}
	return t, err
}

// FindByEmail returns up to limit tenants whose email matches case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string, limit int) ([]*Tenant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants
		 WHERE LOWER(email) = LOWER($1)
		 ORDER BY created_at
		 LIMIT $2`,
		email, limit)
	if err != nil {
		return nil, fmt.Errorf("find tenants by email: %w", err)
	}
	defer rows.Close()

	var out []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LinkPrincipal attaches principalID to the tenant.
func (r *Repository) LinkPrincipal(ctx context.Context, id, principalID string) (*Tenant, error) {
	t, err := scanTenant(r.db.QueryRow(ctx,
		`UPDATE tenants SET principal_id = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+tenantColumns,
		id, principalID))
	if db.IsUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("link principal: %w", err)
	}
	return t, err
}

// SetLogo stores the new logo key and returns the previous one.
func (r *Repository) SetLogo(ctx context.Context, id, key string) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prev string
	err = tx.QueryRow(ctx, `SELECT logo_key FROM tenants WHERE id = $1 FOR UPDATE`, id).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock tenant: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE tenants SET logo_key = $2, updated_at = NOW() WHERE id = $1`, id, key); err != nil {
		return "", fmt.Errorf("set logo: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return prev, nil
}

// Delete removes the tenant and everything under it, returning every blob key
// that was referenced by the deleted rows.
func (r *Repository) Delete(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The row lock blocks new postings and applications (their foreign key
	// checks take a key-share lock on the tenant) until the delete commits.
	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM tenants WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock tenant: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT logo_key FROM tenants WHERE id = $1
		 UNION ALL
		 SELECT image_key FROM postings WHERE tenant_id = $1
		 UNION ALL
		 SELECT resume_key FROM applications WHERE tenant_id = $1
		 UNION ALL
		 SELECT attachment_key FROM applications WHERE tenant_id = $1`,
		id)
	if err != nil {
		return nil, fmt.Errorf("collect tenant blobs: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect tenant blobs: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return keys, nil
}
