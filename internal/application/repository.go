package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/techspire01/ciadev/internal/posting"
)

const applicationColumns = `id, posting_id, tenant_id, kind, first_name, last_name, email, phone,
	cover_letter, resume_key, attachment_key, applied_at`

// Repository handles all application database operations. Reads and writes
// made on behalf of a tenant are filtered by tenant_id in SQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func scanApplication(row pgx.Row) (*Application, error) {
	a := &Application{}
	err := row.Scan(&a.ID, &a.PostingID, &a.TenantID, &a.Kind, &a.FirstName, &a.LastName, &a.Email,
		&a.Phone, &a.CoverLetter, &a.Files.Resume, &a.Files.Attachment, &a.AppliedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// Create inserts a new application.
func (r *Repository) Create(ctx context.Context, a *Application) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO applications (id, posting_id, tenant_id, kind, first_name, last_name, email,
			phone, cover_letter, resume_key, attachment_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING applied_at`,
		a.ID, a.PostingID, a.TenantID, a.Kind, a.FirstName, a.LastName, a.Email, a.Phone,
		a.CoverLetter, a.Files.Resume, a.Files.Attachment,
	).Scan(&a.AppliedAt)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// GetOwned fetches an application of tenantID.
func (r *Repository) GetOwned(ctx context.Context, tenantID string, kind posting.Kind, id string) (*Application, error) {
	a, err := scanApplication(r.db.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 AND tenant_id = $2 AND kind = $3`,
		id, tenantID, kind))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return a, err
}

// ListByPosting returns the applications to a posting of tenantID, newest first.
func (r *Repository) ListByPosting(ctx context.Context, tenantID, postingID string) ([]*Application, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications
		 WHERE posting_id = $1 AND tenant_id = $2
		 ORDER BY applied_at DESC`,
		postingID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ClearFile empties one file slot and returns the key it held. The row is
// locked for the duration so concurrent clears of the two slots cannot
// overwrite each other.
func (r *Repository) ClearFile(ctx context.Context, tenantID string, kind posting.Kind, id string, ft FileType) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	column := ft.Column()
	var key string
	err = tx.QueryRow(ctx,
		`SELECT `+column+` FROM applications WHERE id = $1 AND tenant_id = $2 AND kind = $3 FOR UPDATE`,
		id, tenantID, kind).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock application: %w", err)
	}
	if key == "" {
		return "", ErrFileMissing
	}

	if _, err := tx.Exec(ctx, `UPDATE applications SET `+column+` = '' WHERE id = $1`, id); err != nil {
		return "", fmt.Errorf("clear %s: %w", column, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return key, nil
}

// Delete removes an application of tenantID and returns the keys it referenced.
func (r *Repository) Delete(ctx context.Context, tenantID string, kind posting.Kind, id string) ([]string, error) {
	var files Files
	err := r.db.QueryRow(ctx,
		`DELETE FROM applications WHERE id = $1 AND tenant_id = $2 AND kind = $3
		 RETURNING resume_key, attachment_key`,
		id, tenantID, kind,
	).Scan(&files.Resume, &files.Attachment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete application: %w", err)
	}
	return files.Keys(), nil
}
