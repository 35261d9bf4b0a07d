package tenant

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTx captures the statements a transaction runs.
type recordingTx struct {
	pgx.Tx
	missing   bool
	keys      []string
	stmts     []string
	committed bool
}

type scanRow struct{ err error }

func (r scanRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = "t1"
	return nil
}

type keyRows struct {
	pgx.Rows
	keys []string
	pos  int
}

func (r *keyRows) Next() bool {
	r.pos++
	return r.pos <= len(r.keys)
}

func (r *keyRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.keys[r.pos-1]
	return nil
}

func (r *keyRows) Close()     {}
func (r *keyRows) Err() error { return nil }

func (tx *recordingTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	tx.stmts = append(tx.stmts, sql)
	if tx.missing {
		return scanRow{err: pgx.ErrNoRows}
	}
	return scanRow{}
}

func (tx *recordingTx) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	tx.stmts = append(tx.stmts, sql)
	return &keyRows{keys: tx.keys}, nil
}

func (tx *recordingTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	tx.stmts = append(tx.stmts, sql)
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (tx *recordingTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *recordingTx) Rollback(context.Context) error { return nil }

type txPool struct {
	querier
	tx *recordingTx
}

func (p txPool) Begin(context.Context) (pgx.Tx, error) { return p.tx, nil }

func TestDeleteLocksTenantBeforeCollectingKeys(t *testing.T) {
	tx := &recordingTx{keys: []string{"companies/t1/suppliers/logo.png", "companies/t1/applications/a/r.pdf"}}
	repo := &Repository{db: txPool{tx: tx}}

	keys, err := repo.Delete(context.Background(), "t1")

	require.NoError(t, err)
	assert.Equal(t, tx.keys, keys)
	require.Len(t, tx.stmts, 3)
	assert.Contains(t, tx.stmts[0], "FOR UPDATE")
	assert.Contains(t, tx.stmts[1], "UNION ALL")
	assert.True(t, strings.HasPrefix(tx.stmts[2], "DELETE FROM tenants"))
	assert.True(t, tx.committed)
}

func TestDeleteMissingTenant(t *testing.T) {
	tx := &recordingTx{missing: true}
	repo := &Repository{db: txPool{tx: tx}}

	_, err := repo.Delete(context.Background(), "ghost")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, tx.stmts, 1)
	assert.False(t, tx.committed)
}
