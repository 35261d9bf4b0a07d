package posting_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techspire01/ciadev/internal/cleanup"
	"github.com/techspire01/ciadev/internal/posting"
	"github.com/techspire01/ciadev/internal/storage/storagetest"
	"github.com/techspire01/ciadev/internal/tenant"
	"github.com/techspire01/ciadev/internal/testsupport"
)

func str(s string) *string { return &s }

func setup(t *testing.T) (*posting.Service, *testsupport.DB, *storagetest.Memory) {
	t.Helper()
	db := testsupport.NewDB()
	ctx := context.Background()
	require.NoError(t, db.Tenants().Create(ctx, &tenant.Tenant{ID: "ta", Name: "Alpha"}))
	require.NoError(t, db.Tenants().Create(ctx, &tenant.Tenant{ID: "tb", Name: "Beta"}))
	store := storagetest.NewMemory()
	return posting.NewService(db.Postings(), store, cleanup.New(store), time.Hour), db, store
}

func TestCreateRequiresTitle(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.Create(context.Background(), "ta", posting.KindJob, posting.Input{Title: str("  ")})

	assert.ErrorIs(t, err, posting.ErrValidation)
}

func TestPostingOwnership(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "ta", posting.KindJob, posting.Input{Title: str("Welder"), Location: str("Chennai")})
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	_, err = svc.GetOwned(ctx, "tb", posting.KindJob, p.ID)
	assert.ErrorIs(t, err, posting.ErrNotFound)
	_, err = svc.Update(ctx, "tb", posting.KindJob, p.ID, posting.Input{Title: str("Hijacked")})
	assert.ErrorIs(t, err, posting.ErrNotFound)
	_, err = svc.Toggle(ctx, "tb", posting.KindJob, p.ID)
	assert.ErrorIs(t, err, posting.ErrNotFound)
	_, err = svc.Delete(ctx, "tb", posting.KindJob, p.ID)
	assert.ErrorIs(t, err, posting.ErrNotFound)
	_, err = svc.SetImage(ctx, "tb", posting.KindJob, p.ID, "img.png", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, posting.ErrNotFound)

	_, err = svc.GetOwned(ctx, "ta", posting.KindInternship, p.ID)
	assert.ErrorIs(t, err, posting.ErrNotFound)

	own, err := svc.ListOwned(ctx, "tb", posting.KindJob)
	require.NoError(t, err)
	assert.Empty(t, own)
}

func TestUpdateAndToggle(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "ta", posting.KindInternship, posting.Input{Title: str("Intern"), Duration: str("3 months")})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "ta", posting.KindInternship, p.ID, posting.Input{Salary: str("Stipend")})
	require.NoError(t, err)
	assert.Equal(t, "Intern", updated.Title)
	assert.Equal(t, "3 months", updated.Duration)
	assert.Equal(t, "Stipend", updated.Salary)

	_, err = svc.Update(ctx, "ta", posting.KindInternship, p.ID, posting.Input{Title: str("")})
	assert.ErrorIs(t, err, posting.ErrValidation)

	toggled, err := svc.Toggle(ctx, "ta", posting.KindInternship, p.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	_, err = svc.GetActive(ctx, posting.KindInternship, p.ID)
	assert.ErrorIs(t, err, posting.ErrNotFound)
	active, err := svc.ListActive(ctx, posting.KindInternship, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestListActivePaginates(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	var ids []string
	for _, title := range []string{"one", "two", "three"} {
		p, err := svc.Create(ctx, "ta", posting.KindJob, posting.Input{Title: str(title)})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	page1, err := svc.ListActive(ctx, posting.KindJob, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, ids[2], page1[0].ID)

	page2, err := svc.ListActive(ctx, posting.KindJob, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, ids[0], page2[0].ID)

	all, err := svc.ListActive(ctx, posting.KindJob, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSetImageReplacesAndDeleteCleansUp(t *testing.T) {
	svc, db, store := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "ta", posting.KindJob, posting.Input{Title: str("Welder")})
	require.NoError(t, err)

	withImage, err := svc.SetImage(ctx, "ta", posting.KindJob, p.ID, "a.png", strings.NewReader("a"), 1)
	require.NoError(t, err)
	assert.Equal(t, "companies/ta/jobs/"+p.ID+"/a.png", withImage.ImageKey)
	assert.NotEmpty(t, withImage.ImageURL)

	_, err = svc.SetImage(ctx, "ta", posting.KindJob, p.ID, "b.webp", strings.NewReader("b"), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"companies/ta/jobs/" + p.ID + "/b.webp"}, store.Keys())

	_, err = svc.SetImage(ctx, "ta", posting.KindJob, p.ID, "c.pdf", strings.NewReader("c"), 1)
	assert.ErrorIs(t, err, posting.ErrValidation)

	res, err := svc.Delete(ctx, "ta", posting.KindJob, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"companies/ta/jobs/" + p.ID + "/b.webp"}, res.Removed)
	assert.Empty(t, store.Keys())
	_, postings, _ := db.Counts()
	assert.Zero(t, postings)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]posting.Kind{
		"job": posting.KindJob, "Jobs": posting.KindJob,
		"internship": posting.KindInternship, "internships": posting.KindInternship,
	} {
		got, err := posting.ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := posting.ParseKind("gig")
	assert.ErrorIs(t, err, posting.ErrUnknownKind)

	assert.Equal(t, "jobs", posting.KindJob.Folder())
	assert.Equal(t, "internships", posting.KindInternship.Folder())
}
