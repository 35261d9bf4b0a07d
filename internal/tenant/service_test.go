package tenant_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techspire01/ciadev/internal/application"
	"github.com/techspire01/ciadev/internal/cleanup"
	"github.com/techspire01/ciadev/internal/posting"
	"github.com/techspire01/ciadev/internal/storage/storagetest"
	"github.com/techspire01/ciadev/internal/tenant"
	"github.com/techspire01/ciadev/internal/testsupport"
)

func newService() (*tenant.Service, *testsupport.DB, *storagetest.Memory) {
	db := testsupport.NewDB()
	store := storagetest.NewMemory()
	return tenant.NewService(db.Tenants(), store, cleanup.New(store), time.Hour), db, store
}

func TestCreateAndLink(t *testing.T) {
	svc, db, _ := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant.CreateInput{Name: "  Alpha Supplies ", Email: "owner@alpha.example"})
	require.NoError(t, err)
	assert.Equal(t, "Alpha Supplies", created.Name)
	assert.Nil(t, created.PrincipalID)

	_, err = svc.Create(ctx, tenant.CreateInput{Name: "Alpha Supplies"})
	assert.ErrorIs(t, err, tenant.ErrConflict)

	_, err = svc.Create(ctx, tenant.CreateInput{Name: ""})
	assert.ErrorIs(t, err, tenant.ErrValidation)

	_, err = svc.Create(ctx, tenant.CreateInput{Name: "Gamma", Email: "not-an-email"})
	assert.ErrorIs(t, err, tenant.ErrValidation)

	linked, err := svc.Link(ctx, created.ID, "principal-1")
	require.NoError(t, err)
	require.NotNil(t, linked.PrincipalID)
	assert.Equal(t, "principal-1", *linked.PrincipalID)

	got, err := db.Tenants().GetByPrincipal(ctx, "principal-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	other, err := svc.Create(ctx, tenant.CreateInput{Name: "Beta"})
	require.NoError(t, err)
	_, err = svc.Link(ctx, other.ID, "principal-1")
	assert.ErrorIs(t, err, tenant.ErrConflict)

	_, err = svc.Link(ctx, "missing", "principal-2")
	assert.ErrorIs(t, err, tenant.ErrNotFound)

	_, err = svc.Link(ctx, other.ID, " ")
	assert.ErrorIs(t, err, tenant.ErrValidation)
}

func TestSetLogoReplacesPreviousBlob(t *testing.T) {
	svc, _, store := newService()
	ctx := context.Background()
	tn, err := svc.Create(ctx, tenant.CreateInput{Name: "Alpha"})
	require.NoError(t, err)

	first, err := svc.SetLogo(ctx, tn, "logo.png", strings.NewReader("png-1"), 5)
	require.NoError(t, err)
	assert.Equal(t, "companies/"+tn.ID+"/suppliers/logo.png", first.LogoKey)
	assert.NotEmpty(t, first.LogoURL)

	second, err := svc.SetLogo(ctx, first, "brand new.jpg", strings.NewReader("jpg"), 3)
	require.NoError(t, err)
	assert.Equal(t, "companies/"+tn.ID+"/suppliers/brand_new.jpg", second.LogoKey)

	assert.Equal(t, []string{second.LogoKey}, store.Keys())

	_, err = svc.SetLogo(ctx, second, "logo.exe", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, tenant.ErrValidation)
}

func TestDeleteCascadesToEveryBlob(t *testing.T) {
	svc, db, store := newService()
	ctx := context.Background()

	tn, err := svc.Create(ctx, tenant.CreateInput{Name: "Alpha"})
	require.NoError(t, err)
	keep, err := svc.Create(ctx, tenant.CreateInput{Name: "Beta"})
	require.NoError(t, err)
	_, err = svc.SetLogo(ctx, tn, "logo.png", strings.NewReader("png"), 3)
	require.NoError(t, err)

	postings := db.Postings()
	require.NoError(t, postings.Create(ctx, &posting.Posting{ID: "p1", TenantID: tn.ID, Kind: posting.KindJob, Title: "A", IsActive: true}))
	require.NoError(t, postings.Create(ctx, &posting.Posting{ID: "p2", TenantID: keep.ID, Kind: posting.KindJob, Title: "B", IsActive: true}))
	_, err = postings.SetImage(ctx, tn.ID, posting.KindJob, "p1", "companies/"+tn.ID+"/jobs/p1/img.png")
	require.NoError(t, err)
	store.Put("companies/"+tn.ID+"/jobs/p1/img.png", []byte("img"))

	apps := application.NewService(db.Applications(), postings, store, cleanup.New(store), time.Hour, 1<<20)
	_, err = apps.Submit(ctx, posting.KindJob, "p1", application.SubmitInput{
		FirstName: "A", Email: "a@b.com",
		Resume:     &application.Upload{Filename: "r.pdf", Body: strings.NewReader("r"), Size: 1},
		Attachment: &application.Upload{Filename: "x.txt", Body: strings.NewReader("x"), Size: 1},
	})
	require.NoError(t, err)
	kept, err := apps.Submit(ctx, posting.KindJob, "p2", application.SubmitInput{
		FirstName: "B", Email: "b@b.com",
		Resume: &application.Upload{Filename: "r.pdf", Body: strings.NewReader("r"), Size: 1},
	})
	require.NoError(t, err)

	res, err := svc.Delete(ctx, tn.ID)

	require.NoError(t, err)
	assert.Len(t, res.Removed, 4)
	assert.Empty(t, res.Orphaned)
	tenants, postingCount, appCount := db.Counts()
	assert.Equal(t, 1, tenants)
	assert.Equal(t, 1, postingCount)
	assert.Equal(t, 1, appCount)
	assert.Equal(t, []string{"companies/" + keep.ID + "/applications/" + kept.ID + "/r.pdf"}, store.Keys())

	_, err = svc.Delete(ctx, tn.ID)
	assert.ErrorIs(t, err, tenant.ErrNotFound)
}
