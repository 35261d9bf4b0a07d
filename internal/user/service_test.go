package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techspire01/ciadev/internal/auth"
)

type memStore struct {
	byEmail map[string]*User
}

func (m *memStore) Upsert(_ context.Context, email, role string) (*User, error) {
	if u, ok := m.byEmail[email]; ok {
		u.Role = role
		return u, nil
	}
	u := &User{ID: "u-" + email, Email: email, Role: role, CreatedAt: time.Now()}
	m.byEmail[email] = u
	return u, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func TestEnsure(t *testing.T) {
	svc := NewService(&memStore{byEmail: map[string]*User{}})
	ctx := context.Background()

	u, err := svc.Ensure(ctx, "owner@x.com", "")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleSupplier, u.Role)

	again, err := svc.Ensure(ctx, "owner@x.com", auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, auth.RoleAdmin, again.Role)

	_, err = svc.Ensure(ctx, "not an email", "")
	assert.Error(t, err)
	_, err = svc.Ensure(ctx, "x@x.com", "root")
	assert.Error(t, err)

	_, err = svc.GetByID(ctx, "missing")
	assert.True(t, svc.IsNotFound(err))
}
