package tenant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/techspire01/ciadev/internal/auth"
	"github.com/techspire01/ciadev/internal/logger"
)

type fakeLookup struct {
	tenants []*Tenant
	err     error
	calls   []string
}

func (f *fakeLookup) GetByPrincipal(_ context.Context, principalID string) (*Tenant, error) {
	f.calls = append(f.calls, "principal")
	if f.err != nil {
		return nil, f.err
	}
	for _, t := range f.tenants {
		if t.PrincipalID != nil && *t.PrincipalID == principalID {
			return t, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeLookup) FindByEmail(_ context.Context, email string, limit int) ([]*Tenant, error) {
	f.calls = append(f.calls, "email")
	var out []*Tenant
	for _, t := range f.tenants {
		if strings.EqualFold(t.Email, email) && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func ptr(s string) *string { return &s }

func observed() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.WithContext(context.Background(), zap.New(core)), logs
}

func TestResolveByLinkedPrincipal(t *testing.T) {
	lookup := &fakeLookup{tenants: []*Tenant{
		{ID: "t1", Email: "owner@x.com", PrincipalID: ptr("p1")},
	}}
	ctx, logs := observed()

	got, err := NewResolver(lookup).Resolve(ctx, auth.Principal{ID: "p1", Email: "other@x.com"})

	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, []string{"principal"}, lookup.calls)
	assert.Zero(t, logs.Len())
}

func TestResolveEmailFallbackLogsOnce(t *testing.T) {
	lookup := &fakeLookup{tenants: []*Tenant{
		{ID: "t1", Email: "T@X.com"},
	}}
	ctx, logs := observed()

	got, err := NewResolver(lookup).Resolve(ctx, auth.Principal{ID: "p9", Email: "t@x.com"})

	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 1)
	fields := warns[0].ContextMap()
	assert.Equal(t, "p9", fields["principal_id"])
	assert.Equal(t, "t@x.com", fields["email"])
}

func TestResolveDenied(t *testing.T) {
	lookup := &fakeLookup{tenants: []*Tenant{
		{ID: "t1", Email: "a@x.com", PrincipalID: ptr("p1")},
	}}
	r := NewResolver(lookup)

	_, err := r.Resolve(context.Background(), auth.Principal{ID: "p2", Email: "b@x.com"})
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = r.Resolve(context.Background(), auth.Principal{ID: "p2"})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestResolveAmbiguousEmail(t *testing.T) {
	lookup := &fakeLookup{tenants: []*Tenant{
		{ID: "t1", Email: "dup@x.com"},
		{ID: "t2", Email: "DUP@x.com"},
	}}
	ctx, logs := observed()

	got, err := NewResolver(lookup).Resolve(ctx, auth.Principal{ID: "p1", Email: "dup@x.com"})

	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestResolveStoreFailure(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("connection reset")}

	_, err := NewResolver(lookup).Resolve(context.Background(), auth.Principal{ID: "p1", Email: "a@x.com"})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, []string{"principal"}, lookup.calls)
}

func TestTenantContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithTenant(context.Background(), &Tenant{ID: "t1"})
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "t1", got.ID)
}
