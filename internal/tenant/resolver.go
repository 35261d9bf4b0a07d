package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/auth"
	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/metrics"
)

// Lookup is the read side of the tenant store used for resolution.
type Lookup interface {
	GetByPrincipal(ctx context.Context, principalID string) (*Tenant, error)
	FindByEmail(ctx context.Context, email string, limit int) ([]*Tenant, error)
}

// Resolution paths, used as metric labels.
const (
	PathLink          = "link"
	PathEmailFallback = "email_fallback"
	PathDenied        = "denied"
	PathIntegrity     = "integrity"
)

// Resolver maps an authenticated principal to the tenant it controls.
type Resolver struct {
	lookup Lookup
}

// NewResolver creates a Resolver.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the tenant linked to p. Tenants created before accounts
// were linked are found by a case-insensitive email match; each such hit is
// logged so the remaining unlinked tenants can be tracked down.
func (r *Resolver) Resolve(ctx context.Context, p auth.Principal) (*Tenant, error) {
	log := logger.FromContext(ctx)

	if p.ID != "" {
		t, err := r.lookup.GetByPrincipal(ctx, p.ID)
		if err == nil {
			metrics.TenantResolutions.WithLabelValues(PathLink).Inc()
			return t, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("resolve tenant by principal: %w", err)
		}
	}

	email := strings.TrimSpace(p.Email)
	if email == "" {
		metrics.TenantResolutions.WithLabelValues(PathDenied).Inc()
		return nil, ErrAccessDenied
	}

	matches, err := r.lookup.FindByEmail(ctx, email, 2)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant by email: %w", err)
	}
	switch len(matches) {
	case 0:
		metrics.TenantResolutions.WithLabelValues(PathDenied).Inc()
		return nil, ErrAccessDenied
	case 1:
		metrics.TenantResolutions.WithLabelValues(PathEmailFallback).Inc()
		log.Warn("tenant resolved by email fallback, principal is not linked",
			zap.String("principal_id", p.ID),
			zap.String("email", email),
			zap.String("tenant_id", matches[0].ID))
		return matches[0], nil
	default:
		metrics.TenantResolutions.WithLabelValues(PathIntegrity).Inc()
		log.Error("principal email matches several tenants",
			zap.String("principal_id", p.ID),
			zap.String("email", email))
		return nil, ErrIntegrity
	}
}
