// Package tenant resolves the company a principal controls and manages the
// company record with its logo.
package tenant

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a tenant does not exist.
	ErrNotFound = errors.New("tenant not found")
	// ErrAccessDenied is returned when no tenant matches the principal.
	ErrAccessDenied = errors.New("no tenant linked to principal")
	// ErrIntegrity is returned when more than one tenant matches a principal's email.
	ErrIntegrity = errors.New("principal email matches more than one tenant")
	// ErrConflict is returned when the name or principal is already taken.
	ErrConflict = errors.New("tenant already exists")
	// ErrValidation is returned for bad input.
	ErrValidation = errors.New("invalid tenant input")
)

// Tenant is a supplier company. PrincipalID is nil until an account is linked.
type Tenant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PrincipalID *string   `json:"principalId,omitempty"`
	LogoKey     string    `json:"-"`
	LogoURL     string    `json:"logoUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type contextKey struct{}

// WithTenant returns a copy of ctx carrying t.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns the tenant resolved for the current request.
func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(contextKey{}).(*Tenant)
	return t, ok && t != nil
}
