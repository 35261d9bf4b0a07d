package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/techspire01/ciadev/internal/auth"
)

// Store is the persistence the Service needs.
type Store interface {
	Upsert(ctx context.Context, email, role string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

// Service contains business logic for principal accounts.
type Service struct {
	repo Store
}

// NewService creates a new user Service.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Ensure returns the account for email, creating it when missing.
func (s *Service) Ensure(ctx context.Context, email, role string) (*User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email %q: %w", email, err)
	}
	switch role {
	case "":
		role = auth.RoleSupplier
	case auth.RoleSupplier, auth.RoleAdmin:
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
	return s.repo.Upsert(ctx, email, role)
}

// GetByID returns a user by their UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
