package tenant

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/cleanup"
	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/storage"
)

// Store is the persistence the Service needs.
type Store interface {
	Lookup
	Create(ctx context.Context, t *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
	LinkPrincipal(ctx context.Context, id, principalID string) (*Tenant, error)
	SetLogo(ctx context.Context, id, key string) (string, error)
	Delete(ctx context.Context, id string) ([]string, error)
}

// BlobRemover deletes blobs that are no longer referenced.
type BlobRemover interface {
	Remove(ctx context.Context, reason string, keys ...string) cleanup.Result
}

var logoExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true,
}

// Service contains business logic for tenants.
type Service struct {
	repo      Store
	store     storage.Storage
	cleaner   BlobRemover
	urlExpiry time.Duration
}

// NewService creates a new tenant Service.
func NewService(repo Store, store storage.Storage, cleaner BlobRemover, urlExpiry time.Duration) *Service {
	return &Service{repo: repo, store: store, cleaner: cleaner, urlExpiry: urlExpiry}
}

// CreateInput holds the fields for a new tenant.
type CreateInput struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	PrincipalID *string `json:"principalId,omitempty"`
}

// Create registers a tenant. Without a principal it is reachable only through
// the email fallback until Link is called.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Tenant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fmt.Errorf("%w: invalid email", ErrValidation)
		}
	}
	if in.PrincipalID != nil && *in.PrincipalID == "" {
		in.PrincipalID = nil
	}

	t := &Tenant{
		ID:          uuid.NewString(),
		Name:        name,
		Email:       email,
		PrincipalID: in.PrincipalID,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("tenant created", zap.String("tenant_id", t.ID))
	return t, nil
}

// Link attaches a principal to an existing tenant.
func (s *Service) Link(ctx context.Context, id, principalID string) (*Tenant, error) {
	if strings.TrimSpace(principalID) == "" {
		return nil, fmt.Errorf("%w: principal id is required", ErrValidation)
	}
	t, err := s.repo.LinkPrincipal(ctx, id, principalID)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("principal linked to tenant",
		zap.String("tenant_id", id), zap.String("principal_id", principalID))
	return t, nil
}

// SetLogo uploads a new logo for t and removes the previous one.
func (s *Service) SetLogo(ctx context.Context, t *Tenant, filename string, body io.Reader, size int64) (*Tenant, error) {
	ext := strings.ToLower(path.Ext(storage.CleanFilename(filename)))
	if !logoExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported logo type %q", ErrValidation, ext)
	}

	key, err := s.store.Save(ctx, storage.LogoKey(t.ID, filename), body, size, storage.ContentType(filename, nil))
	if err != nil {
		return nil, fmt.Errorf("upload logo: %w", err)
	}
	prev, err := s.repo.SetLogo(ctx, t.ID, key)
	if err != nil {
		s.cleaner.Remove(ctx, cleanup.ReasonAborted, key)
		return nil, err
	}
	if prev != key {
		s.cleaner.Remove(ctx, cleanup.ReasonReplaced, prev)
	}

	updated := *t
	updated.LogoKey = key
	s.decorate(ctx, &updated)
	return &updated, nil
}

// Delete removes the tenant, its postings and applications, then their blobs.
func (s *Service) Delete(ctx context.Context, id string) (cleanup.Result, error) {
	keys, err := s.repo.Delete(ctx, id)
	if err != nil {
		return cleanup.Result{}, err
	}
	res := s.cleaner.Remove(ctx, cleanup.ReasonTenantDelete, keys...)
	logger.FromContext(ctx).Info("tenant deleted",
		zap.String("tenant_id", id),
		zap.Int("blobs_removed", len(res.Removed)),
		zap.Int("blobs_orphaned", len(res.Orphaned)))
	return res, nil
}

func (s *Service) decorate(ctx context.Context, t *Tenant) {
	if t.LogoKey != "" {
		t.LogoURL = s.store.URL(ctx, t.LogoKey, s.urlExpiry)
	}
}
