package posting

import (
	"context"
	"fmt"
	"io"
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
	Create(ctx context.Context, p *Posting) error
	GetOwned(ctx context.Context, tenantID string, kind Kind, id string) (*Posting, error)
	GetActive(ctx context.Context, kind Kind, id string) (*Posting, error)
	ListOwned(ctx context.Context, tenantID string, kind Kind) ([]*Posting, error)
	ListActive(ctx context.Context, kind Kind, limit, offset int) ([]*Posting, error)
	Update(ctx context.Context, p *Posting) error
	Toggle(ctx context.Context, tenantID string, kind Kind, id string) (*Posting, error)
	SetImage(ctx context.Context, tenantID string, kind Kind, id, key string) (string, error)
	Delete(ctx context.Context, tenantID string, kind Kind, id string) ([]string, error)
}

// BlobRemover deletes blobs that are no longer referenced.
type BlobRemover interface {
	Remove(ctx context.Context, reason string, keys ...string) cleanup.Result
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// Service contains business logic for postings.
type Service struct {
	repo      Store
	store     storage.Storage
	cleaner   BlobRemover
	urlExpiry time.Duration
}

// NewService creates a new posting Service.
func NewService(repo Store, store storage.Storage, cleaner BlobRemover, urlExpiry time.Duration) *Service {
	return &Service{repo: repo, store: store, cleaner: cleaner, urlExpiry: urlExpiry}
}

// Create publishes a new posting for tenantID.
func (s *Service) Create(ctx context.Context, tenantID string, kind Kind, in Input) (*Posting, error) {
	p := &Posting{ID: uuid.NewString(), TenantID: tenantID, Kind: kind, IsActive: true}
	in.applyTo(p)
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("posting created",
		zap.String("posting_id", p.ID), zap.String("kind", string(kind)))
	return p, nil
}

// GetOwned returns a posting of tenantID. Foreign postings read as ErrNotFound.
func (s *Service) GetOwned(ctx context.Context, tenantID string, kind Kind, id string) (*Posting, error) {
	p, err := s.repo.GetOwned(ctx, tenantID, kind, id)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, p)
	return p, nil
}

// GetActive returns a published posting.
func (s *Service) GetActive(ctx context.Context, kind Kind, id string) (*Posting, error) {
	p, err := s.repo.GetActive(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, p)
	return p, nil
}

// ListOwned returns every posting of tenantID.
func (s *Service) ListOwned(ctx context.Context, tenantID string, kind Kind) ([]*Posting, error) {
	list, err := s.repo.ListOwned(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		s.decorate(ctx, p)
	}
	return list, nil
}

// ListActive returns a page of published postings.
func (s *Service) ListActive(ctx context.Context, kind Kind, page, size int) ([]*Posting, error) {
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)
	page = max(page, 1)

	list, err := s.repo.ListActive(ctx, kind, size, (page-1)*size)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		s.decorate(ctx, p)
	}
	return list, nil
}

// Update applies in to a posting of tenantID.
func (s *Service) Update(ctx context.Context, tenantID string, kind Kind, id string, in Input) (*Posting, error) {
	p, err := s.repo.GetOwned(ctx, tenantID, kind, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(p)
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.decorate(ctx, p)
	return p, nil
}

// Toggle flips the published state of a posting of tenantID.
func (s *Service) Toggle(ctx context.Context, tenantID string, kind Kind, id string) (*Posting, error) {
	p, err := s.repo.Toggle(ctx, tenantID, kind, id)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, p)
	return p, nil
}

// SetImage uploads a new image for a posting and removes the previous one.
func (s *Service) SetImage(ctx context.Context, tenantID string, kind Kind, id, filename string, body io.Reader, size int64) (*Posting, error) {
	ext := strings.ToLower(path.Ext(storage.CleanFilename(filename)))
	if !imageExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported image type %q", ErrValidation, ext)
	}
	// ownership first, so a foreign id never reaches the store
	if _, err := s.repo.GetOwned(ctx, tenantID, kind, id); err != nil {
		return nil, err
	}

	key := storage.EntityKey(tenantID, kind.Folder(), id, filename)
	key, err := s.store.Save(ctx, key, body, size, storage.ContentType(filename, nil))
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	prev, err := s.repo.SetImage(ctx, tenantID, kind, id, key)
	if err != nil {
		s.cleaner.Remove(ctx, cleanup.ReasonAborted, key)
		return nil, err
	}
	if prev != key {
		s.cleaner.Remove(ctx, cleanup.ReasonReplaced, prev)
	}
	return s.GetOwned(ctx, tenantID, kind, id)
}

// Delete removes a posting of tenantID with its applications, then their blobs.
func (s *Service) Delete(ctx context.Context, tenantID string, kind Kind, id string) (cleanup.Result, error) {
	keys, err := s.repo.Delete(ctx, tenantID, kind, id)
	if err != nil {
		return cleanup.Result{}, err
	}
	res := s.cleaner.Remove(ctx, cleanup.ReasonPostingDelete, keys...)
	logger.FromContext(ctx).Info("posting deleted",
		zap.String("posting_id", id),
		zap.Int("blobs_removed", len(res.Removed)),
		zap.Int("blobs_orphaned", len(res.Orphaned)))
	return res, nil
}

func (s *Service) decorate(ctx context.Context, p *Posting) {
	if p.ImageKey != "" {
		p.ImageURL = s.store.URL(ctx, p.ImageKey, s.urlExpiry)
	}
}
