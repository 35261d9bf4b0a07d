package application

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/cleanup"
	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/posting"
	"github.com/techspire01/ciadev/internal/storage"
)

// Store is the persistence the Service needs.
type Store interface {
	Create(ctx context.Context, a *Application) error
	GetOwned(ctx context.Context, tenantID string, kind posting.Kind, id string) (*Application, error)
	ListByPosting(ctx context.Context, tenantID, postingID string) ([]*Application, error)
	ClearFile(ctx context.Context, tenantID string, kind posting.Kind, id string, ft FileType) (string, error)
	Delete(ctx context.Context, tenantID string, kind posting.Kind, id string) ([]string, error)
}

// PostingFinder looks up the posting an application belongs to.
type PostingFinder interface {
	GetActive(ctx context.Context, kind posting.Kind, id string) (*posting.Posting, error)
	GetOwned(ctx context.Context, tenantID string, kind posting.Kind, id string) (*posting.Posting, error)
}

// BlobRemover deletes blobs that are no longer referenced.
type BlobRemover interface {
	Remove(ctx context.Context, reason string, keys ...string) cleanup.Result
}

var (
	resumeExtensions = map[string]bool{".pdf": true, ".doc": true, ".docx": true}

	attachmentExtensions = map[string]bool{
		".pdf": true, ".doc": true, ".docx": true, ".txt": true, ".zip": true,
		".png": true, ".jpg": true, ".jpeg": true,
	}
)

// Upload is a file received from an applicant.
type Upload struct {
	Filename string
	Body     io.Reader
	Size     int64
}

// SubmitInput carries the applicant's fields.
type SubmitInput struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	CoverLetter string
	Resume      *Upload
	Attachment  *Upload
}

// Service contains business logic for applications.
type Service struct {
	repo          Store
	postings      PostingFinder
	store         storage.Storage
	cleaner       BlobRemover
	urlExpiry     time.Duration
	maxUploadSize int64
}

// NewService creates a new application Service.
func NewService(repo Store, postings PostingFinder, store storage.Storage, cleaner BlobRemover, urlExpiry time.Duration, maxUploadSize int64) *Service {
	return &Service{
		repo:          repo,
		postings:      postings,
		store:         store,
		cleaner:       cleaner,
		urlExpiry:     urlExpiry,
		maxUploadSize: maxUploadSize,
	}
}

// Submit stores an application to a published posting. The application
// inherits the posting's tenant.
func (s *Service) Submit(ctx context.Context, kind posting.Kind, postingID string, in SubmitInput) (*Application, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	p, err := s.postings.GetActive(ctx, kind, postingID)
	if err != nil {
		return nil, err
	}

	a := &Application{
		ID:          uuid.NewString(),
		PostingID:   p.ID,
		TenantID:    p.TenantID,
		Kind:        kind,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Email:       strings.TrimSpace(in.Email),
		Phone:       strings.TrimSpace(in.Phone),
		CoverLetter: strings.TrimSpace(in.CoverLetter),
	}

	a.Files.Resume, err = s.upload(ctx, a, in.Resume)
	if err != nil {
		return nil, err
	}
	if in.Attachment != nil {
		a.Files.Attachment, err = s.upload(ctx, a, in.Attachment)
		if err != nil {
			s.cleaner.Remove(ctx, cleanup.ReasonAborted, a.Files.Resume)
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, a); err != nil {
		s.cleaner.Remove(ctx, cleanup.ReasonAborted, a.Files.Keys()...)
		return nil, err
	}

	logger.FromContext(ctx).Info("application submitted",
		zap.String("application_id", a.ID),
		zap.String("posting_id", a.PostingID),
		zap.String("tenant_id", a.TenantID))
	a.describeFiles()
	return a, nil
}

func (s *Service) validate(in SubmitInput) error {
	if strings.TrimSpace(in.FirstName) == "" {
		return fmt.Errorf("%w: first name is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if in.Resume == nil {
		return fmt.Errorf("%w: resume is required", ErrValidation)
	}
	if err := s.checkFile(in.Resume, resumeExtensions); err != nil {
		return err
	}
	if in.Attachment != nil {
		return s.checkFile(in.Attachment, attachmentExtensions)
	}
	return nil
}

func (s *Service) checkFile(u *Upload, allowed map[string]bool) error {
	ext := strings.ToLower(path.Ext(storage.CleanFilename(u.Filename)))
	if !allowed[ext] {
		return fmt.Errorf("%w: file type %q is not allowed", ErrValidation, ext)
	}
	if s.maxUploadSize > 0 && u.Size > s.maxUploadSize {
		return fmt.Errorf("%w: %s exceeds the %s limit", ErrValidation,
			storage.CleanFilename(u.Filename), humanize.Bytes(uint64(s.maxUploadSize)))
	}
	return nil
}

func (s *Service) upload(ctx context.Context, a *Application, u *Upload) (string, error) {
	body := bufio.NewReader(u.Body)
	head, _ := body.Peek(512)
	key := storage.ApplicationKey(a.TenantID, a.ID, u.Filename)

	key, err := s.store.Save(ctx, key, body, u.Size, storage.ContentType(u.Filename, head))
	if errors.Is(err, storage.ErrInvalidKey) {
		return "", fmt.Errorf("%w: file name %q is not allowed", ErrValidation, storage.CleanFilename(u.Filename))
	}
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", storage.CleanFilename(u.Filename), err)
	}
	return key, nil
}

// List returns the applications to a posting of tenantID.
func (s *Service) List(ctx context.Context, tenantID string, kind posting.Kind, postingID string) ([]*Application, error) {
	if _, err := s.postings.GetOwned(ctx, tenantID, kind, postingID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByPosting(ctx, tenantID, postingID)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		a.describeFiles()
	}
	return list, nil
}

// Get returns an application of tenantID with signed links to its files.
func (s *Service) Get(ctx context.Context, tenantID string, kind posting.Kind, id string) (*Application, error) {
	a, err := s.repo.GetOwned(ctx, tenantID, kind, id)
	if err != nil {
		return nil, err
	}
	a.describeFiles()
	if a.Resume != nil {
		if key, err := s.ownedKey(ctx, a, FileResume); err == nil {
			a.Resume.URL = s.store.URL(ctx, key, s.urlExpiry)
		}
	}
	if a.Attachment != nil {
		if key, err := s.ownedKey(ctx, a, FileAttachment); err == nil {
			a.Attachment.URL = s.store.URL(ctx, key, s.urlExpiry)
		}
	}
	return a, nil
}

// FileURL returns a time-limited link to one document of an application of tenantID.
func (s *Service) FileURL(ctx context.Context, tenantID string, kind posting.Kind, id string, ft FileType) (*Preview, error) {
	a, err := s.repo.GetOwned(ctx, tenantID, kind, id)
	if err != nil {
		return nil, err
	}
	key, err := s.ownedKey(ctx, a, ft)
	if err != nil {
		return nil, err
	}
	u := s.store.URL(ctx, key, s.urlExpiry)
	if u == "" {
		return nil, ErrURLUnavailable
	}
	return &Preview{Success: true, URL: u, Filename: storage.Filename(key), FileType: ft}, nil
}

// OpenFile returns the content of one document of an application of tenantID.
func (s *Service) OpenFile(ctx context.Context, tenantID string, kind posting.Kind, id string, ft FileType) (io.ReadCloser, string, error) {
	a, err := s.repo.GetOwned(ctx, tenantID, kind, id)
	if err != nil {
		return nil, "", err
	}
	key, err := s.ownedKey(ctx, a, ft)
	if err != nil {
		return nil, "", err
	}
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		logger.FromContext(ctx).Warn("stored file could not be opened",
			zap.String("application_id", id), zap.String("key", key), zap.Error(err))
		return nil, "", fmt.Errorf("%w: %v", ErrFileMissing, err)
	}
	return rc, storage.Filename(key), nil
}

// ownedKey returns the key stored in slot ft. A key outside the tenant's
// prefix is never handed out.
func (s *Service) ownedKey(ctx context.Context, a *Application, ft FileType) (string, error) {
	key := a.Files.Key(ft)
	if key == "" {
		return "", ErrFileMissing
	}
	if !storage.OwnedBy(key, a.TenantID) {
		logger.FromContext(ctx).Error("application references a blob outside its tenant",
			zap.String("application_id", a.ID), zap.String("tenant_id", a.TenantID), zap.String("key", key))
		return "", ErrFileMissing
	}
	return key, nil
}

// DeleteResult reports what a delete removed.
type DeleteResult struct {
	Message string
	Blobs   cleanup.Result
}

// Delete removes a whole application of tenantID, or only one of its files.
// postingID, when set, must be the application's posting.
func (s *Service) Delete(ctx context.Context, tenantID string, kind posting.Kind, postingID, id string, mode DeleteMode) (*DeleteResult, error) {
	if postingID != "" {
		a, err := s.repo.GetOwned(ctx, tenantID, kind, id)
		if err != nil {
			return nil, err
		}
		if a.PostingID != postingID {
			return nil, ErrNotFound
		}
	}

	log := logger.FromContext(ctx).With(zap.String("application_id", id))

	switch mode {
	case DeleteResumeOnly, DeleteAttachmentOnly:
		ft := FileResume
		if mode == DeleteAttachmentOnly {
			ft = FileAttachment
		}
		key, err := s.repo.ClearFile(ctx, tenantID, kind, id, ft)
		if err != nil {
			return nil, err
		}
		res := s.cleaner.Remove(ctx, cleanup.ReasonFieldDelete, key)
		log.Info("application file deleted", zap.String("file_type", string(ft)))
		return &DeleteResult{Message: fileDeletedMessage(ft), Blobs: res}, nil

	case DeleteAll:
		keys, err := s.repo.Delete(ctx, tenantID, kind, id)
		if err != nil {
			return nil, err
		}
		res := s.cleaner.Remove(ctx, cleanup.ReasonApplicationDelete, keys...)
		log.Info("application deleted", zap.Int("blobs_orphaned", len(res.Orphaned)))
		return &DeleteResult{Message: "Application deleted successfully.", Blobs: res}, nil
	}
	return nil, errors.New("unknown delete mode")
}

func fileDeletedMessage(ft FileType) string {
	if ft == FileAttachment {
		return "Additional attachment deleted successfully."
	}
	return "Resume deleted successfully."
}
