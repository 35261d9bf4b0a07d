// Package testsupport provides in-memory stores that mirror the PostgreSQL
// schema closely enough for service and handler tests: tenant-scoped reads,
// cascading deletes and row-level file clearing.
package testsupport

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/techspire01/ciadev/internal/application"
	"github.com/techspire01/ciadev/internal/posting"
	"github.com/techspire01/ciadev/internal/reconcile"
	"github.com/techspire01/ciadev/internal/tenant"
)

// ErrForeignKey mimics a foreign key violation.
var ErrForeignKey = errors.New("testsupport: foreign key violation")

// DB holds every table. Use Tenants, Postings and Applications for the
// per-table stores.
type DB struct {
	mu       sync.Mutex
	clock    time.Time
	tenants  map[string]tenant.Tenant
	postings map[string]posting.Posting
	apps     map[string]application.Application

	// FailCreateApplication makes the next application insert fail.
	FailCreateApplication bool
}

// NewDB returns an empty database.
func NewDB() *DB {
	return &DB{
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		tenants:  map[string]tenant.Tenant{},
		postings: map[string]posting.Posting{},
		apps:     map[string]application.Application{},
	}
}

// tick returns strictly increasing timestamps so ordering is deterministic.
func (db *DB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

// Tenants returns the tenant store.
func (db *DB) Tenants() *Tenants { return &Tenants{db: db} }

// Postings returns the posting store.
func (db *DB) Postings() *Postings { return &Postings{db: db} }

// Applications returns the application store.
func (db *DB) Applications() *Applications { return &Applications{db: db} }

// Application returns a copy of an application row regardless of tenant.
func (db *DB) Application(id string) (application.Application, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	a, ok := db.apps[id]
	return a, ok
}

// Counts returns the number of tenants, postings and applications.
func (db *DB) Counts() (tenants, postings, applications int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.tenants), len(db.postings), len(db.apps)
}

// BlobRefs implements reconcile.Source.
func (db *DB) BlobRefs(context.Context) ([]reconcile.Ref, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var refs []reconcile.Ref
	add := func(table, id, column, key string) {
		if key != "" {
			refs = append(refs, reconcile.Ref{Table: table, ID: id, Column: column, Key: key})
		}
	}
	for _, t := range db.tenants {
		add("tenants", t.ID, "logo_key", t.LogoKey)
	}
	for _, p := range db.postings {
		add("postings", p.ID, "image_key", p.ImageKey)
	}
	for _, a := range db.apps {
		add("applications", a.ID, "resume_key", a.Files.Resume)
		add("applications", a.ID, "attachment_key", a.Files.Attachment)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
	return refs, nil
}

// deletePostingLocked removes a posting and its applications, returning their keys.
func (db *DB) deletePostingLocked(id string) []string {
	p := db.postings[id]
	keys := []string{p.ImageKey}
	for appID, a := range db.apps {
		if a.PostingID == id {
			keys = append(keys, a.Files.Keys()...)
			delete(db.apps, appID)
		}
	}
	delete(db.postings, id)
	return keys
}

// Tenants implements tenant.Store.
type Tenants struct{ db *DB }

var _ tenant.Store = (*Tenants)(nil)

func (s *Tenants) Create(_ context.Context, t *tenant.Tenant) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, other := range s.db.tenants {
		if other.Name == t.Name || samePrincipal(other.PrincipalID, t.PrincipalID) {
			return tenant.ErrConflict
		}
	}
	t.CreatedAt = s.db.tick()
	t.UpdatedAt = t.CreatedAt
	s.db.tenants[t.ID] = *t
	return nil
}

func (s *Tenants) Get(_ context.Context, id string) (*tenant.Tenant, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tenants[id]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return &t, nil
}

func (s *Tenants) GetByPrincipal(_ context.Context, principalID string) (*tenant.Tenant, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, t := range s.db.tenants {
		if t.PrincipalID != nil && *t.PrincipalID == principalID {
			return &t, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func (s *Tenants) FindByEmail(_ context.Context, email string, limit int) ([]*tenant.Tenant, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*tenant.Tenant
	for _, t := range s.db.tenants {
		t := t
		if strings.EqualFold(t.Email, email) {
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Tenants) LinkPrincipal(_ context.Context, id, principalID string) (*tenant.Tenant, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tenants[id]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	for otherID, other := range s.db.tenants {
		if otherID != id && samePrincipal(other.PrincipalID, &principalID) {
			return nil, tenant.ErrConflict
		}
	}
	t.PrincipalID = &principalID
	t.UpdatedAt = s.db.tick()
	s.db.tenants[id] = t
	return &t, nil
}

func (s *Tenants) SetLogo(_ context.Context, id, key string) (string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tenants[id]
	if !ok {
		return "", tenant.ErrNotFound
	}
	prev := t.LogoKey
	t.LogoKey = key
	t.UpdatedAt = s.db.tick()
	s.db.tenants[id] = t
	return prev, nil
}

func (s *Tenants) Delete(_ context.Context, id string) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tenants[id]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	keys := []string{t.LogoKey}
	for pid, p := range s.db.postings {
		if p.TenantID == id {
			keys = append(keys, s.db.deletePostingLocked(pid)...)
		}
	}
	delete(s.db.tenants, id)
	return keys, nil
}

func samePrincipal(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

// Postings implements posting.Store.
type Postings struct{ db *DB }

var _ posting.Store = (*Postings)(nil)

func (s *Postings) Create(_ context.Context, p *posting.Posting) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.tenants[p.TenantID]; !ok {
		return ErrForeignKey
	}
	p.CreatedAt = s.db.tick()
	p.UpdatedAt = p.CreatedAt
	s.db.postings[p.ID] = *p
	return nil
}

func (s *Postings) owned(tenantID string, kind posting.Kind, id string) (posting.Posting, bool) {
	p, ok := s.db.postings[id]
	return p, ok && p.TenantID == tenantID && p.Kind == kind
}

func (s *Postings) GetOwned(_ context.Context, tenantID string, kind posting.Kind, id string) (*posting.Posting, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.owned(tenantID, kind, id)
	if !ok {
		return nil, posting.ErrNotFound
	}
	return &p, nil
}

func (s *Postings) GetActive(_ context.Context, kind posting.Kind, id string) (*posting.Posting, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.postings[id]
	if !ok || p.Kind != kind || !p.IsActive {
		return nil, posting.ErrNotFound
	}
	return &p, nil
}

func (s *Postings) list(match func(posting.Posting) bool) []*posting.Posting {
	var out []*posting.Posting
	for _, p := range s.db.postings {
		p := p
		if match(p) {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Postings) ListOwned(_ context.Context, tenantID string, kind posting.Kind) ([]*posting.Posting, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.list(func(p posting.Posting) bool {
		return p.TenantID == tenantID && p.Kind == kind
	}), nil
}

func (s *Postings) ListActive(_ context.Context, kind posting.Kind, limit, offset int) ([]*posting.Posting, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := s.list(func(p posting.Posting) bool { return p.Kind == kind && p.IsActive })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Postings) Update(_ context.Context, p *posting.Posting) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur, ok := s.owned(p.TenantID, p.Kind, p.ID)
	if !ok {
		return posting.ErrNotFound
	}
	next := *p
	next.ImageKey = cur.ImageKey
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = s.db.tick()
	p.UpdatedAt = next.UpdatedAt
	s.db.postings[p.ID] = next
	return nil
}

func (s *Postings) Toggle(_ context.Context, tenantID string, kind posting.Kind, id string) (*posting.Posting, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.owned(tenantID, kind, id)
	if !ok {
		return nil, posting.ErrNotFound
	}
	p.IsActive = !p.IsActive
	p.UpdatedAt = s.db.tick()
	s.db.postings[id] = p
	return &p, nil
}

func (s *Postings) SetImage(_ context.Context, tenantID string, kind posting.Kind, id, key string) (string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.owned(tenantID, kind, id)
	if !ok {
		return "", posting.ErrNotFound
	}
	prev := p.ImageKey
	p.ImageKey = key
	s.db.postings[id] = p
	return prev, nil
}

func (s *Postings) Delete(_ context.Context, tenantID string, kind posting.Kind, id string) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.owned(tenantID, kind, id); !ok {
		return nil, posting.ErrNotFound
	}
	return s.db.deletePostingLocked(id), nil
}

// Applications implements application.Store.
type Applications struct{ db *DB }

var _ application.Store = (*Applications)(nil)

func (s *Applications) Create(_ context.Context, a *application.Application) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.FailCreateApplication {
		s.db.FailCreateApplication = false
		return errors.New("testsupport: insert failed")
	}
	if _, ok := s.db.postings[a.PostingID]; !ok {
		return ErrForeignKey
	}
	a.AppliedAt = s.db.tick()
	row := *a
	row.Resume, row.Attachment = nil, nil
	s.db.apps[a.ID] = row
	return nil
}

func (s *Applications) owned(tenantID string, kind posting.Kind, id string) (application.Application, bool) {
	a, ok := s.db.apps[id]
	return a, ok && a.TenantID == tenantID && a.Kind == kind
}

func (s *Applications) GetOwned(_ context.Context, tenantID string, kind posting.Kind, id string) (*application.Application, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.owned(tenantID, kind, id)
	if !ok {
		return nil, application.ErrNotFound
	}
	return &a, nil
}

func (s *Applications) ListByPosting(_ context.Context, tenantID, postingID string) ([]*application.Application, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*application.Application
	for _, a := range s.db.apps {
		a := a
		if a.PostingID == postingID && a.TenantID == tenantID {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	return out, nil
}

func (s *Applications) ClearFile(_ context.Context, tenantID string, kind posting.Kind, id string, ft application.FileType) (string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.owned(tenantID, kind, id)
	if !ok {
		return "", application.ErrNotFound
	}
	key := a.Files.Key(ft)
	if key == "" {
		return "", application.ErrFileMissing
	}
	if ft == application.FileAttachment {
		a.Files.Attachment = ""
	} else {
		a.Files.Resume = ""
	}
	s.db.apps[id] = a
	return key, nil
}

func (s *Applications) Delete(_ context.Context, tenantID string, kind posting.Kind, id string) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.owned(tenantID, kind, id)
	if !ok {
		return nil, application.ErrNotFound
	}
	delete(s.db.apps, id)
	return a.Files.Keys(), nil
}
