// Package posting manages the job and internship postings a tenant publishes.
package posting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/techspire01/ciadev/internal/storage"
)

var (
	// ErrNotFound is returned when a posting does not exist or belongs to another tenant.
	ErrNotFound = errors.New("posting not found")
	// ErrValidation is returned for bad input.
	ErrValidation = errors.New("invalid posting input")
	// ErrUnknownKind is returned by ParseKind.
	ErrUnknownKind = errors.New("unknown posting kind")
)

// Kind distinguishes jobs from internships.
type Kind string

const (
	KindJob        Kind = "job"
	KindInternship Kind = "internship"
)

// ParseKind accepts the singular or plural form, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "job", "jobs":
		return KindJob, nil
	case "internship", "internships":
		return KindInternship, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Folder is the key folder holding files of postings of this kind.
func (k Kind) Folder() string {
	if k == KindInternship {
		return storage.FolderInternships
	}
	return storage.FolderJobs
}

// Posting is a job or internship offered by a tenant.
type Posting struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenantId"`
	Kind             Kind      `json:"kind"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Location         string    `json:"location,omitempty"`
	Salary           string    `json:"salary,omitempty"`
	Duration         string    `json:"duration,omitempty"`
	Experience       string    `json:"experience,omitempty"`
	Requirements     string    `json:"requirements,omitempty"`
	Responsibilities string    `json:"responsibilities,omitempty"`
	IsActive         bool      `json:"isActive"`
	ImageKey         string    `json:"-"`
	ImageURL         string    `json:"imageUrl,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Input carries editable posting fields. Nil fields are left unchanged on update.
type Input struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	Location         *string `json:"location"`
	Salary           *string `json:"salary"`
	Duration         *string `json:"duration"`
	Experience       *string `json:"experience"`
	Requirements     *string `json:"requirements"`
	Responsibilities *string `json:"responsibilities"`
	IsActive         *bool   `json:"isActive"`
}

func (in Input) applyTo(p *Posting) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.Title, in.Title)
	set(&p.Description, in.Description)
	set(&p.Location, in.Location)
	set(&p.Salary, in.Salary)
	set(&p.Duration, in.Duration)
	set(&p.Experience, in.Experience)
	set(&p.Requirements, in.Requirements)
	set(&p.Responsibilities, in.Responsibilities)
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}
