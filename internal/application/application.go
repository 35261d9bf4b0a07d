// Package application stores applicant submissions and gates every access to
// their documents on the resolved tenant.
package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/techspire01/ciadev/internal/posting"
	"github.com/techspire01/ciadev/internal/storage"
)

var (
	// ErrNotFound is returned when an application does not exist or belongs to another tenant.
	ErrNotFound = errors.New("application not found")
	// ErrFileMissing is returned when the requested file slot is empty.
	ErrFileMissing = errors.New("file not found")
	// ErrURLUnavailable is returned when storage cannot produce a link.
	ErrURLUnavailable = errors.New("could not generate file URL")
	// ErrValidation is returned for bad input.
	ErrValidation = errors.New("invalid application input")
)

// FileType selects one of the document slots of an application.
type FileType string

const (
	FileResume     FileType = "resume"
	FileAttachment FileType = "attachment"
)

// ParseFileType accepts "resume", "attachment" or "additional_attachment".
func ParseFileType(s string) (FileType, error) {
	switch strings.ToLower(s) {
	case "resume":
		return FileResume, nil
	case "attachment", "additional_attachment":
		return FileAttachment, nil
	}
	return "", fmt.Errorf("%w: unknown file type %q", ErrValidation, s)
}

// Column is the applications column holding the slot's key.
func (f FileType) Column() string {
	if f == FileAttachment {
		return "attachment_key"
	}
	return "resume_key"
}

// Files holds the blob keys of an application. An empty key means no file.
type Files struct {
	Resume     string
	Attachment string
}

// Key returns the key stored in slot f.
func (f Files) Key(ft FileType) string {
	if ft == FileAttachment {
		return f.Attachment
	}
	return f.Resume
}

// Keys returns all keys, empty ones included.
func (f Files) Keys() []string {
	return []string{f.Resume, f.Attachment}
}

// Application is one applicant's submission to a posting. TenantID is copied
// from the posting at creation and never re-validated.
type Application struct {
	ID          string       `json:"id"`
	PostingID   string       `json:"postingId"`
	TenantID    string       `json:"-"`
	Kind        posting.Kind `json:"kind"`
	FirstName   string       `json:"firstName"`
	LastName    string       `json:"lastName"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone,omitempty"`
	CoverLetter string       `json:"coverLetter,omitempty"`
	Files       Files        `json:"-"`
	AppliedAt   time.Time    `json:"appliedAt"`

	Resume     *FileRef `json:"resume,omitempty"`
	Attachment *FileRef `json:"attachment,omitempty"`
}

// FileRef describes a stored document. URL is only set on detail reads.
type FileRef struct {
	Filename string `json:"filename"`
	URL      string `json:"url,omitempty"`
}

func (a *Application) describeFiles() {
	a.Resume, a.Attachment = nil, nil
	if a.Files.Resume != "" {
		a.Resume = &FileRef{Filename: storage.Filename(a.Files.Resume)}
	}
	if a.Files.Attachment != "" {
		a.Attachment = &FileRef{Filename: storage.Filename(a.Files.Attachment)}
	}
}

// DeleteMode selects what a delete request removes.
type DeleteMode int

const (
	DeleteAll DeleteMode = iota
	DeleteResumeOnly
	DeleteAttachmentOnly
)

// ParseDeleteMode maps the two form flags to a mode. Setting both is an error.
func ParseDeleteMode(resumeOnly, attachmentOnly bool) (DeleteMode, error) {
	switch {
	case resumeOnly && attachmentOnly:
		return 0, fmt.Errorf("%w: choose either delete_resume_only or delete_attachment_only", ErrValidation)
	case resumeOnly:
		return DeleteResumeOnly, nil
	case attachmentOnly:
		return DeleteAttachmentOnly, nil
	}
	return DeleteAll, nil
}

// Preview is the payload of the preview endpoint.
type Preview struct {
	Success  bool     `json:"success"`
	URL      string   `json:"url"`
	Filename string   `json:"filename"`
	FileType FileType `json:"file_type"`
}
