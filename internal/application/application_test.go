package application

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileType(t *testing.T) {
	for in, want := range map[string]FileType{
		"resume":                FileResume,
		"RESUME":                FileResume,
		"attachment":            FileAttachment,
		"additional_attachment": FileAttachment,
	} {
		got, err := ParseFileType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFileType("photo")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseDeleteMode(t *testing.T) {
	mode, err := ParseDeleteMode(false, false)
	require.NoError(t, err)
	assert.Equal(t, DeleteAll, mode)

	mode, err = ParseDeleteMode(true, false)
	require.NoError(t, err)
	assert.Equal(t, DeleteResumeOnly, mode)

	mode, err = ParseDeleteMode(false, true)
	require.NoError(t, err)
	assert.Equal(t, DeleteAttachmentOnly, mode)

	_, err = ParseDeleteMode(true, true)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFilesKey(t *testing.T) {
	f := Files{Resume: "r", Attachment: "a"}
	assert.Equal(t, "r", f.Key(FileResume))
	assert.Equal(t, "a", f.Key(FileAttachment))
	assert.Equal(t, "resume_key", FileResume.Column())
	assert.Equal(t, "attachment_key", FileAttachment.Column())
}

func TestSafeNext(t *testing.T) {
	const fallback = "/api/v1/portal/postings/job/1/applicants"
	for next, want := range map[string]string{
		"":                      fallback,
		"/portal/jobs":          "/portal/jobs",
		"/portal/jobs?page=2":   "/portal/jobs?page=2",
		"//evil.example/steal":  fallback,
		"https://evil.example/": fallback,
		`/\evil.example`:        fallback,
		"relative/path":         fallback,
	} {
		assert.Equal(t, want, safeNext(next, fallback), next)
	}
}

func TestFormBool(t *testing.T) {
	for value, want := range map[string]bool{
		"on":    true,
		"true":  true,
		"1":     true,
		"yes":   true,
		"True":  true,
		"":      false,
		"false": false,
		"0":     false,
		"off":   false,
	} {
		body := url.Values{"delete_resume_only": {value}}.Encode()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		assert.Equal(t, want, formBool(req, "delete_resume_only"), value)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.False(t, formBool(req, "delete_resume_only"))
}
