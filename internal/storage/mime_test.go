package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("r.pdf", nil))
	assert.Equal(t, "application/pdf", ContentType("R.PDF", nil))
	assert.Equal(t, "image/png", ContentType("logo.png", nil))

	pdf := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	assert.Equal(t, "application/pdf", ContentType("resume", pdf))
	assert.Equal(t, defaultContentType, ContentType("resume", nil))
}
