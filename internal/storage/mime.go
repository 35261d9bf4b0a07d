package storage

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// ContentType guesses a MIME type from the file extension and falls back to
// sniffing head when the extension is unknown.
func ContentType(filename string, head []byte) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	if len(head) > 0 {
		return mimetype.Detect(head).String()
	}
	return defaultContentType
}
