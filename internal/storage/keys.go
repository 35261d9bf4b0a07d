package storage

import (
	"path"
	"strings"
)

const tenantRoot = "companies"

// Tenant-scoped key folders.
const (
	FolderJobs         = "jobs"
	FolderInternships  = "internships"
	FolderApplications = "applications"
	FolderSuppliers    = "suppliers"
)

// TenantPrefix is the key prefix under which every object of a tenant lives.
func TenantPrefix(tenantID string) string {
	return tenantRoot + "/" + tenantID + "/"
}

// EntityKey builds companies/<tenant>/<folder>/<entity>/<filename>.
func EntityKey(tenantID, folder, entityID, filename string) string {
	return TenantPrefix(tenantID) + path.Join(folder, entityID, CleanFilename(filename))
}

// ApplicationKey builds the key for an applicant's uploaded document.
func ApplicationKey(tenantID, applicationID, filename string) string {
	return EntityKey(tenantID, FolderApplications, applicationID, filename)
}

// LogoKey builds the key for a tenant's logo.
func LogoKey(tenantID, filename string) string {
	return TenantPrefix(tenantID) + path.Join(FolderSuppliers, CleanFilename(filename))
}

// OwnedBy reports whether key lives under the tenant's prefix.
func OwnedBy(key, tenantID string) bool {
	return tenantID != "" && strings.HasPrefix(key, TenantPrefix(tenantID))
}

// Filename returns the display name of a stored object.
func Filename(key string) string {
	if key == "" {
		return ""
	}
	return path.Base(key)
}

// CleanFilename reduces an uploaded name to a safe base name. Directory parts,
// control characters and path separators are dropped; an empty result becomes
// "file".
func CleanFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return -1
		case r == '"' || r == '/' || r == ':':
			return '_'
		case r == ' ':
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, ".")
	if name == "" {
		return "file"
	}
	return name
}

// validKey rejects empty and absolute keys and any ".." segment. Dots inside
// a name, as in "cv..final.pdf", are fine.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return false
		}
	}
	return true
}
