package asset

import (
	"path/filepath"
	"strings"
)

// NormalizePath returns the comparison form of a path: cleaned, forward
// slashes, lower case, no trailing separator.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		p = "/"
	}
	return strings.ToLower(p)
}

// SamePath compares two paths ignoring case and separator style.
func SamePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return NormalizePath(a) == NormalizePath(b)
}

// IsSelfOrAncestor reports whether ancestor equals path or is one of its
// parent directories.
func IsSelfOrAncestor(ancestor, path string) bool {
	if ancestor == "" || path == "" {
		return false
	}
	a := NormalizePath(ancestor)
	p := NormalizePath(path)
	if a == p {
		return true
	}
	if a == "." {
		return !strings.HasPrefix(p, "../") && !strings.HasPrefix(p, "/")
	}
	if a == "/" {
		return strings.HasPrefix(p, "/")
	}
	return strings.HasPrefix(p, a+"/")
}
