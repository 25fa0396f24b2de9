package watcher

import (
	"path"
	"strings"
)

// DefaultIgnore lists patterns that are never reported.
var DefaultIgnore = []string{".git", ".stencil", "*.tmp", "*~", "*.swp"}

// IgnoreFilter rejects paths matching any of patterns. A pattern matches when
// it matches the whole relative path, any single path segment, or, if it ends
// in "/**", any path below that directory.
func IgnoreFilter(patterns ...string) FileFilter {
	return func(rel string) bool {
		rel = strings.Trim(strings.ReplaceAll(rel, "\\", "/"), "/")
		for _, pattern := range patterns {
			if matches(pattern, rel) {
				return false
			}
		}
		return true
	}
}

func matches(pattern, rel string) bool {
	pattern = strings.Trim(pattern, "/")
	if pattern == "" {
		return false
	}
	if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
		return rel == dir || strings.HasPrefix(rel, dir+"/")
	}
	if ok, _ := path.Match(pattern, rel); ok {
		return true
	}
	if strings.Contains(pattern, "/") {
		return false
	}
	for _, segment := range strings.Split(rel, "/") {
		if ok, _ := path.Match(pattern, segment); ok {
			return true
		}
	}
	return false
}

// OnlyUnder accepts paths inside dir and the directories leading to it.
func OnlyUnder(dir string) FileFilter {
	dir = strings.Trim(dir, "/")
	return func(rel string) bool {
		if dir == "" || dir == "." {
			return true
		}
		return rel == dir || strings.HasPrefix(rel, dir+"/") || strings.HasPrefix(dir, rel+"/")
	}
}
