// Package repository provides the collaborators the engines use to reach
// the managed project: the content repository (stable asset references and
// imports), the file system, and the process-scoped key-value store.
//
// All paths exchanged with these collaborators are project relative and use
// forward slashes.
package repository

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind classifies an asset.
type Kind string

const (
	KindAny       Kind = ""
	KindText      Kind = "text"
	KindData      Kind = "data"
	KindTemplate  Kind = "template"
	KindDirectory Kind = "directory"
)

// KindOf infers the kind of a file from its extension.
func KindOf(p string) Kind {
	switch strings.ToLower(path.Ext(p)) {
	case ".tmpl", ".tpl", ".gotmpl":
		return KindTemplate
	case ".yaml", ".yml", ".json":
		return KindData
	default:
		return KindText
	}
}

// Resource is a loaded asset.
type Resource struct {
	Ref     string
	Path    string
	Kind    Kind
	Content []byte
}

// Value decodes the resource for use as template input: data assets become
// a map (or list) decoded with YAML, everything else is returned as text.
func (r *Resource) Value() (interface{}, error) {
	if r.Kind != KindData {
		return string(r.Content), nil
	}
	var v interface{}
	if err := yaml.Unmarshal(r.Content, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.Path, err)
	}
	if v == nil {
		return map[string]interface{}{}, nil
	}
	return v, nil
}

// Repository is the content repository collaborator.
type Repository interface {
	// Root returns the absolute project root.
	Root() string
	// PathOf resolves a stable reference to its current path.
	PathOf(ref string) (string, bool)
	// RefOf returns the stable reference of an imported path.
	RefOf(path string) (string, bool)
	// Import registers path (assigning a reference when new) and returns
	// its reference.
	Import(ctx context.Context, path string) (string, error)
	// Move updates the path a reference points at.
	Move(ctx context.Context, from, to string) error
	// Forget drops path and everything below it.
	Forget(ctx context.Context, path string) error
	// IsValidDirectory reports whether path is an existing directory inside
	// the project.
	IsValidDirectory(path string) bool
	// Load reads an asset, checking it matches kind unless kind is KindAny.
	Load(ctx context.Context, path string, kind Kind) (*Resource, error)
	// OnPersist registers a hook run by Persist.
	OnPersist(hook func(ctx context.Context) error)
	// Persist flushes pending state.
	Persist(ctx context.Context) error
}

// FileSystem is the file-system collaborator.
type FileSystem interface {
	WriteText(path, contents string) error
	CreateDirectory(path string) error
	FileExists(path string) bool
}

// KeyValueStore holds string values for the current process run.
type KeyValueStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Erase(key string)
}

// Clean returns the canonical project-relative form of p.
func Clean(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean(p)
}

// Join joins project-relative path elements.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

// Resolve returns the absolute file-system form of a project-relative path.
func Resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, filepath.FromSlash(Clean(p)))
}

// Relative converts an absolute path below root into project-relative form.
// Paths outside root are returned cleaned but unchanged.
func Relative(root, p string) string {
	if !filepath.IsAbs(p) {
		return Clean(p)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filepath.Clean(p))
	}
	return Clean(filepath.ToSlash(rel))
}
