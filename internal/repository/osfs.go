package repository

import (
	"fmt"
	"os"
	"path/filepath"
)

// OSFileSystem writes below a project root.
type OSFileSystem struct {
	root string
}

// NewOSFileSystem creates a file system rooted at root.
func NewOSFileSystem(root string) *OSFileSystem {
	return &OSFileSystem{root: root}
}

// WriteText implements FileSystem. Missing parent directories are created.
func (fs *OSFileSystem) WriteText(path, contents string) error {
	abs := Resolve(fs.root, path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", path, err)
	}
	if err := os.WriteFile(abs, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// CreateDirectory implements FileSystem.
func (fs *OSFileSystem) CreateDirectory(path string) error {
	if err := os.MkdirAll(Resolve(fs.root, path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// FileExists implements FileSystem. Directories count as existing.
func (fs *OSFileSystem) FileExists(path string) bool {
	_, err := os.Stat(Resolve(fs.root, path))
	return err == nil
}
