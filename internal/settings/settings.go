// Package settings loads and saves the project's settings container: the
// YAML document holding the configured entries and scaffolds.
package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stencil/internal/entry"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/repository"
	"github.com/conneroisu/stencil/internal/scaffold"
)

// CurrentVersion is written to every saved document.
const CurrentVersion = 1

// Settings is the decoded container.
type Settings struct {
	Version   int                  `yaml:"version"`
	Entries   *entry.Collection    `yaml:"entries"`
	Scaffolds *scaffold.Collection `yaml:"scaffolds"`
}

// Empty returns settings with no entries or scaffolds.
func Empty() *Settings {
	return &Settings{
		Version:   CurrentVersion,
		Entries:   entry.NewCollection(),
		Scaffolds: scaffold.NewCollection(),
	}
}

// Decode parses a settings document.
func Decode(data []byte) (*Settings, error) {
	s := Empty()
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if s.Version > CurrentVersion {
		return nil, fmt.Errorf("settings version %d is newer than supported version %d", s.Version, CurrentVersion)
	}
	if s.Entries == nil {
		s.Entries = entry.NewCollection()
	}
	if s.Scaffolds == nil {
		s.Scaffolds = scaffold.NewCollection()
	}
	s.Version = CurrentVersion
	return s, nil
}

// Encode renders s as YAML.
func Encode(s *Settings) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return buf.Bytes(), nil
}

// Store owns the settings file of one project.
type Store struct {
	mu      sync.Mutex
	root    string
	path    string
	current *Settings
	logger  logging.Logger
}

// NewStore creates a store for the project-relative path below root.
func NewStore(root, path string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{
		root:    root,
		path:    repository.Clean(path),
		current: Empty(),
		logger:  logger.WithComponent("settings"),
	}
}

// Path returns the project-relative path of the settings file.
func (s *Store) Path() string { return s.path }

// Current returns the loaded settings.
func (s *Store) Current() *Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Load reads the file, replacing the current settings. A missing file
// yields empty settings.
func (s *Store) Load() (*Settings, error) {
	data, err := os.ReadFile(repository.Resolve(s.root, s.path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	loaded, err := Decode(data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	s.logger.Debug(context.Background(), "Settings loaded", "path", s.path,
		"entries", loaded.Entries.Len(), "scaffolds", len(loaded.Scaffolds.All()))
	return loaded, nil
}

// Save writes the current settings. It matches the repository persist hook
// signature.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	data, err := Encode(s.current)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	abs := repository.Resolve(s.root, s.path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace settings: %w", err)
	}

	s.logger.Debug(ctx, "Settings saved", "path", s.path)
	return nil
}
