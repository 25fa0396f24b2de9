// Package testutils provides a temporary project fixture and recording fakes
// for the collaborators of the engines.
package testutils

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/prompt"
	"github.com/conneroisu/stencil/internal/repository"
)

// CreateTempProject creates a temporary project structure for testing
func CreateTempProject(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	dirs := []string{
		"templates",
		"inputs",
		"out",
		".stencil",
	}
	for _, dir := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(tempDir, dir), 0o755))
	}
	return tempDir
}

// WriteFile writes content to a project-relative path, creating parents.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return abs
}

// ReadFile reads a project-relative path.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// Project bundles a temporary project with real repository, file system and
// session store plus recording fakes.
type Project struct {
	Root     string
	Repo     *repository.SQLiteRepository
	FS       *RecordingFS
	Store    *repository.SessionStore
	Progress *RecordingProgress
	Logger   logging.Logger

	logs *syncBuffer
}

// NewProject creates a Project backed by an in-memory index.
func NewProject(t *testing.T) *Project {
	t.Helper()
	root := CreateTempProject(t)

	repo, err := repository.OpenSQLite(root, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	logs := &syncBuffer{}
	return &Project{
		Root:     root,
		Repo:     repo,
		FS:       NewRecordingFS(repository.NewOSFileSystem(root)),
		Store:    repository.NewSessionStore(),
		Progress: &RecordingProgress{},
		Logger:   logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Output: logs}),
		logs:     logs,
	}
}

// Write writes rel and imports it, returning its stable reference.
func (p *Project) Write(t *testing.T, rel, content string) string {
	t.Helper()
	WriteFile(t, p.Root, rel, content)
	ref, err := p.Repo.Import(context.Background(), rel)
	require.NoError(t, err)
	return ref
}

// Read reads a project-relative file.
func (p *Project) Read(t *testing.T, rel string) string {
	t.Helper()
	return ReadFile(t, p.Root, rel)
}

// Logs returns everything logged so far.
func (p *Project) Logs() string {
	return p.logs.String()
}

// ErrorCount counts the error records logged so far.
func (p *Project) ErrorCount() int {
	return strings.Count(p.logs.String(), "level=ERROR")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// RecordingFS wraps a FileSystem and records writes and created directories.
type RecordingFS struct {
	repository.FileSystem

	mu      sync.Mutex
	Writes  []string
	Created []string
	// FailWrites makes WriteText fail for the listed paths.
	FailWrites map[string]error
}

// NewRecordingFS wraps inner.
func NewRecordingFS(inner repository.FileSystem) *RecordingFS {
	return &RecordingFS{FileSystem: inner}
}

// WriteText implements repository.FileSystem.
func (f *RecordingFS) WriteText(path, contents string) error {
	f.mu.Lock()
	if err, ok := f.FailWrites[path]; ok {
		f.mu.Unlock()
		return err
	}
	f.Writes = append(f.Writes, path)
	f.mu.Unlock()
	return f.FileSystem.WriteText(path, contents)
}

// CreateDirectory implements repository.FileSystem.
func (f *RecordingFS) CreateDirectory(path string) error {
	f.mu.Lock()
	f.Created = append(f.Created, path)
	f.mu.Unlock()
	return f.FileSystem.CreateDirectory(path)
}

// WriteCount returns how many writes went through.
func (f *RecordingFS) WriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Writes)
}

// RecordingProgress counts Show and Clear calls.
type RecordingProgress struct {
	mu      sync.Mutex
	Shows   int
	Clears  int
	Labels  []string
	Visible bool
}

// Show implements prompt.Progress.
func (p *RecordingProgress) Show(title, label string, fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Shows++
	p.Labels = append(p.Labels, label)
	p.Visible = true
}

// Clear implements prompt.Progress.
func (p *RecordingProgress) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Clears++
	p.Visible = false
}

// ScriptedDialog answers from a fixed list, then with Default.
type ScriptedDialog struct {
	Answers []bool
	Default bool
	Asked   []string
}

// Prompt implements prompt.Dialog.
func (d *ScriptedDialog) Prompt(title, message string) bool {
	d.Asked = append(d.Asked, message)
	if len(d.Answers) == 0 {
		return d.Default
	}
	a := d.Answers[0]
	d.Answers = d.Answers[1:]
	return a
}

// ScriptedCollector returns the queued inputs in order and ErrCancelled once
// they run out.
type ScriptedCollector struct {
	Inputs []map[string]interface{}
	Calls  int
	Block  bool
	// Entered is closed when a blocking Collect starts waiting.
	Entered chan struct{}
}

// Collect implements prompt.InputCollector. With Block set it waits for ctx.
func (c *ScriptedCollector) Collect(ctx context.Context, title string, fields []prompt.Field) (map[string]interface{}, error) {
	c.Calls++
	if c.Block {
		if c.Entered != nil {
			close(c.Entered)
		}
		<-ctx.Done()
		return nil, prompt.ErrCancelled
	}
	if len(c.Inputs) == 0 {
		return nil, prompt.ErrCancelled
	}
	in := c.Inputs[0]
	c.Inputs = c.Inputs[1:]
	return in, nil
}

// ScriptedResolver answers overwrite questions from a fixed list.
type ScriptedResolver struct {
	Decisions []prompt.Decision
	Asked     []string
}

// Resolve implements prompt.OverwriteResolver.
func (r *ScriptedResolver) Resolve(ctx context.Context, path string) (prompt.Decision, error) {
	r.Asked = append(r.Asked, path)
	if len(r.Decisions) == 0 {
		return 0, prompt.ErrCancelled
	}
	d := r.Decisions[0]
	r.Decisions = r.Decisions[1:]
	return d, nil
}
