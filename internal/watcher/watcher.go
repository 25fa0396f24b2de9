// Package watcher turns file-system notifications below a project root into
// debounced asset change batches.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/stencil/internal/asset"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/repository"
)

// DefaultDebounce is used when the configured delay is not positive.
const DefaultDebounce = 200 * time.Millisecond

// FileWatcher watches a project tree and reports batched changes.
type FileWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []Handler
	mutex     sync.RWMutex
	logger    logging.Logger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ChangeEvent is a single notification, path relative to the project root.
type ChangeEvent struct {
	Type    EventType
	Path    string
	IsDir   bool
	ModTime time.Time
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a project-relative path is of interest.
type FileFilter func(path string) bool

// Handler receives one batch per debounce window.
type Handler func(ctx context.Context, batch asset.ChangeBatch) error

// NewFileWatcher creates a watcher for root. Nothing is watched until
// AddRecursive is called.
func NewFileWatcher(root string, delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = logging.Nop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &FileWatcher{
		root:      abs,
		watcher:   w,
		debouncer: newDebouncer(delay),
		logger:    logger.WithComponent("watcher"),
		done:      make(chan struct{}),
	}, nil
}

// Root returns the absolute project root.
func (fw *FileWatcher) Root() string { return fw.root }

// AddFilter adds a file filter. Every filter must accept a path for its
// events to be reported.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a batch handler.
func (fw *FileWatcher) AddHandler(handler Handler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive watches dir, relative to the root, and every accepted
// directory below it.
func (fw *FileWatcher) AddRecursive(dir string) error {
	start := repository.Resolve(fw.root, dir)
	rel := repository.Relative(fw.root, start)
	if filepath.IsAbs(rel) {
		return fmt.Errorf("path %s is outside the project root", dir)
	}

	return filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != fw.root && !fw.accepts(repository.Relative(fw.root, p)) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(p)
	})
}

// Start launches the watch loop, the debouncer and the dispatcher. They run
// until ctx is done or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) {
	fw.wg.Add(3)
	go func() {
		defer fw.wg.Done()
		fw.watchLoop(ctx)
	}()
	go func() {
		defer fw.wg.Done()
		fw.debouncer.run(ctx, fw.done)
	}()
	go func() {
		defer fw.wg.Done()
		fw.processEvents(ctx)
	}()
}

// Stop closes the underlying watcher and waits for the goroutines to exit.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
		fw.wg.Wait()
		fw.debouncer.stop()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) accepts(rel string) bool {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(rel) {
			return false
		}
	}
	return true
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	rel := repository.Relative(fw.root, event.Name)
	if rel == "." || filepath.IsAbs(rel) || !fw.accepts(rel) {
		return
	}

	changeEvent := ChangeEvent{Path: rel}
	if info, err := os.Stat(event.Name); err == nil {
		changeEvent.ModTime = info.ModTime()
		changeEvent.IsDir = info.IsDir()
	}

	switch {
	case event.Has(fsnotify.Create):
		changeEvent.Type = EventTypeCreated
		if changeEvent.IsDir {
			if err := fw.AddRecursive(rel); err != nil && !errors.Is(err, fs.ErrNotExist) {
				fw.logger.Warn(context.Background(), err, "Failed to watch new directory", "path", rel)
			}
		}
	case event.Has(fsnotify.Write):
		changeEvent.Type = EventTypeModified
	case event.Has(fsnotify.Remove):
		changeEvent.Type = EventTypeDeleted
	case event.Has(fsnotify.Rename):
		changeEvent.Type = EventTypeRenamed
	default:
		// chmod only
		return
	}

	fw.debouncer.add(changeEvent)
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case events := <-fw.debouncer.output:
			batch := BuildBatch(events)
			if batch.Empty() {
				continue
			}

			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, batch); err != nil {
					fw.logger.Error(ctx, err, "File watcher handler error")
				}
			}
		}
	}
}
