// Package di wires the stencil components of one project together: the
// function registry, the asset index, the settings container, both engines
// with their facades, and the logger they share.
package di

import (
	"context"
	"fmt"
	"os"

	"github.com/conneroisu/stencil/internal/asset"
	"github.com/conneroisu/stencil/internal/config"
	"github.com/conneroisu/stencil/internal/entry"
	"github.com/conneroisu/stencil/internal/funcs"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/prompt"
	"github.com/conneroisu/stencil/internal/renderer"
	"github.com/conneroisu/stencil/internal/repository"
	"github.com/conneroisu/stencil/internal/scaffold"
	"github.com/conneroisu/stencil/internal/settings"
	"github.com/conneroisu/stencil/internal/watcher"
)

// Options supplies the interactive collaborators and extra function
// modules. Nil collaborators fall back to non-interactive defaults.
type Options struct {
	Logger    logging.Logger
	Dialog    prompt.Dialog
	Progress  prompt.Progress
	Collector prompt.InputCollector
	Resolver  prompt.OverwriteResolver
	Modules   []funcs.Module
	// InMemoryIndex keeps the asset index out of the project directory.
	InMemoryIndex bool
}

// App is the wired application for one project.
type App struct {
	Config     *config.Config
	Logger     logging.Logger
	Registry   *funcs.Registry
	Builder    *renderer.Builder
	Repository *repository.SQLiteRepository
	FileSystem *repository.OSFileSystem
	Store      *repository.SessionStore
	Settings   *settings.Store
	Entries    *entry.Facade
	Scaffolds  *scaffold.Facade

	ignore  watcher.FileFilter
	closers []func() error
}

// New builds an App for cfg, indexes the project tree and loads the
// settings container.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}

	logger, err := app.buildLogger(opts.Logger)
	if err != nil {
		return nil, err
	}
	app.Logger = logger

	dbPath := cfg.DatabasePath()
	if opts.InMemoryIndex {
		dbPath = ":memory:"
	}
	repo, err := repository.OpenSQLite(cfg.Project.Root, dbPath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to open asset index: %w", err)
	}
	app.Repository = repo
	app.closers = append(app.closers, repo.Close)

	app.ignore = watcher.IgnoreFilter(cfg.Watch.Ignore...)
	if _, err := repo.ImportTree(ctx, ".", func(rel string) bool { return !app.ignore(rel) }); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to index project: %w", err)
	}

	app.Settings = settings.NewStore(cfg.Project.Root, cfg.Project.Settings, logger)
	current, err := app.Settings.Load()
	if err != nil {
		app.Close()
		return nil, err
	}
	repo.OnPersist(app.Settings.Save)

	app.Registry = funcs.NewRegistry(logger, opts.Modules...)
	app.Builder = renderer.NewBuilder(app.Registry)
	app.FileSystem = repository.NewOSFileSystem(cfg.Project.Root)
	app.Store = repository.NewSessionStore()

	entryEngine := entry.NewEngine(entry.Config{
		Entries:      current.Entries,
		SettingsPath: app.Settings.Path(),
		Builder:      app.Builder,
		Repository:   repo,
		FileSystem:   app.FileSystem,
		Store:        app.Store,
		Progress:     opts.Progress,
		Dialog:       opts.Dialog,
		Logger:       logger,
	})
	app.Entries = entry.NewFacade(entryEngine, repo, logger)

	scaffoldEngine := scaffold.NewEngine(app.Builder, repo, app.FileSystem, opts.Progress, logger)
	facadeOpts := []scaffold.FacadeOption{scaffold.WithMaxAttempts(cfg.Scaffold.MaxAttempts)}
	if opts.Collector != nil {
		facadeOpts = append(facadeOpts, scaffold.WithInputCollector(opts.Collector))
	}
	if opts.Resolver != nil {
		facadeOpts = append(facadeOpts, scaffold.WithOverwriteResolver(opts.Resolver))
	}
	app.Scaffolds = scaffold.NewFacade(scaffoldEngine, repo, current.Scaffolds, logger, facadeOpts...)

	logger.Debug(ctx, "Application wired", "root", cfg.Project.Root,
		"entries", current.Entries.Len(), "scaffolds", len(current.Scaffolds.All()))
	return app, nil
}

func (a *App) buildLogger(given logging.Logger) (logging.Logger, error) {
	if given != nil {
		return given, nil
	}

	level, err := logging.ParseLevel(a.Config.Log.Level)
	if err != nil {
		return nil, err
	}
	console := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: a.Config.Log.Format,
		Output: os.Stderr,
	})

	dir := a.Config.LogDir()
	if dir == "" {
		return console, nil
	}
	fileLogger, err := logging.NewFileLogger(&logging.LoggerConfig{Level: level}, dir)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, fileLogger.Close)
	return logging.NewMultiLogger(console, fileLogger), nil
}

// ReloadSettings re-reads the settings container and hands the new
// collections to both facades.
func (a *App) ReloadSettings() error {
	current, err := a.Settings.Load()
	if err != nil {
		return err
	}
	a.Entries.Replace(current.Entries)
	a.Scaffolds.SetScaffolds(current.Scaffolds)
	return nil
}

// Reload is the reload boundary: settings are re-read and deferred entries
// render.
func (a *App) Reload(ctx context.Context) error {
	if err := a.ReloadSettings(); err != nil {
		return err
	}
	a.Entries.OnAfterReload(ctx)
	return nil
}

// HandleBatch brings the asset index up to date with batch and lets the
// entry engine react. A batch touching the settings container reloads it
// first.
func (a *App) HandleBatch(ctx context.Context, batch asset.ChangeBatch) error {
	applied := watcher.Apply(ctx, a.Repository, batch, a.Logger)
	if applied.Empty() {
		return nil
	}
	if applied.Touches(a.Settings.Path()) {
		if err := a.ReloadSettings(); err != nil {
			a.Logger.Error(ctx, err, "Failed to reload settings", "path", a.Settings.Path())
		}
	}
	a.Entries.OnAssetsChanged(ctx, applied)
	return nil
}

// NewWatcher returns a watcher over the configured paths that feeds
// HandleBatch. The caller starts and stops it.
func (a *App) NewWatcher() (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(a.Config.Project.Root, a.Config.Watch.Debounce, a.Logger)
	if err != nil {
		return nil, err
	}
	fw.AddFilter(a.ignore)
	for _, p := range a.Config.Watch.Paths {
		if err := fw.AddRecursive(p); err != nil {
			fw.Stop()
			return nil, fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}
	fw.AddHandler(a.HandleBatch)
	return fw, nil
}

// Reconfigure adopts the scaffold defaults of cfg while running. It reports
// false, and changes nothing, when cfg names a different project layout.
func (a *App) Reconfigure(ctx context.Context, cfg *config.Config) bool {
	if cfg.Project != a.Config.Project {
		a.Logger.Warn(ctx, nil, "Project settings changed, restart to apply",
			"root", cfg.Project.Root, "settings", cfg.Project.Settings)
		return false
	}
	a.Config.Scaffold = cfg.Scaffold
	a.Scaffolds.SetMaxAttempts(cfg.Scaffold.MaxAttempts)
	a.Logger.Info(ctx, "Configuration reloaded")
	return true
}

// OverwritePolicy returns the configured default policy.
func (a *App) OverwritePolicy() scaffold.OverwritePolicy {
	policy, _ := scaffold.ParseOverwritePolicy(a.Config.Scaffold.Overwrite)
	return policy
}

// Close releases the index and log files.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
