// Package internal contains the core implementation packages for stencil.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the stencil CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - asset: Change batches, change-type masks, path comparison and id sets
//   - config: Configuration loading with viper and validation
//   - di: Wiring of one project's components into an App
//   - entry: Incrementally re-rendered entries and their checked facade
//   - errors: Structured contract errors and CLI hints
//   - funcs: The template function registry and its built-in module
//   - logging: Structured logging over log/slog
//   - prompt: Terminal dialogs, progress, input forms and overwrite menus
//   - renderer: Template building and the render context
//   - repository: The SQLite asset index, file system and session store
//   - scaffold: Scaffold trees, validation, generation and their facade
//   - settings: The YAML settings container
//   - validation: File name and path checks
//   - watcher: File system monitoring with debouncing and move pairing
//
// # Inter-Package Communication
//
//   - The watcher turns fsnotify events into asset change batches
//   - The di App applies each batch to the repository, then hands it to
//     the entry engine
//   - Facades persist through the repository, whose persist hook saves
//     the settings container
//   - A settings change runs the entry catch-up; a reload renders deferred
//     entries
//
// For detailed documentation, see the individual package documentation.
package internal
