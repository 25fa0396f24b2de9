package entry

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/conneroisu/stencil/internal/asset"
	stencilerrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/prompt"
	"github.com/conneroisu/stencil/internal/renderer"
	"github.com/conneroisu/stencil/internal/repository"
	"github.com/conneroisu/stencil/internal/validation"
)

// Session store keys of the cross-reload flags.
const (
	ChangedKey  = "stencil.entries.changed"
	DeferredKey = "stencil.entries.deferred"
)

// DeleteResult is the answer to a pending asset deletion.
type DeleteResult int

const (
	DeleteAllowed DeleteResult = iota
	DeleteBlocked
)

func (r DeleteResult) String() string {
	if r == DeleteBlocked {
		return "blocked"
	}
	return "allowed"
}

// Engine decides which entries to render for a change batch and renders
// them.
type Engine struct {
	entries      *Collection
	settingsPath string

	builder  *renderer.Builder
	repo     repository.Repository
	fs       repository.FileSystem
	store    repository.KeyValueStore
	progress prompt.Progress
	dialog   prompt.Dialog
	logger   logging.Logger
}

// Config carries the collaborators of an Engine.
type Config struct {
	Entries      *Collection
	SettingsPath string
	Builder      *renderer.Builder
	Repository   repository.Repository
	FileSystem   repository.FileSystem
	Store        repository.KeyValueStore
	Progress     prompt.Progress
	Dialog       prompt.Dialog
	Logger       logging.Logger
}

// NewEngine creates an engine from cfg.
func NewEngine(cfg Config) *Engine {
	if cfg.Entries == nil {
		cfg.Entries = NewCollection()
	}
	if cfg.Progress == nil {
		cfg.Progress = prompt.NopProgress{}
	}
	if cfg.Dialog == nil {
		cfg.Dialog = prompt.StaticDialog(false)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Engine{
		entries:      cfg.Entries,
		settingsPath: repository.Clean(cfg.SettingsPath),
		builder:      cfg.Builder,
		repo:         cfg.Repository,
		fs:           cfg.FileSystem,
		store:        cfg.Store,
		progress:     cfg.Progress,
		dialog:       cfg.Dialog,
		logger:       cfg.Logger.WithComponent("entry"),
	}
}

// Entries returns the managed collection.
func (e *Engine) Entries() *Collection { return e.entries }

// SetEntries swaps the managed collection, as after a settings reload.
func (e *Engine) SetEntries(c *Collection) {
	if c == nil {
		c = NewCollection()
	}
	e.entries = c
}

// SettingsPath returns the project-relative path of the settings container.
func (e *Engine) SettingsPath() string { return e.settingsPath }

// resolved holds the current paths of an entry's references.
type resolved struct {
	entry    *Entry
	variant  Variant
	input    string
	template string
	dir      string
	output   string
}

// paths resolves references without checking anything else.
func (e *Engine) paths(en *Entry) resolved {
	r := resolved{entry: en}
	r.variant, _ = LookupVariant(en.Input.Variant)
	r.input, _ = e.repo.PathOf(en.Input.Ref)
	r.template, _ = e.repo.PathOf(en.Template)
	if dir, ok := e.repo.PathOf(en.OutputDir); ok {
		r.dir = dir
		r.output = repository.Join(dir, en.Filename)
	}
	return r
}

// resolve returns the entry's paths when the entry is valid: references
// resolve, the template parses, the filename is legal and the output
// directory exists.
func (e *Engine) resolve(ctx context.Context, en *Entry) (resolved, string, error) {
	r := e.paths(en)
	switch {
	case r.variant.Kind == "":
		return r, "", fmt.Errorf("unknown input variant %q", en.Input.Variant)
	case r.input == "":
		return r, "", fmt.Errorf("input %s does not resolve", en.Input.Ref)
	case r.template == "":
		return r, "", fmt.Errorf("template %s does not resolve", en.Template)
	case r.dir == "" || !e.repo.IsValidDirectory(r.dir):
		return r, "", fmt.Errorf("output directory %s is not available", en.OutputDir)
	}
	if err := validation.ValidateFilename(en.Filename); err != nil {
		return r, "", err
	}
	res, err := e.repo.Load(ctx, r.template, repository.KindAny)
	if err != nil {
		return r, "", err
	}
	text := string(res.Content)
	if err := renderer.CheckSyntax(r.template, text); err != nil {
		return r, "", err
	}
	return r, text, nil
}

// OnAssetsChanged reacts to one notification round.
func (e *Engine) OnAssetsChanged(ctx context.Context, batch asset.ChangeBatch) {
	if batch.Empty() {
		return
	}
	if batch.Touches(e.settingsPath) {
		e.renderFlagged(ctx, ChangedKey)
		return
	}

	deferred := e.loadSet(DeferredKey)
	deferredBefore := deferred.Len()

	var due []*Entry
	for _, en := range e.entries.All() {
		r, _, err := e.resolve(ctx, en)
		if err != nil {
			e.logger.Debug(ctx, "Skipping invalid entry", "entry", en.ID, "reason", err.Error())
			continue
		}

		inputChanged := changedBesides(batch.ChangesFor(r.input, en.Changes), r.output)
		templateChanged := changedBesides(batch.ChangesFor(r.template, en.Changes), r.output)
		if !inputChanged && !templateChanged {
			continue
		}
		if en.Deferred && !templateChanged {
			deferred.Add(en.ID)
			e.logger.Debug(ctx, "Entry deferred until reload", "entry", en.ID)
			continue
		}
		due = append(due, en)
	}

	if deferred.Len() != deferredBefore {
		e.saveSet(DeferredKey, deferred)
	}
	if len(due) > 0 {
		e.RenderEntries(ctx, due)
	}
}

// changedBesides reports whether any change concerns a path other than
// output, so an entry never triggers itself.
func changedBesides(changes []asset.AssetChange, output string) bool {
	for _, c := range changes {
		if asset.SamePath(c.Path, output) || asset.SamePath(c.PreviousPath, output) {
			continue
		}
		return true
	}
	return false
}

// OnAfterReload renders every deferred entry once and clears the store.
func (e *Engine) OnAfterReload(ctx context.Context) {
	e.renderFlagged(ctx, DeferredKey)
}

func (e *Engine) renderFlagged(ctx context.Context, key string) {
	ids := e.loadSet(key)
	e.store.Erase(key)
	if ids.Len() == 0 {
		return
	}

	var due []*Entry
	for _, id := range ids.IDs() {
		if en, ok := e.entries.Get(id); ok && en.ID == id {
			due = append(due, en)
		}
	}
	e.RenderEntries(ctx, due)
}

// FlagChanged marks an entry for the next settings catch-up.
func (e *Engine) FlagChanged(id string) {
	set := e.loadSet(ChangedKey)
	if set.Add(id) {
		e.saveSet(ChangedKey, set)
	}
}

// Deferred returns the ids waiting for the next reload.
func (e *Engine) Deferred() []string {
	return e.loadSet(DeferredKey).IDs()
}

// Flagged returns the ids waiting for the next settings catch-up.
func (e *Engine) Flagged() []string {
	return e.loadSet(ChangedKey).IDs()
}

func (e *Engine) loadSet(key string) *asset.IDSet {
	text, _ := e.store.Get(key)
	return asset.ParseIDSet(text)
}

func (e *Engine) saveSet(key string, set *asset.IDSet) {
	if set.Len() == 0 {
		e.store.Erase(key)
		return
	}
	e.store.Set(key, set.String())
}

// OnWillDeleteAsset decides whether path may be deleted. Deleting something
// an entry depends on needs confirmation; once confirmed the dependent
// entries are removed and the settings persisted.
func (e *Engine) OnWillDeleteAsset(ctx context.Context, path string) DeleteResult {
	var dependents []*Entry
	for _, en := range e.entries.All() {
		r := e.paths(en)
		if asset.IsSelfOrAncestor(path, r.input) ||
			asset.IsSelfOrAncestor(path, r.template) ||
			asset.IsSelfOrAncestor(path, r.dir) {
			dependents = append(dependents, en)
		}
	}
	if len(dependents) == 0 {
		return DeleteAllowed
	}

	names := make([]string, len(dependents))
	for i, en := range dependents {
		names[i] = e.describe(en)
	}
	message := fmt.Sprintf("%s is used by %d entr%s:\n  %s\nDelete it and remove %s?",
		path, len(dependents), plural(len(dependents), "y", "ies"),
		strings.Join(names, "\n  "), plural(len(dependents), "it", "them"))
	if !e.dialog.Prompt("Delete referenced asset", message) {
		e.logger.Info(ctx, "Deletion blocked", "path", path, "entries", len(dependents))
		return DeleteBlocked
	}

	for _, en := range dependents {
		e.entries.Remove(en.ID)
	}
	if err := e.repo.Persist(ctx); err != nil {
		e.logger.Error(ctx, err, "Failed to persist settings after removing entries")
	}
	e.logger.Info(ctx, "Removed entries of deleted asset", "path", path, "entries", len(dependents))
	return DeleteAllowed
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func (e *Engine) describe(en *Entry) string {
	r := e.paths(en)
	if r.output != "" {
		return r.output
	}
	return en.ID
}

// RenderEntry renders a single entry and reports whether it was written.
func (e *Engine) RenderEntry(ctx context.Context, en *Entry) bool {
	return e.RenderEntries(ctx, []*Entry{en}) == 1
}

// RenderAllValidEntries renders every entry that is currently valid.
func (e *Engine) RenderAllValidEntries(ctx context.Context) int {
	var valid []*Entry
	for _, en := range e.entries.All() {
		if _, _, err := e.resolve(ctx, en); err == nil {
			valid = append(valid, en)
		}
	}
	return e.RenderEntries(ctx, valid)
}

// RenderEntries renders entries in order and returns how many were written.
// A failing entry is logged and never stops the batch.
func (e *Engine) RenderEntries(ctx context.Context, entries []*Entry) int {
	if len(entries) == 0 {
		return 0
	}
	if conflicts := e.builder.Registry().Conflicts(); len(conflicts) > 0 {
		e.logger.Error(ctx, nil, "Function registry has conflicts, rendering skipped", "conflicts", len(conflicts))
		return 0
	}

	perf := logging.StartOperation(e.logger, "render_entries")
	defer e.progress.Clear()

	protected := e.protectedPaths()
	written := 0
	for i, en := range entries {
		e.progress.Show("Rendering entries", en.Filename, float64(i+1)/float64(len(entries)))
		if e.renderOne(ctx, en, protected) {
			written++
		}
	}
	perf.End(ctx, "entries", len(entries), "written", written)
	return written
}

// protectedPaths lists what no entry may write to: every input, every
// template and the settings container.
func (e *Engine) protectedPaths() []string {
	protected := []string{e.settingsPath}
	for _, en := range e.entries.All() {
		r := e.paths(en)
		protected = append(protected, r.input, r.template)
	}
	return protected
}

func (e *Engine) renderOne(ctx context.Context, en *Entry, protected []string) (ok bool) {
	var output string
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error(ctx, fmt.Errorf("%v", rec), "Entry render panicked",
				"entry", en.ID, "output", e.absolute(output))
			ok = false
		}
	}()

	r, text, err := e.resolve(ctx, en)
	if err != nil {
		e.logger.Error(ctx, err, "Entry is invalid", "entry", en.ID)
		return false
	}
	output = r.output

	for _, p := range protected {
		if asset.SamePath(p, r.output) {
			e.logger.Error(ctx, stencilerrors.IllegalArgument("output would overwrite %s", p),
				"Refusing to overwrite protected file", "entry", en.ID, "output", e.absolute(r.output))
			return false
		}
	}

	res, err := e.repo.Load(ctx, r.input, repository.KindAny)
	if err != nil {
		e.logger.Error(ctx, err, "Failed to load entry input", "entry", en.ID, "output", e.absolute(r.output))
		return false
	}
	value, err := r.variant.Decode(res)
	if err != nil {
		e.logger.Error(ctx, err, "Failed to decode entry input", "entry", en.ID, "output", e.absolute(r.output))
		return false
	}

	scope, err := e.builder.Build(renderer.Variables{
		Input:      value,
		InputName:  r.variant.Slot,
		OutputPath: r.output,
		Seed:       rand.Int63(),
		RootPath:   r.dir,
	})
	if err != nil {
		e.logger.Error(ctx, err, "Failed to prepare template context", "entry", en.ID, "output", e.absolute(r.output))
		return false
	}
	out, err := scope.Render(r.template, text)
	if err != nil {
		e.logger.Error(ctx, err, "Failed to render entry", "entry", en.ID, "output", e.absolute(r.output))
		return false
	}

	if err := e.fs.WriteText(r.output, out); err != nil {
		e.logger.Error(ctx, err, "Failed to write entry output", "entry", en.ID, "output", e.absolute(r.output))
		return false
	}
	if _, err := e.repo.Import(ctx, r.output); err != nil {
		e.logger.Warn(ctx, err, "Failed to import entry output", "output", r.output)
	}
	e.logger.Info(ctx, "Rendered entry", "entry", en.ID, "output", r.output)
	return true
}

func (e *Engine) absolute(p string) string {
	if p == "" {
		return ""
	}
	return repository.Resolve(e.repo.Root(), p)
}
