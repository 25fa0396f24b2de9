package entry

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conneroisu/stencil/internal/asset"
	stencilerrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/renderer"
	"github.com/conneroisu/stencil/internal/repository"
	"github.com/conneroisu/stencil/internal/validation"
)

// Facade is the checked CRUD surface over the engine. One mutex serializes
// every mutation and render trigger.
type Facade struct {
	mu       sync.Mutex
	engine   *Engine
	repo     repository.Repository
	validate *validator.Validate
	logger   logging.Logger
}

// NewFacade creates a facade over engine.
func NewFacade(engine *Engine, repo repository.Repository, logger logging.Logger) *Facade {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Facade{
		engine:   engine,
		repo:     repo,
		validate: newValidator(),
		logger:   logger.WithComponent("entry"),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("filename", func(fl validator.FieldLevel) bool {
		return validation.ValidateFilename(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("variant", func(fl validator.FieldLevel) bool {
		_, ok := LookupVariant(fl.Field().String())
		return ok
	})
	return v
}

// Add validates e and appends it. A missing id is generated; a missing
// subscription defaults to the variant's.
func (f *Facade) Add(ctx context.Context, e *Entry) (*Entry, error) {
	if e == nil {
		return nil, stencilerrors.NullArgument("entry")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	e = e.Clone()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Changes == asset.ChangeNone {
		if v, ok := LookupVariant(e.Input.Variant); ok {
			e.Changes = v.Changes
		}
	}
	if _, exists := f.engine.entries.Get(e.ID); exists {
		return nil, stencilerrors.IllegalArgument("entry %s already exists", e.ID)
	}
	if err := f.check(ctx, e); err != nil {
		return nil, err
	}

	f.engine.entries.Add(e)
	if err := f.persist(ctx); err != nil {
		return nil, err
	}
	f.logger.Info(ctx, "Entry added", "entry", e.ID)
	return e.Clone(), nil
}

// Update replaces the entry with the same id.
func (f *Facade) Update(ctx context.Context, e *Entry) error {
	if e == nil {
		return stencilerrors.NullArgument("entry")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, ok := f.engine.entries.Get(e.ID)
	if !ok || cur.ID != e.ID {
		return stencilerrors.NotFound("entry", e.ID)
	}
	e = e.Clone()
	if err := f.check(ctx, e); err != nil {
		return err
	}

	f.engine.entries.Replace(e)
	if err := f.persist(ctx); err != nil {
		return err
	}
	f.logger.Info(ctx, "Entry updated", "entry", e.ID)
	return nil
}

// Remove deletes the entry with id.
func (f *Facade) Remove(ctx context.Context, id string) error {
	if id == "" {
		return stencilerrors.NullArgument("id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.engine.entries.Get(id)
	if !ok {
		return stencilerrors.NotFound("entry", id)
	}
	f.engine.entries.Remove(e.ID)
	if err := f.persist(ctx); err != nil {
		return err
	}
	f.logger.Info(ctx, "Entry removed", "entry", e.ID)
	return nil
}

// Get returns a copy of the entry with id (or a unique id prefix).
func (f *Facade) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, stencilerrors.NullArgument("id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.engine.entries.Get(id)
	if !ok {
		return nil, stencilerrors.NotFound("entry", id)
	}
	return e.Clone(), nil
}

// List returns copies of all entries.
func (f *Facade) List() []*Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := f.engine.entries.All()
	out := make([]*Entry, len(all))
	for i, e := range all {
		out[i] = e.Clone()
	}
	return out
}

// OutputPath returns the current project-relative output path of e, or ""
// when its directory does not resolve.
func (f *Facade) OutputPath(e *Entry) string {
	return f.engine.paths(e).output
}

// FlagChanged marks the entry for re-rendering at the next settings
// catch-up.
func (f *Facade) FlagChanged(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.engine.entries.Get(id)
	if !ok {
		return stencilerrors.NotFound("entry", id)
	}
	f.engine.FlagChanged(e.ID)
	return nil
}

// Render renders one entry now and reports whether output was written.
func (f *Facade) Render(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.engine.entries.Get(id)
	if !ok {
		return false, stencilerrors.NotFound("entry", id)
	}
	return f.engine.RenderEntry(ctx, e), nil
}

// RenderAll renders every valid entry and returns how many were written.
func (f *Facade) RenderAll(ctx context.Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engine.RenderAllValidEntries(ctx)
}

// OnAssetsChanged forwards a change batch under the facade lock.
func (f *Facade) OnAssetsChanged(ctx context.Context, batch asset.ChangeBatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.engine.OnAssetsChanged(ctx, batch)
}

// OnAfterReload forwards the reload boundary under the facade lock.
func (f *Facade) OnAfterReload(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.engine.OnAfterReload(ctx)
}

// OnWillDeleteAsset forwards a pending deletion under the facade lock.
func (f *Facade) OnWillDeleteAsset(ctx context.Context, path string) DeleteResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engine.OnWillDeleteAsset(ctx, path)
}

// Replace swaps the whole collection, as after a settings reload.
func (f *Facade) Replace(c *Collection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.engine.SetEntries(c)
}

func (f *Facade) persist(ctx context.Context) error {
	if err := f.repo.Persist(ctx); err != nil {
		return stencilerrors.NewIOError(stencilerrors.ErrCodeInternalError, "failed to persist settings", err)
	}
	return nil
}

// check enforces the entry contract against the current collection,
// ignoring the entry that has e's id.
func (f *Facade) check(ctx context.Context, e *Entry) error {
	if err := f.validate.Struct(e); err != nil {
		return structError(err)
	}

	r := f.engine.paths(e)
	if r.template == "" {
		return stencilerrors.IllegalArgument("template %s does not resolve", e.Template)
	}
	res, err := f.repo.Load(ctx, r.template, repository.KindAny)
	if err != nil {
		return stencilerrors.IllegalArgument("template %s cannot be loaded", r.template).WithCause(err)
	}
	if err := renderer.CheckSyntax(r.template, string(res.Content)); err != nil {
		return stencilerrors.IllegalArgument("template %s is invalid", r.template).WithCause(err)
	}
	if r.input == "" {
		return stencilerrors.IllegalArgument("input %s does not resolve", e.Input.Ref)
	}
	if r.dir == "" || !f.repo.IsValidDirectory(r.dir) {
		return stencilerrors.DirectoryNotFound(e.OutputDir)
	}

	output := r.output
	if asset.SamePath(output, f.engine.settingsPath) {
		return stencilerrors.IllegalArgument("output %s is the settings file", output).WithPath(output)
	}
	if asset.SamePath(output, r.input) || asset.SamePath(output, r.template) {
		return stencilerrors.IllegalArgument("output %s is the entry's own input or template", output).WithPath(output)
	}
	for _, other := range f.engine.entries.All() {
		if other.ID == e.ID {
			continue
		}
		o := f.engine.paths(other)
		switch {
		case asset.SamePath(output, o.output):
			return stencilerrors.IllegalArgument("output %s is already written by entry %s", output, other.ID).WithPath(output)
		case asset.SamePath(output, o.input), asset.SamePath(output, o.template):
			return stencilerrors.IllegalArgument("output %s is used by entry %s", output, other.ID).WithPath(output)
		case asset.SamePath(o.output, r.input), asset.SamePath(o.output, r.template):
			return stencilerrors.IllegalArgument("input or template of this entry is written by entry %s", other.ID).WithPath(o.output)
		}
	}
	return nil
}

// structError maps validator failures to contract errors: a missing value
// is a null argument, anything else an illegal one.
func structError(err error) error {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return stencilerrors.IllegalArgument("entry is invalid").WithCause(err)
	}

	var fields []string
	missing := ""
	for _, fe := range invalid {
		fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
		if fe.Tag() == "required" && missing == "" {
			missing = fe.Namespace()
		}
	}
	if missing != "" {
		return stencilerrors.NullArgument(missing).WithContext("fields", fields)
	}
	return stencilerrors.IllegalArgument("validation failed on %s", strings.Join(fields, ", "))
}
