package scaffold

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	stencilerrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/prompt"
	"github.com/conneroisu/stencil/internal/repository"
)

// DefaultMaxAttempts bounds the interactive input loop.
const DefaultMaxAttempts = 5

var (
	// ErrGenerationInProgress is returned when another generation holds the
	// process-wide guard.
	ErrGenerationInProgress = errors.New("a scaffold generation is already in progress")
	// ErrCancelled is returned when the user aborts input collection or an
	// overwrite decision.
	ErrCancelled = prompt.ErrCancelled
)

// OverwritePolicy decides what happens to files that already exist.
type OverwritePolicy int

const (
	PolicyPrompt OverwritePolicy = iota
	PolicyOverwriteAll
	PolicySkipAll
)

func (p OverwritePolicy) String() string {
	switch p {
	case PolicyPrompt:
		return "prompt"
	case PolicyOverwriteAll:
		return "overwrite"
	case PolicySkipAll:
		return "skip"
	default:
		return "unknown"
	}
}

// ParseOverwritePolicy accepts the names returned by String.
func ParseOverwritePolicy(s string) (OverwritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prompt", "":
		return PolicyPrompt, nil
	case "overwrite", "overwrite-all", "all":
		return PolicyOverwriteAll, nil
	case "skip", "skip-all", "none":
		return PolicySkipAll, nil
	default:
		return PolicyPrompt, fmt.Errorf("unknown overwrite policy %q", s)
	}
}

// GenerateRequest describes one generation.
type GenerateRequest struct {
	Scaffold   *Scaffold
	TargetPath string
	Input      interface{}
	// Selection defaults to {name, path} of the target directory.
	Selection interface{}
	Policy    OverwritePolicy
}

// Facade orchestrates scaffold generation for the CLI.
type Facade struct {
	engine    *Engine
	repo      repository.Repository
	scaffolds *Collection
	collector prompt.InputCollector
	resolver  prompt.OverwriteResolver
	logger    logging.Logger

	// mu serializes changes to scaffolds and the persist that follows.
	mu sync.Mutex

	guard       *semaphore.Weighted
	maxAttempts int
}

// FacadeOption configures a Facade.
type FacadeOption func(*Facade)

// WithInputCollector sets the form used for schema input.
func WithInputCollector(c prompt.InputCollector) FacadeOption {
	return func(f *Facade) { f.collector = c }
}

// WithOverwriteResolver sets the menu used by PolicyPrompt.
func WithOverwriteResolver(r prompt.OverwriteResolver) FacadeOption {
	return func(f *Facade) { f.resolver = r }
}

// WithMaxAttempts bounds the input loop. Values below one are ignored.
func WithMaxAttempts(n int) FacadeOption {
	return func(f *Facade) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// NewFacade creates a facade over engine and the configured scaffolds.
func NewFacade(engine *Engine, repo repository.Repository, scaffolds *Collection, logger logging.Logger, opts ...FacadeOption) *Facade {
	if logger == nil {
		logger = logging.Nop()
	}
	if scaffolds == nil {
		scaffolds = NewCollection()
	}
	f := &Facade{
		engine:      engine,
		repo:        repo,
		scaffolds:   scaffolds,
		logger:      logger.WithComponent("scaffold"),
		guard:       semaphore.NewWeighted(1),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetMaxAttempts changes the bound of the input loop. Values below one are
// ignored.
func (f *Facade) SetMaxAttempts(n int) {
	if n > 0 {
		f.maxAttempts = n
	}
}

// Scaffolds returns the managed collection.
func (f *Facade) Scaffolds() *Collection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scaffolds
}

// SetScaffolds swaps the managed collection, as after a settings reload.
func (f *Facade) SetScaffolds(c *Collection) {
	if c == nil {
		c = NewCollection()
	}
	f.mu.Lock()
	f.scaffolds = c
	f.mu.Unlock()
}

// Generate validates and materializes a scaffold. It returns the paths
// created or written; nil paths with a nil error mean validation failed and
// was logged.
func (f *Facade) Generate(ctx context.Context, req GenerateRequest) ([]string, error) {
	if err := f.checkRequest(req); err != nil {
		return nil, err
	}
	if !f.guard.TryAcquire(1) {
		return nil, ErrGenerationInProgress
	}
	defer f.guard.Release(1)

	target := repository.Clean(req.TargetPath)
	selection := req.Selection
	if selection == nil {
		selection = map[string]interface{}{"name": path.Base(target), "path": target}
	}

	if req.Input != nil || !req.Scaffold.HasSchema() {
		vc := NewValidationContext(target, req.Input, selection)
		errs := f.engine.Validate(ctx, req.Scaffold, vc)
		if len(errs.Blocking()) > 0 {
			f.logger.Error(ctx, errs.Blocking(), "Scaffold is invalid", "scaffold", req.Scaffold.Name)
			return nil, nil
		}
		skip, err := f.resolveOverwrites(ctx, errs.OverwriteFiles(), req.Policy)
		if err != nil {
			return nil, err
		}
		paths, _ := f.engine.Generate(ctx, req.Scaffold, vc, skip)
		return paths, nil
	}

	return f.generateInteractive(ctx, req, target, selection)
}

// generateInteractive runs the collect, validate, resolve loop. Blocking
// errors send the user back to the form with the previous answers.
func (f *Facade) generateInteractive(ctx context.Context, req GenerateRequest, target string, selection interface{}) ([]string, error) {
	if f.collector == nil {
		return nil, stencilerrors.InvalidOperation("scaffold %s needs input but no input collector is configured", req.Scaffold.Name)
	}

	fields := req.Scaffold.Fields()
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}

		title := fmt.Sprintf("%s (attempt %d/%d)", req.Scaffold.Name, attempt, f.maxAttempts)
		input, err := f.collector.Collect(ctx, title, fields)
		if err != nil {
			if errors.Is(err, prompt.ErrCancelled) || ctx.Err() != nil {
				return nil, ErrCancelled
			}
			return nil, err
		}
		fields = withDefaults(fields, input)

		vc := NewValidationContext(target, input, selection)
		errs := f.engine.Validate(ctx, req.Scaffold, vc)
		if blocking := errs.Blocking(); len(blocking) > 0 {
			f.logger.Warn(ctx, blocking, "Scaffold input rejected", "scaffold", req.Scaffold.Name, "attempt", attempt)
			continue
		}

		skip, err := f.resolveOverwrites(ctx, errs.OverwriteFiles(), req.Policy)
		if err != nil {
			return nil, err
		}
		paths, _ := f.engine.Generate(ctx, req.Scaffold, vc, skip)
		return paths, nil
	}

	f.logger.Error(ctx, nil, "Giving up on scaffold input", "scaffold", req.Scaffold.Name, "attempts", f.maxAttempts)
	return nil, nil
}

// resolveOverwrites turns the policy into the set of paths to leave alone.
func (f *Facade) resolveOverwrites(ctx context.Context, existing []string, policy OverwritePolicy) ([]string, error) {
	if len(existing) == 0 {
		return nil, nil
	}
	switch policy {
	case PolicyOverwriteAll:
		return nil, nil
	case PolicySkipAll:
		return existing, nil
	}

	if f.resolver == nil {
		return nil, stencilerrors.InvalidOperation("overwrite policy prompt needs an overwrite resolver")
	}

	var skip []string
	for i, p := range existing {
		decision, err := f.resolver.Resolve(ctx, p)
		if err != nil {
			if errors.Is(err, prompt.ErrCancelled) || ctx.Err() != nil {
				return nil, ErrCancelled
			}
			return nil, err
		}
		switch decision {
		case prompt.DecisionSkip:
			skip = append(skip, p)
		case prompt.DecisionSkipAll:
			return append(skip, existing[i:]...), nil
		case prompt.DecisionOverwriteAll:
			return skip, nil
		}
	}
	return skip, nil
}

// Validate runs validation without generating.
func (f *Facade) Validate(ctx context.Context, req GenerateRequest) (ValidationErrors, error) {
	if err := f.checkRequest(req); err != nil {
		return nil, err
	}
	target := repository.Clean(req.TargetPath)
	selection := req.Selection
	if selection == nil {
		selection = map[string]interface{}{"name": path.Base(target), "path": target}
	}
	input := req.Input
	if input == nil && req.Scaffold.HasSchema() {
		input = req.Scaffold.DefaultInput()
	}
	return f.engine.Validate(ctx, req.Scaffold, NewValidationContext(target, input, selection)), nil
}

func (f *Facade) checkRequest(req GenerateRequest) error {
	if req.Scaffold == nil {
		return stencilerrors.NullArgument("scaffold")
	}
	if req.TargetPath == "" {
		return stencilerrors.NullArgument("target path")
	}
	if !f.repo.IsValidDirectory(req.TargetPath) {
		return stencilerrors.DirectoryNotFound(req.TargetPath)
	}
	if !req.Scaffold.EnabledFor(req.TargetPath) {
		return stencilerrors.InvalidOperation("scaffold %s is disabled for %s", req.Scaffold.Name, req.TargetPath)
	}
	return nil
}

// Add registers s and persists the settings. Names are unique regardless of
// case.
func (f *Facade) Add(ctx context.Context, s *Scaffold) error {
	if s == nil {
		return stencilerrors.NullArgument("scaffold")
	}
	if strings.TrimSpace(s.Name) == "" {
		return stencilerrors.NullArgument("scaffold name")
	}
	if s.Root == nil {
		s.Root = NewRoot()
	}
	if !s.Root.IsValid() {
		return stencilerrors.IllegalArgument("scaffold %s has an invalid tree", s.Name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.scaffolds.Get(s.Name); exists {
		return stencilerrors.IllegalArgument("scaffold %s already exists", s.Name)
	}
	f.scaffolds.Add(s)
	if err := f.repo.Persist(ctx); err != nil {
		return err
	}
	f.logger.Info(ctx, "Scaffold added", "scaffold", s.Name)
	return nil
}

// Remove drops the named scaffold and persists the settings.
func (f *Facade) Remove(ctx context.Context, name string) error {
	if name == "" {
		return stencilerrors.NullArgument("scaffold name")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.scaffolds.Remove(name) {
		return stencilerrors.NotFound("scaffold", name)
	}
	if err := f.repo.Persist(ctx); err != nil {
		return err
	}
	f.logger.Info(ctx, "Scaffold removed", "scaffold", name)
	return nil
}

// EnableForSelection re-enables the named scaffold for selection, or
// globally when selection is empty, and persists the settings.
func (f *Facade) EnableForSelection(ctx context.Context, name, selection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scaffolds.Get(name)
	if !ok {
		return stencilerrors.NotFound("scaffold", name)
	}
	if selection == "" {
		s.Enabled = true
	} else if !s.EnableForSelection(selection) {
		return nil
	}
	return f.repo.Persist(ctx)
}

// DisableForSelection hides the named scaffold for selection, or everywhere
// when selection is empty, and persists the settings.
func (f *Facade) DisableForSelection(ctx context.Context, name, selection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scaffolds.Get(name)
	if !ok {
		return stencilerrors.NotFound("scaffold", name)
	}
	if selection == "" {
		s.Enabled = false
	} else if !s.DisableForSelection(selection) {
		return nil
	}
	return f.repo.Persist(ctx)
}

// Available lists the scaffolds enabled for selection.
func (f *Facade) Available(selection string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scaffolds.Available(selection)
}

func withDefaults(fields []prompt.Field, input map[string]interface{}) []prompt.Field {
	out := make([]prompt.Field, len(fields))
	for i, fld := range fields {
		if v, ok := input[fld.Name]; ok {
			fld.Default = fmt.Sprint(v)
		}
		out[i] = fld
	}
	return out
}
