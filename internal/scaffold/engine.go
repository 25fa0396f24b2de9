package scaffold

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/prompt"
	"github.com/conneroisu/stencil/internal/renderer"
	"github.com/conneroisu/stencil/internal/repository"
	"github.com/conneroisu/stencil/internal/validation"
)

// Engine validates and materializes scaffolds.
type Engine struct {
	builder  *renderer.Builder
	repo     repository.Repository
	fs       repository.FileSystem
	progress prompt.Progress
	logger   logging.Logger
}

// NewEngine creates an engine. A nil progress reporter discards updates.
func NewEngine(
	builder *renderer.Builder,
	repo repository.Repository,
	fs repository.FileSystem,
	progress prompt.Progress,
	logger logging.Logger,
) *Engine {
	if progress == nil {
		progress = prompt.NopProgress{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		builder:  builder,
		repo:     repo,
		fs:       fs,
		progress: progress,
		logger:   logger.WithComponent("scaffold"),
	}
}

func joinPath(elem ...string) string {
	return repository.Join(elem...)
}

// Validate checks s against vc and returns every finding. Dynamic scaffolds
// have their tree replaced by the rendered structure first.
func (e *Engine) Validate(ctx context.Context, s *Scaffold, vc *ValidationContext) ValidationErrors {
	vc.errors = nil
	vc.path = nil

	if e.conflicted(s, vc) {
		return vc.errors
	}
	if s.Dynamic {
		if !e.resolveDynamic(ctx, s, vc) {
			return vc.errors
		}
	}

	if e.checkPreconditions(s, vc) {
		total := 0
		_ = s.Root.Walk(func(*Node) error { total++; return nil })
		counter := &progressCounter{total: total - 1, title: "Validating " + s.Name}

		defer e.progress.Clear()
		e.validateChildren(ctx, s.Root, vc, counter)
	}
	return vc.errors
}

// resolveDynamic renders the structure template and swaps the tree in.
func (e *Engine) resolveDynamic(ctx context.Context, s *Scaffold, vc *ValidationContext) bool {
	fail := func(msg string, cause error) bool {
		vc.add(ErrTemplate, vc.RootPath, msg, cause)
		return false
	}

	text, err := e.loadTemplate(ctx, s.StructureTemplate)
	if err != nil {
		return fail("structure template of "+s.Name+" is unavailable", err)
	}
	scope, err := e.builder.Build(renderer.Variables{
		Input:      vc.Input,
		Selection:  vc.Selection,
		Seed:       vc.Seed,
		RootPath:   vc.RootPath,
		OutputPath: vc.RootPath,
	})
	if err != nil {
		return fail("failed to prepare structure template", err)
	}
	rendered, err := scope.Render(s.Name+" structure", text)
	if err != nil {
		return fail("failed to render structure template", err)
	}
	root, err := UnmarshalTree([]byte(rendered))
	if err != nil {
		return fail("rendered structure is not a valid tree", err)
	}

	s.Root = root
	return true
}

// conflicted records one Undefined error per function registry conflict.
// Nothing is rendered while any exist, not even a structure template.
func (e *Engine) conflicted(s *Scaffold, vc *ValidationContext) bool {
	conflicts := e.builder.Registry().Conflicts()
	if len(conflicts) == 0 {
		return false
	}
	for _, c := range conflicts {
		vc.add(ErrUndefined, "", c.String(), nil)
	}
	e.logger.Error(context.Background(), nil, "Function registry has conflicts, scaffold skipped",
		"scaffold", s.Name, "conflicts", len(conflicts))
	return true
}

// checkPreconditions records the errors that stop validation before the
// tree is walked. It reports whether the walk may proceed.
func (e *Engine) checkPreconditions(s *Scaffold, vc *ValidationContext) bool {
	if s.Root == nil || s.Root.ChildCount() == 0 {
		vc.add(ErrUndefined, vc.RootPath, "empty tree", nil)
		return false
	}

	ok := true
	_ = s.Root.Walk(func(n *Node) error {
		if !n.IsFile() {
			return nil
		}
		if err := renderer.CheckReserved(n.InputNames()); err != nil {
			vc.add(ErrUndefined, n.Path(), "file inputs use reserved names", err)
			ok = false
		}
		return nil
	})
	return ok
}

func (e *Engine) validateChildren(ctx context.Context, parent *Node, vc *ValidationContext, counter *progressCounter) {
	seen := make(map[string]bool, parent.ChildCount())
	for _, child := range parent.children {
		counter.step(e.progress, joinPath(vc.CurrentPath(), child.name))

		name, ok := e.renderName(child, vc)
		if !ok {
			continue
		}
		vc.push(name)
		path := vc.CurrentPath()

		if seen[name] {
			vc.add(ErrFilename, path, fmt.Sprintf("duplicate name %q", name), nil)
		}
		seen[name] = true

		if e.fs.FileExists(path) {
			err := &ScaffoldError{Kind: ErrOverwrite, Message: child.kind.String() + " already exists", Path: path, NodeKind: child.kind}
			vc.errors = append(vc.errors, err)
		}

		switch child.kind {
		case KindFile:
			e.renderBody(ctx, child, vc, path)
		case KindDirectory:
			if child.ChildCount() == 0 {
				vc.add(ErrUndefined, path, "empty directory", nil)
			}
			e.validateChildren(ctx, child, vc, counter)
		}
		vc.pop()
	}
}

func (e *Engine) renderName(n *Node, vc *ValidationContext) (string, bool) {
	at := joinPath(vc.CurrentPath(), n.name)
	n.rendered = ""

	scope, err := e.builder.Build(renderer.Variables{
		Input:      vc.Input,
		Selection:  vc.Selection,
		Seed:       vc.Seed,
		RootPath:   vc.RootPath,
		OutputPath: vc.CurrentPath(),
	})
	if err != nil {
		vc.add(ErrUndefined, at, "failed to prepare name context", err)
		return "", false
	}
	name, err := scope.Render(n.name, n.name)
	if err != nil {
		vc.add(ErrFilename, at, "failed to render name", err)
		return "", false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		vc.add(ErrFilename, at, "name renders empty", nil)
		return "", false
	}
	if err := validation.ValidateFilename(name); err != nil {
		vc.add(ErrFilename, joinPath(vc.CurrentPath(), name), "illegal name", err)
		return "", false
	}

	n.rendered = name
	return name, true
}

func (e *Engine) renderBody(ctx context.Context, n *Node, vc *ValidationContext, path string) {
	n.body = ""

	text, err := e.loadTemplate(ctx, n.template)
	if err != nil {
		vc.add(ErrTemplate, path, "template unavailable", err)
		return
	}

	extra := make(map[string]interface{}, len(n.inputs))
	for name, ref := range n.inputs {
		v, err := e.loadValue(ctx, ref)
		if err != nil {
			vc.add(ErrTemplate, path, fmt.Sprintf("input %q unavailable", name), err)
			return
		}
		extra[name] = v
	}

	scope, err := e.builder.Build(renderer.Variables{
		Input:      vc.Input,
		Selection:  vc.Selection,
		Seed:       vc.Seed,
		RootPath:   vc.RootPath,
		OutputPath: path,
		Extra:      extra,
	})
	if err != nil {
		vc.add(ErrUndefined, path, "failed to prepare template context", err)
		return
	}
	body, err := scope.Render(path, text)
	if err != nil {
		vc.add(ErrTemplate, path, "failed to render template", err)
		return
	}
	n.body = body
}

func (e *Engine) loadTemplate(ctx context.Context, ref string) (string, error) {
	res, err := e.load(ctx, ref)
	if err != nil {
		return "", err
	}
	return string(res.Content), nil
}

func (e *Engine) loadValue(ctx context.Context, ref string) (interface{}, error) {
	res, err := e.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return res.Value()
}

func (e *Engine) load(ctx context.Context, ref string) (*repository.Resource, error) {
	if ref == "" {
		return nil, fmt.Errorf("no template reference")
	}
	p, ok := e.repo.PathOf(ref)
	if !ok {
		return nil, fmt.Errorf("reference %s does not resolve", ref)
	}
	return e.repo.Load(ctx, p, repository.KindAny)
}

// Generate validates s and, when nothing blocks, creates its directories and
// writes its files. Paths in skip are left untouched. It returns the paths
// created or written in tree order together with the validation findings;
// a blocking finding yields nil paths, otherwise the slice is non-nil.
func (e *Engine) Generate(ctx context.Context, s *Scaffold, vc *ValidationContext, skip []string) ([]string, ValidationErrors) {
	errs := e.Validate(ctx, s, vc)
	if blocking := errs.Blocking(); len(blocking) > 0 {
		e.logger.Error(ctx, blocking, "Scaffold validation failed, nothing generated",
			"scaffold", s.Name, "errors", len(blocking))
		return nil, errs
	}

	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[repository.Clean(p)] = true
	}

	perf := logging.StartOperation(e.logger, "generate")
	paths := []string{}
	e.materialize(s.Root, vc.RootPath, skipped, &paths)

	for _, p := range paths {
		if _, err := e.repo.Import(ctx, p); err != nil {
			e.logger.Warn(ctx, err, "Failed to import generated asset", "path", p)
		}
	}
	perf.End(ctx, "scaffold", s.Name, "paths", len(paths))
	e.logger.Info(ctx, "Scaffold generated", "scaffold", s.Name, "target", vc.RootPath, "paths", len(paths))
	return paths, errs
}

func (e *Engine) materialize(parent *Node, at string, skip map[string]bool, paths *[]string) {
	for _, child := range parent.children {
		path := joinPath(at, child.rendered)
		switch child.kind {
		case KindDirectory:
			if !e.fs.FileExists(path) {
				if err := e.fs.CreateDirectory(path); err != nil {
					e.logger.Error(context.Background(), err, "Failed to create directory", "path", path)
					continue
				}
				*paths = append(*paths, path)
			}
			e.materialize(child, path, skip, paths)
		case KindFile:
			if skip[path] {
				continue
			}
			if err := e.fs.WriteText(path, child.body); err != nil {
				e.logger.Error(context.Background(), err, "Failed to write file", "path", path)
				continue
			}
			*paths = append(*paths, path)
		}
	}
}

type progressCounter struct {
	title string
	total int
	done  int
}

func (c *progressCounter) step(p prompt.Progress, label string) {
	c.done++
	fraction := 1.0
	if c.total > 0 {
		fraction = float64(c.done) / float64(c.total)
	}
	p.Show(c.title, label, fraction)
}
