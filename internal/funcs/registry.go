// Package funcs holds the template function modules available to every
// render: the built-in module plus modules registered explicitly at startup.
//
// Conflicts between modules are detected once, on first use, and cached for
// the lifetime of the Registry. While the cached set is non-empty every
// render and generate call is expected to refuse to run.
package funcs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"text/template"
	"unicode"

	"github.com/conneroisu/stencil/internal/logging"
)

// Reserved context names. Function modules and per-node inputs may not use
// them.
const (
	NameInput      = "Input"
	NameSelection  = "Selection"
	NameSeed       = "Seed"
	NameRootPath   = "RootPath"
	NameOutputPath = "OutputPath"
)

// ReservedNames lists the context keywords in a stable order.
var ReservedNames = []string{NameInput, NameSelection, NameSeed, NameRootPath, NameOutputPath}

// IsReserved reports whether name is a context keyword.
func IsReserved(name string) bool {
	for _, r := range ReservedNames {
		if r == name {
			return true
		}
	}
	return false
}

// IsIdentifier reports whether name can be called from a template.
func IsIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// Module is a named set of template functions.
type Module interface {
	Name() string
	Funcs() template.FuncMap
}

// MapModule adapts a FuncMap into a Module.
type MapModule struct {
	ModuleName string
	FuncMap    template.FuncMap
}

// Name implements Module.
func (m MapModule) Name() string { return m.ModuleName }

// Funcs implements Module.
func (m MapModule) Funcs() template.FuncMap { return m.FuncMap }

// ConflictKind classifies a registry conflict.
type ConflictKind int

const (
	ConflictDuplicate ConflictKind = iota
	ConflictReserved
	ConflictInvalidName
)

// Conflict describes one exported name that cannot be used.
type Conflict struct {
	Kind    ConflictKind
	Name    string
	Modules []string
}

// String renders the conflict for logs and validation errors.
func (c Conflict) String() string {
	switch c.Kind {
	case ConflictReserved:
		return fmt.Sprintf("function %q in module %s uses a reserved context name", c.Name, c.Modules[0])
	case ConflictInvalidName:
		return fmt.Sprintf("function %q in module %s is not a valid identifier", c.Name, c.Modules[0])
	default:
		return fmt.Sprintf("function %q is exported by multiple modules: %v", c.Name, c.Modules)
	}
}

// Registry owns the function modules of one process.
type Registry struct {
	mu      sync.Mutex
	modules []Module
	frozen  bool

	once      sync.Once
	conflicts []Conflict
	merged    template.FuncMap

	logger logging.Logger
}

// NewRegistry creates a registry holding the built-in module followed by
// modules.
func NewRegistry(logger logging.Logger, modules ...Module) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	r := &Registry{
		modules: append([]Module{Builtin()}, modules...),
		logger:  logger.WithComponent("funcs"),
	}
	return r
}

// Register adds a module. It fails once conflicts have been computed; a new
// Registry is needed to pick up more modules.
func (r *Registry) Register(m Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registry is frozen, cannot register module %q", m.Name())
	}
	r.modules = append(r.modules, m)
	return nil
}

// Modules returns the registered module names in registration order.
func (r *Registry) Modules() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.modules))
	for i, m := range r.modules {
		names[i] = m.Name()
	}
	return names
}

// Conflicts returns the cached conflict set, computing it on first call.
func (r *Registry) Conflicts() []Conflict {
	r.once.Do(r.compute)
	return r.conflicts
}

// HasConflicts reports whether renders must short-circuit.
func (r *Registry) HasConflicts() bool {
	return len(r.Conflicts()) > 0
}

// FuncMap returns a copy of the merged function map. When a name is exported
// twice the first module wins; callers are expected to check HasConflicts.
func (r *Registry) FuncMap() template.FuncMap {
	r.once.Do(r.compute)

	out := make(template.FuncMap, len(r.merged))
	for k, v := range r.merged {
		out[k] = v
	}
	return out
}

// Invalidate drops the cached result so the next call recomputes it. This
// stands in for a process restart.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.once = sync.Once{}
	r.conflicts = nil
	r.merged = nil
	r.frozen = false
}

func (r *Registry) compute() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frozen = true
	owners := make(map[string][]string)
	merged := make(template.FuncMap)
	var conflicts []Conflict

	for _, m := range r.modules {
		funcs := m.Funcs()
		names := make([]string, 0, len(funcs))
		for name := range funcs {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			switch {
			case IsReserved(name):
				conflicts = append(conflicts, Conflict{Kind: ConflictReserved, Name: name, Modules: []string{m.Name()}})
				continue
			case !IsIdentifier(name):
				conflicts = append(conflicts, Conflict{Kind: ConflictInvalidName, Name: name, Modules: []string{m.Name()}})
				continue
			}
			owners[name] = append(owners[name], m.Name())
			if _, ok := merged[name]; !ok {
				merged[name] = funcs[name]
			}
		}
	}

	dupes := make([]string, 0)
	for name, mods := range owners {
		if len(mods) > 1 {
			dupes = append(dupes, name)
		}
	}
	sort.Strings(dupes)
	for _, name := range dupes {
		conflicts = append(conflicts, Conflict{Kind: ConflictDuplicate, Name: name, Modules: owners[name]})
	}

	r.conflicts = conflicts
	r.merged = merged

	if len(conflicts) > 0 {
		for _, c := range conflicts {
			r.logger.Error(context.Background(), nil, "Template function conflict", "conflict", c.String())
		}
	}
}
