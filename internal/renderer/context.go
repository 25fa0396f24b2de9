// Package renderer builds the isolated template scope used for every render
// call and executes templates against it.
//
// A Scope is rebuilt per call from the function registry and the current
// variables; nothing is shared between two renders. Context variables are
// reachable both as fields of dot ({{.Input.name}}) and as zero-argument
// functions ({{Input.name}}), and the top-level keys of a map input are also
// exposed as bare names ({{variable}}).
package renderer

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"

	stencilerrors "github.com/conneroisu/stencil/internal/errors"
	"github.com/conneroisu/stencil/internal/funcs"
)

// Variables is the input of one render call.
type Variables struct {
	Input      interface{}
	InputName  string // optional named input slot, exposed next to Input
	OutputPath string
	Selection  interface{}
	Seed       int64
	RootPath   string
	Extra      map[string]interface{} // per-node named inputs
}

// ReservedNameError is returned when an extra input reuses a context keyword.
type ReservedNameError struct {
	Names []string
}

func (e *ReservedNameError) Error() string {
	return fmt.Sprintf("input names %s are reserved", strings.Join(e.Names, ", "))
}

// Builder assembles scopes from a function registry.
type Builder struct {
	registry *funcs.Registry
}

// NewBuilder creates a Builder over registry.
func NewBuilder(registry *funcs.Registry) *Builder {
	return &Builder{registry: registry}
}

// Registry returns the registry the builder draws functions from.
func (b *Builder) Registry() *funcs.Registry {
	return b.registry
}

// CheckReserved returns a *ReservedNameError when any of names is a context
// keyword. It runs before any rendering is attempted.
func CheckReserved(names []string) error {
	var bad []string
	for _, n := range names {
		if funcs.IsReserved(n) {
			bad = append(bad, n)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return &ReservedNameError{Names: bad}
}

// Build returns a fresh scope for vars.
func (b *Builder) Build(vars Variables) (*Scope, error) {
	extraNames := make([]string, 0, len(vars.Extra))
	for name := range vars.Extra {
		extraNames = append(extraNames, name)
	}
	if err := CheckReserved(extraNames); err != nil {
		return nil, err
	}
	for _, name := range extraNames {
		if !funcs.IsIdentifier(name) {
			return nil, fmt.Errorf("input name %q is not a valid identifier", name)
		}
	}
	if vars.InputName != "" && vars.InputName != funcs.NameInput {
		if funcs.IsReserved(vars.InputName) {
			return nil, &ReservedNameError{Names: []string{vars.InputName}}
		}
		if !funcs.IsIdentifier(vars.InputName) {
			return nil, fmt.Errorf("input slot name %q is not a valid identifier", vars.InputName)
		}
	}

	fm := template.FuncMap{}
	if b.registry != nil {
		fm = b.registry.FuncMap()
	}

	data := map[string]interface{}{
		funcs.NameInput:      vars.Input,
		funcs.NameSelection:  vars.Selection,
		funcs.NameSeed:       vars.Seed,
		funcs.NameRootPath:   vars.RootPath,
		funcs.NameOutputPath: vars.OutputPath,
	}

	// Input members first so explicit names below take precedence.
	if m, ok := vars.Input.(map[string]interface{}); ok {
		for k, v := range m {
			if !funcs.IsIdentifier(k) || funcs.IsReserved(k) {
				continue
			}
			if _, taken := fm[k]; taken {
				continue
			}
			data[k] = v
		}
	}
	if vars.InputName != "" {
		data[vars.InputName] = vars.Input
	}
	for k, v := range vars.Extra {
		data[k] = v
	}

	for k, v := range data {
		if _, isFunc := fm[k]; isFunc && !funcs.IsReserved(k) {
			continue
		}
		fm[k] = constant(v)
	}

	return &Scope{funcs: fm, data: data}, nil
}

func constant(v interface{}) func() interface{} {
	return func() interface{} { return v }
}

// Scope is the execution environment of a single render.
type Scope struct {
	funcs template.FuncMap
	data  map[string]interface{}
}

// Data returns the value passed as dot.
func (s *Scope) Data() map[string]interface{} {
	return s.data
}

// Render parses text and executes it against the scope.
func (s *Scope) Render(name, text string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = stencilerrors.NewTemplateError(fmt.Sprintf("template %s panicked", name), fmt.Errorf("%v", r))
		}
	}()

	tmpl, err := template.New(name).Funcs(s.funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", stencilerrors.NewTemplateError("failed to parse template "+name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, s.data); err != nil {
		return "", stencilerrors.NewTemplateError("failed to render template "+name, err)
	}
	return buf.String(), nil
}

// CheckSyntax parses text without resolving function names, so templates can
// be validated before the variables that feed them are known.
func CheckSyntax(name, text string) error {
	tree := parse.New(name)
	tree.Mode = parse.SkipFuncCheck | parse.ParseComments
	if _, err := tree.Parse(text, "", "", make(map[string]*parse.Tree)); err != nil {
		return stencilerrors.NewTemplateError("invalid template "+name, err)
	}
	return nil
}
