package scaffold

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stencil/internal/funcs"
	"github.com/conneroisu/stencil/internal/renderer"
	"github.com/conneroisu/stencil/internal/testutils"
)

type fixture struct {
	*testutils.Project
	engine *Engine
}

func newFixture(t *testing.T, modules ...funcs.Module) *fixture {
	t.Helper()
	p := testutils.NewProject(t)
	reg := funcs.NewRegistry(p.Logger, modules...)
	return &fixture{
		Project: p,
		engine:  NewEngine(renderer.NewBuilder(reg), p.Repo, p.FS, p.Progress, p.Logger),
	}
}

var (
	rootInput = map[string]interface{}{"name": "roach"}
	selection = map[string]interface{}{"name": "TestScaffold"}
)

// nestedScaffold is root -> NewDirectory{{Input.name}} -> NewFile{{Selection.name}}.
func (f *fixture) nestedScaffold(t *testing.T) *Scaffold {
	t.Helper()
	ref := f.Write(t, "templates/file.tmpl", "hello {{Input.name}} from {{Selection.name}}")

	s := New("example")
	dir := NewDirectory("NewDirectory{{Input.name}}")
	require.NoError(t, s.Root.AddChild(dir))
	require.NoError(t, dir.AddChild(NewFile("NewFile{{Selection.name}}", ref)))
	return s
}

func TestGenerate_RendersNamesInTreeOrder(t *testing.T) {
	f := newFixture(t)
	s := f.nestedScaffold(t)

	vc := NewValidationContext("out", rootInput, selection)
	paths, errs := f.engine.Generate(context.Background(), s, vc, nil)

	assert.Empty(t, errs)
	require.Equal(t, []string{
		"out/NewDirectoryroach",
		"out/NewDirectoryroach/NewFileTestScaffold",
	}, paths)
	assert.Equal(t, "hello roach from TestScaffold", f.Read(t, "out/NewDirectoryroach/NewFileTestScaffold"))

	_, ok := f.Repo.RefOf("out/NewDirectoryroach/NewFileTestScaffold")
	assert.True(t, ok, "generated files are imported")
	assert.Equal(t, "NewDirectoryroach", s.Root.Children()[0].RenderedName())
}

func TestValidate_EmptyTree(t *testing.T) {
	f := newFixture(t)
	s := New("empty")

	vc := NewValidationContext("out", rootInput, selection)
	errs := f.engine.Validate(context.Background(), s, vc)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUndefined, errs[0].Kind)
	assert.Contains(t, errs[0].Error(), "empty tree")

	paths, _ := f.engine.Generate(context.Background(), s, vc, nil)
	assert.Nil(t, paths)
	assert.Empty(t, f.FS.Created)
	assert.Zero(t, f.FS.WriteCount())
}

func TestValidate_DuplicateRenderedSiblings(t *testing.T) {
	f := newFixture(t)
	ref := f.Write(t, "templates/x.tmpl", "x")

	s := New("dups")
	for _, raw := range []string{"{{Input.a}}", "{{Input.b}}"} {
		d := NewDirectory(raw)
		require.NoError(t, s.Root.AddChild(d))
		require.NoError(t, d.AddChild(NewFile("f.txt", ref)))
	}
	require.True(t, s.Root.IsValid(), "raw names differ")

	vc := NewValidationContext("out", map[string]interface{}{"a": "same", "b": "same"}, nil)
	errs := f.engine.Validate(context.Background(), s, vc)

	filename := errs.OfKind(ErrFilename)
	require.Len(t, filename, 1)
	assert.Equal(t, "out/same", filename[0].Path)
	assert.Contains(t, filename[0].Message, "duplicate")

	paths, _ := f.engine.Generate(context.Background(), s, vc, nil)
	assert.Nil(t, paths)
}

func TestValidate_NodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		build   func(t *testing.T, f *fixture) *Scaffold
		input   map[string]interface{}
		kind    ErrorKind
		message string
	}{
		{
			name: "empty directory",
			build: func(t *testing.T, f *fixture) *Scaffold {
				s := New("s")
				require.NoError(t, s.Root.AddChild(NewDirectory("lonely")))
				return s
			},
			kind:    ErrUndefined,
			message: "empty directory",
		},
		{
			name: "missing template",
			build: func(t *testing.T, f *fixture) *Scaffold {
				s := New("s")
				require.NoError(t, s.Root.AddChild(NewFile("a.txt", "no-such-ref")))
				return s
			},
			kind:    ErrTemplate,
			message: "template unavailable",
		},
		{
			name: "template that fails",
			build: func(t *testing.T, f *fixture) *Scaffold {
				ref := f.Write(t, "templates/bad.tmpl", "{{Input.missing}}")
				s := New("s")
				require.NoError(t, s.Root.AddChild(NewFile("a.txt", ref)))
				return s
			},
			kind:    ErrTemplate,
			message: "failed to render template",
		},
		{
			name: "illegal rendered name",
			build: func(t *testing.T, f *fixture) *Scaffold {
				ref := f.Write(t, "templates/ok.tmpl", "ok")
				s := New("s")
				require.NoError(t, s.Root.AddChild(NewFile("a{{Input.sep}}b", ref)))
				return s
			},
			input:   map[string]interface{}{"sep": "|"},
			kind:    ErrFilename,
			message: "illegal name",
		},
		{
			name: "empty rendered name",
			build: func(t *testing.T, f *fixture) *Scaffold {
				ref := f.Write(t, "templates/ok.tmpl", "ok")
				s := New("s")
				require.NoError(t, s.Root.AddChild(NewFile("{{Input.blank}}", ref)))
				return s
			},
			input:   map[string]interface{}{"blank": ""},
			kind:    ErrFilename,
			message: "name renders empty",
		},
		{
			name: "reserved input name",
			build: func(t *testing.T, f *fixture) *Scaffold {
				ref := f.Write(t, "templates/ok.tmpl", "ok")
				file := NewFile("a.txt", ref)
				file.SetInput("Seed", ref)
				s := New("s")
				require.NoError(t, s.Root.AddChild(file))
				return s
			},
			kind:    ErrUndefined,
			message: "reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := tt.build(t, f)
			input := tt.input
			if input == nil {
				input = rootInput
			}

			vc := NewValidationContext("out", input, selection)
			errs := f.engine.Validate(context.Background(), s, vc)

			matching := errs.OfKind(tt.kind)
			require.NotEmpty(t, matching, "errors: %v", errs)
			assert.Contains(t, matching[0].Error(), tt.message)

			paths, _ := f.engine.Generate(context.Background(), s, vc, nil)
			assert.Nil(t, paths)
			assert.Zero(t, f.FS.WriteCount())
		})
	}
}

func TestValidate_RegistryConflictsShortCircuit(t *testing.T) {
	clash := funcs.MapModule{ModuleName: "clash", FuncMap: template.FuncMap{"upper": strings.ToUpper}}
	f := newFixture(t, clash)
	s := f.nestedScaffold(t)

	for i := 0; i < 2; i++ {
		vc := NewValidationContext("out", rootInput, selection)
		errs := f.engine.Validate(context.Background(), s, vc)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrUndefined, errs[0].Kind)
		assert.Contains(t, errs[0].Message, "upper")
	}
	assert.Empty(t, s.Root.Children()[0].RenderedName(), "no node was rendered")
	assert.Contains(t, f.Logs(), "Function registry has conflicts")
}

func TestGenerate_OverwriteIsAdvisory(t *testing.T) {
	f := newFixture(t)
	s := f.nestedScaffold(t)
	testutils.WriteFile(t, f.Root, "out/NewDirectoryroach/NewFileTestScaffold", "old")

	vc := NewValidationContext("out", rootInput, selection)
	errs := f.engine.Validate(context.Background(), s, vc)
	require.Len(t, errs, 2)
	assert.Empty(t, errs.Blocking())
	assert.Equal(t, []string{"out/NewDirectoryroach/NewFileTestScaffold"}, errs.OverwriteFiles())
	assert.Equal(t, []string{"out/NewDirectoryroach", "out/NewDirectoryroach/NewFileTestScaffold"}, errs.OverwritePaths())

	t.Run("skip set leaves the file", func(t *testing.T) {
		paths, _ := f.engine.Generate(context.Background(), s, vc, errs.OverwriteFiles())
		assert.Empty(t, paths)
		assert.Equal(t, "old", f.Read(t, "out/NewDirectoryroach/NewFileTestScaffold"))
	})

	t.Run("without skip the file is replaced", func(t *testing.T) {
		paths, _ := f.engine.Generate(context.Background(), s, vc, nil)
		assert.Equal(t, []string{"out/NewDirectoryroach/NewFileTestScaffold"}, paths)
		assert.Equal(t, "hello roach from TestScaffold", f.Read(t, "out/NewDirectoryroach/NewFileTestScaffold"))
	})
}

func TestGenerate_FileInputs(t *testing.T) {
	f := newFixture(t)
	tmpl := f.Write(t, "templates/license.tmpl", "(c) {{license.holder}} {{header}}")
	data := f.Write(t, "inputs/license.yaml", "holder: ACME\n")
	text := f.Write(t, "inputs/header.txt", "v1")

	file := NewFile("LICENSE", tmpl)
	file.SetInput("license", data)
	file.SetInput("header", text)
	s := New("inputs")
	require.NoError(t, s.Root.AddChild(file))

	paths, errs := f.engine.Generate(context.Background(), s, NewValidationContext("out", rootInput, nil), nil)
	require.Empty(t, errs)
	require.Equal(t, []string{"out/LICENSE"}, paths)
	assert.Equal(t, "(c) ACME v1", f.Read(t, "out/LICENSE"))
}

func TestValidate_Dynamic(t *testing.T) {
	t.Run("structure replaces the tree", func(t *testing.T) {
		f := newFixture(t)
		body := f.Write(t, "templates/main.tmpl", "package {{Input.name}}")
		structure := f.Write(t, "templates/structure.tmpl", fmt.Sprintf(`
- directory: "{{Input.name}}"
  children:
    - file: main.go
      template: %s
`, body))

		s := New("dynamic")
		s.Dynamic = true
		s.StructureTemplate = structure

		paths, errs := f.engine.Generate(context.Background(), s, NewValidationContext("out", rootInput, nil), nil)
		require.Empty(t, errs)
		assert.Equal(t, []string{"out/roach", "out/roach/main.go"}, paths)
		assert.Equal(t, "package roach", f.Read(t, "out/roach/main.go"))
		assert.Equal(t, "roach", s.Root.Children()[0].Name())

		saved, err := yaml.Marshal(s)
		require.NoError(t, err)
		assert.NotContains(t, string(saved), "tree:", "the rendered tree stays out of settings")
		assert.Contains(t, string(saved), "structure_template:")
	})

	t.Run("unparseable structure is one template error", func(t *testing.T) {
		f := newFixture(t)
		structure := f.Write(t, "templates/structure.tmpl", "- [{{Input.name}}")

		s := New("dynamic")
		s.Dynamic = true
		s.StructureTemplate = structure

		errs := f.engine.Validate(context.Background(), s, NewValidationContext("out", rootInput, nil))
		require.Len(t, errs, 1)
		assert.Equal(t, ErrTemplate, errs[0].Kind)
	})

	t.Run("registry conflicts stop the structure render", func(t *testing.T) {
		clash := funcs.MapModule{ModuleName: "clash", FuncMap: template.FuncMap{"upper": strings.ToUpper}}
		f := newFixture(t, clash)
		structure := f.Write(t, "templates/structure.tmpl", "{{ nosuchfunc }}")

		s := New("dynamic")
		s.Dynamic = true
		s.StructureTemplate = structure

		errs := f.engine.Validate(context.Background(), s, NewValidationContext("out", rootInput, nil))
		require.Len(t, errs, 1)
		assert.Equal(t, ErrUndefined, errs[0].Kind)
		assert.Contains(t, errs[0].Message, "upper")
		assert.Empty(t, errs.OfKind(ErrTemplate))
		assert.Zero(t, s.Root.ChildCount(), "structure was not rendered")

		paths, _ := f.engine.Generate(context.Background(), s, NewValidationContext("out", rootInput, nil), nil)
		assert.Nil(t, paths)
	})

	t.Run("missing structure template", func(t *testing.T) {
		f := newFixture(t)
		s := New("dynamic")
		s.Dynamic = true

		errs := f.engine.Validate(context.Background(), s, NewValidationContext("out", rootInput, nil))
		require.Len(t, errs, 1)
		assert.Equal(t, ErrTemplate, errs[0].Kind)
	})
}

func TestValidate_ProgressCleared(t *testing.T) {
	f := newFixture(t)
	s := f.nestedScaffold(t)

	f.engine.Validate(context.Background(), s, NewValidationContext("out", rootInput, selection))

	assert.Equal(t, 2, f.Progress.Shows)
	assert.Equal(t, 1, f.Progress.Clears)
	assert.False(t, f.Progress.Visible)
}

func TestGenerate_WriteFailureDoesNotStopTree(t *testing.T) {
	f := newFixture(t)
	ref := f.Write(t, "templates/x.tmpl", "x")
	s := New("partial")
	require.NoError(t, s.Root.AddChild(NewFile("a.txt", ref)))
	require.NoError(t, s.Root.AddChild(NewFile("b.txt", ref)))
	f.FS.FailWrites = map[string]error{"out/a.txt": fmt.Errorf("disk full")}

	paths, _ := f.engine.Generate(context.Background(), s, NewValidationContext("out", nil, nil), nil)
	assert.Equal(t, []string{"out/b.txt"}, paths)
	assert.Equal(t, 1, f.ErrorCount())
}
