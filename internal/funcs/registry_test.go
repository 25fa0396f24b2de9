package funcs

import (
	"bytes"
	"strings"
	"testing"
	"text/template"

	"github.com/conneroisu/stencil/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NoConflictsWithBuiltinOnly(t *testing.T) {
	r := NewRegistry(nil)

	assert.False(t, r.HasConflicts())
	assert.Equal(t, []string{BuiltinModuleName}, r.Modules())
	assert.Contains(t, r.FuncMap(), "snake")
}

func TestRegistry_Conflicts(t *testing.T) {
	tests := []struct {
		name     string
		module   Module
		kind     ConflictKind
		funcName string
	}{
		{
			name:     "duplicate of builtin",
			module:   MapModule{ModuleName: "custom", FuncMap: template.FuncMap{"upper": strings.ToUpper}},
			kind:     ConflictDuplicate,
			funcName: "upper",
		},
		{
			name:     "reserved keyword",
			module:   MapModule{ModuleName: "custom", FuncMap: template.FuncMap{"Seed": func() int { return 1 }}},
			kind:     ConflictReserved,
			funcName: "Seed",
		},
		{
			name:     "invalid identifier",
			module:   MapModule{ModuleName: "custom", FuncMap: template.FuncMap{"to-upper": strings.ToUpper}},
			kind:     ConflictInvalidName,
			funcName: "to-upper",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(nil, tt.module)

			conflicts := r.Conflicts()
			require.Len(t, conflicts, 1)
			assert.Equal(t, tt.kind, conflicts[0].Kind)
			assert.Equal(t, tt.funcName, conflicts[0].Name)
			assert.True(t, r.HasConflicts())
		})
	}
}

func TestRegistry_ConflictsCachedAndLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Output: &buf})

	dup := MapModule{ModuleName: "a", FuncMap: template.FuncMap{"greet": func() string { return "hi" }}}
	dup2 := MapModule{ModuleName: "b", FuncMap: template.FuncMap{"greet": func() string { return "yo" }}}
	r := NewRegistry(logger, dup, dup2)

	first := r.Conflicts()
	second := r.Conflicts()
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "b"}, first[0].Modules)
	assert.Equal(t, 1, strings.Count(buf.String(), "Template function conflict"))

	err := r.Register(MapModule{ModuleName: "late"})
	assert.Error(t, err)

	r.Invalidate()
	require.NoError(t, r.Register(MapModule{ModuleName: "late"}))
	assert.True(t, r.HasConflicts())
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("name"))
	assert.True(t, IsIdentifier("_x1"))
	assert.False(t, IsIdentifier("1x"))
	assert.False(t, IsIdentifier("a.b"))
	assert.False(t, IsIdentifier(""))
}

func TestBuiltinFuncs(t *testing.T) {
	fm := Builtin().Funcs()

	tests := []struct {
		tmpl     string
		expected string
	}{
		{`{{snake "HelloWorld"}}`, "hello_world"},
		{`{{kebab "hello world"}}`, "hello-world"},
		{`{{camel "user_name"}}`, "userName"},
		{`{{pascal "user-name"}}`, "UserName"},
		{`{{title "hello"}}`, "Hello"},
		{`{{upper "abc"}}`, "ABC"},
		{`{{"a,b" | split "," | join "+"}}`, "a+b"},
		{`{{default "x" ""}}`, "x"},
		{`{{indent 2 "a\nb"}}`, "  a\n  b"},
		{`{{range seq 3}}{{.}}{{end}}`, "012"},
		{`{{dedent "  a\n  b"}}`, "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			tmpl, err := template.New("t").Funcs(fm).Parse(tt.tmpl)
			require.NoError(t, err)

			var out bytes.Buffer
			require.NoError(t, tmpl.Execute(&out, nil))
			assert.Equal(t, tt.expected, out.String())
		})
	}

	id, ok := fm["uuid"].(func() string)
	require.True(t, ok)
	assert.Len(t, id(), 36)
}
