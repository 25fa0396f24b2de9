package entry

import (
	"context"
	"strings"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/stencil/internal/asset"
	"github.com/conneroisu/stencil/internal/funcs"
	"github.com/conneroisu/stencil/internal/renderer"
	"github.com/conneroisu/stencil/internal/repository"
	"github.com/conneroisu/stencil/internal/testutils"
)

const settingsPath = "out/stencil.settings.yml"

type fixture struct {
	*testutils.Project
	engine *Engine
	facade *Facade
	dialog *testutils.ScriptedDialog
	outDir string

	persisted int
}

func newFixture(t *testing.T, modules ...funcs.Module) *fixture {
	t.Helper()
	p := testutils.NewProject(t)
	f := &fixture{Project: p, dialog: &testutils.ScriptedDialog{}}

	f.engine = NewEngine(Config{
		SettingsPath: settingsPath,
		Builder:      renderer.NewBuilder(funcs.NewRegistry(p.Logger, modules...)),
		Repository:   p.Repo,
		FileSystem:   p.FS,
		Store:        p.Store,
		Progress:     p.Progress,
		Dialog:       f.dialog,
		Logger:       p.Logger,
	})
	f.facade = NewFacade(f.engine, p.Repo, p.Logger)
	p.Repo.OnPersist(func(context.Context) error { f.persisted++; return nil })

	ref, err := p.Repo.Import(context.Background(), "out")
	require.NoError(t, err)
	f.outDir = ref
	return f
}

// add registers a text entry rendering tmpl with input into out/filename.
func (f *fixture) add(t *testing.T, name, tmpl, input string) *Entry {
	t.Helper()
	tmplRef := f.Write(t, "templates/"+name+".tmpl", tmpl)
	inputRef := f.Write(t, "inputs/"+name+".txt", input)
	e, err := f.facade.Add(context.Background(), New(tmplRef, f.outDir, name+".txt", Input{Variant: "text", Ref: inputRef}))
	require.NoError(t, err)
	return e
}

func TestRenderEntry_TextInput(t *testing.T) {
	f := newFixture(t)
	e := f.add(t, "greeting", "Hello {{variable}}!", "world")

	require.True(t, f.engine.RenderEntry(context.Background(), e))
	assert.Equal(t, "Hello world!", f.Read(t, "out/greeting.txt"))

	require.True(t, f.engine.RenderEntry(context.Background(), e))
	assert.Equal(t, "Hello world!", f.Read(t, "out/greeting.txt"), "rendering is idempotent")

	_, imported := f.Repo.RefOf("out/greeting.txt")
	assert.True(t, imported)
}

func TestRenderEntry_DataVariant(t *testing.T) {
	f := newFixture(t)
	tmplRef := f.Write(t, "templates/data.tmpl", "{{name}} {{data.name}} {{Input.name}} {{.Input.name | upper}}")
	inputRef := f.Write(t, "inputs/data.yaml", "name: roach\n")

	e, err := f.facade.Add(context.Background(), New(tmplRef, f.outDir, "data.txt", Input{Variant: "data", Ref: inputRef}))
	require.NoError(t, err)

	require.True(t, f.engine.RenderEntry(context.Background(), e))
	assert.Equal(t, "roach roach roach ROACH", f.Read(t, "out/data.txt"))
}

func TestOnAssetsChanged(t *testing.T) {
	tests := []struct {
		name    string
		changes asset.ChangeType
		batch   func(e resolved) asset.ChangeBatch
		writes  int
	}{
		{
			name:   "input imported",
			batch:  func(r resolved) asset.ChangeBatch { return asset.ChangeBatch{Imported: []string{r.input}} },
			writes: 1,
		},
		{
			name:   "template imported",
			batch:  func(r resolved) asset.ChangeBatch { return asset.ChangeBatch{Imported: []string{r.template}} },
			writes: 1,
		},
		{
			name: "input moved here",
			batch: func(r resolved) asset.ChangeBatch {
				return asset.ChangeBatch{Moved: []asset.MovedPath{{From: "inputs/old.txt", To: r.input}}}
			},
			writes: 1,
		},
		{
			name:   "unrelated path",
			batch:  func(resolved) asset.ChangeBatch { return asset.ChangeBatch{Imported: []string{"inputs/other.txt"}} },
			writes: 0,
		},
		{
			name:   "own output",
			batch:  func(r resolved) asset.ChangeBatch { return asset.ChangeBatch{Imported: []string{r.output}} },
			writes: 0,
		},
		{
			name:    "kind not subscribed",
			changes: asset.ChangeDelete,
			batch:   func(r resolved) asset.ChangeBatch { return asset.ChangeBatch{Imported: []string{r.input}} },
			writes:  0,
		},
		{
			name:   "case and separators ignored",
			batch:  func(r resolved) asset.ChangeBatch { return asset.ChangeBatch{Imported: []string{strings.ToUpper(r.input)}} },
			writes: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			e := f.add(t, "greeting", "Hello {{variable}}!", "world")
			if tt.changes != asset.ChangeNone {
				live, _ := f.engine.Entries().Get(e.ID)
				live.Changes = tt.changes
			}

			f.engine.OnAssetsChanged(context.Background(), tt.batch(f.engine.paths(e)))
			assert.Equal(t, tt.writes, f.FS.WriteCount())
		})
	}
}

func TestDeferredEntries(t *testing.T) {
	f := newFixture(t)
	e := f.add(t, "greeting", "Hello {{variable}}!", "world")
	live, _ := f.engine.Entries().Get(e.ID)
	live.Deferred = true
	r := f.engine.paths(e)
	ctx := context.Background()

	f.engine.OnAssetsChanged(ctx, asset.ChangeBatch{Imported: []string{r.input}})
	assert.Zero(t, f.FS.WriteCount(), "input-only change of a deferred entry does not write")
	assert.Equal(t, []string{e.ID}, f.engine.Deferred())

	f.engine.OnAssetsChanged(ctx, asset.ChangeBatch{Imported: []string{r.input}})
	stored, _ := f.Store.Get(DeferredKey)
	assert.Equal(t, e.ID, stored, "the id is stored once")

	f.engine.OnAfterReload(ctx)
	assert.Equal(t, 1, f.FS.WriteCount())
	assert.Empty(t, f.engine.Deferred())

	f.engine.OnAfterReload(ctx)
	assert.Equal(t, 1, f.FS.WriteCount(), "store was cleared")

	t.Run("template change renders immediately", func(t *testing.T) {
		f.engine.OnAssetsChanged(ctx, asset.ChangeBatch{Imported: []string{r.template}})
		assert.Equal(t, 2, f.FS.WriteCount())
		assert.Empty(t, f.engine.Deferred())
	})
}

func TestDeferredIDsAreNotConfusedBySubstrings(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, "a", "A", "a")
	b := f.add(t, "b", "B", "b")

	// An id that is a substring of another must not mark the other.
	liveA, _ := f.engine.Entries().Get(a.ID)
	liveB, _ := f.engine.Entries().Get(b.ID)
	liveB.ID = liveA.ID + "-suffix"
	liveA.Deferred, liveB.Deferred = true, true

	f.engine.OnAssetsChanged(context.Background(), asset.ChangeBatch{Imported: []string{f.engine.paths(liveB).input}})
	assert.Equal(t, []string{liveB.ID}, f.engine.Deferred())

	f.engine.OnAfterReload(context.Background())
	assert.Equal(t, []string{"out/b.txt"}, f.FS.Writes)
}

func TestSettingsCatchUp(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, "a", "A", "a")
	f.add(t, "b", "B", "b")

	require.NoError(t, f.facade.FlagChanged(a.ID))
	assert.Equal(t, []string{a.ID}, f.engine.Flagged())

	f.engine.OnAssetsChanged(context.Background(), asset.ChangeBatch{Imported: []string{settingsPath}})
	assert.Equal(t, []string{"out/a.txt"}, f.FS.Writes)
	assert.Empty(t, f.engine.Flagged())

	f.engine.OnAssetsChanged(context.Background(), asset.ChangeBatch{Imported: []string{settingsPath}})
	assert.Equal(t, 1, f.FS.WriteCount())
}

func TestOverwriteProtection(t *testing.T) {
	tests := []struct {
		name   string
		target func(f *fixture, a *Entry) (dirRef, filename string)
	}{
		{
			name: "another entry's input",
			target: func(f *fixture, a *Entry) (string, string) {
				inputsRef, _ := f.Repo.RefOf("inputs")
				return inputsRef, "a.txt"
			},
		},
		{
			name: "another entry's template",
			target: func(f *fixture, a *Entry) (string, string) {
				ref, _ := f.Repo.RefOf("templates")
				return ref, "a.tmpl"
			},
		},
		{
			name: "settings container",
			target: func(f *fixture, a *Entry) (string, string) {
				return f.outDir, "stencil.settings.yml"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.add(t, "a", "A", "original")
			_, err := f.Repo.Import(context.Background(), "inputs")
			require.NoError(t, err)
			_, err = f.Repo.Import(context.Background(), "templates")
			require.NoError(t, err)

			dir, filename := tt.target(f, a)
			bad := New(a.Template, dir, filename, a.Input)
			// Bypass the facade, which would reject the entry.
			f.engine.Entries().Add(bad)

			written := f.engine.RenderEntries(context.Background(), []*Entry{bad})
			assert.Zero(t, written)
			assert.Zero(t, f.FS.WriteCount())
			assert.Equal(t, 1, f.ErrorCount())
			assert.Contains(t, f.Logs(), "Refusing to overwrite protected file")
			assert.Equal(t, "original", f.Read(t, "inputs/a.txt"))
		})
	}
}

func TestRenderEntries_FailuresDoNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	broken := f.add(t, "broken", "{{Input.missing}}", "x")
	good := f.add(t, "good", "fine", "x")

	written := f.engine.RenderEntries(context.Background(), []*Entry{broken, good})
	assert.Equal(t, 1, written)
	assert.Equal(t, []string{"out/good.txt"}, f.FS.Writes)
	assert.Equal(t, 1, f.ErrorCount())
	assert.Contains(t, f.Logs(), repository.Resolve(f.Root, "out/broken.txt"), "error names the full output path")

	assert.Equal(t, 1, f.Progress.Clears)
	assert.False(t, f.Progress.Visible)
}

func TestRenderEntries_PanicIsContained(t *testing.T) {
	if _, ok := LookupVariant("panicky-test"); !ok {
		require.NoError(t, RegisterVariant(Variant{
			Kind: "panicky-test",
			Slot: "boom",
			Decode: func(*repository.Resource) (interface{}, error) {
				panic("decoder exploded")
			},
		}))
	}

	f := newFixture(t)
	tmplRef := f.Write(t, "templates/p.tmpl", "x")
	inputRef := f.Write(t, "inputs/p.txt", "x")
	e, err := f.facade.Add(context.Background(), New(tmplRef, f.outDir, "p.txt", Input{Variant: "panicky-test", Ref: inputRef}))
	require.NoError(t, err)
	good := f.add(t, "good", "fine", "x")

	assert.Equal(t, 1, f.engine.RenderEntries(context.Background(), []*Entry{e, good}))
	assert.Contains(t, f.Logs(), "Entry render panicked")
	assert.False(t, f.Progress.Visible)
}

func TestRenderEntries_RegistryConflicts(t *testing.T) {
	clash := funcs.MapModule{ModuleName: "clash", FuncMap: template.FuncMap{"lower": strings.ToLower}}
	f := newFixture(t, clash)
	e := f.add(t, "greeting", "Hello {{variable}}!", "world")

	for i := 0; i < 2; i++ {
		assert.False(t, f.engine.RenderEntry(context.Background(), e))
	}
	assert.Zero(t, f.FS.WriteCount())
	assert.Equal(t, 2, strings.Count(f.Logs(), "rendering skipped"))
}

func TestRenderAllValidEntries(t *testing.T) {
	f := newFixture(t)
	f.add(t, "a", "A", "a")
	f.add(t, "b", "B", "b")

	invalid := New("missing-template", f.outDir, "c.txt", Input{Variant: "text", Ref: "missing-input"})
	f.engine.Entries().Add(invalid)

	assert.Equal(t, 2, f.engine.RenderAllValidEntries(context.Background()))
	assert.Zero(t, f.ErrorCount(), "invalid entries are filtered out, not reported")
}

func TestOnWillDeleteAsset_Veto(t *testing.T) {
	ctx := context.Background()

	t.Run("vetoed without confirmation", func(t *testing.T) {
		f := newFixture(t)
		e := f.add(t, "greeting", "Hello {{variable}}!", "world")
		f.dialog.Answers = []bool{false}

		assert.Equal(t, DeleteBlocked, f.engine.OnWillDeleteAsset(ctx, "inputs/greeting.txt"))
		_, ok := f.engine.Entries().Get(e.ID)
		assert.True(t, ok)
		assert.Len(t, f.dialog.Asked, 1)
	})

	t.Run("confirmed purges entries first", func(t *testing.T) {
		f := newFixture(t)
		e := f.add(t, "greeting", "Hello {{variable}}!", "world")
		f.add(t, "other", "x", "y")
		before := f.persisted
		f.dialog.Answers = []bool{true}

		assert.Equal(t, DeleteAllowed, f.engine.OnWillDeleteAsset(ctx, "inputs/greeting.txt"))
		_, ok := f.engine.Entries().Get(e.ID)
		assert.False(t, ok)
		assert.Equal(t, 1, f.engine.Entries().Len())
		assert.Equal(t, before+1, f.persisted)
	})

	t.Run("ancestor directory", func(t *testing.T) {
		f := newFixture(t)
		f.add(t, "greeting", "Hello {{variable}}!", "world")
		assert.Equal(t, DeleteBlocked, f.engine.OnWillDeleteAsset(ctx, "inputs"))
		assert.Equal(t, DeleteBlocked, f.engine.OnWillDeleteAsset(ctx, "out"))
	})

	t.Run("unreferenced asset", func(t *testing.T) {
		f := newFixture(t)
		f.add(t, "greeting", "Hello {{variable}}!", "world")
		assert.Equal(t, DeleteAllowed, f.engine.OnWillDeleteAsset(ctx, "inputs/unused.txt"))
		assert.Empty(t, f.dialog.Asked)
	})
}

func TestCollectionYAML(t *testing.T) {
	e := New("tmpl", "dir", "out.txt", Input{Variant: "text", Ref: "in"})
	e.Deferred = true
	c := NewCollection(e)

	data, err := c.MarshalYAML()
	require.NoError(t, err)
	items, ok := data.([]*Entry)
	require.True(t, ok)
	assert.Len(t, items, 1)
	assert.Equal(t, asset.ChangeAll, items[0].Changes)
	assert.Equal(t, e.ID, items[0].ID)
}

func TestVariants(t *testing.T) {
	assert.Contains(t, Variants(), "text")
	assert.Contains(t, Variants(), "data")

	text, ok := LookupVariant("text")
	require.True(t, ok)
	assert.Equal(t, "variable", text.Slot)

	assert.Error(t, RegisterVariant(Variant{Kind: "text", Slot: "x", Decode: text.Decode}))
	assert.Error(t, RegisterVariant(Variant{Kind: "incomplete"}))
}
