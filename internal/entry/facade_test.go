package entry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stencilerrors "github.com/conneroisu/stencil/internal/errors"
)

func TestFacadeAdd_Contract(t *testing.T) {
	f := newFixture(t)
	existing := f.add(t, "existing", "x", "y")
	tmplRef := f.Write(t, "templates/new.tmpl", "Hello {{variable}}")
	badTmpl := f.Write(t, "templates/bad.tmpl", "{{if}}")
	inputRef := f.Write(t, "inputs/new.txt", "world")
	inputsDir, err := f.Repo.Import(context.Background(), "inputs")
	require.NoError(t, err)

	tests := []struct {
		name  string
		entry func() *Entry
		want  error
	}{
		{
			name:  "nil entry",
			entry: func() *Entry { return nil },
			want:  stencilerrors.ErrNullArgument,
		},
		{
			name:  "missing template",
			entry: func() *Entry { return New("", f.outDir, "a.txt", Input{Variant: "text", Ref: inputRef}) },
			want:  stencilerrors.ErrNullArgument,
		},
		{
			name:  "missing input",
			entry: func() *Entry { return New(tmplRef, f.outDir, "a.txt", Input{Variant: "text"}) },
			want:  stencilerrors.ErrNullArgument,
		},
		{
			name:  "unknown variant",
			entry: func() *Entry { return New(tmplRef, f.outDir, "a.txt", Input{Variant: "xml", Ref: inputRef}) },
			want:  stencilerrors.ErrIllegalArgument,
		},
		{
			name:  "illegal filename",
			entry: func() *Entry { return New(tmplRef, f.outDir, "a?.txt", Input{Variant: "text", Ref: inputRef}) },
			want:  stencilerrors.ErrIllegalArgument,
		},
		{
			name:  "unresolved template",
			entry: func() *Entry { return New("nope", f.outDir, "a.txt", Input{Variant: "text", Ref: inputRef}) },
			want:  stencilerrors.ErrIllegalArgument,
		},
		{
			name:  "template syntax",
			entry: func() *Entry { return New(badTmpl, f.outDir, "a.txt", Input{Variant: "text", Ref: inputRef}) },
			want:  stencilerrors.ErrIllegalArgument,
		},
		{
			name:  "unresolved input",
			entry: func() *Entry { return New(tmplRef, f.outDir, "a.txt", Input{Variant: "text", Ref: "nope"}) },
			want:  stencilerrors.ErrIllegalArgument,
		},
		{
			name:  "missing directory",
			entry: func() *Entry { return New(tmplRef, "nope", "a.txt", Input{Variant: "text", Ref: inputRef}) },
			want:  stencilerrors.ErrDirectoryNotFound,
		},
		{
			name: "duplicate output ignoring case",
			entry: func() *Entry {
				return New(tmplRef, f.outDir, "EXISTING.TXT", Input{Variant: "text", Ref: inputRef})
			},
			want: stencilerrors.ErrIllegalArgument,
		},
		{
			name:  "output is another entry's input",
			entry: func() *Entry { return New(tmplRef, inputsDir, "existing.txt", Input{Variant: "text", Ref: inputRef}) },
			want:  stencilerrors.ErrIllegalArgument,
		},
		{
			name:  "output is its own input",
			entry: func() *Entry { return New(tmplRef, inputsDir, "new.txt", Input{Variant: "text", Ref: inputRef}) },
			want:  stencilerrors.ErrIllegalArgument,
		},
		{
			name: "output is the settings file",
			entry: func() *Entry {
				return New(tmplRef, f.outDir, "stencil.settings.yml", Input{Variant: "text", Ref: inputRef})
			},
			want: stencilerrors.ErrIllegalArgument,
		},
		{
			name: "input is another entry's output",
			entry: func() *Entry {
				outRef := f.Write(t, "out/existing.txt", "rendered")
				return New(tmplRef, f.outDir, "fresh.txt", Input{Variant: "text", Ref: outRef})
			},
			want: stencilerrors.ErrIllegalArgument,
		},
		{
			name: "duplicate id",
			entry: func() *Entry {
				e := New(tmplRef, f.outDir, "fresh.txt", Input{Variant: "text", Ref: inputRef})
				e.ID = existing.ID
				return e
			},
			want: stencilerrors.ErrIllegalArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.persisted
			_, err := f.facade.Add(context.Background(), tt.entry())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, stencilerrors.IsContractError(err))
			assert.Equal(t, before, f.persisted, "rejected entries are not persisted")
			assert.Len(t, f.facade.List(), 1)
		})
	}
}

func TestFacadeCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.add(t, "greeting", "Hello {{variable}}!", "world")
	assert.Equal(t, 1, f.persisted)
	assert.Equal(t, "out/greeting.txt", f.facade.OutputPath(e))

	t.Run("get by prefix", func(t *testing.T) {
		got, err := f.facade.Get(e.ID[:8])
		require.NoError(t, err)
		assert.Equal(t, e.ID, got.ID)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := f.facade.Get(e.ID)
		require.NoError(t, err)
		got.Filename = "mutated.txt"
		again, _ := f.facade.Get(e.ID)
		assert.Equal(t, "greeting.txt", again.Filename)
	})

	t.Run("update", func(t *testing.T) {
		changed := e.Clone()
		changed.Filename = "renamed.txt"
		changed.Deferred = true
		require.NoError(t, f.facade.Update(ctx, changed))

		got, _ := f.facade.Get(e.ID)
		assert.Equal(t, "renamed.txt", got.Filename)
		assert.True(t, got.Deferred)
		assert.Equal(t, 2, f.persisted)
	})

	t.Run("update keeps its own output", func(t *testing.T) {
		same, _ := f.facade.Get(e.ID)
		assert.NoError(t, f.facade.Update(ctx, same))
	})

	t.Run("render", func(t *testing.T) {
		ok, err := f.facade.Render(ctx, e.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Hello world!", f.Read(t, "out/renamed.txt"))
		assert.Equal(t, 1, f.facade.RenderAll(ctx))
	})

	t.Run("flag", func(t *testing.T) {
		require.NoError(t, f.facade.FlagChanged(e.ID))
		assert.Equal(t, []string{e.ID}, f.engine.Flagged())
	})

	t.Run("not found", func(t *testing.T) {
		missing := e.Clone()
		missing.ID = "00000000-0000-4000-8000-000000000000"
		assert.ErrorIs(t, f.facade.Update(ctx, missing), stencilerrors.ErrNotFound)
		assert.ErrorIs(t, f.facade.Remove(ctx, missing.ID), stencilerrors.ErrNotFound)
		assert.ErrorIs(t, f.facade.FlagChanged(missing.ID), stencilerrors.ErrNotFound)
		_, err := f.facade.Get(missing.ID)
		assert.ErrorIs(t, err, stencilerrors.ErrNotFound)
		_, err = f.facade.Render(ctx, missing.ID)
		assert.ErrorIs(t, err, stencilerrors.ErrNotFound)
		assert.ErrorIs(t, f.facade.Remove(ctx, ""), stencilerrors.ErrNullArgument)
	})

	t.Run("remove", func(t *testing.T) {
		before := f.persisted
		require.NoError(t, f.facade.Remove(ctx, e.ID))
		assert.Empty(t, f.facade.List())
		assert.Equal(t, before+1, f.persisted)
	})
}
