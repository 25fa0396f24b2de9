package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	root := t.TempDir()
	repo, err := OpenSQLite(root, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestSQLiteRepository_ImportIsStable(t *testing.T) {
	repo, root := newTestRepo(t)
	ctx := context.Background()
	writeFile(t, root, "templates/a.tmpl", "{{.}}")

	ref, err := repo.Import(ctx, "templates/a.tmpl")
	require.NoError(t, err)
	again, err := repo.Import(ctx, filepath.Join(root, "templates", "a.tmpl"))
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	p, ok := repo.PathOf(ref)
	require.True(t, ok)
	assert.Equal(t, "templates/a.tmpl", p)

	_, err = repo.Import(ctx, "missing.txt")
	assert.Error(t, err)
}

func TestSQLiteRepository_MoveKeepsReferences(t *testing.T) {
	repo, root := newTestRepo(t)
	ctx := context.Background()
	writeFile(t, root, "data/in.yaml", "a: 1")
	writeFile(t, root, "data/nested/b.txt", "b")

	fileRef, err := repo.Import(ctx, "data/in.yaml")
	require.NoError(t, err)
	nestedRef, err := repo.Import(ctx, "data/nested/b.txt")
	require.NoError(t, err)

	require.NoError(t, repo.Move(ctx, "data", "inputs"))

	p, _ := repo.PathOf(fileRef)
	assert.Equal(t, "inputs/in.yaml", p)
	p, _ = repo.PathOf(nestedRef)
	assert.Equal(t, "inputs/nested/b.txt", p)
}

func TestSQLiteRepository_Forget(t *testing.T) {
	repo, root := newTestRepo(t)
	ctx := context.Background()
	writeFile(t, root, "gen/a.txt", "a")
	writeFile(t, root, "gen2/b.txt", "b")

	_, err := repo.Import(ctx, "gen/a.txt")
	require.NoError(t, err)
	keep, err := repo.Import(ctx, "gen2/b.txt")
	require.NoError(t, err)

	require.NoError(t, repo.Forget(ctx, "gen"))

	_, ok := repo.RefOf("gen/a.txt")
	assert.False(t, ok)
	p, ok := repo.PathOf(keep)
	assert.True(t, ok)
	assert.Equal(t, "gen2/b.txt", p)
}

func TestSQLiteRepository_Load(t *testing.T) {
	repo, root := newTestRepo(t)
	ctx := context.Background()
	writeFile(t, root, "data/in.yaml", "name: roach")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "out"), 0o755))

	res, err := repo.Load(ctx, "data/in.yaml", KindAny)
	require.NoError(t, err)
	assert.Equal(t, KindData, res.Kind)
	assert.Equal(t, "name: roach", string(res.Content))
	assert.NotEmpty(t, res.Ref)

	_, err = repo.Load(ctx, "out", KindText)
	assert.Error(t, err)

	dir, err := repo.Load(ctx, "out", KindDirectory)
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, dir.Kind)

	assert.True(t, repo.IsValidDirectory("out"))
	assert.False(t, repo.IsValidDirectory("data/in.yaml"))
	assert.False(t, repo.IsValidDirectory("../outside"))
}

func TestSQLiteRepository_ImportTree(t *testing.T) {
	repo, root := newTestRepo(t)
	writeFile(t, root, "a/b.txt", "b")
	writeFile(t, root, ".git/HEAD", "ref")

	count, err := repo.ImportTree(context.Background(), ".", func(rel string) bool { return rel == ".git" })
	require.NoError(t, err)
	assert.Equal(t, 2, count) // a, a/b.txt

	assets, err := repo.Assets(context.Background())
	require.NoError(t, err)
	assert.Contains(t, assets, "a/b.txt")
	assert.NotContains(t, assets, ".git/HEAD")
}

func TestSQLiteRepository_PersistHooks(t *testing.T) {
	repo, _ := newTestRepo(t)
	calls := 0
	repo.OnPersist(func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, repo.Persist(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestOSFileSystem(t *testing.T) {
	root := t.TempDir()
	fs := NewOSFileSystem(root)

	require.NoError(t, fs.WriteText("out/nested/file.txt", "hello"))
	assert.True(t, fs.FileExists("out/nested/file.txt"))
	assert.True(t, fs.FileExists("out/nested"))

	require.NoError(t, fs.CreateDirectory("empty/dir"))
	assert.True(t, fs.FileExists("empty/dir"))
	assert.False(t, fs.FileExists("nope"))
}

func TestSessionStore(t *testing.T) {
	s := NewSessionStore()
	s.Set("k", "v")

	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	s.Erase("k")
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, KindTemplate, KindOf("a/b.tmpl"))
	assert.Equal(t, KindData, KindOf("a/b.JSON"))
	assert.Equal(t, KindText, KindOf("a/b.txt"))
	assert.Equal(t, "a/b", Join("a", "./b/"))
	assert.Equal(t, "a/b", Relative("/root", "/root/a/b"))
	assert.Equal(t, "x/y", Relative("/root", "x/y"))
}

func TestResourceValue(t *testing.T) {
	tests := []struct {
		name    string
		res     Resource
		want    interface{}
		wantErr bool
	}{
		{"text", Resource{Kind: KindText, Content: []byte("hello")}, "hello", false},
		{"template is text", Resource{Kind: KindTemplate, Content: []byte("{{x}}")}, "{{x}}", false},
		{"data map", Resource{Kind: KindData, Content: []byte("name: roach\n")}, map[string]interface{}{"name": "roach"}, false},
		{"data list", Resource{Kind: KindData, Content: []byte("- a\n- b\n")}, []interface{}{"a", "b"}, false},
		{"empty data", Resource{Kind: KindData}, map[string]interface{}{}, false},
		{"broken data", Resource{Kind: KindData, Path: "in.yml", Content: []byte("a: [")}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.res.Value()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
