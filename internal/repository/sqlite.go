package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	stencilerrors "github.com/conneroisu/stencil/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	guid        TEXT PRIMARY KEY,
	path        TEXT NOT NULL UNIQUE COLLATE NOCASE,
	kind        TEXT NOT NULL,
	imported_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assets_path ON assets(path);
`

// SQLiteRepository keeps the reference index of a project in SQLite.
type SQLiteRepository struct {
	db    *sql.DB
	root  string
	mu    sync.Mutex
	hooks []func(ctx context.Context) error
}

// OpenSQLite opens (or creates) the index at dbPath for the project rooted
// at root. Use ":memory:" for a throwaway index.
func OpenSQLite(root, dbPath string) (*SQLiteRepository, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	// One connection keeps :memory: databases coherent and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index: %w", err)
	}

	return &SQLiteRepository{db: db, root: absRoot}, nil
}

// Close releases the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Root implements Repository.
func (r *SQLiteRepository) Root() string {
	return r.root
}

// PathOf implements Repository.
func (r *SQLiteRepository) PathOf(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	var p string
	err := r.db.QueryRow(`SELECT path FROM assets WHERE guid = ?`, ref).Scan(&p)
	if err != nil {
		return "", false
	}
	return p, true
}

// RefOf implements Repository.
func (r *SQLiteRepository) RefOf(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	var ref string
	err := r.db.QueryRow(`SELECT guid FROM assets WHERE path = ?`, Relative(r.root, p)).Scan(&ref)
	if err != nil {
		return "", false
	}
	return ref, true
}

// Import implements Repository.
func (r *SQLiteRepository) Import(ctx context.Context, p string) (string, error) {
	rel := Relative(r.root, p)
	if rel == "" || rel == "." {
		return "", stencilerrors.NullArgument("path")
	}

	info, err := os.Stat(Resolve(r.root, rel))
	if err != nil {
		return "", stencilerrors.NewIOError(stencilerrors.ErrCodeNotFound, "cannot import missing asset", err).WithPath(rel)
	}
	kind := KindOf(rel)
	if info.IsDir() {
		kind = KindDirectory
	}

	if ref, ok := r.RefOf(rel); ok {
		_, err := r.db.ExecContext(ctx, `UPDATE assets SET kind = ?, imported_at = ? WHERE guid = ?`,
			string(kind), time.Now().Unix(), ref)
		return ref, err
	}

	ref := uuid.NewString()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO assets (guid, path, kind, imported_at) VALUES (?, ?, ?, ?)`,
		ref, rel, string(kind), time.Now().Unix()); err != nil {
		return "", fmt.Errorf("failed to import %s: %w", rel, err)
	}
	return ref, nil
}

// ImportTree imports dir and every file below it, returning how many assets
// were visited.
func (r *SQLiteRepository) ImportTree(ctx context.Context, dir string, skip func(rel string) bool) (int, error) {
	count := 0
	start := Resolve(r.root, dir)
	err := filepath.WalkDir(start, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := Relative(r.root, p)
		if rel == "." {
			return nil
		}
		if skip != nil && skip(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if _, err := r.Import(ctx, rel); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

// Move implements Repository. Children of a moved directory follow it.
func (r *SQLiteRepository) Move(ctx context.Context, from, to string) error {
	fromRel := Relative(r.root, from)
	toRel := Relative(r.root, to)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE path = ?`, toRel); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE assets SET path = ? WHERE path = ?`, toRel, fromRel); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, `SELECT guid, path FROM assets WHERE path LIKE ? ESCAPE '\'`, escapeLike(fromRel)+"/%")
	if err != nil {
		return err
	}
	type move struct{ guid, path string }
	var children []move
	for rows.Next() {
		var m move
		if err := rows.Scan(&m.guid, &m.path); err != nil {
			rows.Close()
			return err
		}
		children = append(children, m)
	}
	rows.Close()

	for _, c := range children {
		newPath := toRel + c.path[len(fromRel):]
		if _, err := tx.ExecContext(ctx, `UPDATE assets SET path = ? WHERE guid = ?`, newPath, c.guid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Forget implements Repository.
func (r *SQLiteRepository) Forget(ctx context.Context, p string) error {
	rel := Relative(r.root, p)
	_, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE path = ? OR path LIKE ? ESCAPE '\'`,
		rel, escapeLike(rel)+"/%")
	return err
}

// Assets returns every indexed path with its reference.
func (r *SQLiteRepository) Assets(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT guid, path FROM assets ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var ref, p string
		if err := rows.Scan(&ref, &p); err != nil {
			return nil, err
		}
		out[p] = ref
	}
	return out, rows.Err()
}

// IsValidDirectory implements Repository.
func (r *SQLiteRepository) IsValidDirectory(p string) bool {
	if p == "" {
		return false
	}
	abs := Resolve(r.root, p)
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.IsDir()
}

// Load implements Repository.
func (r *SQLiteRepository) Load(ctx context.Context, p string, kind Kind) (*Resource, error) {
	rel := Relative(r.root, p)
	abs := Resolve(r.root, rel)

	info, err := os.Stat(abs)
	if err != nil {
		return nil, stencilerrors.NewIOError(stencilerrors.ErrCodeNotFound, "asset not found", err).WithPath(rel)
	}
	if info.IsDir() {
		if kind == KindDirectory || kind == KindAny {
			ref, _ := r.RefOf(rel)
			return &Resource{Ref: ref, Path: rel, Kind: KindDirectory}, nil
		}
		return nil, stencilerrors.IllegalArgument("%s is a directory", rel)
	}
	if kind == KindDirectory {
		return nil, stencilerrors.IllegalArgument("%s is not a directory", rel)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, stencilerrors.NewIOError(stencilerrors.ErrCodeNotFound, "failed to read asset", err).WithPath(rel)
	}

	ref, ok := r.RefOf(rel)
	if !ok {
		if ref, err = r.Import(ctx, rel); err != nil {
			return nil, err
		}
	}

	actual := kind
	if actual == KindAny {
		actual = KindOf(rel)
	}
	return &Resource{Ref: ref, Path: rel, Kind: actual, Content: content}, nil
}

// OnPersist implements Repository.
func (r *SQLiteRepository) OnPersist(hook func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// Persist implements Repository.
func (r *SQLiteRepository) Persist(ctx context.Context) error {
	r.mu.Lock()
	hooks := append([]func(ctx context.Context) error(nil), r.hooks...)
	r.mu.Unlock()

	var errs []error
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
