// Package orderstore persists user-defined sibling order per folder in a
// SQLite database.
package orderstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sibling_order (
	folder   TEXT    NOT NULL,
	name     TEXT    NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (folder, name)
);
CREATE INDEX IF NOT EXISTS idx_sibling_order_folder ON sibling_order(folder, position);
`

// Store reads and writes folder orders. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path. An empty path or ":memory:"
// opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating order store directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open order store: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing order store: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path, or "" for an in-memory store.
func (s *Store) Path() string { return s.path }

// Order returns the stored child names of folder in position order. A folder
// without a stored order yields nil.
func (s *Store) Order(ctx context.Context, folder string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sibling_order WHERE folder = ? ORDER BY position`, folder)
	if err != nil {
		return nil, fmt.Errorf("querying order of %s: %w", folder, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning order of %s: %w", folder, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SetOrder replaces the stored order of folder with names.
func (s *Store) SetOrder(ctx context.Context, folder string, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sibling_order WHERE folder = ?`, folder); err != nil {
		return fmt.Errorf("clearing order of %s: %w", folder, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO sibling_order (folder, name, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for i, name := range names {
		if _, err := stmt.ExecContext(ctx, folder, name, i); err != nil {
			return fmt.Errorf("storing %s/%s: %w", folder, name, err)
		}
	}
	return tx.Commit()
}

// Forget drops the stored order of folder.
func (s *Store) Forget(ctx context.Context, folder string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sibling_order WHERE folder = ?`, folder); err != nil {
		return fmt.Errorf("forgetting %s: %w", folder, err)
	}
	return nil
}

// Folders returns every folder with a stored order, sorted.
func (s *Store) Folders(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT folder FROM sibling_order ORDER BY folder`)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Arrange orders names by stored: names present in stored come first in
// stored order, the rest follow sorted by name. Stored names that no longer
// exist are ignored.
func Arrange(names, stored []string) []string {
	rank := make(map[string]int, len(stored))
	for i, n := range stored {
		if _, dup := rank[n]; !dup {
			rank[n] = i
		}
	}
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}
