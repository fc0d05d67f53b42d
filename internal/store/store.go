package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// Export is one HTML snapshot written by the exporter.
type Export struct {
	ID        int64
	Path      string
	Roots     int
	Nodes     int
	Focus     int
	CreatedAt time.Time
}

// DefaultPath is where the database lives inside dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, "deepfeed.db")
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer; the flush job and CLI commands share the file
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", dbPath, err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interests (
		term TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		recorded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		roots INTEGER NOT NULL,
		nodes INTEGER NOT NULL,
		focus INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interests_seq ON interests(seq);
	CREATE INDEX IF NOT EXISTS idx_exports_created_at ON exports(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// LoadInterests returns every stored interest in the order it was first
// recorded.
func (s *Store) LoadInterests() ([]string, error) {
	rows, err := s.db.Query(`SELECT term FROM interests ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query interests: %w", err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// SaveInterests unions terms into the stored set. Terms already present keep
// their original position, so the store only ever grows.
func (s *Store) SaveInterests(terms []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM interests`).Scan(&next); err != nil {
		return fmt.Errorf("failed to read interest sequence: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO interests (term, seq, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT(term) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range terms {
		next++
		if _, err := stmt.Exec(t, next, now); err != nil {
			return fmt.Errorf("failed to save interest %q: %w", t, err)
		}
	}
	return tx.Commit()
}

// ClearInterests forgets every stored interest.
func (s *Store) ClearInterests() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM interests`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordExport remembers that a snapshot was written.
func (s *Store) RecordExport(e Export) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO exports (path, roots, nodes, focus, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.Path, e.Roots, e.Nodes, e.Focus, e.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentExports returns up to limit exports, newest first.
func (s *Store) RecentExports(limit int) ([]Export, error) {
	rows, err := s.db.Query(`
		SELECT id, path, roots, nodes, focus, created_at
		FROM exports
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Export
	for rows.Next() {
		var e Export
		if err := rows.Scan(&e.ID, &e.Path, &e.Roots, &e.Nodes, &e.Focus, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
