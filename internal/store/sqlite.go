package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (or creates) a SQLite database for document storage.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		position INTEGER NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (collection, position)
	);`
	if _, err := db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("store: migrate sqlite: %w", err)
	}
	return nil
}

// SQLite stores one document as ordered rows of a named collection.
type SQLite[T any] struct {
	db         *sql.DB
	collection string
}

// NewSQLite returns the document stored under collection in db.
// db must come from OpenSQLite.
func NewSQLite[T any](db *sql.DB, collection string) *SQLite[T] {
	return &SQLite[T]{db: db, collection: collection}
}

func (s *SQLite[T]) Load(ctx context.Context) ([]T, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM documents WHERE collection = ? ORDER BY position`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", s.collection, err)
	}
	defer func() { _ = rows.Close() }()

	var items []T
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", s.collection, err)
		}
		var item T
		if err := json.Unmarshal([]byte(body), &item); err != nil {
			return nil, fmt.Errorf("%w: %s row: %v", ErrCorrupt, s.collection, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate %s: %w", s.collection, err)
	}
	return items, nil
}

// Replace rewrites the collection inside one transaction.
func (s *SQLite[T]) Replace(ctx context.Context, items []T) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin %s: %w", s.collection, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, s.collection); err != nil {
		return fmt.Errorf("store: clear %s: %w", s.collection, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (collection, position, body) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare %s: %w", s.collection, err)
	}
	defer func() { _ = stmt.Close() }()

	for i, item := range items {
		body, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("store: marshal %s[%d]: %w", s.collection, i, err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, i, string(body)); err != nil {
			return fmt.Errorf("store: insert %s[%d]: %w", s.collection, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit %s: %w", s.collection, err)
	}
	return nil
}
