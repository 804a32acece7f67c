package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores records in a single table of compressed blobs.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" opens a
// private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps an in-memory database alive and serialises writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("storage: %s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunk_fields (
			prefix TEXT NOT NULL,
			x INTEGER NOT NULL,
			z INTEGER NOT NULL,
			field TEXT NOT NULL,
			data BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (prefix, x, z, field)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("storage: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Put(ctx context.Context, key Key, field string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunk_fields(prefix,x,z,field,data,updated_at) VALUES(?,?,?,?,?,?)`,
		key.Prefix, key.X, key.Z, field, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: put %s %s: %w", key, field, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key Key, field string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM chunk_fields WHERE prefix=? AND x=? AND z=? AND field=?`,
		key.Prefix, key.X, key.Z, field).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, key, field)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s %s: %w", key, field, err)
	}
	return data, nil
}

func (s *SQLite) Fields(ctx context.Context, key Key) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field FROM chunk_fields WHERE prefix=? AND x=? AND z=? ORDER BY field`,
		key.Prefix, key.X, key.Z)
	if err != nil {
		return nil, fmt.Errorf("storage: fields %s: %w", key, err)
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

func (s *SQLite) Delete(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM chunk_fields WHERE prefix=? AND x=? AND z=?`,
		key.Prefix, key.X, key.Z)
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Count returns the number of stored blobs under prefix.
func (s *SQLite) Count(ctx context.Context, prefix string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_fields WHERE prefix=?`, prefix).Scan(&n)
	return n, err
}

func (s *SQLite) Close() error { return s.db.Close() }
