// Package journal keeps a local history of plugin lifecycle operations in
// SQLite.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial.sql
var sqliteMigration string

// Entry is one finished lifecycle operation.
type Entry struct {
	ID         string    `json:"id"`
	Slug       string    `json:"slug"`
	Operation  string    `json:"operation"`
	Version    string    `json:"version,omitempty"`
	Result     string    `json:"result"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is the wall time the operation took.
func (e Entry) Duration() time.Duration { return e.FinishedAt.Sub(e.StartedAt) }

// SQLiteJournal stores entries in an SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

// Open opens (and migrates) the journal at dsn. Use ":memory:" for a
// throwaway in-memory journal.
func Open(dsn string) (*SQLiteJournal, error) {
	if dsn != ":memory:" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection serializes writes and keeps :memory: databases alive
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Record inserts an entry.
func (j *SQLiteJournal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO operations (id, slug, operation, version, result, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Slug, e.Operation, e.Version, e.Result, e.Error,
		e.StartedAt.UTC().Format(time.RFC3339Nano), e.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record operation %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return j.query(ctx, `
		SELECT id, slug, operation, version, result, error, started_at, finished_at
		FROM operations
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, clampLimit(limit))
}

// ForSlug returns up to limit entries for one plugin, newest first.
func (j *SQLiteJournal) ForSlug(ctx context.Context, slug string, limit int) ([]Entry, error) {
	return j.query(ctx, `
		SELECT id, slug, operation, version, result, error, started_at, finished_at
		FROM operations
		WHERE slug = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, slug, clampLimit(limit))
}

func (j *SQLiteJournal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var started, finished string
		if err := rows.Scan(&e.ID, &e.Slug, &e.Operation, &e.Version, &e.Result, &e.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, e)
	}
	return out, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 50
	}
	return limit
}
