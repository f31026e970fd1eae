// Package store handles SQLite persistence of quiz results.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/azdrill/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// storedTimeFmt has a fixed width so stored timestamps sort lexicographically.
const storedTimeFmt = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for completion records.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Filter restricts ListResults.
type Filter struct {
	Label string
	Since *time.Time
	Last  int
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			recorded_at TEXT NOT NULL,
			label TEXT NOT NULL,
			status TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_recorded_at ON results(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_results_label ON results(label);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record appends a completion entry.
func (s *Store) Record(ctx context.Context, label, status string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (id, recorded_at, label, status) VALUES (?, ?, ?, ?)`,
		uuid.NewString(),
		s.now().UTC().Format(storedTimeFmt),
		label,
		status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

// ListResults returns matching entries, newest first.
func (s *Store) ListResults(ctx context.Context, filter Filter) ([]model.ResultEntry, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Label != "" {
		clauses = append(clauses, "label = ?")
		args = append(args, filter.Label)
	}
	if filter.Since != nil {
		clauses = append(clauses, "recorded_at >= ?")
		args = append(args, filter.Since.UTC().Format(storedTimeFmt))
	}
	query := fmt.Sprintf(`SELECT id, recorded_at, label, status
		FROM results
		WHERE %s
		ORDER BY recorded_at DESC, rowid DESC`, strings.Join(clauses, " AND "))
	if filter.Last > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var entries []model.ResultEntry
	for rows.Next() {
		var entry model.ResultEntry
		var recordedAt string
		if err := rows.Scan(&entry.ID, &recordedAt, &entry.Label, &entry.Status); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(storedTimeFmt, recordedAt)
		if err != nil {
			return nil, err
		}
		entry.RecordedAt = parsed.Local()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Results returns every entry, newest first.
func (s *Store) Results(ctx context.Context) ([]model.ResultEntry, error) {
	return s.ListResults(ctx, Filter{})
}
