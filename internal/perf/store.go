package perf

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/replaykit/replaykit/internal/backend"
)

//go:embed schema.sql
var schemaSQL string

// Store is an optional SQLite sink for completed operations, kept for
// post-mortem diagnostics. Writes prune older rows so the table stays
// bounded at cap rows per backend.
type Store struct {
	db  *sql.DB
	cap int
}

// OpenStore creates or opens the diagnostics database at path.
//
// The database is configured with:
//   - WAL mode so readers never block the writer
//   - NORMAL synchronous mode (diagnostics, not ledger data)
//   - 5-second busy timeout for lock contention
func OpenStore(path string, cap int) (*Store, error) {
	if cap < 1 {
		return nil, fmt.Errorf("store cap must be positive, got %d", cap)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open diagnostics db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect diagnostics db: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply diagnostics schema: %w", err)
	}

	return &Store{db: db, cap: cap}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends one operation and prunes rows beyond the cap.
func (s *Store) Record(id backend.Identity, op Operation) error {
	success := 0
	if op.Success {
		success = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO operations (backend, op_type, duration_us, success, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(id), op.Type, op.Duration.Microseconds(), success,
		op.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record operation: %w", err)
	}

	_, err = s.db.Exec(
		`DELETE FROM operations
		 WHERE backend = ?
		   AND id NOT IN (
		     SELECT id FROM operations WHERE backend = ? ORDER BY id DESC LIMIT ?
		   )`,
		string(id), string(id), s.cap,
	)
	if err != nil {
		return fmt.Errorf("prune operations: %w", err)
	}
	return nil
}

// Recent returns up to n most recent operations for a backend, newest
// first.
func (s *Store) Recent(id backend.Identity, n int) ([]Operation, error) {
	rows, err := s.db.Query(
		`SELECT op_type, duration_us, success, recorded_at
		 FROM operations WHERE backend = ? ORDER BY id DESC LIMIT ?`,
		string(id), n,
	)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		var (
			op      Operation
			us      int64
			success int
			at      string
		)
		if err := rows.Scan(&op.Type, &us, &success, &at); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Duration = time.Duration(us) * time.Microsecond
		op.Success = success == 1
		op.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", at, err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// Count returns the number of retained rows for a backend.
func (s *Store) Count(id backend.Identity) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM operations WHERE backend = ?`, string(id),
	).Scan(&n)
	return n, err
}
