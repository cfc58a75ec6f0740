// Package journal records frame snapshots in SQLite so a run can be
// inspected after the fact with `luma trace`.
//
// Each Open starts a session identified by a UUIDv7. A session holds one row
// per frame plus that frame's facts, error log and timeline spans. Writes
// are idempotent: recording the same frame twice leaves the first copy.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All list queries order by sequence numbers, never by wall time.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/luma/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Journal is a SQLite frame journal.
type Journal struct {
	db      *sql.DB
	session string
}

// Open creates or opens the journal at path and starts a new session.
func Open(ctx context.Context, path string) (*Journal, error) {
	j, err := OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	if err := j.startSession(ctx, time.Now()); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

// OpenReadOnly opens the journal without starting a session. Use it for
// inspection; RecordFrame fails on a journal without a session.
func OpenReadOnly(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Session returns the id of the session being recorded, or "" for a
// read-only journal.
func (j *Journal) Session() string {
	return j.session
}

func (j *Journal) startSession(ctx context.Context, now time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("new session id: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, version, seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM sessions))
	`, id.String(), now.UnixNano(), ir.EngineVersion)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	j.session = id.String()
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version. This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
