// Package store persists editor checkpoints in SQLite so a session's
// undo history survives process restarts.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fred913/scadstudio/internal/history"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - checkpoints table
const currentSchemaVersion = 1

// Archive is a durable checkpoint log backed by SQLite.
// Uses WAL mode for concurrent read access.
type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive database at the given path.
// Applies required pragmas and the schema automatically; idempotent.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent checkpoint writes.
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

	return &Archive{db: db}, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// SaveCheckpoint appends one checkpoint. Duplicate ids are silently
// ignored so replaying a seed list is harmless.
//
// Context-free to satisfy the history engine's Archive interface; the
// write is a local, bounded operation.
func (a *Archive) SaveCheckpoint(cp history.Checkpoint) error {
	diags, err := history.MarshalDiagnostics(cp.Diagnostics)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	_, err = a.db.ExecContext(context.Background(), `
		INSERT INTO checkpoints (id, ts, code, diagnostics, description, change_type)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		cp.ID,
		cp.Timestamp.UnixMilli(),
		cp.Code,
		diags,
		cp.Description,
		string(cp.ChangeType),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Clear drops every archived checkpoint.
func (a *Archive) Clear() error {
	if _, err := a.db.ExecContext(context.Background(), `DELETE FROM checkpoints`); err != nil {
		return fmt.Errorf("clear archive: %w", err)
	}
	return nil
}

// List returns up to limit checkpoints, oldest first. A limit of 0 means
// no bound.
func (a *Archive) List(ctx context.Context, limit int) ([]history.Checkpoint, error) {
	query := `
		SELECT id, ts, code, diagnostics, description, change_type
		FROM checkpoints ORDER BY rowid`
	args := []any{}
	if limit > 0 {
		// Keep the newest entries: bound from the tail, then restore order.
		query = `
		SELECT id, ts, code, diagnostics, description, change_type FROM (
			SELECT rowid AS rid, id, ts, code, diagnostics, description, change_type
			FROM checkpoints ORDER BY rowid DESC LIMIT ?
		) ORDER BY rid`
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []history.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return out, nil
}

// Get returns the checkpoint with the given id, or nil if absent.
func (a *Archive) Get(ctx context.Context, id string) (*history.Checkpoint, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, ts, code, diagnostics, description, change_type
		FROM checkpoints WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	cp, err := scanCheckpoint(rows)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// Prune deletes all but the newest n checkpoints.
func (a *Archive) Prune(ctx context.Context, n int) error {
	_, err := a.db.ExecContext(ctx, `
		DELETE FROM checkpoints WHERE rowid NOT IN (
			SELECT rowid FROM checkpoints ORDER BY rowid DESC LIMIT ?
		)`, n)
	if err != nil {
		return fmt.Errorf("prune archive: %w", err)
	}
	return nil
}

// Count returns the number of archived checkpoints.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkpoints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count checkpoints: %w", err)
	}
	return n, nil
}

func scanCheckpoint(rows *sql.Rows) (history.Checkpoint, error) {
	var cp history.Checkpoint
	var ts int64
	var diags, changeType string
	if err := rows.Scan(&cp.ID, &ts, &cp.Code, &diags, &cp.Description, &changeType); err != nil {
		return cp, fmt.Errorf("scan checkpoint: %w", err)
	}
	cp.Timestamp = time.UnixMilli(ts)
	cp.ChangeType = history.ChangeType(changeType)
	list, err := history.UnmarshalDiagnostics(diags)
	if err != nil {
		return cp, err
	}
	cp.Diagnostics = list
	return cp, nil
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
			return fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates the schema when missing and records the version.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}
