// ABOUTME: SQLite-backed call log using modernc.org/sqlite with automatic schema creation.
// ABOUTME: Implements bridge.Recorder and serves call history queries for the CLI.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/fold-bridge/internal/bridge"
)

// CallLog persists completed tool calls to SQLite.
type CallLog struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCallLog opens (or creates) the call log database at the given path.
// Parent directories are created if needed. Use ":memory:" for an ephemeral
// log.
func NewCallLog(path string) (*CallLog, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	l := &CallLog{db: db, logger: logger}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("call log initialized", "path", path)
	return l, nil
}

// createSchema creates the call_log table if it doesn't exist.
func (l *CallLog) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS call_log (
			id TEXT PRIMARY KEY,
			backend_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			args_json TEXT,
			ok INTEGER NOT NULL,
			reason TEXT,
			duration_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_call_log_backend_created
			ON call_log(backend_id, created_at);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Record inserts one completed call. Satisfies bridge.Recorder.
func (l *CallLog) Record(ctx context.Context, rec *bridge.CallRecord) error {
	var argsJSON *string
	if rec.Args != nil {
		data, err := json.Marshal(rec.Args)
		if err != nil {
			return fmt.Errorf("marshaling call args: %w", err)
		}
		s := string(data)
		argsJSON = &s
	}

	query := `
		INSERT INTO call_log (id, backend_id, tool, args_json, ok, reason, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := l.db.ExecContext(ctx, query,
		rec.ID,
		rec.BackendID,
		rec.Tool,
		argsJSON,
		rec.OK,
		rec.Reason,
		rec.Duration.Milliseconds(),
		rec.At.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting call record: %w", err)
	}

	l.logger.Debug("recorded call",
		"id", rec.ID,
		"backend", rec.BackendID,
		"tool", rec.Tool,
		"ok", rec.OK,
	)
	return nil
}

// Filter narrows call history queries.
type Filter struct {
	BackendID string // filter by backend id; empty matches all
	Tool      string // filter by tool name; empty matches all
	Limit     int    // max results (default 100, max 1000)
}

// normalizeLimit applies default (100) and cap (1000) to the history limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const historyQuery = `
	SELECT id, backend_id, tool, args_json, ok, reason, duration_ms, created_at
	FROM call_log
	WHERE (? = '' OR backend_id = ?)
	  AND (? = '' OR tool = ?)
	ORDER BY created_at DESC
	LIMIT ?
`

// List returns call records matching the filter, newest first.
func (l *CallLog) List(ctx context.Context, f Filter) ([]bridge.CallRecord, error) {
	limit := normalizeLimit(f.Limit)

	rows, err := l.db.QueryContext(ctx, historyQuery,
		f.BackendID, f.BackendID,
		f.Tool, f.Tool,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying call log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []bridge.CallRecord
	for rows.Next() {
		rec, err := scanCallRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call records: %w", err)
	}

	if records == nil {
		records = []bridge.CallRecord{}
	}
	return records, nil
}

// scanCallRecord scans a row into a CallRecord.
func scanCallRecord(scanner interface{ Scan(dest ...any) error }) (bridge.CallRecord, error) {
	var rec bridge.CallRecord
	var argsJSON *string
	var durationMS int64
	var tsStr string

	if err := scanner.Scan(
		&rec.ID,
		&rec.BackendID,
		&rec.Tool,
		&argsJSON,
		&rec.OK,
		&rec.Reason,
		&durationMS,
		&tsStr,
	); err != nil {
		return rec, fmt.Errorf("scanning call record: %w", err)
	}

	rec.Duration = time.Duration(durationMS) * time.Millisecond
	var err error
	rec.At, err = time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return rec, fmt.Errorf("parsing timestamp: %w", err)
	}
	if argsJSON != nil {
		if err := json.Unmarshal([]byte(*argsJSON), &rec.Args); err != nil {
			return rec, fmt.Errorf("unmarshaling call args: %w", err)
		}
	}
	return rec, nil
}

// Close closes the underlying database.
func (l *CallLog) Close() error {
	return l.db.Close()
}
