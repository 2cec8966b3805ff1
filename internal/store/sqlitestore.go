//go:build cgo

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a SQLite database file. database/sql pools
// connections, so one SQLiteStore is shared by all dispatch workers.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time check that SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path. Use
// ":memory:" for a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create parent directory: %w", err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var sqliteDDL = []string{
	`CREATE TABLE IF NOT EXISTS consortium_configs (
		name TEXT PRIMARY KEY,
		config TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		model TEXT NOT NULL,
		instance INTEGER NOT NULL,
		prompt TEXT,
		response TEXT,
		conversation_id TEXT,
		metadata TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS responses_run ON responses(run_id)`,
}

// InitSchema creates the tables if they do not exist.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	for _, stmt := range sqliteDDL {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: init schema: %w", err)
		}
	}
	return nil
}

// SaveConfig inserts or replaces the configuration called name.
func (s *SQLiteStore) SaveConfig(ctx context.Context, name string, raw []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO consortium_configs (name, config, created_at) VALUES (?, ?, ?)`,
		name, string(raw), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("sqlite: save config %q: %w", name, err)
	}
	return nil
}

// LoadConfig returns the configuration called name.
func (s *SQLiteStore) LoadConfig(ctx context.Context, name string) ([]byte, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT config FROM consortium_configs WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load config %q: %w", name, err)
	}
	return []byte(raw), nil
}

// ListConfigs returns every configuration ordered by name.
func (s *SQLiteStore) ListConfigs(ctx context.Context) ([]NamedConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, config, created_at FROM consortium_configs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list configs: %w", err)
	}
	defer rows.Close()

	var out []NamedConfig
	for rows.Next() {
		var name, raw, created string
		if err := rows.Scan(&name, &raw, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan config: %w", err)
		}
		out = append(out, NamedConfig{Name: name, Config: []byte(raw), CreatedAt: parseTime(created)})
	}
	return out, rows.Err()
}

// DeleteConfig removes the configuration called name.
func (s *SQLiteStore) DeleteConfig(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM consortium_configs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("sqlite: delete config %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete config %q: %w", name, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LogResponse appends a row to the responses table.
func (s *SQLiteStore) LogResponse(ctx context.Context, entry LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	md, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO responses (run_id, model, instance, prompt, response, conversation_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.Model, entry.Instance, entry.Prompt, entry.Response,
		entry.ConversationID, md, formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: log response from %s: %w", entry.Model, err)
	}
	return nil
}

const sqliteResponseColumns = "run_id, model, instance, prompt, response, conversation_id, metadata, created_at"

// Responses returns logged entries newest first.
func (s *SQLiteStore) Responses(ctx context.Context, limit int) ([]LogEntry, error) {
	q := `SELECT ` + sqliteResponseColumns + ` FROM responses ORDER BY id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryEntries(ctx, q, args...)
}

// RunResponses returns the entries of one run in insertion order.
func (s *SQLiteStore) RunResponses(ctx context.Context, runID string) ([]LogEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+sqliteResponseColumns+` FROM responses WHERE run_id = ? ORDER BY id`, runID)
}

func (s *SQLiteStore) queryEntries(ctx context.Context, q string, args ...any) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query responses: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var (
			e                         LogEntry
			runID, prompt, response   sql.NullString
			convID, metadata, created sql.NullString
		)
		if err := rows.Scan(&runID, &e.Model, &e.Instance, &prompt, &response, &convID, &metadata, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan response: %w", err)
		}
		e.RunID = runID.String
		e.Prompt = prompt.String
		e.Response = response.String
		e.ConversationID = convID.String
		e.Metadata = decodeMetadata(metadata.String)
		e.CreatedAt = parseTime(created.String)
		out = append(out, e)
	}
	return out, rows.Err()
}
