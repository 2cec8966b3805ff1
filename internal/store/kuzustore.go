//go:build cgo

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements Store using KuzuDB. Runs and responses are kept as a
// graph: (Run)-[:PRODUCED]->(Response). It requires CGO because the go-kuzu
// driver wraps KuzuDB's C library.
type KuzuStore struct {
	mu   sync.Mutex // a kuzu.Connection is not safe for concurrent use
	db   *kuzu.Database
	conn *kuzu.Connection
	now  func() time.Time
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at
// dbPath. KuzuDB creates the database file itself.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn, now: time.Now}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// kuzuDDL defines the Cypher DDL executed by InitSchema.
// Node tables must precede relationship tables.
var kuzuDDL = []string{
	`CREATE NODE TABLE IF NOT EXISTS Consortium(
		name STRING,
		config STRING,
		created_at STRING,
		PRIMARY KEY(name)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Run(
		id STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Response(
		id STRING,
		run_id STRING,
		model STRING,
		instance INT64,
		prompt STRING,
		response STRING,
		conversation_id STRING,
		metadata STRING,
		created_at STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS PRODUCED(FROM Run TO Response)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range kuzuDDL {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// SaveConfig upserts a Consortium node.
func (s *KuzuStore) SaveConfig(_ context.Context, name string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec(
		`MERGE (c:Consortium {name: $name})
		 SET c.config = $config, c.created_at = $ts`,
		map[string]any{
			"name":   name,
			"config": string(raw),
			"ts":     formatTime(s.now()),
		},
	)
}

// LoadConfig returns the config of the Consortium node called name.
func (s *KuzuStore) LoadConfig(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		"MATCH (c:Consortium {name: $name}) RETURN c.config",
		map[string]any{"name": name},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return []byte(toString(rows[0][0])), nil
}

// ListConfigs returns all Consortium nodes ordered by name.
func (s *KuzuStore) ListConfigs(_ context.Context) ([]NamedConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		"MATCH (c:Consortium) RETURN c.name, c.config, c.created_at ORDER BY c.name",
		nil,
	)
	if err != nil {
		return nil, err
	}
	out := make([]NamedConfig, 0, len(rows))
	for _, r := range rows {
		out = append(out, NamedConfig{
			Name:      toString(r[0]),
			Config:    []byte(toString(r[1])),
			CreatedAt: parseTime(toString(r[2])),
		})
	}
	return out, nil
}

// DeleteConfig removes the Consortium node called name.
func (s *KuzuStore) DeleteConfig(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		"MATCH (c:Consortium {name: $name}) RETURN count(c)",
		map[string]any{"name": name},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 || toInt(rows[0][0]) == 0 {
		return ErrNotFound
	}
	return s.exec(
		"MATCH (c:Consortium {name: $name}) DELETE c",
		map[string]any{"name": name},
	)
}

// LogResponse creates a Response node and links it to its Run.
func (s *KuzuStore) LogResponse(_ context.Context, entry LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	md, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return err
	}
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.exec(
		`CREATE (r:Response {
			id: $id,
			run_id: $run,
			model: $model,
			instance: $instance,
			prompt: $prompt,
			response: $response,
			conversation_id: $conv,
			metadata: $md,
			created_at: $ts
		})`,
		map[string]any{
			"id":       id,
			"run":      entry.RunID,
			"model":    entry.Model,
			"instance": int64(entry.Instance),
			"prompt":   entry.Prompt,
			"response": entry.Response,
			"conv":     entry.ConversationID,
			"md":       md,
			"ts":       formatTime(entry.CreatedAt),
		},
	)
	if err != nil {
		return err
	}
	if entry.RunID == "" {
		return nil
	}
	if err := s.exec("MERGE (:Run {id: $run})", map[string]any{"run": entry.RunID}); err != nil {
		return err
	}
	return s.exec(
		`MATCH (run:Run {id: $run}), (r:Response {id: $id})
		 CREATE (run)-[:PRODUCED]->(r)`,
		map[string]any{"run": entry.RunID, "id": id},
	)
}

const responseColumns = "r.run_id, r.model, r.instance, r.prompt, r.response, r.conversation_id, r.metadata, r.created_at"

// Responses returns logged entries newest first.
func (s *KuzuStore) Responses(_ context.Context, limit int) ([]LogEntry, error) {
	cypher := "MATCH (r:Response) RETURN " + responseColumns + " ORDER BY r.created_at DESC"
	if limit > 0 {
		cypher += fmt.Sprintf(" LIMIT %d", limit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(cypher, nil)
	if err != nil {
		return nil, err
	}
	return rowsToEntries(rows), nil
}

// RunResponses follows the PRODUCED edges of one run, oldest first.
func (s *KuzuStore) RunResponses(_ context.Context, runID string) ([]LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.query(
		"MATCH (:Run {id: $run})-[:PRODUCED]->(r:Response) RETURN "+responseColumns+" ORDER BY r.created_at",
		map[string]any{"run": runID},
	)
	if err != nil {
		return nil, err
	}
	return rowsToEntries(rows), nil
}

// rowsToEntries converts result rows in responseColumns order.
func rowsToEntries(rows [][]any) []LogEntry {
	out := make([]LogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, LogEntry{
			RunID:          toString(r[0]),
			Model:          toString(r[1]),
			Instance:       toInt(r[2]),
			Prompt:         toString(r[3]),
			Response:       toString(r[4]),
			ConversationID: toString(r[5]),
			Metadata:       decodeMetadata(toString(r[6])),
			CreatedAt:      parseTime(toString(r[7])),
		})
	}
	return out
}

// exec runs a parameterized Cypher statement that produces no result rows.
// Callers hold s.mu.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a Cypher statement and collects all result rows in column
// order. Callers hold s.mu.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// KuzuDB returns typed Go values (int64, string, ...). These helpers coerce
// any -> concrete type.

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
