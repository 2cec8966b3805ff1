// Package store persists named consortium configurations and the
// append-only log of model responses.
package store

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a named configuration does not exist.
var ErrNotFound = errors.New("store: not found")

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendKuzu   = "kuzu"
)

// ConfigStore persists named configurations as opaque serialized blobs.
type ConfigStore interface {
	// SaveConfig stores raw under name, overwriting any previous value.
	SaveConfig(ctx context.Context, name string, raw []byte) error

	// LoadConfig returns the blob saved under name or ErrNotFound.
	LoadConfig(ctx context.Context, name string) ([]byte, error)

	// ListConfigs returns every saved configuration ordered by name.
	ListConfigs(ctx context.Context) ([]NamedConfig, error)

	// DeleteConfig removes name or returns ErrNotFound.
	DeleteConfig(ctx context.Context, name string) error
}

// LogSink is the append-only response log.
type LogSink interface {
	LogResponse(ctx context.Context, entry LogEntry) error
}

// LogReader reads the response log back.
type LogReader interface {
	// Responses returns the most recent entries, newest first. limit <= 0
	// returns all of them.
	Responses(ctx context.Context, limit int) ([]LogEntry, error)

	// RunResponses returns the entries of one run in the order they were
	// logged.
	RunResponses(ctx context.Context, runID string) ([]LogEntry, error)
}

// Store is the full persistence surface used by the CLI and servers.
// Implementations: SQLiteStore and KuzuStore (cgo), MemStore.
type Store interface {
	io.Closer
	ConfigStore
	LogSink
	LogReader

	// InitSchema prepares tables; it is idempotent.
	InitSchema(ctx context.Context) error
}

// NamedConfig is one saved configuration.
type NamedConfig struct {
	Name      string
	Config    []byte
	CreatedAt time.Time
}

// LogEntry is one logged model exchange.
type LogEntry struct {
	RunID          string         `json:"run_id,omitempty"`
	Model          string         `json:"model"`
	Instance       int            `json:"instance"`
	Prompt         string         `json:"prompt"`
	Response       string         `json:"response"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
