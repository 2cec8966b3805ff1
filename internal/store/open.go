package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// DefaultPath returns the conventional database location for backend inside
// the user directory dir.
func DefaultPath(dir, backend string) string {
	switch backend {
	case BackendKuzu:
		return filepath.Join(dir, "logs.kuzu")
	default:
		return filepath.Join(dir, "logs.db")
	}
}

// Open returns an initialized Store for backend. An empty backend means
// sqlite; an empty path means DefaultPath under dir.
func Open(ctx context.Context, backend, path, dir string) (Store, error) {
	if backend == "" {
		backend = BackendSQLite
	}
	if path == "" {
		path = DefaultPath(dir, backend)
	}

	s, err := openBackend(backend, path)
	if err != nil {
		return nil, err
	}
	if err := s.InitSchema(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: init %s: %w", backend, err)
	}
	return s, nil
}
