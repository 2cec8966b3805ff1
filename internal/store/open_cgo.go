//go:build cgo

package store

import "fmt"

func openBackend(backend, path string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(path)
	case BackendKuzu:
		return NewKuzuFileStore(path)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", backend)
	}
}
