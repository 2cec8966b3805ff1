//go:build !cgo

package store

import "fmt"

func openBackend(backend, _ string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemStore(), nil
	case BackendSQLite, BackendKuzu:
		return nil, fmt.Errorf("store: backend %q requires a cgo build; use %q", backend, BackendMemory)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", backend)
	}
}
