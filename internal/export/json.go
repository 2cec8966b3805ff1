// Package export writes consortium results for consumption outside the CLI.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dusk-indust/consortium/internal/orchestrator"
)

// WriteJSON encodes res as indented JSON followed by a newline.
func WriteJSON(w io.Writer, res *orchestrator.Result) error {
	if res == nil {
		return fmt.Errorf("export: result is nil")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("export: encode result: %w", err)
	}
	return nil
}

// WriteFile writes res as JSON to path, creating parent directories.
func WriteFile(path string, res *orchestrator.Result) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: create %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := WriteJSON(f, res); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	return nil
}
