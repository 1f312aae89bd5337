package progress

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	BackendFile   = "file"
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	switch backend {
	case "", BackendFile:
		return NewFileStore(filepath.Join(dir, "progress"))
	case BackendPebble:
		return NewPebbleStore(filepath.Join(dir, "progress.pebble"))
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, "progress.db"))
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
