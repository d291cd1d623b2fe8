package storage

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedBackend = errors.New("unsupported store backend")

// NewStore builds the backend named by kind. An empty kind selects the
// in-memory store; sqlite is only available in builds tagged sqlite.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "memory", "mem":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, kind)
	}
}

// CloseIfSupported closes stores that hold external resources.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
