package memory

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// Store is the interface for conversation log backends. Append never
// reorders; ReadAll returns turns in insertion order. Implementations
// are safe for concurrent use.
type Store interface {
	// Append adds a turn to a session's log. If the turn's Timestamp is
	// zero, the store assigns one (unix ms, bumped past the session's
	// last timestamp so ordering is strict).
	Append(sessionID string, t Turn) error

	// ReadAll returns every turn for a session in insertion order.
	ReadAll(sessionID string) []Turn

	// ReadWindowed returns at most n trailing turns in insertion order.
	// n <= 0 means no limit.
	ReadWindowed(sessionID string, n int) []Turn

	// Sessions lists known session ids.
	Sessions() []string

	// Clear removes a session and its turns.
	Clear(sessionID string) error

	// Stats returns backend statistics for diagnostics.
	Stats() map[string]any

	Close() error
}

// Open builds a Store from the configured backend name. An empty
// backend means "sqlite if possible": the SQLite store is attempted
// first and the JSON file store is the guaranteed-available fallback,
// so callers stay backend-agnostic.
func Open(backend, dataDir, path string, logger *slog.Logger) (Store, error) {
	switch backend {
	case "sqlite":
		if path == "" {
			path = filepath.Join(dataDir, "memory.db")
		}
		return OpenSQLite(path)
	case "file":
		if path == "" {
			path = filepath.Join(dataDir, "memory.json")
		}
		return OpenFileStore(path)
	case "":
		dbPath := path
		if dbPath == "" {
			dbPath = filepath.Join(dataDir, "memory.db")
		}
		s, err := OpenSQLite(dbPath)
		if err == nil {
			return s, nil
		}
		logger.Warn("sqlite memory store unavailable, falling back to file store",
			"path", dbPath, "error", err)
		return OpenFileStore(filepath.Join(dataDir, "memory.json"))
	default:
		return nil, fmt.Errorf("unknown memory backend %q (valid: sqlite, file)", backend)
	}
}
