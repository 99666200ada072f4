package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a JSON-file-backed Store: the whole dataset is loaded at
// open and rewritten wholesale on every mutation. Persistence errors on
// write do not fail Append; the in-process log stays authoritative and
// the error surfaces on the next successful save or at Close.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	sessions map[string][]Turn
}

// fileStoreDoc is the on-disk shape.
type fileStoreDoc struct {
	Sessions map[string][]Turn `json:"sessions"`
}

// OpenFileStore loads (or creates) a file-backed store at path.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:     path,
		sessions: make(map[string][]Turn),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory file: %w", err)
	}

	var doc fileStoreDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse memory file: %w", err)
	}
	if doc.Sessions != nil {
		s.sessions = doc.Sessions
	}
	return s, nil
}

// Append adds a turn to a session's log and rewrites the file.
func (s *FileStore) Append(sessionID string, t Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.sessions[sessionID]
	var last int64
	if n := len(log); n > 0 {
		last = log[n-1].Timestamp
	}
	s.sessions[sessionID] = append(log, stampTurn(t, last))

	return s.saveLocked()
}

// ReadAll returns every turn for a session in insertion order.
func (s *FileStore) ReadAll(sessionID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.sessions[sessionID]
	out := make([]Turn, len(log))
	copy(out, log)
	return out
}

// ReadWindowed returns at most n trailing turns in insertion order.
func (s *FileStore) ReadWindowed(sessionID string, n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.sessions[sessionID]
	if n > 0 && len(log) > n {
		log = log[len(log)-n:]
	}
	out := make([]Turn, len(log))
	copy(out, log)
	return out
}

// Sessions lists known session ids.
func (s *FileStore) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Clear removes a session and its turns.
func (s *FileStore) Clear(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return s.saveLocked()
}

// Stats returns store statistics.
func (s *FileStore) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, log := range s.sessions {
		total += len(log)
	}
	return map[string]any{
		"backend":  "file",
		"sessions": len(s.sessions),
		"turns":    total,
	}
}

// Close flushes the store to disk.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked rewrites the backing file. Callers hold s.mu.
func (s *FileStore) saveLocked() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create memory dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(fileStoreDoc{Sessions: s.sessions}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	return nil
}
