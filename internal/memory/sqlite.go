package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the preferred conversation log backend. It is CGO-free
// (modernc driver) so the binary stays portable.
type SQLiteStore struct {
	db *sql.DB

	// lastTS tracks the newest timestamp per session so Append can keep
	// timestamps strictly increasing without a round-trip per insert.
	mu     sync.Mutex
	lastTS map[string]int64
}

// OpenSQLite opens (or creates) a SQLite-backed store at dbPath.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db, lastTS: make(map[string]int64)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// newID generates a UUIDv7 turn id, falling back to v4.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Append adds a turn to a session's log.
func (s *SQLiteStore) Append(sessionID string, t Turn) error {
	s.mu.Lock()
	last, ok := s.lastTS[sessionID]
	if !ok {
		// First append for this session in this process: recover the
		// high-water mark from the table.
		_ = s.db.QueryRow(
			`SELECT COALESCE(MAX(timestamp), 0) FROM turns WHERE session_id = ?`,
			sessionID,
		).Scan(&last)
	}
	t = stampTurn(t, last)
	s.lastTS[sessionID] = t.Timestamp
	s.mu.Unlock()

	var metadata any
	if t.Metadata != nil {
		data, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = string(data)
	}

	_, err := s.db.Exec(`
		INSERT INTO turns (id, session_id, role, content, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, newID(), sessionID, t.Role, t.Content, t.Timestamp, metadata)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// ReadAll returns every turn for a session in insertion order.
func (s *SQLiteStore) ReadAll(sessionID string) []Turn {
	return s.read(sessionID, 0)
}

// ReadWindowed returns at most n trailing turns in insertion order.
func (s *SQLiteStore) ReadWindowed(sessionID string, n int) []Turn {
	return s.read(sessionID, n)
}

func (s *SQLiteStore) read(sessionID string, n int) []Turn {
	query := `
		SELECT role, content, timestamp, metadata
		FROM turns WHERE session_id = ?
		ORDER BY timestamp ASC`
	args := []any{sessionID}

	if n > 0 {
		// Trailing window: select newest n descending, then reverse.
		query = `
		SELECT role, content, timestamp, metadata FROM (
			SELECT role, content, timestamp, metadata
			FROM turns WHERE session_id = ?
			ORDER BY timestamp DESC LIMIT ?
		) ORDER BY timestamp ASC`
		args = append(args, n)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return []Turn{}
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var metadata sql.NullString
		if err := rows.Scan(&t.Role, &t.Content, &t.Timestamp, &metadata); err != nil {
			continue
		}
		if metadata.Valid {
			_ = json.Unmarshal([]byte(metadata.String), &t.Metadata)
		}
		turns = append(turns, t)
	}
	return turns
}

// Sessions lists known session ids.
func (s *SQLiteStore) Sessions() []string {
	rows, err := s.db.Query(`SELECT DISTINCT session_id FROM turns ORDER BY session_id`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Clear removes a session and its turns.
func (s *SQLiteStore) Clear(sessionID string) error {
	s.mu.Lock()
	delete(s.lastTS, sessionID)
	s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM turns WHERE session_id = ?`, sessionID)
	return err
}

// Stats returns store statistics.
func (s *SQLiteStore) Stats() map[string]any {
	var sessions, turns int
	_ = s.db.QueryRow(`SELECT COUNT(DISTINCT session_id) FROM turns`).Scan(&sessions)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM turns`).Scan(&turns)

	return map[string]any{
		"backend":  "sqlite",
		"sessions": sessions,
		"turns":    turns,
	}
}
