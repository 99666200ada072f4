// Package usage provides persistent token accounting for model calls.
// Records are append-only; aggregation happens in SQL.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one model call's token usage.
type Record struct {
	ID           string
	Timestamp    time.Time
	SessionID    string
	Model        string
	Kind         string // "chat" or "compaction"
	InputTokens  int
	OutputTokens int
}

// Summary holds aggregated totals.
type Summary struct {
	Calls        int
	InputTokens  int64
	OutputTokens int64
}

// Store is an append-only SQLite store for usage records. Safe for
// concurrent use; SQLite serializes the writes.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the usage database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id            TEXT PRIMARY KEY,
		timestamp     TEXT NOT NULL,
		session_id    TEXT,
		model         TEXT NOT NULL,
		kind          TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_time ON usage_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_usage_session ON usage_records(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one record. ID and Timestamp are filled in when zero.
func (s *Store) Append(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records
			(id, timestamp, session_id, model, kind, input_tokens, output_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.SessionID, r.Model, r.Kind, r.InputTokens, r.OutputTokens,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// Total aggregates every record.
func (s *Store) Total(ctx context.Context) (Summary, error) {
	return s.summarize(ctx, `SELECT COUNT(*),
		COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM usage_records`)
}

// Since aggregates records newer than t.
func (s *Store) Since(ctx context.Context, t time.Time) (Summary, error) {
	return s.summarize(ctx, `SELECT COUNT(*),
		COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM usage_records WHERE timestamp >= ?`,
		t.UTC().Format(time.RFC3339Nano))
}

// Session aggregates one session's records.
func (s *Store) Session(ctx context.Context, sessionID string) (Summary, error) {
	return s.summarize(ctx, `SELECT COUNT(*),
		COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM usage_records WHERE session_id = ?`, sessionID)
}

func (s *Store) summarize(ctx context.Context, query string, args ...any) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&sum.Calls, &sum.InputTokens, &sum.OutputTokens)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate usage: %w", err)
	}
	return sum, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
