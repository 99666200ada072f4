// Package notes stores the agent's durable long-term notes. Notes are
// short free-text facts the model chooses to remember across sessions;
// the context builder embeds them into every system prompt.
package notes

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tindale/reeve/internal/jsonstore"
)

// Note is one remembered fact.
type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"` // session ID
}

// Store persists notes on a JSON record store.
type Store struct {
	records *jsonstore.Store[Note]
}

// Open loads the notes store at path.
func Open(path string) (*Store, error) {
	records, err := jsonstore.Open[Note](path)
	if err != nil {
		return nil, fmt.Errorf("open notes: %w", err)
	}
	return &Store{records: records}, nil
}

// Save adds a note and returns it.
func (s *Store) Save(text, sessionID string) (Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Note{}, fmt.Errorf("note text is empty")
	}

	n := Note{
		ID:        newID(),
		Text:      text,
		CreatedAt: time.Now(),
		CreatedBy: sessionID,
	}
	if err := s.records.Put(n.ID, n); err != nil {
		return Note{}, err
	}
	return n, nil
}

// List returns all notes, oldest first.
func (s *Store) List() []Note {
	all := s.records.All()
	out := make([]Note, 0, len(all))
	for _, n := range all {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Texts returns the note bodies in List order, for prompt embedding.
func (s *Store) Texts() []string {
	notes := s.List()
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Text
	}
	return out
}

// Delete removes a note by ID or unambiguous ID prefix.
func (s *Store) Delete(id string) error {
	if _, ok := s.records.Get(id); ok {
		return s.records.Delete(id)
	}

	var match string
	for _, candidate := range s.records.IDs() {
		if strings.HasPrefix(candidate, id) {
			if match != "" {
				return fmt.Errorf("note id %q is ambiguous", id)
			}
			match = candidate
		}
	}
	if match == "" {
		return fmt.Errorf("note not found: %s", id)
	}
	return s.records.Delete(match)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
