package scheduler

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tindale/reeve/internal/jsonstore"
)

// Store persists tasks on a JSON record store.
type Store struct {
	records *jsonstore.Store[*Task]
}

// NewStore opens the task store at path.
func NewStore(path string) (*Store, error) {
	records, err := jsonstore.Open[*Task](path)
	if err != nil {
		return nil, err
	}
	return &Store{records: records}, nil
}

// NewID generates a new UUIDv7, falling back to v4.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// CreateTask persists a new task, assigning ID and timestamps.
func (s *Store) CreateTask(t *Task) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = time.Now()
	return s.records.Put(t.ID, t)
}

// GetTask retrieves a task by ID, or nil when absent.
func (s *Store) GetTask(id string) *Task {
	t, ok := s.records.Get(id)
	if !ok {
		return nil
	}
	return t
}

// UpdateTask persists changes to an existing task.
func (s *Store) UpdateTask(t *Task) error {
	t.UpdatedAt = time.Now()
	return s.records.Put(t.ID, t)
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(id string) error {
	return s.records.Delete(id)
}

// ListTasks returns tasks sorted by creation time, newest first,
// optionally filtered to enabled ones.
func (s *Store) ListTasks(enabledOnly bool) []*Task {
	all := s.records.All()
	tasks := make([]*Task, 0, len(all))
	for _, t := range all {
		if enabledOnly && !t.Enabled {
			continue
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}
