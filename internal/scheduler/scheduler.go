package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WakeFunc delivers a fired task's message to the orchestrator as a
// synthetic inbound message for the task's session.
type WakeFunc func(ctx context.Context, sessionID, message string) error

// Scheduler arms a timer per enabled task and wakes the agent when one
// fires.
type Scheduler struct {
	logger *slog.Logger
	store  *Store
	wake   WakeFunc

	mu      sync.Mutex
	timers  map[string]*time.Timer
	running bool
	wg      sync.WaitGroup
}

// New creates a scheduler.
func New(logger *slog.Logger, store *Store, wake WakeFunc) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger.With("component", "scheduler"),
		store:  store,
		wake:   wake,
		timers: make(map[string]*time.Timer),
	}
}

// Start arms timers for every enabled task.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	tasks := s.store.ListTasks(true)
	for _, task := range tasks {
		s.arm(task)
	}
	s.logger.Info("scheduler started", "tasks", len(tasks))
}

// Stop cancels all timers and waits for in-flight wakes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// CreateTask persists a task and arms it when enabled.
func (s *Scheduler) CreateTask(task *Task) error {
	if err := s.store.CreateTask(task); err != nil {
		return err
	}
	if task.Enabled {
		s.arm(task)
	}
	s.logger.Info("task created", "id", task.ID, "name", task.Name, "schedule", task.Schedule.Kind)
	return nil
}

// DeleteTask disarms and removes a task.
func (s *Scheduler) DeleteTask(id string) error {
	s.disarm(id)
	if err := s.store.DeleteTask(id); err != nil {
		return err
	}
	s.logger.Info("task deleted", "id", id)
	return nil
}

// GetTask retrieves a task by ID, or nil.
func (s *Scheduler) GetTask(id string) *Task {
	return s.store.GetTask(id)
}

// ListTasks returns tasks, optionally only enabled ones.
func (s *Scheduler) ListTasks(enabledOnly bool) []*Task {
	return s.store.ListTasks(enabledOnly)
}

// arm sets a timer for the task's next run.
func (s *Scheduler) arm(task *Task) {
	next, ok := task.NextRun(time.Now())
	if !ok {
		s.logger.Debug("task has no future runs", "id", task.ID, "name", task.Name)
		return
	}

	delay := time.Until(next)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if timer, exists := s.timers[task.ID]; exists {
		timer.Stop()
	}
	taskID := task.ID
	s.timers[taskID] = time.AfterFunc(delay, func() {
		s.fire(taskID)
	})

	s.logger.Debug("task armed", "id", task.ID, "name", task.Name, "next", next, "delay", delay)
}

func (s *Scheduler) disarm(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, exists := s.timers[taskID]; exists {
		timer.Stop()
		delete(s.timers, taskID)
	}
}

// fire wakes the agent for a due task and re-arms recurring schedules.
func (s *Scheduler) fire(taskID string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	delete(s.timers, taskID)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	task := s.store.GetTask(taskID)
	if task == nil || !task.Enabled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s.logger.Info("task firing", "id", task.ID, "name", task.Name)

	task.LastRun = time.Now()
	task.LastResult = "success"
	if err := s.wake(ctx, task.SessionID, task.Message); err != nil {
		task.LastResult = err.Error()
		s.logger.Error("task wake failed", "id", task.ID, "error", err)
	}

	// One-shots are spent after firing.
	if task.Schedule.Kind == ScheduleAt {
		task.Enabled = false
	}
	if err := s.store.UpdateTask(task); err != nil {
		s.logger.Error("task update failed", "id", task.ID, "error", err)
	}

	if task.Enabled {
		s.arm(task)
	}
}

// Stats returns scheduler statistics for the status surface.
func (s *Scheduler) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.store.ListTasks(false)
	enabled := 0
	for _, t := range tasks {
		if t.Enabled {
			enabled++
		}
	}
	return map[string]any{
		"running":       s.running,
		"total_tasks":   len(tasks),
		"enabled_tasks": enabled,
		"active_timers": len(s.timers),
	}
}
