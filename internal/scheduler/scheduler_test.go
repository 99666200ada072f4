package scheduler

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "tasks.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestNextRunAt(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	task := &Task{Schedule: Schedule{Kind: ScheduleAt, At: &future}}

	next, ok := task.NextRun(now)
	if !ok || !next.Equal(future) {
		t.Errorf("NextRun = %v, %v", next, ok)
	}

	// Already passed: never runs again.
	if _, ok := task.NextRun(future.Add(time.Minute)); ok {
		t.Error("elapsed one-shot still has a next run")
	}
}

func TestNextRunEvery(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task := &Task{
		CreatedAt: base,
		Schedule:  Schedule{Kind: ScheduleEvery, Every: &Duration{Duration: time.Hour}},
	}

	next, ok := task.NextRun(base.Add(90 * time.Minute))
	if !ok {
		t.Fatal("recurring task has no next run")
	}
	if want := base.Add(2 * time.Hour); !next.Equal(want) {
		t.Errorf("NextRun = %v, want %v", next, want)
	}
}

func TestStorePersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")

	s1, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	task := &Task{Name: "water plants", Message: "remind me to water the plants", Enabled: true,
		Schedule: Schedule{Kind: ScheduleEvery, Every: &Duration{Duration: 24 * time.Hour}}}
	if err := s1.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.ID == "" {
		t.Fatal("CreateTask did not assign an ID")
	}

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got := s2.GetTask(task.ID)
	if got == nil || got.Name != "water plants" {
		t.Fatalf("reloaded task = %+v", got)
	}
	if got.Schedule.Every.Duration != 24*time.Hour {
		t.Errorf("interval = %v", got.Schedule.Every.Duration)
	}
}

func TestSchedulerFiresOneShot(t *testing.T) {
	store := newTestStore(t)

	var mu sync.Mutex
	var woken []string
	done := make(chan struct{})
	wake := func(ctx context.Context, sessionID, message string) error {
		mu.Lock()
		woken = append(woken, sessionID+":"+message)
		mu.Unlock()
		close(done)
		return nil
	}

	s := New(slog.Default(), store, wake)
	s.Start()
	defer s.Stop()

	at := time.Now().Add(20 * time.Millisecond)
	task := &Task{
		Name:      "ping",
		Message:   "check the oven",
		SessionID: "kitchen",
		Enabled:   true,
		Schedule:  Schedule{Kind: ScheduleAt, At: &at},
	}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(woken) != 1 || woken[0] != "kitchen:check the oven" {
		t.Errorf("woken = %v", woken)
	}

	// One-shots are disabled after firing.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if got := store.GetTask(task.ID); got != nil && !got.Enabled {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("one-shot task still enabled after firing")
}

func TestParseWhen(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	sched, err := parseWhen("30m", "", now)
	if err != nil {
		t.Fatalf("parseWhen failed: %v", err)
	}
	if sched.Kind != ScheduleAt || !sched.At.Equal(now.Add(30*time.Minute)) {
		t.Errorf("duration schedule = %+v", sched)
	}

	sched, err = parseWhen("in 2 hours", "", now)
	if err != nil {
		t.Fatalf("parseWhen failed: %v", err)
	}
	if !sched.At.Equal(now.Add(2 * time.Hour)) {
		t.Errorf("human duration schedule = %+v", sched)
	}

	sched, err = parseWhen("10m", "daily", now)
	if err != nil {
		t.Fatalf("parseWhen failed: %v", err)
	}
	if sched.Kind != ScheduleEvery || sched.Every.Duration != 24*time.Hour {
		t.Errorf("repeating schedule = %+v", sched)
	}

	if _, err := parseWhen("whenever", "", now); err == nil {
		t.Error("expected error for unparseable time")
	}
}
