// Package scheduler handles future task scheduling. Fired tasks wake
// the agent by injecting a synthetic message into the orchestrator.
package scheduler

import "time"

// Task is the definition of a scheduled action.
type Task struct {
	ID         string    `json:"id"` // UUIDv7
	Name       string    `json:"name"`
	Schedule   Schedule  `json:"schedule"`
	Message    string    `json:"message"`           // injected when the task fires
	SessionID  string    `json:"session_id"`        // session the wake targets
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	CreatedBy  string    `json:"created_by,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
	LastRun    time.Time `json:"last_run,omitempty"`
	LastResult string    `json:"last_result,omitempty"`
}

// Schedule defines when a task should run.
type Schedule struct {
	Kind  ScheduleKind `json:"kind"`
	At    *time.Time   `json:"at,omitempty"`    // for "at"
	Every *Duration    `json:"every,omitempty"` // for "every"
}

// ScheduleKind identifies the schedule type.
type ScheduleKind string

const (
	ScheduleAt    ScheduleKind = "at"    // one-shot at a specific time
	ScheduleEvery ScheduleKind = "every" // recurring interval
)

// Duration wraps time.Duration for JSON serialization.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// NextRun calculates the next execution time strictly after the given
// instant. ok is false when the task will never run again.
func (t *Task) NextRun(after time.Time) (time.Time, bool) {
	switch t.Schedule.Kind {
	case ScheduleAt:
		if t.Schedule.At != nil && t.Schedule.At.After(after) {
			return *t.Schedule.At, true
		}
		return time.Time{}, false

	case ScheduleEvery:
		if t.Schedule.Every == nil || t.Schedule.Every.Duration <= 0 {
			return time.Time{}, false
		}
		interval := t.Schedule.Every.Duration
		base := t.CreatedAt
		if base.IsZero() {
			base = after
		}
		elapsed := after.Sub(base)
		if elapsed < 0 {
			return base, true
		}
		intervals := int64(elapsed/interval) + 1
		return base.Add(time.Duration(intervals) * interval), true

	default:
		return time.Time{}, false
	}
}
