package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tindale/reeve/internal/tools"
)

// RegisterTools exposes schedule_task, list_tasks, and cancel_task.
func RegisterTools(r *tools.Registry, s *Scheduler) {
	r.Register(&tools.Tool{
		Name:        "schedule_task",
		Description: "Schedule a future action. Use for reminders, delayed commands, or recurring tasks. The action fires as a new message to you.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Human-readable name for the task.",
				},
				"when": map[string]any{
					"type":        "string",
					"description": "When to run: ISO timestamp, duration (e.g. '30m', '2h'), or 'in 30 minutes'.",
				},
				"action": map[string]any{
					"type":        "string",
					"description": "The message to process when the task fires.",
				},
				"repeat": map[string]any{
					"type":        "string",
					"description": "Optional repeat interval (e.g. '1h', '24h', 'daily').",
				},
			},
			"required": []string{"name", "when", "action"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["name"].(string)
			when, _ := args["when"].(string)
			action, _ := args["action"].(string)
			repeat, _ := args["repeat"].(string)
			if name == "" || when == "" || action == "" {
				return "", fmt.Errorf("name, when, and action are required")
			}

			schedule, err := parseWhen(when, repeat, time.Now())
			if err != nil {
				return "", fmt.Errorf("invalid schedule: %w", err)
			}

			task := &Task{
				Name:      name,
				Schedule:  schedule,
				Message:   action,
				SessionID: tools.SessionIDFromContext(ctx),
				Enabled:   true,
				CreatedBy: "agent",
			}
			if err := s.CreateTask(task); err != nil {
				return "", err
			}

			next, _ := task.NextRun(time.Now())
			return fmt.Sprintf("Task '%s' scheduled (ID: %s). Next run: %s", name, shortID(task.ID), next.Format(time.RFC3339)), nil
		},
	})

	r.Register(&tools.Tool{
		Name:        "list_tasks",
		Description: "List scheduled tasks.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"enabled_only": map[string]any{
					"type":        "boolean",
					"description": "Only show enabled tasks (default: true).",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			enabledOnly := true
			if e, ok := args["enabled_only"].(bool); ok {
				enabledOnly = e
			}

			tasks := s.ListTasks(enabledOnly)
			if len(tasks) == 0 {
				return "No scheduled tasks.", nil
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "Found %d task(s):\n", len(tasks))
			for _, t := range tasks {
				status := "enabled"
				if !t.Enabled {
					status = "disabled"
				}
				fmt.Fprintf(&sb, "- %s (%s): %s", t.Name, shortID(t.ID), status)
				if next, ok := t.NextRun(time.Now()); ok {
					fmt.Fprintf(&sb, ", next: %s", next.Format("2006-01-02 15:04"))
				}
				sb.WriteString("\n")
			}
			return sb.String(), nil
		},
	})

	r.Register(&tools.Tool{
		Name:        "cancel_task",
		Description: "Cancel a scheduled task.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "The task ID (or ID prefix) to cancel.",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			taskID, _ := args["task_id"].(string)
			if taskID == "" {
				return "", fmt.Errorf("task_id is required")
			}

			var found *Task
			for _, t := range s.ListTasks(false) {
				if t.ID == taskID || strings.HasPrefix(t.ID, taskID) {
					found = t
					break
				}
			}
			if found == nil {
				return "", fmt.Errorf("task not found: %s", taskID)
			}

			if err := s.DeleteTask(found.ID); err != nil {
				return "", err
			}
			return fmt.Sprintf("Task '%s' cancelled.", found.Name), nil
		},
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// parseWhen converts a human-friendly time specification to a Schedule.
func parseWhen(when, repeat string, now time.Time) (Schedule, error) {
	// Plain durations: "30m", "2h".
	if dur, err := time.ParseDuration(when); err == nil {
		if repeat != "" {
			repeatDur, err := parseRepeat(repeat)
			if err != nil {
				return Schedule{}, fmt.Errorf("invalid repeat: %w", err)
			}
			return Schedule{Kind: ScheduleEvery, Every: &Duration{Duration: repeatDur}}, nil
		}
		at := now.Add(dur)
		return Schedule{Kind: ScheduleAt, At: &at}, nil
	}

	// "in 30 minutes".
	if strings.HasPrefix(strings.ToLower(when), "in ") {
		if dur, err := parseHumanDuration(strings.TrimPrefix(strings.ToLower(when), "in ")); err == nil {
			at := now.Add(dur)
			return Schedule{Kind: ScheduleAt, At: &at}, nil
		}
	}

	if t, err := time.Parse(time.RFC3339, when); err == nil {
		return Schedule{Kind: ScheduleAt, At: &t}, nil
	}

	// Common date and time-of-day formats.
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"15:04",
		"3:04pm",
		"3:04 pm",
	}
	for _, format := range formats {
		t, err := time.Parse(format, when)
		if err != nil {
			continue
		}
		if format == "15:04" || format == "3:04pm" || format == "3:04 pm" {
			t = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
			if t.Before(now) {
				t = t.Add(24 * time.Hour)
			}
		}
		return Schedule{Kind: ScheduleAt, At: &t}, nil
	}

	return Schedule{}, fmt.Errorf("could not parse time: %s", when)
}

func parseRepeat(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return 24 * time.Hour, nil
	case "hourly":
		return time.Hour, nil
	case "weekly":
		return 7 * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func parseHumanDuration(s string) (time.Duration, error) {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) < 2 {
		return 0, fmt.Errorf("expected '<number> <unit>'")
	}

	var num int
	if _, err := fmt.Sscanf(parts[0], "%d", &num); err != nil {
		return 0, err
	}

	unit := strings.ToLower(parts[1])
	switch {
	case strings.HasPrefix(unit, "second"):
		return time.Duration(num) * time.Second, nil
	case strings.HasPrefix(unit, "minute"):
		return time.Duration(num) * time.Minute, nil
	case strings.HasPrefix(unit, "hour"):
		return time.Duration(num) * time.Hour, nil
	case strings.HasPrefix(unit, "day"):
		return time.Duration(num) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown unit: %s", unit)
	}
}
