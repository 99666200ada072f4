package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Conversation is the slice of the orchestrator the built-in commands
// need: mode toggles and diagnostics.
type Conversation interface {
	Stats() map[string]any
	SetThinking(sessionID string, on bool)
	SetPlan(sessionID string, on bool)
	Modes(sessionID string) (thinking, plan bool)
}

// Log clears a session's conversation history.
type Log interface {
	Clear(sessionID string) error
}

// Compactor forces a history compaction on demand.
type Compactor interface {
	Force(ctx context.Context, sessionID string) error
}

// Deps carries the collaborators for the built-in command set.
// Compactor may be nil, in which case /compact reports unavailability.
type Deps struct {
	Loop      Conversation
	Store     Log
	Compactor Compactor
}

// RegisterBuiltin adds the standard command set to the router.
func RegisterBuiltin(r *Router, d Deps) {
	r.Register(
		&Command{
			Name: "new",
			Help: "start a fresh conversation, clearing this session's history",
			Run: func(_ context.Context, sessionID, _ string) (string, error) {
				if err := d.Store.Clear(sessionID); err != nil {
					return "", err
				}
				return "Started a new conversation.", nil
			},
		},
		&Command{
			Name: "compact",
			Help: "summarize older history into a compaction marker now",
			Run: func(ctx context.Context, sessionID, _ string) (string, error) {
				if d.Compactor == nil {
					return "Compaction is not configured.", nil
				}
				if err := d.Compactor.Force(ctx, sessionID); err != nil {
					return "", err
				}
				return "Conversation compacted.", nil
			},
		},
		&Command{
			Name: "status",
			Help: "show loop and storage diagnostics",
			Run: func(_ context.Context, sessionID, _ string) (string, error) {
				thinking, plan := d.Loop.Modes(sessionID)
				stats := d.Loop.Stats()
				stats["thinking_mode"] = thinking
				stats["plan_mode"] = plan
				return formatStats(stats), nil
			},
		},
		&Command{
			Name: "think",
			Help: "toggle thinking mode (/think on, /think off)",
			Run: func(_ context.Context, sessionID, arg string) (string, error) {
				cur, _ := d.Loop.Modes(sessionID)
				on, err := parseToggle(arg, cur)
				if err != nil {
					return "", err
				}
				d.Loop.SetThinking(sessionID, on)
				return "Thinking mode " + onOff(on) + ".", nil
			},
		},
		&Command{
			Name: "plan",
			Help: "toggle plan mode (/plan on, /plan off)",
			Run: func(_ context.Context, sessionID, arg string) (string, error) {
				_, cur := d.Loop.Modes(sessionID)
				on, err := parseToggle(arg, cur)
				if err != nil {
					return "", err
				}
				d.Loop.SetPlan(sessionID, on)
				return "Plan mode " + onOff(on) + ".", nil
			},
		},
		&Command{
			Name: "help",
			Help: "list available commands",
			Run: func(context.Context, string, string) (string, error) {
				return r.HelpText(), nil
			},
		},
	)
}

// parseToggle interprets an on/off argument; an empty argument flips
// the current state.
func parseToggle(arg string, current bool) (bool, error) {
	switch strings.ToLower(arg) {
	case "":
		return !current, nil
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected 'on' or 'off', got %q", arg)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func formatStats(stats map[string]any) string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("Status:\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s: %v\n", k, stats[k])
	}
	return strings.TrimRight(sb.String(), "\n")
}
