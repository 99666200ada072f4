// Package commands implements the slash-command router. Commands are
// matched before a message ever reaches the orchestrator, so the
// conversation loop stays free of directive parsing.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Handler executes one command. arg is the text after the command word,
// trimmed. The returned string is delivered to the user verbatim.
type Handler func(ctx context.Context, sessionID, arg string) (string, error)

// Command is one predicate+handler pair. Match may be nil, in which
// case the default "/name" token match applies.
type Command struct {
	Name  string
	Help  string
	Match func(text string) bool
	Run   Handler
}

func (c *Command) matches(text string) bool {
	if c.Match != nil {
		return c.Match(text)
	}
	word, _, _ := strings.Cut(text, " ")
	return strings.EqualFold(word, "/"+c.Name)
}

// Router evaluates registered commands in order against inbound text.
type Router struct {
	logger   *slog.Logger
	commands []*Command
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger.With("component", "commands")}
}

// Register appends a command. Registration order is match order.
func (r *Router) Register(cmds ...*Command) {
	r.commands = append(r.commands, cmds...)
}

// Dispatch runs the first matching command. handled is false when no
// command matched (including non-slash text), in which case the message
// should go to the orchestrator instead.
func (r *Router) Dispatch(ctx context.Context, sessionID, text string) (reply string, handled bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}

	for _, c := range r.commands {
		if !c.matches(text) {
			continue
		}
		_, arg, _ := strings.Cut(text, " ")
		arg = strings.TrimSpace(arg)

		r.logger.Debug("command matched", "command", c.Name, "session_id", sessionID)
		out, err := c.Run(ctx, sessionID, arg)
		if err != nil {
			return fmt.Sprintf("Command /%s failed: %v", c.Name, err), true
		}
		return out, true
	}
	return "", false
}

// HelpText lists registered commands alphabetically.
func (r *Router) HelpText() string {
	cmds := append([]*Command(nil), r.commands...)
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })

	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, c := range cmds {
		fmt.Fprintf(&sb, "  /%s - %s\n", c.Name, c.Help)
	}
	return strings.TrimRight(sb.String(), "\n")
}
