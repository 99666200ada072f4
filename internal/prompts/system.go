package prompts

import (
	"fmt"
	"strings"
	"time"
)

// identityTemplate is the core behavioral prompt. The single format
// verb is the agent's configured name.
const identityTemplate = `You are %s, a personal assistant that can use tools to get things done.

## When to Use Tools
Only use tools when the user asks you to DO something or CHECK something specific. Do NOT use tools for greetings or plain conversation — respond directly.

## Rules
- Announce what you are about to do in one short sentence before a long-running tool call.
- Keep responses short for actions: the result, not a narration of the steps.
- If a tool fails, say so plainly and suggest the next step. Do not retry the same call more than twice.
- Never invent tool output. If you did not run a tool, do not claim you did.`

// Identity returns the base system prompt for the named agent.
func Identity(name string) string {
	return fmt.Sprintf(identityTemplate, name)
}

// WorkspaceContext wraps operator-provided workspace notes (the
// contents of REEVE.md / AGENTS.md files from the workspace directory).
// Returns "" when there is nothing to include.
func WorkspaceContext(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	return "## Workspace Context\n" + body
}

// TimeBlock renders the current wall-clock time so the model does not
// guess at dates.
func TimeBlock(now time.Time) string {
	return fmt.Sprintf("## Current Time\n%s (%s)", now.Format("Monday, 2 January 2006 15:04"), now.Format("MST"))
}

// UserBlock names the person the agent is talking to. Returns "" when
// no display name is configured.
func UserBlock(displayName string) string {
	if displayName == "" {
		return ""
	}
	return "## User\nYou are speaking with " + displayName + "."
}

// NotesBlock embeds long-term notes the agent has saved. Returns ""
// when there are none.
func NotesBlock(notes []string) string {
	if len(notes) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Long-Term Notes\nThings you have chosen to remember:\n")
	for _, n := range notes {
		sb.WriteString("- ")
		sb.WriteString(n)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ThinkingDirective instructs the model to reason step by step before
// answering. Active when the user has enabled thinking mode.
const ThinkingDirective = `## Thinking Mode
Before answering, reason through the problem step by step. Show your working briefly, then give the answer.`

// PlanDirective instructs the model to propose before acting. Active
// when the user has enabled plan mode.
const PlanDirective = `## Plan Mode
Do not execute any tools. Instead, lay out a numbered plan of the steps you would take and wait for approval.`

// Assemble joins non-empty system prompt sections with blank lines,
// preserving order.
func Assemble(sections ...string) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
