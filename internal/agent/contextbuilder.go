package agent

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tindale/reeve/internal/llm"
	"github.com/tindale/reeve/internal/memory"
	"github.com/tindale/reeve/internal/prompts"
)

const (
	// DefaultRecentWindow is how many trailing turns are kept verbatim
	// in the conversation window.
	DefaultRecentWindow = 10

	// DefaultPerTurnMaxChars caps each turn's content in the window, so
	// the total prompt size is bounded by recentWindow x perTurnCap.
	DefaultPerTurnMaxChars = 4000
)

// workspaceFiles are folded into the system prompt when present in the
// configured workspace directory.
var workspaceFiles = []string{"REEVE.md", "AGENTS.md"}

// NotesSource supplies durable long-term notes for the system prompt.
type NotesSource interface {
	Texts() []string
}

// ContextBuilder assembles the message list for one model call: a
// system prompt (identity, workspace context, clock, user, notes, mode
// directives) followed by a bounded window over the session's turn log.
type ContextBuilder struct {
	store     memory.Store
	notes     NotesSource
	logger    *slog.Logger
	agentName string
	userName  string
	workspace string

	recentWindow    int
	perTurnMaxChars int

	// now is swapped out in tests.
	now func() time.Time
}

// BuilderConfig configures a ContextBuilder. Notes may be nil.
type BuilderConfig struct {
	Store           memory.Store
	Notes           NotesSource
	Logger          *slog.Logger
	AgentName       string
	UserName        string
	Workspace       string
	RecentWindow    int
	PerTurnMaxChars int
}

// NewContextBuilder creates a builder, applying defaults for zero
// window settings.
func NewContextBuilder(cfg BuilderConfig) *ContextBuilder {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = DefaultRecentWindow
	}
	if cfg.PerTurnMaxChars <= 0 {
		cfg.PerTurnMaxChars = DefaultPerTurnMaxChars
	}
	if cfg.AgentName == "" {
		cfg.AgentName = "Reeve"
	}
	return &ContextBuilder{
		store:           cfg.Store,
		notes:           cfg.Notes,
		logger:          cfg.Logger.With("component", "context"),
		agentName:       cfg.AgentName,
		userName:        cfg.UserName,
		workspace:       cfg.Workspace,
		recentWindow:    cfg.RecentWindow,
		perTurnMaxChars: cfg.PerTurnMaxChars,
		now:             time.Now,
	}
}

// BuildOptions carries per-session mode flags into the system prompt.
type BuildOptions struct {
	Thinking bool
	Plan     bool
}

// Build produces the full message list for a model call: one system
// message followed by the windowed conversation.
func (b *ContextBuilder) Build(sessionID string, opts BuildOptions) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: b.systemPrompt(opts)}}

	for _, t := range b.window(sessionID) {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	return messages
}

func (b *ContextBuilder) systemPrompt(opts BuildOptions) string {
	sections := []string{
		prompts.Identity(b.agentName),
		prompts.WorkspaceContext(b.workspaceBody()),
		prompts.TimeBlock(b.now()),
		prompts.UserBlock(b.userName),
	}
	if b.notes != nil {
		sections = append(sections, prompts.NotesBlock(b.notes.Texts()))
	}
	if opts.Thinking {
		sections = append(sections, prompts.ThinkingDirective)
	}
	if opts.Plan {
		sections = append(sections, prompts.PlanDirective)
	}
	return prompts.Assemble(sections...)
}

func (b *ContextBuilder) workspaceBody() string {
	if b.workspace == "" {
		return ""
	}
	var parts []string
	for _, name := range workspaceFiles {
		data, err := os.ReadFile(filepath.Join(b.workspace, name))
		if err != nil {
			continue
		}
		body := strings.TrimSpace(string(data))
		if body != "" {
			parts = append(parts, body)
		}
	}
	return strings.Join(parts, "\n\n")
}

// window selects the turns included in the prompt. Compacted history is
// filtered first; then either everything fits, or the first user turn
// is pinned ahead of the last recentWindow turns with a gap marker in
// between. Each turn is truncated independently.
func (b *ContextBuilder) window(sessionID string) []memory.Turn {
	effective := memory.FilterCompacted(b.store.ReadAll(sessionID))

	if len(effective) <= b.recentWindow+2 {
		return b.truncateAll(effective)
	}

	recent := effective[len(effective)-b.recentWindow:]

	goalIdx := -1
	for i, t := range effective {
		if t.Role == memory.RoleUser {
			goalIdx = i
			break
		}
	}
	if goalIdx < 0 || goalIdx >= len(effective)-b.recentWindow {
		// First user turn already inside the recent window (or absent):
		// no pin, no gap marker.
		return b.truncateAll(recent)
	}

	goal := effective[goalIdx]
	goal.Content = prompts.OriginalGoalLabel + ": " + goal.Content

	skipped := len(effective) - b.recentWindow - goalIdx - 1
	gap := memory.Turn{
		Role:    memory.RoleSystem,
		Content: prompts.SkippedMessages(skipped),
	}

	out := make([]memory.Turn, 0, len(recent)+2)
	out = append(out, goal, gap)
	out = append(out, recent...)
	return b.truncateAll(out)
}

func (b *ContextBuilder) truncateAll(turns []memory.Turn) []memory.Turn {
	out := make([]memory.Turn, len(turns))
	for i, t := range turns {
		if len(t.Content) > b.perTurnMaxChars {
			dropped := len(t.Content) - b.perTurnMaxChars
			t.Content = t.Content[:b.perTurnMaxChars] + prompts.TruncatedSuffix(dropped)
		}
		out[i] = t
	}
	return out
}
