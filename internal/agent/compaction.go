package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tindale/reeve/internal/config"
	"github.com/tindale/reeve/internal/events"
	"github.com/tindale/reeve/internal/llm"
	"github.com/tindale/reeve/internal/memory"
	"github.com/tindale/reeve/internal/prompts"
	"github.com/tindale/reeve/internal/usage"
)

// Compactor replaces old conversation turns with a model-written
// summary marker. Compaction is best-effort: any failure leaves the log
// untouched and the next cycle tries again.
type Compactor struct {
	logger *slog.Logger
	store  memory.Store
	models *llm.Registry
	model  string
	cfg    config.CompactionConfig
	bus    *events.Bus
	usage  *usage.Store
}

// NewCompactor creates a compactor. model is a "provider/model"
// reference for the summarizer. bus and tracker may be nil.
func NewCompactor(store memory.Store, models *llm.Registry, model string, cfg config.CompactionConfig, bus *events.Bus, tracker *usage.Store, logger *slog.Logger) *Compactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{
		logger: logger.With("component", "compaction"),
		store:  store,
		models: models,
		model:  model,
		cfg:    cfg,
		bus:    bus,
		usage:  tracker,
	}
}

// Maybe runs a compaction cycle when the session has grown past the
// configured thresholds. Errors are logged and swallowed.
func (c *Compactor) Maybe(ctx context.Context, sessionID string) {
	turns := c.store.ReadAll(sessionID)
	if len(turns) < c.cfg.MinMessages {
		return
	}

	candidates := c.split(turns)
	if countMessages(candidates) < c.cfg.MinNewMessages {
		return
	}

	if err := c.compact(ctx, sessionID, candidates); err != nil {
		c.logger.Warn("compaction skipped", "session_id", sessionID, "error", err)
	}
}

// Force runs compaction regardless of the accumulation thresholds, as
// long as there is anything to summarize beyond the keep-last tail.
func (c *Compactor) Force(ctx context.Context, sessionID string) error {
	candidates := c.split(c.store.ReadAll(sessionID))
	if countMessages(candidates) == 0 {
		return fmt.Errorf("nothing to compact")
	}
	return c.compact(ctx, sessionID, candidates)
}

// split returns the turns eligible for summarization: the effective
// view minus the keep-last tail. Starting from the effective view means
// a previous marker's summary is folded into the next one.
func (c *Compactor) split(turns []memory.Turn) []memory.Turn {
	effective := memory.FilterCompacted(turns)
	cut := len(effective) - c.cfg.KeepLast
	if cut <= 0 {
		return nil
	}
	return effective[:cut]
}

// countMessages counts non-marker turns; a carried-over summary marker
// does not count toward the accumulation threshold.
func countMessages(turns []memory.Turn) int {
	n := 0
	for _, t := range turns {
		if !t.IsCompactionMarker() {
			n++
		}
	}
	return n
}

func (c *Compactor) compact(ctx context.Context, sessionID string, candidates []memory.Turn) error {
	client, model, err := c.models.Resolve(c.model)
	if err != nil {
		return err
	}

	serialized := c.serialize(candidates)
	resp, err := client.Chat(ctx, model, []llm.Message{
		{Role: "user", Content: prompts.CompactionPrompt(serialized)},
	}, nil)
	if err != nil {
		return fmt.Errorf("summarization: %w", err)
	}

	if c.usage != nil {
		if uerr := c.usage.Append(ctx, usage.Record{
			SessionID:    sessionID,
			Model:        model,
			Kind:         "compaction",
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
		}); uerr != nil {
			c.logger.Warn("usage record not persisted", "session_id", sessionID, "error", uerr)
		}
	}

	summary := strings.TrimSpace(resp.Message.Content)
	if summary == "" {
		return fmt.Errorf("summarization returned empty content")
	}

	upto := candidates[len(candidates)-1].Timestamp
	count := countMessages(candidates)
	if err := c.store.Append(sessionID, memory.CompactionMarker(summary, upto, count)); err != nil {
		return fmt.Errorf("append marker: %w", err)
	}

	c.logger.Info("compacted conversation",
		"session_id", sessionID, "messages", count, "upto", upto)
	c.bus.Publish(events.Event{
		Source:    events.SourceCompaction,
		Kind:      events.KindCompacted,
		SessionID: sessionID,
		Data:      map[string]any{"message_count": count, "upto_timestamp": upto},
	})
	return nil
}

// serialize renders candidate turns role-labeled, each capped at
// PerMessageMaxChars, the whole text capped at MaxChars.
func (c *Compactor) serialize(turns []memory.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		content := t.Content
		if len(content) > c.cfg.PerMessageMaxChars {
			content = content[:c.cfg.PerMessageMaxChars] + "…"
		}
		line := t.Role + ": " + content + "\n"
		if sb.Len()+len(line) > c.cfg.MaxChars {
			break
		}
		sb.WriteString(line)
	}
	return strings.TrimRight(sb.String(), "\n")
}
