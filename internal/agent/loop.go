// Package agent implements the conversation orchestrator: the
// per-session control loop that drives model calls and tool executions
// until the model produces a final answer or a step limit is reached.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tindale/reeve/internal/config"
	"github.com/tindale/reeve/internal/events"
	"github.com/tindale/reeve/internal/llm"
	"github.com/tindale/reeve/internal/memory"
	"github.com/tindale/reeve/internal/prompts"
	"github.com/tindale/reeve/internal/tools"
	"github.com/tindale/reeve/internal/usage"
)

const maxTurnsCeiling = 50

// RemoteTools advertises remote tool declarations alongside the local
// registry. Satisfied by mcp.Host.
type RemoteTools interface {
	Declarations(ctx context.Context) []map[string]any
}

// Options wires a Loop together. Everything is injected; the loop owns
// no global state.
type Options struct {
	Logger     *slog.Logger
	Store      memory.Store
	Models     *llm.Registry
	Model      string // "provider/model" reference for conversation turns
	Registry   *tools.Registry
	Dispatcher *tools.Dispatcher
	Remote     RemoteTools // may be nil
	Builder    *ContextBuilder
	Sink       *Sink
	Compactor  *Compactor // may be nil
	Bus        *events.Bus
	Usage      *usage.Store // may be nil
	Config     config.LoopConfig
}

// Loop is the conversation orchestrator. One Loop serves all sessions;
// a per-session mutex guarantees at most one active turn per session.
type Loop struct {
	logger     *slog.Logger
	store      memory.Store
	models     *llm.Registry
	model      string
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	remote     RemoteTools
	builder    *ContextBuilder
	sink       *Sink
	compactor  *Compactor
	bus        *events.Bus
	usage      *usage.Store
	cfg        config.LoopConfig

	mu       sync.Mutex
	sessions map[string]*session
}

// session holds per-session loop state: the serialization lock and the
// prompt mode toggles.
type session struct {
	mu       sync.Mutex
	thinking bool
	plan     bool
}

// New creates a Loop from injected collaborators.
func New(opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loop{
		logger:     opts.Logger.With("component", "loop"),
		store:      opts.Store,
		models:     opts.Models,
		model:      opts.Model,
		registry:   opts.Registry,
		dispatcher: opts.Dispatcher,
		remote:     opts.Remote,
		builder:    opts.Builder,
		sink:       opts.Sink,
		compactor:  opts.Compactor,
		bus:        opts.Bus,
		usage:      opts.Usage,
		cfg:        opts.Config,
	}
}

func (l *Loop) session(id string) *session {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sessions == nil {
		l.sessions = make(map[string]*session)
	}
	s := l.sessions[id]
	if s == nil {
		s = &session{}
		l.sessions[id] = s
	}
	return s
}

// SetThinking toggles the thinking-mode directive for a session.
func (l *Loop) SetThinking(sessionID string, on bool) {
	s := l.session(sessionID)
	s.mu.Lock()
	s.thinking = on
	s.mu.Unlock()
}

// SetPlan toggles the plan-mode directive for a session.
func (l *Loop) SetPlan(sessionID string, on bool) {
	s := l.session(sessionID)
	s.mu.Lock()
	s.plan = on
	s.mu.Unlock()
}

// Modes reports the session's current mode toggles.
func (l *Loop) Modes(sessionID string) (thinking, plan bool) {
	s := l.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thinking, s.plan
}

// ProcessMessage runs the full orchestration cycle for one inbound
// message: append it, then alternate model calls and tool dispatches
// until the model stops calling tools or the step limit is hit, with
// bounded auto-continue batches after a step-limit exhaustion.
//
// Calls for the same session are serialized; a second message arriving
// mid-turn blocks until the first completes.
func (l *Loop) ProcessMessage(ctx context.Context, ch Channel, sessionID, text string) error {
	sess := l.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	thinking, plan := sess.thinking, sess.plan

	log := l.logger.With("session_id", sessionID, "channel", ch.Name())
	log.Info("processing message", "chars", len(text))
	l.bus.Publish(events.Event{
		Source:    events.SourceLoop,
		Kind:      events.KindMessageStart,
		SessionID: sessionID,
		Data:      map[string]any{"channel": ch.Name(), "chars": len(text)},
	})

	ctx = tools.WithSessionID(ctx, sessionID)
	ctx = tools.WithChannel(ctx, ch.Name())

	l.append(sessionID, memory.Turn{Role: memory.RoleUser, Content: text})

	client, model, err := l.models.Resolve(l.model)
	if err != nil {
		return fmt.Errorf("resolve model: %w", err)
	}

	// Resolved once per message; tools registered or discovered mid-turn
	// become visible on the next message.
	decls := l.registry.List()
	if l.remote != nil {
		decls = append(decls, l.remote.Declarations(ctx)...)
	}

	maxTurns := l.cfg.MaxTurns
	if maxTurns > maxTurnsCeiling {
		maxTurns = maxTurnsCeiling
	}
	unlimited := maxTurns <= 0

	autoMax := l.cfg.AutoContinueMax
	if unlimited {
		autoMax = 0
	}

	executedAnyTools := false
	finished := false

	for batch := 0; ; batch++ {
		if l.compactor != nil {
			l.compactor.Maybe(ctx, sessionID)
		}
		if batch > 0 {
			if l.cfg.AutoContinueNotices {
				l.sink.Response(ch, sessionID, prompts.AutoContinueNotice(batch, autoMax))
			}
			l.append(sessionID, memory.Turn{Role: memory.RoleUser, Content: prompts.ContinuePrompt})
		}

		stoppedByStepLimit := true
		for i := 0; unlimited || i < maxTurns; i++ {
			resp := l.callModel(ctx, ch, sessionID, client, model, decls, BuildOptions{Thinking: thinking, Plan: plan})
			if resp == nil {
				// Provider failure already surfaced to the user; the
				// batch ends as if the model had answered.
				stoppedByStepLimit = false
				finished = true
				break
			}

			content := resp.Message.Content
			if content != "" {
				l.append(sessionID, memory.Turn{Role: memory.RoleAssistant, Content: content})
			}

			if len(resp.Message.ToolCalls) > 0 {
				l.runTools(ctx, ch, sessionID, resp.Message.ToolCalls)
				executedAnyTools = true
				continue
			}

			if content == "" {
				if executedAnyTools {
					l.sink.Response(ch, sessionID, prompts.PauseNotice)
				} else {
					l.sink.Response(ch, sessionID, prompts.EmptyResponseFallback)
				}
			}
			stoppedByStepLimit = false
			finished = true
			break
		}

		if finished {
			break
		}
		if stoppedByStepLimit && batch >= autoMax {
			log.Info("step limit reached", "max_turns", maxTurns, "batches", batch+1)
			l.sink.Response(ch, sessionID, prompts.StepLimitNotice(maxTurns))
			break
		}
		log.Debug("auto-continuing", "batch", batch+1, "max", autoMax)
	}

	l.sink.Flush(sessionID)
	l.bus.Publish(events.Event{
		Source:    events.SourceLoop,
		Kind:      events.KindMessageComplete,
		SessionID: sessionID,
	})
	return nil
}

// callModel performs one model round-trip, streaming fragments to the
// sink as they arrive. If the stream produced no fragments but a final
// content string exists (a provider that buffers before flushing, or a
// blocking fallback), the whole content is delivered as one message.
// Provider errors become a visible warning and a nil return.
func (l *Loop) callModel(ctx context.Context, ch Channel, sessionID string, client llm.Client, model string, decls []map[string]any, opts BuildOptions) *llm.ChatResponse {
	messages := l.builder.Build(sessionID, opts)
	l.bus.Publish(events.Event{
		Source:    events.SourceLoop,
		Kind:      events.KindModelCall,
		SessionID: sessionID,
		Data:      map[string]any{"model": model, "messages": len(messages)},
	})

	var (
		resp     *llm.ChatResponse
		err      error
		streamed int
	)

	stream, serr := client.ChatStream(ctx, model, messages, decls)
	if serr == nil {
		for ev := range stream.Events() {
			if ev.Kind == llm.KindToken {
				streamed += len(ev.Token)
				l.sink.Chunk(ch, sessionID, ev.Token)
			}
		}
		resp, err = stream.Wait()
	} else {
		l.logger.Debug("streaming unavailable, falling back to blocking call",
			"session_id", sessionID, "error", serr)
		resp, err = client.Chat(ctx, model, messages, decls)
	}

	if err != nil {
		l.logger.Error("model call failed", "session_id", sessionID, "model", model, "error", err)
		l.sink.Response(ch, sessionID, "⚠️ Model error: "+err.Error())
		return nil
	}

	l.bus.Publish(events.Event{
		Source:    events.SourceLoop,
		Kind:      events.KindModelResponse,
		SessionID: sessionID,
		Data: map[string]any{
			"chars":         len(resp.Message.Content),
			"tool_calls":    len(resp.Message.ToolCalls),
			"input_tokens":  resp.InputTokens,
			"output_tokens": resp.OutputTokens,
		},
	})

	if l.usage != nil {
		if uerr := l.usage.Append(ctx, usage.Record{
			SessionID:    sessionID,
			Model:        model,
			Kind:         "chat",
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
		}); uerr != nil {
			l.logger.Warn("usage record not persisted", "session_id", sessionID, "error", uerr)
		}
	}

	if streamed == 0 && resp.Message.Content != "" {
		l.sink.Response(ch, sessionID, resp.Message.Content)
	}
	return resp
}

// runTools dispatches every tool call from one model response, records
// each result as a system turn, and sends one rendered summary to the
// user. Tool failures never abort the batch.
func (l *Loop) runTools(ctx context.Context, ch Channel, sessionID string, calls []llm.ToolCall) {
	for _, call := range calls {
		l.bus.Publish(events.Event{
			Source:    events.SourceDispatcher,
			Kind:      events.KindToolCall,
			SessionID: sessionID,
			Data:      map[string]any{"tool": call.Name, "id": call.ID},
		})
	}

	results := l.dispatcher.Dispatch(ctx, calls)

	for _, r := range results {
		var turn string
		if r.Success {
			turn = fmt.Sprintf("Tool '%s' Output: %s", r.Call.Name, r.Output)
		} else {
			turn = fmt.Sprintf("Tool '%s' Error: %s", r.Call.Name, r.Error)
		}
		l.append(sessionID, memory.Turn{Role: memory.RoleSystem, Content: turn})

		l.bus.Publish(events.Event{
			Source:    events.SourceDispatcher,
			Kind:      events.KindToolDone,
			SessionID: sessionID,
			Data: map[string]any{
				"tool":       r.Call.Name,
				"success":    r.Success,
				"elapsed_ms": r.Elapsed.Milliseconds(),
			},
		})
	}

	l.sink.Response(ch, sessionID, RenderResults(results))
}

// append stores a turn. Persistence failures are logged and swallowed;
// losing durability must not abort an in-flight conversation.
func (l *Loop) append(sessionID string, t memory.Turn) {
	if err := l.store.Append(sessionID, t); err != nil {
		l.logger.Warn("turn not persisted", "session_id", sessionID, "role", t.Role, "error", err)
	}
}

// Stats summarizes loop and store state for the /status command.
func (l *Loop) Stats() map[string]any {
	l.mu.Lock()
	active := len(l.sessions)
	l.mu.Unlock()

	stats := map[string]any{
		"active_sessions": active,
		"model":           l.model,
		"max_turns":       l.cfg.MaxTurns,
		"local_tools":     l.registry.Names(),
	}
	for k, v := range l.store.Stats() {
		stats[k] = v
	}
	if l.usage != nil {
		if sum, err := l.usage.Total(context.Background()); err == nil {
			stats["model_calls"] = sum.Calls
			stats["input_tokens"] = sum.InputTokens
			stats["output_tokens"] = sum.OutputTokens
		}
	}
	return stats
}
