package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tindale/reeve/internal/llm"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its input",
		Parameters:  map[string]any{"type": "object"},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			text, _ := args["text"].(string)
			return name + ": " + text, nil
		},
	}
}

func TestDispatchOneResultPerCall(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("alpha"))
	r.Register(echoTool("beta"))
	d := NewDispatcher(r, nil, slog.Default())

	calls := []llm.ToolCall{
		{ID: "c1", Name: "alpha", Arguments: map[string]any{"text": "one"}},
		{ID: "c2", Name: "beta", Arguments: map[string]any{"text": "two"}},
		{ID: "c3", Name: "alpha", Arguments: map[string]any{"text": "three"}},
	}

	results := d.Dispatch(context.Background(), calls)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, res := range results {
		if res.Call.ID != calls[i].ID {
			t.Errorf("result[%d] correlates to %q, want %q", i, res.Call.ID, calls[i].ID)
		}
		if !res.Success {
			t.Errorf("result[%d] failed: %s", i, res.Error)
		}
	}
	if results[2].Output != "alpha: three" {
		t.Fatalf("output = %q", results[2].Output)
	}
}

func TestDispatchFailureDoesNotAffectSiblings(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("ok"))
	r.Register(&Tool{
		Name: "broken",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("kaboom")
		},
	})
	d := NewDispatcher(r, nil, slog.Default())

	results := d.Dispatch(context.Background(), []llm.ToolCall{
		{ID: "1", Name: "ok", Arguments: map[string]any{"text": "x"}},
		{ID: "2", Name: "broken"},
		{ID: "3", Name: "ok", Arguments: map[string]any{"text": "y"}},
	})

	if !results[0].Success || !results[2].Success {
		t.Fatal("sibling calls affected by failure")
	}
	if results[1].Success {
		t.Fatal("broken tool reported success")
	}
	if !strings.Contains(results[1].Error, "kaboom") {
		t.Fatalf("error = %q, want cause preserved", results[1].Error)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "panicky",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			panic("lost my head")
		},
	})
	d := NewDispatcher(r, nil, slog.Default())

	results := d.Dispatch(context.Background(), []llm.ToolCall{{ID: "1", Name: "panicky"}})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Success {
		t.Fatal("panicking tool reported success")
	}
	if !strings.Contains(results[0].Error, "lost my head") {
		t.Fatalf("error = %q", results[0].Error)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil, slog.Default())

	results := d.Dispatch(context.Background(), []llm.ToolCall{{ID: "1", Name: "nonexistent"}})
	if results[0].Success {
		t.Fatal("unknown tool reported success")
	}
	if !strings.Contains(results[0].Error, "not available") {
		t.Fatalf("error = %q", results[0].Error)
	}

	var unavailable *ErrToolUnavailable
	derr := &DispatchError{ToolName: "nonexistent", Err: &ErrToolUnavailable{ToolName: "nonexistent"}}
	if !errors.As(derr, &unavailable) {
		t.Fatal("DispatchError does not unwrap to ErrToolUnavailable")
	}
}

type scriptedRemote struct {
	tools map[string]string
	err   error
}

func (s *scriptedRemote) Has(ctx context.Context, name string) bool {
	_, ok := s.tools[name]
	return ok
}

func (s *scriptedRemote) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.tools[name], nil
}

func TestDispatchLocalShadowsRemote(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("shared"))
	remote := &scriptedRemote{tools: map[string]string{"shared": "remote answer", "far": "far answer"}}
	d := NewDispatcher(r, remote, slog.Default())

	results := d.Dispatch(context.Background(), []llm.ToolCall{
		{ID: "1", Name: "shared", Arguments: map[string]any{"text": "hi"}},
		{ID: "2", Name: "far"},
	})

	if results[0].Output != "shared: hi" {
		t.Fatalf("local tool shadowed by remote: %q", results[0].Output)
	}
	if results[1].Output != "far answer" {
		t.Fatalf("remote tool output = %q", results[1].Output)
	}
}

func TestDispatchRemoteFailure(t *testing.T) {
	remote := &scriptedRemote{tools: map[string]string{"far": ""}, err: errors.New("connection reset")}
	d := NewDispatcher(NewRegistry(), remote, slog.Default())

	results := d.Dispatch(context.Background(), []llm.ToolCall{{ID: "1", Name: "far"}})
	if results[0].Success {
		t.Fatal("remote failure reported success")
	}
	if !strings.Contains(results[0].Error, "remote") || !strings.Contains(results[0].Error, "connection reset") {
		t.Fatalf("error = %q", results[0].Error)
	}
}

func TestDispatchConcurrent(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "slow",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return "done", nil
		},
	})
	d := NewDispatcher(r, nil, slog.Default())

	calls := make([]llm.ToolCall, 4)
	for i := range calls {
		calls[i] = llm.ToolCall{ID: fmt.Sprintf("c%d", i), Name: "slow"}
	}

	start := time.Now()
	results := d.Dispatch(context.Background(), calls)
	elapsed := time.Since(start)

	if len(results) != 4 {
		t.Fatalf("got %d results", len(results))
	}
	// Sequential execution would take 200ms+.
	if elapsed > 150*time.Millisecond {
		t.Fatalf("dispatch took %s, calls did not run concurrently", elapsed)
	}
}

func TestRegistryListStableOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("zulu"))
	r.Register(echoTool("alpha"))
	r.Register(echoTool("mike"))

	decls := r.List()
	var names []string
	for _, d := range decls {
		fn := d["function"].(map[string]any)
		names = append(names, fn["name"].(string))
	}
	if fmt.Sprint(names) != "[alpha mike zulu]" {
		t.Fatalf("declaration order = %v", names)
	}
}

func TestSessionContextRoundTrip(t *testing.T) {
	ctx := WithSessionID(context.Background(), "s-42")
	ctx = WithChannel(ctx, "console")

	if got := SessionIDFromContext(ctx); got != "s-42" {
		t.Fatalf("session id = %q", got)
	}
	if got := ChannelFromContext(ctx); got != "console" {
		t.Fatalf("channel = %q", got)
	}
	if got := SessionIDFromContext(context.Background()); got != "default" {
		t.Fatalf("missing session id = %q, want default", got)
	}
}
