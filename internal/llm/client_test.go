package llm

import (
	"context"
	"testing"
)

type fakeClient struct{ name string }

func (f *fakeClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	return &ChatResponse{Model: model, Done: true}, nil
}

func (f *fakeClient) ChatStream(ctx context.Context, model string, messages []Message, tools []map[string]any) (*Stream, error) {
	s := NewStream()
	s.Finish(&ChatResponse{Model: model, Done: true}, nil)
	return s, nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register("openai", &fakeClient{name: "openai"})
	reg.Register("anthropic", &fakeClient{name: "anthropic"})

	client, model, err := reg.Resolve("openai/gpt-4o")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", model)
	}
	if client.(*fakeClient).name != "openai" {
		t.Errorf("resolved wrong provider")
	}

	// Model names can themselves contain slashes.
	_, model, err = reg.Resolve("openai/org/custom-model")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if model != "org/custom-model" {
		t.Errorf("model = %q, want org/custom-model", model)
	}

	if _, _, err := reg.Resolve("nonexistent/model"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestRegistryResolveBareModel(t *testing.T) {
	reg := NewRegistry()
	reg.Register("openai", &fakeClient{name: "openai"})

	// Single provider: unprefixed names route to it.
	client, model, err := reg.Resolve("gpt-4o-mini")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if model != "gpt-4o-mini" || client == nil {
		t.Errorf("got model %q", model)
	}

	reg.Register("anthropic", &fakeClient{name: "anthropic"})
	if _, _, err := reg.Resolve("gpt-4o-mini"); err == nil {
		t.Error("expected error for bare model with multiple providers")
	}
}

func TestStreamDelivery(t *testing.T) {
	s := NewStream()
	ctx := context.Background()

	go func() {
		s.Emit(ctx, StreamEvent{Kind: KindToken, Token: "hello "})
		s.Emit(ctx, StreamEvent{Kind: KindToken, Token: "world"})
		call := ToolCall{ID: "call_1", Name: "get_time", Arguments: map[string]any{}}
		s.Emit(ctx, StreamEvent{Kind: KindToolCall, ToolCall: &call})
		s.Finish(&ChatResponse{
			Message: Message{Role: "assistant", Content: "hello world", ToolCalls: []ToolCall{call}},
			Done:    true,
		}, nil)
	}()

	var tokens, calls int
	for ev := range s.Events() {
		switch ev.Kind {
		case KindToken:
			tokens++
		case KindToolCall:
			calls++
			if ev.ToolCall.Name != "get_time" {
				t.Errorf("tool call name = %q", ev.ToolCall.Name)
			}
		}
	}
	if tokens != 2 || calls != 1 {
		t.Errorf("got %d tokens, %d calls; want 2, 1", tokens, calls)
	}

	resp, err := s.Wait()
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if resp.Message.Content != "hello world" {
		t.Errorf("content = %q", resp.Message.Content)
	}
}

func TestStreamEmitCancelled(t *testing.T) {
	s := NewStream()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fill the buffer so the next emit must block, then observe cancel.
	for i := 0; i < streamBuffer; i++ {
		if !s.Emit(context.Background(), StreamEvent{Kind: KindToken, Token: "x"}) {
			t.Fatal("buffered emit rejected")
		}
	}
	if s.Emit(ctx, StreamEvent{Kind: KindToken, Token: "y"}) {
		t.Error("emit succeeded on cancelled context with full buffer")
	}
}

func TestParseArguments(t *testing.T) {
	args := parseArguments(`{"city":"Oslo","days":3}`)
	if args["city"] != "Oslo" {
		t.Errorf("city = %v", args["city"])
	}

	if got := parseArguments(""); len(got) != 0 {
		t.Errorf("empty input produced %v", got)
	}

	broken := parseArguments(`{"city":`)
	if broken["_raw"] != `{"city":` {
		t.Errorf("malformed input not preserved: %v", broken)
	}
}
