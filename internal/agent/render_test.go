package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/tindale/reeve/internal/llm"
	"github.com/tindale/reeve/internal/tools"
)

func TestRenderSuccessAndFailure(t *testing.T) {
	out := RenderResults([]tools.Result{
		{
			Call:    llm.ToolCall{Name: "web_fetch"},
			Success: true,
			Output:  "page title",
			Elapsed: 120 * time.Millisecond,
		},
		{
			Call:    llm.ToolCall{Name: "save_note"},
			Success: false,
			Error:   "disk full",
			Elapsed: 3 * time.Millisecond,
		},
	})

	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[0], "✓ web_fetch") {
		t.Errorf("success line = %q", lines[0])
	}
	if !strings.Contains(out, "✗ save_note") {
		t.Errorf("failure icon missing: %q", out)
	}
	if !strings.Contains(out, "disk full") {
		t.Errorf("error body missing: %q", out)
	}
	if !strings.Contains(out, "page title") {
		t.Errorf("output body missing: %q", out)
	}
}

func TestRenderShellResult(t *testing.T) {
	out := RenderResults([]tools.Result{{
		Call:    llm.ToolCall{Name: "shell_exec"},
		Success: true,
		Output:  `{"stdout":"hello\n","stderr":"warning: old","exit_code":2,"timed_out":false}`,
	}})

	for _, want := range []string{"hello", "stderr: warning: old", "exit code 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("shell rendering missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, `"stdout"`) {
		t.Errorf("raw JSON leaked into rendering: %q", out)
	}
}

func TestRenderShellNoOutput(t *testing.T) {
	out := RenderResults([]tools.Result{{
		Call:    llm.ToolCall{Name: "shell_exec"},
		Success: true,
		Output:  `{"stdout":"","stderr":"","exit_code":0,"timed_out":false}`,
	}})
	if !strings.Contains(out, "(no output)") {
		t.Errorf("expected placeholder for silent command, got %q", out)
	}
}

func TestRenderClipsLongBodies(t *testing.T) {
	out := RenderResults([]tools.Result{{
		Call:    llm.ToolCall{Name: "web_fetch"},
		Success: true,
		Output:  strings.Repeat("z", 5000),
	}})
	if len(out) > 1000 {
		t.Fatalf("rendered body not clipped: %d chars", len(out))
	}
	if !strings.Contains(out, "…") {
		t.Error("missing ellipsis on clipped body")
	}
}
