package mcp

import (
	"context"
	"testing"
)

func newTestClient(t *testing.T, server string, tools []ToolDefinition) (*Client, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	ft.results["tools/list"] = toolsListResult{Tools: tools}
	ft.results["tools/call"] = callToolResult{Content: []ContentBlock{{Type: "text", Text: "ok"}}}
	return NewClient(server, ft, nil), ft
}

func TestToolName(t *testing.T) {
	cases := []struct{ server, tool, want string }{
		{"files", "read_file", "mcp_files_read_file"},
		{"My-Server", "Do Thing!", "mcp_my_server_do_thing"},
		{"a__b", "_x_", "mcp_a_b_x"},
	}
	for _, c := range cases {
		if got := ToolName(c.server, c.tool); got != c.want {
			t.Errorf("ToolName(%q, %q) = %q, want %q", c.server, c.tool, got, c.want)
		}
	}
}

func TestHostResolvesAndCalls(t *testing.T) {
	client, _ := newTestClient(t, "files", []ToolDefinition{
		{Name: "read_file", Description: "Read a file"},
	})

	h := NewHost(nil)
	h.AddServer(client, ServerFilter{})
	ctx := context.Background()

	if !h.Has(ctx, "mcp_files_read_file") {
		t.Fatal("Has returned false for bridged tool")
	}
	out, err := h.Call(ctx, "mcp_files_read_file", map[string]any{"path": "/tmp/x"})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if out != "ok" {
		t.Errorf("output = %q", out)
	}
}

func TestHostMissRefreshesCache(t *testing.T) {
	client, ft := newTestClient(t, "files", []ToolDefinition{
		{Name: "read_file"},
	})

	h := NewHost(nil)
	h.AddServer(client, ServerFilter{})
	ctx := context.Background()

	// Prime the cache with the initial tool set.
	if !h.Has(ctx, "mcp_files_read_file") {
		t.Fatal("initial tool not found")
	}

	// Server gains a tool; a miss must re-list and find it.
	ft.mu.Lock()
	ft.results["tools/list"] = toolsListResult{Tools: []ToolDefinition{
		{Name: "read_file"},
		{Name: "write_file"},
	}}
	ft.mu.Unlock()

	if !h.Has(ctx, "mcp_files_write_file") {
		t.Error("cache miss did not trigger refresh")
	}

	// Non-MCP names never trigger a refresh.
	before := ft.listCalls
	if h.Has(ctx, "shell_exec") {
		t.Error("host claimed a local tool")
	}
	if ft.listCalls != before {
		t.Error("non-mcp name triggered a refresh")
	}
}

func TestHostFilters(t *testing.T) {
	client, _ := newTestClient(t, "files", []ToolDefinition{
		{Name: "read_file"},
		{Name: "delete_file"},
	})

	h := NewHost(nil)
	h.AddServer(client, ServerFilter{Exclude: []string{"delete_file"}})
	ctx := context.Background()

	if !h.Has(ctx, "mcp_files_read_file") {
		t.Error("included tool missing")
	}
	// The excluded name stays excluded even though misses refresh.
	if h.Has(ctx, "mcp_files_delete_file") {
		t.Error("excluded tool exposed")
	}
}

func TestHostDeclarations(t *testing.T) {
	client, _ := newTestClient(t, "files", []ToolDefinition{
		{Name: "read_file", Description: "Read a file", InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
		}},
	})

	h := NewHost(nil)
	h.AddServer(client, ServerFilter{})

	decls := h.Declarations(context.Background())
	if len(decls) != 1 {
		t.Fatalf("got %d declarations", len(decls))
	}
	fn := decls[0]["function"].(map[string]any)
	if fn["name"] != "mcp_files_read_file" {
		t.Errorf("declaration name = %v", fn["name"])
	}
}
