package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// sanitizeRe matches characters that are not lowercase alphanumeric or
// underscore.
var sanitizeRe = regexp.MustCompile(`[^a-z0-9_]`)

// ServerFilter limits which of a server's tools are exposed. If
// Include is non-empty only those MCP names are exposed; otherwise
// names in Exclude are skipped.
type ServerFilter struct {
	Include []string
	Exclude []string
}

// Host aggregates MCP clients and resolves namespaced tool names to
// the serving client. The name→client cache is built lazily from
// tools/list and refreshed when a lookup misses, so servers that gain
// tools at runtime are picked up without restarting.
type Host struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client      // server name → client
	filters map[string]ServerFilter // server name → filter
	cache   map[string]*Client      // namespaced tool name → client
	mcpName map[string]string       // namespaced tool name → original MCP name
	defs    map[string]ToolDefinition
}

// NewHost creates an empty host.
func NewHost(logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		logger:  logger.With("component", "mcp_host"),
		clients: make(map[string]*Client),
		filters: make(map[string]ServerFilter),
		cache:   make(map[string]*Client),
		mcpName: make(map[string]string),
		defs:    make(map[string]ToolDefinition),
	}
}

// AddServer registers an initialized client under its server name.
func (h *Host) AddServer(client *Client, filter ServerFilter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.Name()] = client
	h.filters[client.Name()] = filter
}

// Servers returns the configured server names.
func (h *Host) Servers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.clients))
	for name := range h.clients {
		names = append(names, name)
	}
	return names
}

// Has reports whether the namespaced tool name resolves to a server.
// A miss triggers one cache refresh before giving up.
func (h *Host) Has(ctx context.Context, name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.cache[name]; ok {
		return true
	}
	if !strings.HasPrefix(name, "mcp_") {
		return false
	}

	h.refreshLocked(ctx, true)
	_, ok := h.cache[name]
	return ok
}

// Call executes the namespaced tool on its serving client.
func (h *Host) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	h.mu.Lock()
	client, ok := h.cache[name]
	mcpName := h.mcpName[name]
	h.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("MCP tool not resolved: %s", name)
	}
	return client.CallTool(ctx, mcpName, args)
}

// Declarations returns every exposed remote tool in the provider tool
// format, discovering on first use.
func (h *Host) Declarations(ctx context.Context) []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.refreshLocked(ctx, false)

	var out []map[string]any
	for name, def := range h.defs {
		schema := def.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        name,
				"description": def.Description,
				"parameters":  schema,
			},
		})
	}
	return out
}

// Close shuts down every client.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, client := range h.clients {
		if err := client.Close(); err != nil {
			h.logger.Warn("close MCP client", "server", name, "error", err)
		}
	}
}

// refreshLocked rebuilds the name cache from every client's tool list.
// force discards each client's cached tools/list first. Caller holds
// h.mu.
func (h *Host) refreshLocked(ctx context.Context, force bool) {
	if !force && len(h.cache) > 0 {
		return
	}

	cache := make(map[string]*Client)
	mcpNames := make(map[string]string)
	defs := make(map[string]ToolDefinition)

	for serverName, client := range h.clients {
		if force {
			client.Refresh()
		}
		tools, err := client.ListTools(ctx)
		if err != nil {
			h.logger.Warn("list MCP tools", "server", serverName, "error", err)
			continue
		}

		filter := h.filters[serverName]
		includeSet := toSet(filter.Include)
		excludeSet := toSet(filter.Exclude)

		for _, td := range tools {
			if len(includeSet) > 0 {
				if !includeSet[td.Name] {
					continue
				}
			} else if excludeSet[td.Name] {
				continue
			}

			name := ToolName(serverName, td.Name)
			cache[name] = client
			mcpNames[name] = td.Name
			defs[name] = td
		}
	}

	h.cache = cache
	h.mcpName = mcpNames
	h.defs = defs
	h.logger.Debug("MCP tool cache rebuilt", "tools", len(cache), "servers", len(h.clients))
}

// ToolName builds the namespaced tool name "mcp_{server}_{tool}",
// sanitized to lowercase alphanumerics and underscores.
func ToolName(serverName, mcpToolName string) string {
	return fmt.Sprintf("mcp_%s_%s", sanitize(serverName), sanitize(mcpToolName))
}

func sanitize(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "-", "_")
	s = sanitizeRe.ReplaceAllString(s, "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	m := make(map[string]bool, len(items))
	for _, item := range items {
		m[item] = true
	}
	return m
}
