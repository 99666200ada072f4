// Package mcp implements MCP (Model Context Protocol) client support,
// letting Reeve connect to external MCP servers and route tool calls
// to them.
//
// MCP uses JSON-RPC 2.0 over two transports: stdio (subprocess) and
// streamable HTTP. The Host aggregates one Client per configured
// server and resolves namespaced tool names to the serving client
// through a lazily-built cache, refreshed when a name misses.
//
// This implementation covers the client/host side only; Reeve does
// not act as an MCP server.
package mcp
