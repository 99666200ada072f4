package mcp

import "context"

// Transport delivers JSON-RPC messages to an MCP server over a
// specific mechanism (stdio subprocess or HTTP).
type Transport interface {
	// Send issues a request and returns the correlated response.
	Send(ctx context.Context, req *Request) (*Response, error)

	// Notify sends a notification; no response is expected.
	Notify(ctx context.Context, notif *Notification) error

	// Close releases resources. For stdio transports this
	// terminates the subprocess.
	Close() error
}
