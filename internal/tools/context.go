package tools

import "context"

type contextKey string

const sessionIDKey contextKey = "session_id"
const channelKey contextKey = "channel"

// WithSessionID adds the session ID to the context so tool handlers
// can scope their effects to the conversation that invoked them.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the session ID from the context.
// Returns "default" if not set.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		return id
	}
	return "default"
}

// WithChannel records which channel the triggering message arrived on.
func WithChannel(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, channelKey, name)
}

// ChannelFromContext extracts the originating channel name, or "".
func ChannelFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(channelKey).(string); ok {
		return name
	}
	return ""
}
