package agent

// Channel delivers assistant output back to wherever the message came
// from. Implementations live in internal/channels; the loop only ever
// sees this interface.
type Channel interface {
	// Name identifies the channel ("console", "web", "mqtt", "email").
	Name() string

	// SendResponse delivers one complete message atomically.
	SendResponse(sessionID, text string) error
}

// StreamSender is implemented by channels that can deliver incremental
// fragments. Channels without it receive coalesced output from the
// sink's debounce buffer instead.
type StreamSender interface {
	SendStreamChunk(sessionID, chunk string) error
}
