package llm

import "context"

// StreamEventKind identifies the type of stream event.
type StreamEventKind int

const (
	// KindToken is an incremental text fragment from the model.
	KindToken StreamEventKind = iota

	// KindToolCall fires when the model produces a complete tool invocation.
	KindToolCall
)

// StreamEvent is a single event in a streaming response.
type StreamEvent struct {
	Kind StreamEventKind

	// Token is set for KindToken events.
	Token string

	// ToolCall is set for KindToolCall events.
	ToolCall *ToolCall
}

// streamBuffer bounds the event channel. Producers block when the
// consumer falls this far behind, which is the backpressure mechanism.
const streamBuffer = 64

// Stream is a finite, non-restartable sequence of events produced by
// one streaming model call. Consumers range over Events until it
// closes, then call Wait for the final response:
//
//	for ev := range stream.Events() { ... }
//	resp, err := stream.Wait()
//
// Wait may also be called without draining; the producer will finish
// regardless because the channel is abandoned only after close.
type Stream struct {
	events chan StreamEvent
	done   chan struct{}

	resp *ChatResponse
	err  error
}

// NewStream creates an empty stream. The producer feeds it with Emit
// and seals it with Finish; Client implementations outside this package
// use the same API.
func NewStream() *Stream {
	return &Stream{
		events: make(chan StreamEvent, streamBuffer),
		done:   make(chan struct{}),
	}
}

// Events returns the event channel. It is closed when the call
// completes (successfully or not).
func (s *Stream) Events() <-chan StreamEvent {
	return s.events
}

// Wait blocks until the call completes and returns the final response.
// The consumer should drain Events first; Wait never returns before the
// event channel is closed.
func (s *Stream) Wait() (*ChatResponse, error) {
	<-s.done
	return s.resp, s.err
}

// Emit sends an event from the producer side. Returns false when ctx is
// cancelled, signalling the producer to abandon the call.
func (s *Stream) Emit(ctx context.Context, ev StreamEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Finish records the final result and closes the stream. Called exactly
// once by the producer.
func (s *Stream) Finish(resp *ChatResponse, err error) {
	s.resp = resp
	s.err = err
	close(s.events)
	close(s.done)
}
