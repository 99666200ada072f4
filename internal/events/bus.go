// Package events provides a publish/subscribe bus for operational
// observability. Events flow from components (orchestration loop,
// dispatcher, scheduler, channels) to subscribers (the web debug
// socket). The bus is nil-safe: Publish on a nil *Bus is a no-op, so
// components need no guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceLoop identifies events from the orchestration loop.
	SourceLoop = "loop"
	// SourceDispatcher identifies events from tool dispatch.
	SourceDispatcher = "dispatcher"
	// SourceScheduler identifies events from the task scheduler.
	SourceScheduler = "scheduler"
	// SourceChannel identifies events from channel adapters.
	SourceChannel = "channel"
	// SourceCompaction identifies events from memory compaction.
	SourceCompaction = "compaction"
)

// Kind constants describe the type of event within a source.
const (
	// KindMessageStart signals the start of message processing.
	// Data: channel, message_len.
	KindMessageStart = "message_start"
	// KindModelCall signals the start of a model invocation.
	// Data: turn, batch, model.
	KindModelCall = "model_call"
	// KindModelResponse signals completion of a model invocation.
	// Data: turn, model, tokens_in, tokens_out, tool_calls.
	KindModelResponse = "model_response"
	// KindToolCall signals the start of a tool execution.
	// Data: tool.
	KindToolCall = "tool_call"
	// KindToolDone signals completion of a tool execution.
	// Data: tool, ok, duration_ms.
	KindToolDone = "tool_done"
	// KindMessageComplete signals the end of message processing.
	// Data: turns, batches, step_limited, elapsed_ms.
	KindMessageComplete = "message_complete"

	// KindCompacted signals a compaction marker was written.
	// Data: summarized, upto.
	KindCompacted = "compacted"

	// KindTaskFired signals a scheduled task woke the agent.
	// Data: task_id, task_name.
	KindTaskFired = "task_fired"

	// KindDelivery signals an outbound message left a channel.
	// Data: channel, chars, streamed.
	KindDelivery = "delivery"
)

// Event is a single operational event. SessionID is empty for events
// not tied to a conversation.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Source    string         `json:"source"`
	Kind      string         `json:"kind"`
	SessionID string         `json:"session_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast bus. Subscribers receive events on
// buffered channels; slow subscribers miss events rather than blocking
// publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel handed to subscribers
	// back to the bidirectional channel in subs, so Unsubscribe can
	// accept the caller's view of the channel.
	recvToSend map[<-chan Event]chan Event
}

// New creates an event bus.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers without blocking: a full
// subscriber channel drops the event for that subscriber. Safe on a
// nil receiver.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel receiving published events. Callers must
// Unsubscribe when done.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. No-op for
// channels already unsubscribed.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
