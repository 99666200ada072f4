package agent

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tindale/reeve/internal/events"
)

const (
	// DefaultDebounce is how long the sink waits after the last chunk
	// before flushing a non-streaming channel's buffer.
	DefaultDebounce = 1000 * time.Millisecond

	// DefaultMaxBuffer caps the per-session chunk buffer. When exceeded,
	// the oldest data is dropped.
	DefaultMaxBuffer = 12000
)

// Sink delivers model output to channels. Streaming channels get every
// chunk immediately; non-streaming channels get chunks coalesced in a
// per-session buffer and flushed as one message after a quiet period,
// so a polling destination is not flooded with partial fragments.
type Sink struct {
	logger   *slog.Logger
	bus      *events.Bus
	debounce time.Duration
	maxBuf   int

	mu      sync.Mutex
	pending map[string]*pendingBuffer
}

type pendingBuffer struct {
	ch    Channel
	buf   strings.Builder
	timer *time.Timer
}

// NewSink creates a sink with the default debounce and buffer cap.
// bus may be nil.
func NewSink(logger *slog.Logger, bus *events.Bus) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		logger:   logger.With("component", "sink"),
		bus:      bus,
		debounce: DefaultDebounce,
		maxBuf:   DefaultMaxBuffer,
		pending:  make(map[string]*pendingBuffer),
	}
}

// Response delivers one complete message. Any buffered chunks for the
// session are flushed first so ordering is preserved.
func (s *Sink) Response(ch Channel, sessionID, text string) {
	s.Flush(sessionID)

	if err := ch.SendResponse(sessionID, text); err != nil {
		s.logger.Warn("response delivery failed",
			"channel", ch.Name(), "session_id", sessionID, "error", err)
		return
	}
	s.bus.Publish(events.Event{
		Source:    events.SourceLoop,
		Kind:      events.KindDelivery,
		SessionID: sessionID,
		Data:      map[string]any{"channel": ch.Name(), "chars": len(text)},
	})
}

// Chunk delivers one incremental fragment. Streaming channels receive
// it immediately; for others it is buffered and flushed later as a
// single Response.
func (s *Sink) Chunk(ch Channel, sessionID, chunk string) {
	if chunk == "" {
		return
	}

	if sc, ok := ch.(StreamSender); ok {
		if err := sc.SendStreamChunk(sessionID, chunk); err != nil {
			s.logger.Warn("stream chunk delivery failed",
				"channel", ch.Name(), "session_id", sessionID, "error", err)
		}
		return
	}

	s.mu.Lock()
	p := s.pending[sessionID]
	if p == nil {
		p = &pendingBuffer{ch: ch}
		s.pending[sessionID] = p
	}
	p.ch = ch
	p.buf.WriteString(chunk)
	if p.buf.Len() > s.maxBuf {
		// Keep the tail; the head has already scrolled out of relevance.
		tail := p.buf.String()
		tail = tail[len(tail)-s.maxBuf:]
		p.buf.Reset()
		p.buf.WriteString(tail)
	}
	if p.timer == nil {
		sid := sessionID
		p.timer = time.AfterFunc(s.debounce, func() { s.Flush(sid) })
	} else {
		p.timer.Reset(s.debounce)
	}
	s.mu.Unlock()
}

// Flush immediately delivers any buffered chunks for the session as one
// message. No-op when nothing is pending.
func (s *Sink) Flush(sessionID string) {
	s.mu.Lock()
	p := s.pending[sessionID]
	if p == nil {
		s.mu.Unlock()
		return
	}
	delete(s.pending, sessionID)
	if p.timer != nil {
		p.timer.Stop()
	}
	ch, text := p.ch, p.buf.String()
	s.mu.Unlock()

	if text == "" {
		return
	}
	if err := ch.SendResponse(sessionID, text); err != nil {
		s.logger.Warn("buffered response delivery failed",
			"channel", ch.Name(), "session_id", sessionID, "error", err)
	}
}
