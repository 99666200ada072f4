package agent

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type slowChannel struct {
	mu        sync.Mutex
	responses []string
}

func (c *slowChannel) Name() string { return "polling" }

func (c *slowChannel) SendResponse(_, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, text)
	return nil
}

func (c *slowChannel) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.responses...)
}

func TestDebounceCoalescesChunks(t *testing.T) {
	s := NewSink(nil, nil)
	s.debounce = 30 * time.Millisecond

	ch := &slowChannel{}
	for _, chunk := range []string{"The ", "quick ", "brown ", "fox ", "jumps"} {
		s.Chunk(ch, "s1", chunk)
	}

	// Nothing delivered inside the quiet period.
	if got := ch.sent(); len(got) != 0 {
		t.Fatalf("premature delivery: %v", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(ch.sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	got := ch.sent()
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 coalesced delivery, got %d: %v", len(got), got)
	}
	if got[0] != "The quick brown fox jumps" {
		t.Fatalf("chunks out of order: %q", got[0])
	}
}

func TestStreamingChannelBypassesBuffer(t *testing.T) {
	s := NewSink(nil, nil)

	ch := &streamChannel{}
	s.Chunk(ch, "s1", "a")
	s.Chunk(ch, "s1", "b")

	if got := strings.Join(ch.chunks, ""); got != "ab" {
		t.Fatalf("chunks = %q", got)
	}
	if len(ch.sent()) != 0 {
		t.Fatal("streaming channel should not receive coalesced responses")
	}
}

func TestResponseFlushesPendingFirst(t *testing.T) {
	s := NewSink(nil, nil)
	s.debounce = time.Hour // never fires on its own

	ch := &slowChannel{}
	s.Chunk(ch, "s1", "partial output")
	s.Response(ch, "s1", "final notice")

	got := ch.sent()
	if len(got) != 2 || got[0] != "partial output" || got[1] != "final notice" {
		t.Fatalf("expected buffered text before the notice, got %v", got)
	}
}

func TestBufferCapDropsOldest(t *testing.T) {
	s := NewSink(nil, nil)
	s.debounce = time.Hour
	s.maxBuf = 10

	ch := &slowChannel{}
	s.Chunk(ch, "s1", "0123456789")
	s.Chunk(ch, "s1", "ABCDE")
	s.Flush("s1")

	got := ch.sent()
	if len(got) != 1 || got[0] != "56789ABCDE" {
		t.Fatalf("expected oldest data dropped, got %v", got)
	}
}

func TestSessionsBufferedIndependently(t *testing.T) {
	s := NewSink(nil, nil)
	s.debounce = time.Hour

	ch := &slowChannel{}
	s.Chunk(ch, "s1", "one")
	s.Chunk(ch, "s2", "two")
	s.Flush("s1")

	got := ch.sent()
	if len(got) != 1 || got[0] != "one" {
		t.Fatalf("flush leaked across sessions: %v", got)
	}
}

func TestFlushNothingPending(t *testing.T) {
	s := NewSink(nil, nil)
	s.Flush("missing") // must not panic
}
