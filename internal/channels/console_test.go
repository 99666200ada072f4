package channels

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestConsoleInboundLines(t *testing.T) {
	in := strings.NewReader("hello there\n\n  \nsecond message\n")
	var out bytes.Buffer

	type msg struct{ session, text string }
	got := make([]msg, 0, 2)
	c := NewConsole(in, &out, func(_ context.Context, sessionID, text string) {
		got = append(got, msg{sessionID, text})
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 inbound messages, got %d", len(got))
	}
	if got[0].text != "hello there" || got[1].text != "second message" {
		t.Fatalf("messages = %+v", got)
	}
	if got[0].session != ConsoleSessionID {
		t.Fatalf("session = %q", got[0].session)
	}
}

func TestConsoleStreamThenResponse(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader(""), &out, nil, nil)

	c.SendStreamChunk("console", "partial ")
	c.SendStreamChunk("console", "answer")
	c.SendResponse("console", "a notice")

	text := out.String()
	// The stream is terminated with a newline before the notice starts.
	if !strings.Contains(text, "partial answer\na notice\n") {
		t.Fatalf("output = %q", text)
	}
}

func TestConsoleResponseWithoutStream(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader(""), &out, nil, nil)

	c.SendResponse("console", "plain reply")
	if out.String() != "plain reply\n" {
		t.Fatalf("output = %q", out.String())
	}
}
