package channels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ConsoleSessionID is the fixed session for the interactive console.
const ConsoleSessionID = "console"

// Console is the interactive stdin/stdout channel. It supports
// streaming, so model tokens appear as they are produced.
type Console struct {
	logger  *slog.Logger
	inbound InboundFunc
	in      io.Reader
	out     io.Writer

	mu        sync.Mutex
	midStream bool
}

// NewConsole creates a console channel reading from in and writing to
// out (normally os.Stdin and os.Stdout).
func NewConsole(in io.Reader, out io.Writer, inbound InboundFunc, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		logger:  logger.With("channel", "console"),
		inbound: inbound,
		in:      in,
		out:     out,
	}
}

func (c *Console) Name() string { return "console" }

// Run reads lines until EOF or ctx cancellation, feeding each non-empty
// line to the inbound handler.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	c.prompt()

	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return scanner.Err()
			}
			text := strings.TrimSpace(line)
			if text == "" {
				c.prompt()
				continue
			}
			c.inbound(ctx, ConsoleSessionID, text)
			c.endStream()
			c.prompt()
		}
	}
}

// SendResponse prints a complete message on its own lines.
func (c *Console) SendResponse(_, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.midStream {
		fmt.Fprintln(c.out)
		c.midStream = false
	}
	_, err := fmt.Fprintln(c.out, text)
	return err
}

// SendStreamChunk writes a fragment without a trailing newline.
func (c *Console) SendStreamChunk(_, chunk string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.midStream = true
	_, err := fmt.Fprint(c.out, chunk)
	return err
}

func (c *Console) prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, "> ")
}

func (c *Console) endStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.midStream {
		fmt.Fprintln(c.out)
		c.midStream = false
	}
}
