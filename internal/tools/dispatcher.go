package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tindale/reeve/internal/llm"
)

// Result is the normalized outcome of one tool invocation. Exactly one
// Result is produced per ToolCall regardless of how execution ended.
type Result struct {
	Call    llm.ToolCall
	Success bool
	Output  string
	Error   string
	Elapsed time.Duration
}

// RemoteHost resolves and executes tools that live outside the local
// registry. Implementations maintain their own name lookup cache.
type RemoteHost interface {
	// Has reports whether the named tool is served by this host,
	// refreshing the host's cache when the name is unknown.
	Has(ctx context.Context, name string) bool
	// Call executes the named tool.
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// Dispatcher routes tool calls to the local registry first, then to an
// optional remote host.
type Dispatcher struct {
	registry *Registry
	remote   RemoteHost
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. remote may be nil.
func NewDispatcher(registry *Registry, remote RemoteHost, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		remote:   remote,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Dispatch executes every call concurrently and blocks until all have
// resolved. Results preserve the order of calls. Panics inside a
// handler become failed Results; dispatch itself never panics and
// never drops a call.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []llm.ToolCall) []Result {
	results := make([]Result, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = d.execute(ctx, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) execute(ctx context.Context, call llm.ToolCall) (result Result) {
	start := time.Now()
	result = Result{Call: call}

	defer func() {
		result.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			result.Success = false
			result.Output = ""
			result.Error = fmt.Sprintf("tool panicked: %v", r)
			d.logger.Error("tool handler panicked", "tool", call.Name, "panic", r)
		}
	}()

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	if tool := d.registry.Get(call.Name); tool != nil {
		out, err := tool.Handler(ctx, args)
		return d.finish(call, start, out, err, false)
	}

	if d.remote != nil && d.remote.Has(ctx, call.Name) {
		out, err := d.remote.Call(ctx, call.Name, args)
		return d.finish(call, start, out, err, true)
	}

	err := &DispatchError{
		ToolName: call.Name,
		Err:      &ErrToolUnavailable{ToolName: call.Name},
	}
	d.logger.Warn("tool not found", "tool", call.Name)
	return Result{Call: call, Success: false, Error: err.Error(), Elapsed: time.Since(start)}
}

func (d *Dispatcher) finish(call llm.ToolCall, start time.Time, out string, err error, remote bool) Result {
	elapsed := time.Since(start)
	if err != nil {
		derr := &DispatchError{ToolName: call.Name, Remote: remote, Err: err}
		d.logger.Warn("tool failed", "tool", call.Name, "remote", remote, "elapsed", elapsed, "error", err)
		return Result{Call: call, Success: false, Error: derr.Error(), Elapsed: elapsed}
	}
	d.logger.Debug("tool succeeded", "tool", call.Name, "remote", remote, "elapsed", elapsed, "output_len", len(out))
	return Result{Call: call, Success: true, Output: out, Elapsed: elapsed}
}
