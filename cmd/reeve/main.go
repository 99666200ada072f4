// Reeve is a personal assistant gateway.
//
// It runs a conversation orchestrator over pluggable chat channels
// (console, WebSocket, MQTT, email), with local and remote (MCP) tools,
// scheduled tasks, and persistent conversation memory. Configuration is
// loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	reeve serve              Start the assistant (default)
//	reeve version            Print version and build information
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/tindale/reeve/internal/agent"
	"github.com/tindale/reeve/internal/buildinfo"
	"github.com/tindale/reeve/internal/channels"
	"github.com/tindale/reeve/internal/commands"
	"github.com/tindale/reeve/internal/config"
	"github.com/tindale/reeve/internal/events"
	"github.com/tindale/reeve/internal/fetch"
	"github.com/tindale/reeve/internal/llm"
	"github.com/tindale/reeve/internal/mcp"
	"github.com/tindale/reeve/internal/memory"
	"github.com/tindale/reeve/internal/notes"
	"github.com/tindale/reeve/internal/scheduler"
	"github.com/tindale/reeve/internal/tools"
	"github.com/tindale/reeve/internal/usage"
)

// main constructs the OS-level environment and delegates to run, which
// keeps os.Exit and os.Args out of the application logic so the whole
// lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	var configPath string
	command := "serve"

	// Manual parsing keeps package flag's globals out of the picture,
	// which matters when tests call run concurrently.
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-"):
			command = args[i]
		default:
			return fmt.Errorf("unknown flag %q (try -help)", args[i])
		}
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "version":
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	case "help":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command %q (try -help)", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprint(w, `Usage: reeve [-config path] [command]

Commands:
  serve      Start the assistant (default)
  version    Print version and build information
  help       Show this help
`)
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Reeve", "version", buildinfo.Version)

	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}
	logger.Info("config loaded", "path", cfgPath, "model", cfg.Models.Default)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	// Conversation log. Empty backend means sqlite with automatic
	// fallback to the JSON file store.
	store, err := memory.Open(cfg.Memory.Backend, cfg.DataDir, cfg.Memory.Path, logger)
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}
	defer store.Close()

	// Model providers.
	models := llm.NewRegistry()
	if cfg.OpenAI.APIKey != "" {
		models.Register("openai", llm.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, logger))
	}
	if cfg.Anthropic.APIKey != "" {
		models.Register("anthropic", llm.NewAnthropicClient(cfg.Anthropic.BaseURL, cfg.Anthropic.APIKey, 0, logger))
	}
	if len(models.Providers()) == 0 {
		return fmt.Errorf("no model provider configured (set openai.api_key or anthropic.api_key)")
	}
	if _, _, err := models.Resolve(cfg.Models.Default); err != nil {
		return fmt.Errorf("default model: %w", err)
	}

	bus := events.New()

	// Local tools.
	registry := tools.NewRegistry()
	fetch.RegisterTool(registry, fetch.New())

	noteStore, err := notes.Open(filepath.Join(cfg.DataDir, "notes.json"))
	if err != nil {
		return fmt.Errorf("open notes store: %w", err)
	}
	notes.RegisterTools(registry, noteStore)

	shellCfg := tools.DefaultShellExecConfig()
	shellCfg.Enabled = cfg.ShellExec.Enabled
	if cfg.ShellExec.WorkingDir != "" {
		shellCfg.WorkingDir = cfg.ShellExec.WorkingDir
	}
	if len(cfg.ShellExec.DeniedPatterns) > 0 {
		shellCfg.DeniedCmds = append(shellCfg.DeniedCmds, cfg.ShellExec.DeniedPatterns...)
	}
	shellCfg.AllowedCmds = cfg.ShellExec.AllowedPrefixes
	if cfg.ShellExec.DefaultTimeoutSec > 0 {
		shellCfg.DefaultTimeout = time.Duration(cfg.ShellExec.DefaultTimeoutSec) * time.Second
	}
	tools.RegisterShellTool(registry, tools.NewShellExec(shellCfg))

	// Remote tools over MCP.
	host := mcp.NewHost(logger)
	defer host.Close()
	for _, sc := range cfg.MCPServers {
		var transport mcp.Transport
		switch sc.Transport {
		case "stdio", "":
			transport = mcp.NewStdioTransport(mcp.StdioConfig{
				Command: sc.Command,
				Args:    sc.Args,
				Logger:  logger,
			})
		case "http":
			transport = mcp.NewHTTPTransport(mcp.HTTPConfig{URL: sc.URL, Logger: logger})
		default:
			return fmt.Errorf("mcp server %q: unknown transport %q", sc.Name, sc.Transport)
		}

		client := mcp.NewClient(sc.Name, transport, logger)
		initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := client.Initialize(initCtx)
		cancel()
		if err != nil {
			// A down tool server must not keep the assistant from
			// starting; its tools will appear once it recovers.
			logger.Warn("mcp server unavailable", "server", sc.Name, "error", err)
		}
		host.AddServer(client, mcp.ServerFilter{Include: sc.Include, Exclude: sc.Exclude})
	}

	dispatcher := tools.NewDispatcher(registry, host, logger)
	sink := agent.NewSink(logger, bus)
	builder := agent.NewContextBuilder(agent.BuilderConfig{
		Store:           store,
		Notes:           noteStore,
		Logger:          logger,
		AgentName:       cfg.Agent.Name,
		UserName:        cfg.Agent.UserName,
		Workspace:       cfg.Agent.Workspace,
		RecentWindow:    cfg.Loop.RecentWindow,
		PerTurnMaxChars: cfg.Loop.PerTurnMaxChars,
	})

	tracker, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"))
	if err != nil {
		return fmt.Errorf("open usage store: %w", err)
	}
	defer tracker.Close()

	summarizer := cfg.Models.Summarizer
	if summarizer == "" {
		summarizer = cfg.Models.Default
	}
	compactor := agent.NewCompactor(store, models, summarizer, cfg.Compaction, bus, tracker, logger)

	loop := agent.New(agent.Options{
		Logger:     logger,
		Store:      store,
		Models:     models,
		Model:      cfg.Models.Default,
		Registry:   registry,
		Dispatcher: dispatcher,
		Remote:     host,
		Builder:    builder,
		Sink:       sink,
		Compactor:  compactor,
		Bus:        bus,
		Usage:      tracker,
		Config:     cfg.Loop,
	})

	router := commands.NewRouter(logger)
	commands.RegisterBuiltin(router, commands.Deps{
		Loop:      loop,
		Store:     store,
		Compactor: compactor,
	})

	// inbound routes a channel's messages: slash commands first,
	// everything else through the orchestrator.
	inbound := func(ctx context.Context, ch agent.Channel, sessionID, text string) {
		if reply, handled := router.Dispatch(ctx, sessionID, text); handled {
			if err := ch.SendResponse(sessionID, reply); err != nil {
				logger.Warn("command reply delivery failed", "channel", ch.Name(), "error", err)
			}
			return
		}
		if err := loop.ProcessMessage(ctx, ch, sessionID, text); err != nil {
			logger.Error("message processing failed",
				"channel", ch.Name(), "session_id", sessionID, "error", err)
		}
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errs := make(chan error, 4)

	// Each channel's inbound closure captures its own variable, which
	// is assigned before Run can deliver anything.
	var console *channels.Console
	console = channels.NewConsole(os.Stdin, stdout, func(ctx context.Context, sessionID, text string) {
		inbound(ctx, console, sessionID, text)
	}, logger)
	go func() {
		if err := console.Run(ctx); err != nil && ctx.Err() == nil {
			errs <- fmt.Errorf("console channel: %w", err)
		}
	}()

	var web *channels.WebServer
	if cfg.Web.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Web.Address, cfg.Web.Port)
		web = channels.NewWebServer(addr, func(ctx context.Context, sessionID, text string) {
			inbound(ctx, web, sessionID, text)
		}, bus, logger)
		go func() {
			if err := web.Run(ctx); err != nil {
				errs <- err
			}
		}()
	}

	var mqttCh *channels.MQTT
	if cfg.MQTT.Enabled {
		mqttCh = channels.NewMQTT(cfg.MQTT, func(ctx context.Context, sessionID, text string) {
			inbound(ctx, mqttCh, sessionID, text)
		}, logger)
		go func() {
			if err := mqttCh.Run(ctx); err != nil && ctx.Err() == nil {
				errs <- fmt.Errorf("mqtt channel: %w", err)
			}
		}()
	}

	var email *channels.Email
	if cfg.Email.Enabled {
		email = channels.NewEmail(cfg.Email, logger)
	}

	// Scheduled task wakes are synthetic inbound messages. The reply
	// channel is picked from the session id prefix so a task created
	// over MQTT reports back over MQTT.
	chooseChannel := func(sessionID string) agent.Channel {
		switch {
		case strings.HasPrefix(sessionID, "mqtt:") && mqttCh != nil:
			return mqttCh
		case strings.HasPrefix(sessionID, channels.WebSessionPrefix) && web != nil:
			return web
		case sessionID == "email" && email != nil:
			return email
		default:
			return console
		}
	}

	schedStore, err := scheduler.NewStore(filepath.Join(cfg.DataDir, "tasks.json"))
	if err != nil {
		return fmt.Errorf("open scheduler store: %w", err)
	}
	sched := scheduler.New(logger, schedStore, func(ctx context.Context, sessionID, message string) error {
		bus.Publish(events.Event{Source: events.SourceScheduler, Kind: events.KindTaskFired, SessionID: sessionID})
		return loop.ProcessMessage(ctx, chooseChannel(sessionID), sessionID, message)
	})
	scheduler.RegisterTools(registry, sched)
	sched.Start()
	defer sched.Stop()

	logger.Info("Reeve is ready",
		"tools", registry.Names(),
		"mcp_servers", host.Servers(),
		"web", cfg.Web.Enabled,
		"mqtt", cfg.MQTT.Enabled,
		"email", cfg.Email.Enabled,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errs:
		return err
	}
}
