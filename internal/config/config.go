// Package config handles Reeve configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/reeve/config.yaml, /etc/reeve/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "reeve", "config.yaml"))
	}

	paths = append(paths, "/etc/reeve/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Reeve configuration.
type Config struct {
	Agent      AgentConfig       `yaml:"agent"`
	Models     ModelsConfig      `yaml:"models"`
	OpenAI     OpenAIConfig      `yaml:"openai"`
	Anthropic  AnthropicConfig   `yaml:"anthropic"`
	Loop       LoopConfig        `yaml:"loop"`
	Compaction CompactionConfig  `yaml:"compaction"`
	Memory     MemoryConfig      `yaml:"memory"`
	ShellExec  ShellExecConfig   `yaml:"shell_exec"`
	MCPServers []MCPServerConfig `yaml:"mcp_servers"`
	Web        WebConfig         `yaml:"web"`
	MQTT       MQTTConfig        `yaml:"mqtt"`
	Email      EmailConfig       `yaml:"email"`
	DataDir    string            `yaml:"data_dir"`
	LogLevel   string            `yaml:"log_level"`
}

// AgentConfig defines the assistant's identity and workspace.
type AgentConfig struct {
	// Name is substituted into the identity section of the system prompt.
	Name string `yaml:"name"`
	// UserName is the display name of the human the assistant serves.
	UserName string `yaml:"user_name"`
	// Workspace is a directory whose REEVE.md and AGENTS.md files are
	// folded into the system prompt. If empty, no workspace context is added.
	Workspace string `yaml:"workspace"`
}

// ModelsConfig defines model selection.
type ModelsConfig struct {
	// Default is the model used for conversation turns, as
	// "provider/model" (e.g. "openai/gpt-4o", "anthropic/claude-sonnet-4").
	Default string `yaml:"default"`
	// Summarizer is the model used for compaction summaries. Falls back
	// to Default when empty.
	Summarizer string `yaml:"summarizer"`
}

// OpenAIConfig defines an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"` // default https://api.openai.com/v1
	APIKey  string `yaml:"api_key"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	BaseURL string `yaml:"base_url"` // default https://api.anthropic.com
	APIKey  string `yaml:"api_key"`
}

// LoopConfig bounds the orchestration loop.
type LoopConfig struct {
	// MaxTurns caps model round-trips per batch. Zero or negative means
	// unlimited. Values above 50 are clamped to 50.
	MaxTurns int `yaml:"max_turns"`
	// AutoContinueMax is the number of additional batches started
	// automatically after a step-limit exhaustion. Ignored (disabled)
	// when MaxTurns is unlimited.
	AutoContinueMax int `yaml:"auto_continue_max"`
	// AutoContinueNotices sends a user-visible notice when a new batch
	// starts automatically.
	AutoContinueNotices bool `yaml:"auto_continue_notices"`
	// RecentWindow is the number of trailing turns kept verbatim in the
	// conversation window.
	RecentWindow int `yaml:"recent_window"`
	// PerTurnMaxChars truncates each turn's content in the window.
	PerTurnMaxChars int `yaml:"per_turn_max_chars"`
}

// CompactionConfig controls automatic history summarization.
type CompactionConfig struct {
	// MinMessages is the turn count below which compaction never runs.
	MinMessages int `yaml:"min_messages"`
	// MinNewMessages is the minimum number of turns accumulated since
	// the last compaction marker before another compaction is considered.
	MinNewMessages int `yaml:"min_new_messages"`
	// KeepLast turns are always kept verbatim, never summarized.
	KeepLast int `yaml:"keep_last"`
	// PerMessageMaxChars caps each serialized turn in the summary prompt.
	PerMessageMaxChars int `yaml:"per_message_max_chars"`
	// MaxChars caps the total serialized conversation in the summary prompt.
	MaxChars int `yaml:"max_chars"`
}

// MemoryConfig selects the conversation log backend.
type MemoryConfig struct {
	// Backend is "sqlite" or "file". Empty means sqlite with automatic
	// fallback to the file store when the database cannot be opened.
	Backend string `yaml:"backend"`
	// Path overrides the store location. Defaults to
	// <data_dir>/memory.db or <data_dir>/memory.json.
	Path string `yaml:"path"`
}

// ShellExecConfig defines shell execution capabilities.
type ShellExecConfig struct {
	// Enabled allows shell command execution. Disabled by default for safety.
	Enabled bool `yaml:"enabled"`
	// WorkingDir sets the default working directory for commands.
	WorkingDir string `yaml:"working_dir"`
	// DeniedPatterns are command patterns to block (e.g., "rm -rf /").
	DeniedPatterns []string `yaml:"denied_patterns"`
	// AllowedPrefixes limits commands to those starting with these prefixes.
	// Empty means all commands are allowed (subject to denied patterns).
	AllowedPrefixes []string `yaml:"allowed_prefixes"`
	// DefaultTimeoutSec is the default timeout in seconds (default 30).
	DefaultTimeoutSec int `yaml:"default_timeout_sec"`
}

// MCPServerConfig defines one remote tool host.
type MCPServerConfig struct {
	Name string `yaml:"name"`
	// Transport is "stdio" or "http".
	Transport string `yaml:"transport"`
	// Command and Args launch a stdio server.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	// URL is the endpoint of an HTTP server.
	URL string `yaml:"url"`
	// Include and Exclude filter which remote tools are advertised.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// WebConfig defines the WebSocket chat channel.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`    // Default: 8420
}

// MQTTConfig defines the MQTT chat channel.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // e.g. mqtt://broker:1883
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// TopicPrefix is prepended to the in/out topics (default "reeve").
	TopicPrefix string `yaml:"topic_prefix"`
}

// EmailConfig defines the outbound email channel.
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Load reads configuration from a YAML file. Environment variables in
// the file are expanded before parsing, so secrets can live in the
// environment rather than on disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Name: "Reeve",
		},
		Models: ModelsConfig{
			Default: "openai/gpt-4o",
		},
		Loop: LoopConfig{
			MaxTurns:        15,
			AutoContinueMax: 3,
			RecentWindow:    10,
			PerTurnMaxChars: 4000,
		},
		Compaction: CompactionConfig{
			MinMessages:        80,
			MinNewMessages:     30,
			KeepLast:           20,
			PerMessageMaxChars: 2000,
			MaxChars:           24000,
		},
		Web: WebConfig{
			Port: 8420,
		},
		DataDir: "data",
	}
}
